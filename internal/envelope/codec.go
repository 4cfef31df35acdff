// Package envelope seals business payloads into signed, encrypted wire envelopes and opens
// the bank's responses.
//
// Outbound (Seal):
//
//  1. merge mesgId, mesgDate and mesgTime into the payload
//  2. serialise the payload (compact JSON, insertion order)
//  3. encrypt and hex encode it as bizContent
//  4. sign the canonical header set {"x-aob-appID","x-aob-bankID","bizContent"}
//  5. emit the headers and the body {"bizContent":"<hex>"}
//
// Inbound (Open) reverses this: status check, signature verification, hex decode,
// decryption, JSON parse. Every failure is an *EnvelopeError with a distinct code.
//
// The codec holds no mutable state and is safe for concurrent use.
package envelope

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/renqiukai/wzbank-go/internal/canonical"
	"github.com/renqiukai/wzbank-go/internal/crypto"
	"github.com/renqiukai/wzbank-go/internal/reqctx"
	"github.com/renqiukai/wzbank-go/internal/transport"
)

// Codec seals requests and opens responses with one Provider.
type Codec struct {
	provider            crypto.Provider
	signProfile         canonical.SignProfile
	responseSignProfile canonical.SignProfile
	payloadProfile      canonical.Profile
	verifyResponses     bool
	successCode         string
}

// Option configures a Codec.
type Option func(*Codec)

// WithSignProfile sets the profile used to sign requests and, unless WithResponseSignProfile
// is also given, to verify responses. The default is canonical.SignProfileBasic.
func WithSignProfile(profile canonical.SignProfile) Option {
	return func(c *Codec) {
		c.signProfile = profile
		c.responseSignProfile = profile
	}
}

// WithResponseSignProfile sets the profile used to verify response signatures.
func WithResponseSignProfile(profile canonical.SignProfile) Option {
	return func(c *Codec) {
		c.responseSignProfile = profile
	}
}

// WithPayloadProfile sets how business payloads are serialised before encryption.
func WithPayloadProfile(profile canonical.Profile) Option {
	return func(c *Codec) {
		c.payloadProfile = profile
	}
}

// WithResponseVerification enables or disables response signature verification (enabled by default).
func WithResponseVerification(enabled bool) Option {
	return func(c *Codec) {
		c.verifyResponses = enabled
	}
}

// WithSuccessCode sets the dealCode DecodedResponse.Succeeded compares against.
func WithSuccessCode(code string) Option {
	return func(c *Codec) {
		c.successCode = code
	}
}

// NewCodec returns a Codec using provider for all cryptographic operations.
func NewCodec(provider crypto.Provider, opts ...Option) (*Codec, error) {
	if provider == nil {
		return nil, errors.New("crypto provider is required")
	}
	c := &Codec{
		provider:            provider,
		signProfile:         canonical.SignProfileBasic,
		responseSignProfile: canonical.SignProfileBasic,
		payloadProfile:      canonical.ProfileOrdered,
		verifyResponses:     true,
		successCode:         DefaultSuccessCode,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Seal builds the signed, encrypted envelope for payload.
//
// The payload is not modified: common fields are merged into a copy.
// Seal fails with ErrCodeCancelled if ctx is already done.
func (c *Codec) Seal(ctx context.Context, payload *canonical.Payload, rc *reqctx.RequestContext) (*WireEnvelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, WrapCancelledError(err)
	}
	if rc == nil {
		return nil, WrapSigningError(errors.New("request context is nil"), "cannot seal request")
	}

	merged := payload.Clone()
	rc.MergeInto(merged)

	extra := rc.SignedHeaders()
	env, err := c.seal(merged, rc.AppID, rc.BankID, extra, c.signProfile)
	if err != nil {
		return nil, err
	}
	env.MessageID = merged.GetString(reqctx.FieldMessageID)
	return env, nil
}

// seal encrypts payload as is and signs it under profile. extra carries the
// headers sent (and, under the gateway profile, signed) besides the app and bank ids.
func (c *Codec) seal(payload *canonical.Payload, appID, bankID string, extra http.Header, profile canonical.SignProfile) (*WireEnvelope, error) {
	plaintext, err := payload.Canonical(c.payloadProfile)
	if err != nil {
		return nil, WrapEncryptionError(err, "failed to serialise payload")
	}

	ciphertext, err := c.provider.Encrypt(plaintext)
	if err != nil {
		return nil, WrapEncryptionError(err, "failed to encrypt payload")
	}
	bizContent := strings.ToUpper(hex.EncodeToString(ciphertext))

	set := canonical.NewSignedHeaderSet(appID, bankID, bizContent).WithHeaders(extra)
	signingInput, err := set.Canonical(profile)
	if err != nil {
		return nil, WrapSigningError(err, "failed to build signing input")
	}

	signature, err := c.provider.Sign(signingInput)
	if err != nil {
		return nil, WrapSigningError(err, "failed to sign request")
	}
	signatureHex := strings.ToUpper(hex.EncodeToString(signature))

	body, err := canonical.NewPayload().Set(canonical.FieldBizContent, bizContent).MarshalJSON()
	if err != nil {
		return nil, WrapEncryptionError(err, "failed to build body")
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	for name, values := range extra {
		for _, v := range values {
			header.Add(name, v)
		}
	}
	header.Set(canonical.HeaderAppID, appID)
	header.Set(canonical.HeaderBankID, bankID)
	header.Set(canonical.HeaderSignature, signatureHex)

	return &WireEnvelope{
		Header:     header,
		Body:       body,
		BizContent: bizContent,
		Signature:  signatureHex,
	}, nil
}

// Open authenticates and decrypts a gateway response.
//
// A non-2xx status returns ErrCodeTransport without verifying or decrypting, unless the
// body has the envelope shape: then it is opened and, if that succeeds, attached to the
// error (see EnvelopeError.Response). If opening fails the cause is wrapped, so a forged
// error body still reports ErrCodeSignatureVerification through HasCode.
// rc supplies the app and bank ids when the gateway does not echo them.
func (c *Codec) Open(resp *transport.Response, rc *reqctx.RequestContext) (*DecodedResponse, error) {
	if resp == nil {
		return nil, NewMalformedResponseError("no response", 0, nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		transportErr := NewTransportError(resp.StatusCode, resp.Header, resp.Body)
		if hasEnvelopeShape(resp.Body) {
			decoded, err := c.open(resp, rc)
			if err != nil {
				transportErr.wrapped = err
			} else {
				transportErr.response = decoded
			}
		}
		return nil, transportErr
	}

	return c.open(resp, rc)
}

func (c *Codec) open(resp *transport.Response, rc *reqctx.RequestContext) (*DecodedResponse, error) {
	status, header := resp.StatusCode, resp.Header
	if header == nil {
		header = http.Header{}
	}

	bizContent, err := parseBody(resp.Body)
	if err != nil {
		return nil, WrapMalformedResponseError(err, "response body is not an envelope", status, header)
	}

	if c.verifyResponses {
		appID := firstNonEmpty(header.Get(canonical.HeaderAppID), contextAppID(rc))
		bankID := firstNonEmpty(header.Get(canonical.HeaderBankID), contextBankID(rc))
		if err := c.verify(header, appID, bankID, bizContent, c.responseSignProfile); err != nil {
			return nil, NewSignatureVerificationError(err.Error(), status, header)
		}
	}

	fields, err := c.decrypt(bizContent, status, header)
	if err != nil {
		return nil, err
	}

	return newDecodedResponse(fields, status, header, c.verifyResponses, c.successCode), nil
}

// verify checks the x-aob-signature header against the canonical header set.
// The returned error message is safe to surface.
func (c *Codec) verify(header http.Header, appID, bankID, bizContent string, profile canonical.SignProfile) error {
	signatureHex := strings.TrimSpace(header.Get(canonical.HeaderSignature))
	if signatureHex == "" {
		return errors.New("response is not signed")
	}
	signature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return errors.New("signature is not valid hex")
	}

	set := canonical.NewSignedHeaderSet(appID, bankID, bizContent).WithHeaders(header)
	signingInput, err := set.Canonical(profile)
	if err != nil {
		return err
	}
	if !c.provider.Verify(signingInput, signature) {
		return errors.New("signature does not match")
	}
	return nil
}

// decrypt hex decodes and decrypts bizContent and parses the plaintext as a JSON object.
func (c *Codec) decrypt(bizContent string, status int, header http.Header) (*canonical.Payload, error) {
	ciphertext, err := hex.DecodeString(bizContent)
	if err != nil {
		return nil, WrapMalformedResponseError(err, "bizContent is not valid hex", status, header)
	}

	plaintext, err := c.provider.Decrypt(ciphertext)
	if err != nil {
		return nil, WrapDecryptionError(err, "failed to decrypt bizContent", status, header)
	}

	fields, err := canonical.ParsePayload(plaintext)
	if err != nil {
		// the parser error is not wrapped: it can quote decrypted content
		return nil, NewMalformedResponseError("decrypted bizContent is not a JSON object", status, header)
	}
	return fields, nil
}

// parseBody extracts the bizContent string from {"bizContent":"<hex>"}.
func parseBody(body []byte) (string, error) {
	p, err := canonical.ParsePayload(body)
	if err != nil {
		return "", err
	}
	v, ok := p.Get(canonical.FieldBizContent)
	if !ok {
		return "", errors.New("bizContent is missing")
	}
	bizContent, ok := v.(string)
	if !ok || bizContent == "" {
		return "", errors.New("bizContent is not a non-empty string")
	}
	return bizContent, nil
}

func hasEnvelopeShape(body []byte) bool {
	_, err := parseBody(body)
	return err == nil
}

func contextAppID(rc *reqctx.RequestContext) string {
	if rc == nil {
		return ""
	}
	return rc.AppID
}

func contextBankID(rc *reqctx.RequestContext) string {
	if rc == nil {
		return ""
	}
	return rc.BankID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
