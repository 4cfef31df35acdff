package envelope

import (
	"net/http"

	"github.com/renqiukai/wzbank-go/internal/canonical"
	"github.com/renqiukai/wzbank-go/internal/reqctx"
)

// IncomingRequest is a request envelope after its signature has been verified and its
// bizContent decrypted. It is what the counterparty (the bank, or the sandbox) sees.
type IncomingRequest struct {
	AppID          string
	BankID         string
	InteractionID  string
	IdempotencyKey string
	MessageID      string
	Header         http.Header
	Payload        *canonical.Payload
}

// OpenRequest verifies and decrypts a request envelope with the counterparty's view of the keys:
// the provider verifies with the client's public key and shares the client's SM4 key.
//
// Request signatures are always verified, under the codec's sign profile.
func (c *Codec) OpenRequest(header http.Header, body []byte) (*IncomingRequest, error) {
	if header == nil {
		header = http.Header{}
	}

	appID := header.Get(canonical.HeaderAppID)
	bankID := header.Get(canonical.HeaderBankID)
	if appID == "" || bankID == "" {
		return nil, NewMalformedResponseError("x-aob-appID and x-aob-bankID headers are required", 0, header)
	}

	bizContent, err := parseBody(body)
	if err != nil {
		return nil, WrapMalformedResponseError(err, "request body is not an envelope", 0, header)
	}

	if err := c.verify(header, appID, bankID, bizContent, c.signProfile); err != nil {
		return nil, NewSignatureVerificationError(err.Error(), 0, header)
	}

	payload, err := c.decrypt(bizContent, 0, header)
	if err != nil {
		return nil, err
	}

	return &IncomingRequest{
		AppID:          appID,
		BankID:         bankID,
		InteractionID:  header.Get(canonical.HeaderInteractionID),
		IdempotencyKey: header.Get(canonical.HeaderIdempotencyKey),
		MessageID:      payload.GetString(reqctx.FieldMessageID),
		Header:         header,
		Payload:        payload,
	}, nil
}

// SealResponse encrypts and signs a response payload for the request it answers.
// The interaction id of the request is echoed. The payload is sent as given:
// no common fields are merged.
func (c *Codec) SealResponse(payload *canonical.Payload, req *IncomingRequest) (*WireEnvelope, error) {
	extra := http.Header{}
	if req.InteractionID != "" {
		extra.Set(canonical.HeaderInteractionID, req.InteractionID)
	}

	env, err := c.seal(payload, req.AppID, req.BankID, extra, c.responseSignProfile)
	if err != nil {
		return nil, err
	}
	env.Header.Del("Accept")
	return env, nil
}
