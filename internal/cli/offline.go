package cli

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/renqiukai/wzbank-go/internal/canonical"
	"github.com/renqiukai/wzbank-go/internal/envelope"
	"github.com/renqiukai/wzbank-go/internal/reqctx"
)

var (
	signFlags requestFlags
	signPath  string
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Seal a payload offline and print the request that would be sent",
	Long: `Encrypt and sign a business payload without sending it. The output holds the headers,
the body, the signing input and the signature, for comparing against another implementation
or the bank's test tool.

mesgId, mesgDate and mesgTime are added to the payload before it is encrypted.

Example:
  wzbank sign --data '{"payAcctNo":"733000120190056868"}'`,
	Args: cobra.NoArgs,
	RunE: runSign,
}

// signOutput is printed by the sign command.
type signOutput struct {
	URL          string            `json:"url,omitempty"`
	Headers      map[string]string `json:"headers"`
	Body         string            `json:"body"`
	SigningInput string            `json:"signingInput"`
	BizContent   string            `json:"bizContent"`
	Signature    string            `json:"signature"`
	MessageID    string            `json:"mesgId"`
}

func init() {
	addRequestFlags(signCmd, &signFlags)
	signCmd.Flags().StringVarP(&signFlags.data, "data", "d", "", "business payload as a JSON object, or @file")
	signCmd.Flags().StringArrayVarP(&signFlags.fields, "field", "f", nil, "business field key=value (repeatable, appended after --data)")
	signCmd.Flags().StringVar(&signPath, "path", "", "endpoint path, only used to print the request URL")

	decryptCmd.Flags().BoolVar(&decryptRaw, "raw", false, "print the plaintext as is instead of indented JSON")
}

func runSign(cmd *cobra.Command, args []string) error {
	payload, err := signFlags.payload()
	if err != nil {
		return err
	}
	headers, err := signFlags.headerPairs()
	if err != nil {
		return err
	}

	var ctxOpts []reqctx.Option
	if signFlags.idempotencyKey != "" {
		ctxOpts = append(ctxOpts, reqctx.WithIdempotencyKey(signFlags.idempotencyKey))
	}
	if signFlags.interactionID != "" {
		ctxOpts = append(ctxOpts, reqctx.WithInteractionID(signFlags.interactionID))
	}
	for _, h := range headers {
		ctxOpts = append(ctxOpts, reqctx.WithHeader(h[0], h[1]))
	}
	rc, err := reqctx.New(cfg.AppID, cfg.BankID, ctxOpts...)
	if err != nil {
		return err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	opts, err := codecOptions(cfg)
	if err != nil {
		return err
	}
	codec, err := envelope.NewCodec(provider, opts...)
	if err != nil {
		return err
	}

	env, err := codec.Seal(cmd.Context(), payload, rc)
	if err != nil {
		return err
	}

	profile, err := canonical.ParseSignProfile(cfg.SignProfile)
	if err != nil {
		return err
	}
	signingInput, err := canonical.NewSignedHeaderSet(cfg.AppID, cfg.BankID, env.BizContent).
		WithHeaders(env.Header).
		Canonical(profile)
	if err != nil {
		return err
	}

	out := signOutput{
		Headers:      flattenHeaders(env.Header),
		Body:         string(env.Body),
		SigningInput: string(signingInput),
		BizContent:   env.BizContent,
		Signature:    env.Signature,
		MessageID:    env.MessageID,
	}
	if signPath != "" {
		path, err := endpointPath(signPath)
		if err != nil {
			return err
		}
		out.URL = strings.TrimRight(cfg.BaseURL, "/") + "/" + path
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

var decryptRaw bool

var decryptCmd = &cobra.Command{
	Use:   "decrypt <bizContent>",
	Short: "Decrypt a bizContent hex string with the configured SM4 key",
	Long: `Decrypt a bizContent value taken from a request or response body. The signature is not
checked: use this for diagnosis only.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ciphertext, err := hex.DecodeString(strings.TrimSpace(args[0]))
		if err != nil {
			return fmt.Errorf("bizContent is not valid hex: %w", err)
		}
		provider, err := newProvider(cfg)
		if err != nil {
			return err
		}
		plaintext, err := provider.Decrypt(ciphertext)
		if err != nil {
			return err
		}

		if decryptRaw {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(plaintext))
			return err
		}
		payload, err := canonical.ParsePayload(plaintext)
		if err != nil {
			return fmt.Errorf("plaintext is not a JSON object (use --raw): %w", err)
		}
		return writeJSON(cmd.OutOrStdout(), payload)
	},
}

func flattenHeaders(h http.Header) map[string]string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]string, len(names))
	for _, name := range names {
		out[gatewayHeaderName(name)] = h.Get(name)
	}
	return out
}

// gatewayHeaderName maps a canonical Go header key back to the spelling the gateway documents.
func gatewayHeaderName(name string) string {
	for _, known := range append(canonical.GatewaySignedHeaders(), canonical.HeaderSignature) {
		if http.CanonicalHeaderKey(known) == name {
			return known
		}
	}
	return name
}
