package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/renqiukai/wzbank-go/internal/canonical"
	"github.com/renqiukai/wzbank-go/internal/client"
	"github.com/renqiukai/wzbank-go/internal/envelope"
)

// requestFlags are shared by every command that sends or seals a request.
type requestFlags struct {
	data           string
	fields         []string
	idempotencyKey string
	interactionID  string
	headers        []string
}

// payload builds the business payload from --data (inline JSON or @file) followed by
// --field key=value pairs, in the order given.
func (f *requestFlags) payload() (*canonical.Payload, error) {
	p := canonical.NewPayload()
	if f.data != "" {
		raw := []byte(f.data)
		if path, ok := strings.CutPrefix(f.data, "@"); ok {
			b, err := os.ReadFile(path) // #nosec G304 -- path is supplied by the operator on the command line
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			raw = b
		}
		parsed, err := canonical.ParsePayload(raw)
		if err != nil {
			return nil, fmt.Errorf("--data is not a JSON object: %w", err)
		}
		p = parsed
	}
	for _, kv := range f.fields {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --field %q (expected key=value)", kv)
		}
		p.Set(k, v)
	}
	return p, nil
}

func (f *requestFlags) headerPairs() ([][2]string, error) {
	out := make([][2]string, 0, len(f.headers))
	for _, h := range f.headers {
		k, v, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --header %q (expected name=value)", h)
		}
		out = append(out, [2]string{strings.TrimSpace(k), v})
	}
	return out, nil
}

func (f *requestFlags) callOptions() ([]client.CallOption, error) {
	headers, err := f.headerPairs()
	if err != nil {
		return nil, err
	}
	var opts []client.CallOption
	if f.idempotencyKey != "" {
		opts = append(opts, client.WithIdempotencyKey(f.idempotencyKey))
	}
	if f.interactionID != "" {
		opts = append(opts, client.WithInteractionID(f.interactionID))
	}
	for _, h := range headers {
		opts = append(opts, client.WithHeader(h[0], h[1]))
	}
	return opts, nil
}

func writeJSON(w io.Writer, v any) error {
	var raw []byte
	var err error
	if p, ok := v.(*canonical.Payload); ok {
		raw, err = p.MarshalJSON()
	} else {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		err = enc.Encode(v)
		raw = buf.Bytes()
	}
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(raw), "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err = w.Write(out.Bytes())
	return err
}

// printResponse writes the decrypted fields and returns an error for business failures
// so the process exits non-zero.
func printResponse(w io.Writer, resp *envelope.DecodedResponse) error {
	if err := writeJSON(w, resp.Fields); err != nil {
		return err
	}
	if !resp.Succeeded() {
		return fmt.Errorf("bank returned dealCode %s: %s", resp.DealCode, resp.DealMsg)
	}
	return nil
}
