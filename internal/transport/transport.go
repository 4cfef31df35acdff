// Package transport performs the HTTP round trip for a sealed request.
//
// The envelope layer builds a Request and hands it to a Transport exactly once per attempt;
// the Transport returns the raw status, headers and body without interpreting them.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMaxResponseBytes caps the response body read from the gateway.
const DefaultMaxResponseBytes = 4 << 20

// ErrResponseTooLarge is returned when the response body exceeds the configured limit.
var ErrResponseTooLarge = errors.New("response body too large")

// Request is one POST to the gateway.
type Request struct {
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the raw gateway response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport sends a request and returns the raw response.
//
// A non-nil error means no response was received (network failure, cancellation,
// rate limiter wait aborted). Non-2xx statuses are returned as a Response, not an error.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts a function to Transport.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Do calls f.
func (f Func) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Options configures an HTTPTransport.
type Options struct {
	// Timeout is the per-attempt HTTP timeout. Ignored when HTTPClient is set.
	Timeout time.Duration

	// RateLimitRPS limits outbound requests per second. Zero disables limiting.
	RateLimitRPS float64

	// RateLimitBurst is the limiter burst size. Defaults to 1 when limiting is enabled.
	RateLimitBurst int

	// MaxResponseBytes caps the response body. Defaults to DefaultMaxResponseBytes.
	MaxResponseBytes int64

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// HTTPTransport is a Transport backed by net/http.
// It is safe for concurrent use.
type HTTPTransport struct {
	httpClient       *http.Client
	limiter          *rate.Limiter
	maxResponseBytes int64
}

// compile time check
var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport returns an HTTPTransport configured by opts.
func NewHTTPTransport(opts Options) *HTTPTransport {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}

	maxBytes := opts.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResponseBytes
	}

	return &HTTPTransport{
		httpClient:       httpClient,
		limiter:          limiter,
		maxResponseBytes: maxBytes,
	}
}

// Do POSTs req.Body to req.URL.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for name, values := range req.Header {
		httpReq.Header[name] = append([]string(nil), values...)
	}

	// #nosec G704 -- the URL is the configured gateway base URL plus a fixed endpoint path
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > t.maxResponseBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, t.maxResponseBytes)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
