// Package client sends business payloads to the bank gateway through the envelope.
//
// One Call is one logical request: a RequestContext is created, the payload is sealed,
// posted by the Transport and the response is opened. Calls that carry an idempotency key,
// or that are marked idempotent, are retried on transport failures with exponential backoff
// (github.com/cenkalti/backoff/v5). Each retry gets a fresh mesgId and timestamp and keeps the
// idempotency key and interaction id.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/renqiukai/wzbank-go/internal/canonical"
	"github.com/renqiukai/wzbank-go/internal/crypto"
	"github.com/renqiukai/wzbank-go/internal/envelope"
	"github.com/renqiukai/wzbank-go/internal/logger"
	"github.com/renqiukai/wzbank-go/internal/reqctx"
	"github.com/renqiukai/wzbank-go/internal/transport"
)

const (
	DefaultBankID  = "WZB"
	DefaultBaseURL = "https://openapi.wzbank.cn/prdApiGW/"
)

// RetryPolicy configures retries of transport failures. MaxRetries 0 disables retries.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Config holds everything a Client needs. Provider and AppID are required.
type Config struct {
	AppID   string
	BankID  string
	BaseURL string

	Provider  crypto.Provider
	Transport transport.Transport

	// CodecOptions are passed to envelope.NewCodec.
	CodecOptions []envelope.Option

	Retry  RetryPolicy
	Logger *slog.Logger
}

// Client is safe for concurrent use.
type Client struct {
	appID     string
	bankID    string
	baseURL   string
	codec     *envelope.Codec
	transport transport.Transport
	retry     RetryPolicy
	logger    *slog.Logger
}

// New returns a Client. BankID, BaseURL and Transport default to WZB, the production
// gateway and an HTTPTransport with a 30s timeout.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AppID) == "" {
		return nil, errors.New("app id is required")
	}
	if cfg.Provider == nil {
		return nil, errors.New("crypto provider is required")
	}

	codec, err := envelope.NewCodec(cfg.Provider, cfg.CodecOptions...)
	if err != nil {
		return nil, err
	}

	c := &Client{
		appID:     cfg.AppID,
		bankID:    cfg.BankID,
		baseURL:   cfg.BaseURL,
		codec:     codec,
		transport: cfg.Transport,
		retry:     cfg.Retry,
		logger:    cfg.Logger,
	}
	if c.bankID == "" {
		c.bankID = DefaultBankID
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/") + "/"
	if c.transport == nil {
		c.transport = transport.NewHTTPTransport(transport.Options{Timeout: 30 * time.Second})
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must be 0 or greater, got %d", c.retry.MaxRetries)
	}
	return c, nil
}

// AppID returns the configured app id.
func (c *Client) AppID() string { return c.appID }

// BankID returns the configured bank id.
func (c *Client) BankID() string { return c.bankID }

// URL returns the full URL of an endpoint path such as V1/P01502/S01/queryeaccountbalance.
func (c *Client) URL(path string) string {
	return c.baseURL + strings.TrimLeft(path, "/")
}

// CallOption configures a single call.
type CallOption func(*callOptions)

type callOptions struct {
	ctxOpts    []reqctx.Option
	idempotent bool
	hasKey     bool
}

// WithIdempotencyKey sends key in x-idempotency-key and makes the call retryable.
func WithIdempotencyKey(key string) CallOption {
	return func(o *callOptions) {
		if key == "" {
			return
		}
		o.ctxOpts = append(o.ctxOpts, reqctx.WithIdempotencyKey(key))
		o.hasKey = true
	}
}

// WithInteractionID reuses an interaction id for tracing.
func WithInteractionID(id string) CallOption {
	return func(o *callOptions) {
		o.ctxOpts = append(o.ctxOpts, reqctx.WithInteractionID(id))
	}
}

// WithHeader adds an optional gateway header such as Authorization or x-aob-access-token.
func WithHeader(name, value string) CallOption {
	return func(o *callOptions) {
		o.ctxOpts = append(o.ctxOpts, reqctx.WithHeader(name, value))
	}
}

// Idempotent marks a call as safe to repeat (queries), so it is retried without an idempotency key.
func Idempotent() CallOption {
	return func(o *callOptions) {
		o.idempotent = true
	}
}

// Call seals payload, posts it to path and opens the response.
//
// Business failures (a dealCode other than success) are returned as data.
// Errors are *envelope.EnvelopeError values, see envelope.CodeOf.
func (c *Client) Call(ctx context.Context, path string, payload *canonical.Payload, opts ...CallOption) (*envelope.DecodedResponse, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	if payload == nil {
		payload = canonical.NewPayload()
	}

	rc, err := reqctx.New(c.appID, c.bankID, o.ctxOpts...)
	if err != nil {
		return nil, envelope.WrapSigningError(err, "invalid request context")
	}

	url := c.URL(path)
	reqLogger := c.logger.With(
		slog.String("path", path),
		slog.String("interaction_id", rc.InteractionID),
	)

	retries := 0
	if o.idempotent || o.hasKey {
		retries = c.retry.MaxRetries
	}

	attempt := 0
	operation := func() (*envelope.DecodedResponse, error) {
		attempt++
		if attempt > 1 {
			// each attempt is a new message, even when the caller set mesgId
			rc = rc.Renew()
			payload = reqctx.StripCommonFields(payload)
		}
		decoded, err := c.do(ctx, url, payload, rc, reqLogger)
		if err == nil {
			return decoded, nil
		}
		if envelope.IsRetryable(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	decoded, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(retries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			reqLogger.Warn("retrying gateway call",
				slog.Int("attempt", attempt),
				slog.Duration("next", next),
				slog.String("error", err.Error()))
		}),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		if envelope.CodeOf(err) == "" && ctx.Err() != nil {
			err = envelope.WrapCancelledError(err)
		}
		return nil, err
	}
	return decoded, nil
}

// do is one attempt.
func (c *Client) do(ctx context.Context, url string, payload *canonical.Payload, rc *reqctx.RequestContext, reqLogger *slog.Logger) (*envelope.DecodedResponse, error) {
	env, err := c.codec.Seal(ctx, payload, rc)
	if err != nil {
		return nil, err
	}

	reqLogger.Debug("sending request",
		slog.String("mesg_id", env.MessageID),
		slog.String("signature", logger.MaskSignature(env.Signature)),
		slog.Int("biz_content_len", len(env.BizContent)))

	if err := ctx.Err(); err != nil {
		return nil, envelope.WrapCancelledError(err)
	}

	resp, err := c.transport.Do(ctx, env.Request(url))
	if err != nil {
		if ctx.Err() != nil {
			return nil, envelope.WrapCancelledError(err)
		}
		return nil, envelope.WrapTransportError(err, "gateway call failed")
	}

	decoded, err := c.codec.Open(resp, rc)
	if err != nil {
		switch {
		case envelope.HasCode(err, envelope.ErrCodeSignatureVerification):
			reqLogger.Error("response signature verification failed",
				slog.String("mesg_id", env.MessageID),
				slog.Int("status", resp.StatusCode),
				slog.String("error", err.Error()))
		default:
			reqLogger.Debug("gateway call failed",
				slog.String("mesg_id", env.MessageID),
				slog.Int("status", resp.StatusCode),
				slog.String("error", err.Error()))
		}
		return nil, err
	}

	reqLogger.Debug("response received",
		slog.String("mesg_id", env.MessageID),
		slog.Int("status", decoded.StatusCode),
		slog.String("deal_code", decoded.DealCode))
	return decoded, nil
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.retry.InitialInterval > 0 {
		b.InitialInterval = c.retry.InitialInterval
	}
	if c.retry.MaxInterval > 0 {
		b.MaxInterval = c.retry.MaxInterval
	}
	return b
}
