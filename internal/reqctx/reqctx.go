// Package reqctx holds the correlation and idempotency identifiers attached to every call.
//
// A RequestContext is created fresh for each outbound request and is read-only afterwards.
// Retries use Renew, which issues a new message id and timestamp but keeps the idempotency
// key and interaction id, so the server can deduplicate and logs can follow one logical call.
package reqctx

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/renqiukai/wzbank-go/internal/canonical"
)

// Common payload fields carried in every request body.
const (
	FieldMessageID   = "mesgId"
	FieldMessageDate = "mesgDate"
	FieldMessageTime = "mesgTime"
)

const (
	dateLayout = "20060102"
	timeLayout = "150405.000"
)

// bankZone is the bank's local time. The gateway compares mesgDate with its own business date.
var bankZone = loadBankZone()

func loadBankZone() *time.Location {
	if loc, err := time.LoadLocation("Asia/Shanghai"); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*60*60)
}

// RequestContext carries the identifiers for one outbound request.
type RequestContext struct {
	AppID          string
	BankID         string
	IdempotencyKey string
	InteractionID  string
	MessageID      string
	MessageDate    string
	MessageTime    string

	// Headers are optional gateway headers (Authorization, x-aob-access-token, ...)
	// sent with the request and signed under the gateway sign profile.
	Headers map[string]string

	clock func() time.Time
}

// Option configures a RequestContext.
type Option func(*RequestContext)

// WithIdempotencyKey sets the opaque idempotency key copied to x-idempotency-key.
func WithIdempotencyKey(key string) Option {
	return func(rc *RequestContext) {
		rc.IdempotencyKey = key
	}
}

// WithInteractionID reuses an interaction id, for tracing across calls.
func WithInteractionID(id string) Option {
	return func(rc *RequestContext) {
		rc.InteractionID = id
	}
}

// WithHeader adds a gateway header. x-aob-appID, x-aob-bankID, x-aob-signature,
// x-idempotency-key and x-aob-interaction-id are managed by the context and are ignored here.
func WithHeader(name, value string) Option {
	return func(rc *RequestContext) {
		if reserved(name) || value == "" {
			return
		}
		if rc.Headers == nil {
			rc.Headers = make(map[string]string)
		}
		rc.Headers[canonicalGatewayName(name)] = value
	}
}

// WithClock overrides the clock used for mesgDate and mesgTime.
func WithClock(clock func() time.Time) Option {
	return func(rc *RequestContext) {
		rc.clock = clock
	}
}

// New returns a RequestContext with a new message id and timestamp.
// An interaction id is generated unless one is supplied.
func New(appID, bankID string, opts ...Option) (*RequestContext, error) {
	if strings.TrimSpace(appID) == "" {
		return nil, fmt.Errorf("app id is required")
	}
	if strings.TrimSpace(bankID) == "" {
		return nil, fmt.Errorf("bank id is required")
	}

	rc := &RequestContext{
		AppID:  appID,
		BankID: bankID,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(rc)
	}
	if rc.InteractionID == "" {
		rc.InteractionID = uuid.NewString()
	}
	rc.stamp()
	return rc, nil
}

// Renew returns a copy with a new message id and timestamp. AppID, BankID,
// IdempotencyKey, InteractionID and Headers are kept.
func (rc *RequestContext) Renew() *RequestContext {
	next := *rc
	if rc.Headers != nil {
		next.Headers = make(map[string]string, len(rc.Headers))
		for k, v := range rc.Headers {
			next.Headers[k] = v
		}
	}
	next.stamp()
	return &next
}

func (rc *RequestContext) stamp() {
	clock := rc.clock
	if clock == nil {
		clock = time.Now
	}
	now := clock().In(bankZone)

	rc.MessageID = NewMessageID()
	rc.MessageDate = now.Format(dateLayout)
	rc.MessageTime = strings.Replace(now.Format(timeLayout), ".", "", 1)
}

// NewMessageID returns a random UUID as 32 lowercase hex characters.
func NewMessageID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// MergeInto appends mesgId, mesgDate and mesgTime to payload.
// Values the caller already set are kept. A retry must not resend them: pass the
// payload through StripCommonFields before merging a renewed context.
func (rc *RequestContext) MergeInto(payload *canonical.Payload) {
	payload.SetDefault(FieldMessageID, rc.MessageID)
	payload.SetDefault(FieldMessageDate, rc.MessageDate)
	payload.SetDefault(FieldMessageTime, rc.MessageTime)
}

// StripCommonFields returns a copy of payload without mesgId, mesgDate and mesgTime.
func StripCommonFields(payload *canonical.Payload) *canonical.Payload {
	stripped := payload.Clone()
	stripped.Delete(FieldMessageID)
	stripped.Delete(FieldMessageDate)
	stripped.Delete(FieldMessageTime)
	return stripped
}

// SignedHeaders returns the optional gateway headers for this request,
// including the interaction id and idempotency key.
func (rc *RequestContext) SignedHeaders() http.Header {
	h := http.Header{}
	for k, v := range rc.Headers {
		h.Set(k, v)
	}
	if rc.InteractionID != "" {
		h.Set(canonical.HeaderInteractionID, rc.InteractionID)
	}
	if rc.IdempotencyKey != "" {
		h.Set(canonical.HeaderIdempotencyKey, rc.IdempotencyKey)
	}
	return h
}

func reserved(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case http.CanonicalHeaderKey(canonical.HeaderAppID),
		http.CanonicalHeaderKey(canonical.HeaderBankID),
		http.CanonicalHeaderKey(canonical.HeaderSignature),
		http.CanonicalHeaderKey(canonical.HeaderIdempotencyKey),
		http.CanonicalHeaderKey(canonical.HeaderInteractionID):
		return true
	}
	return false
}

func canonicalGatewayName(name string) string {
	for _, known := range canonical.GatewaySignedHeaders() {
		if strings.EqualFold(known, name) {
			return known
		}
	}
	return name
}
