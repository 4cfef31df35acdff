package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/renqiukai/wzbank-go/internal/canonical"
	"github.com/renqiukai/wzbank-go/internal/crypto/cryptotest"
	"github.com/renqiukai/wzbank-go/internal/envelope"
	"github.com/renqiukai/wzbank-go/internal/logger"
	"github.com/renqiukai/wzbank-go/internal/reqctx"
	"github.com/renqiukai/wzbank-go/internal/transport"
)

// fakeBank answers sealed requests with sealed responses. failures is the number of
// 503 responses returned before the bank starts answering.
type fakeBank struct {
	t        *testing.T
	codec    *envelope.Codec
	failures int32

	calls    atomic.Int32
	mu       sync.Mutex
	requests []*envelope.IncomingRequest
	paths    []string
	answer   func(req *envelope.IncomingRequest) *canonical.Payload
}

func (b *fakeBank) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := b.calls.Add(1)

	body, _ := io.ReadAll(r.Body)
	incoming, err := b.codec.OpenRequest(r.Header, body)
	if err != nil {
		b.t.Errorf("bank could not open request: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.requests = append(b.requests, incoming)
	b.paths = append(b.paths, r.URL.Path)
	b.mu.Unlock()

	if n <= b.failures {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	answer := canonical.NewPayload().Set("dealCode", "0000").Set("dealMsg", "ok")
	if b.answer != nil {
		answer = b.answer(incoming)
	}
	env, err := b.codec.SealResponse(answer, incoming)
	if err != nil {
		b.t.Errorf("bank could not seal response: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for k, v := range env.Header {
		w.Header()[k] = v
	}
	_, _ = w.Write(env.Body)
}

func newTestClient(t *testing.T, failures int32) (*Client, *fakeBank) {
	t.Helper()

	pair := cryptotest.NewPair(t)
	bankCodec, err := envelope.NewCodec(pair.Bank)
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}
	bank := &fakeBank{t: t, codec: bankCodec, failures: failures}

	server := httptest.NewServer(bank)
	t.Cleanup(server.Close)

	c, err := New(Config{
		AppID:    "A1",
		BaseURL:  server.URL + "/prdApiGW",
		Provider: pair.Client,
		Retry: RetryPolicy{
			MaxRetries:      3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
		Logger: logger.Discard(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c, bank
}

func TestCall(t *testing.T) {
	c, bank := newTestClient(t, 0)
	bank.answer = func(req *envelope.IncomingRequest) *canonical.Payload {
		return canonical.NewPayload().
			Set("dealCode", "0000").
			Set("payAcctNo", req.Payload.GetString("payAcctNo")).
			Set("payAcctBal", "88.00")
	}

	payload := canonical.NewPayload().Set("payAcctNo", "733000120190056868")
	decoded, err := c.Call(context.Background(), "/V1/P01502/S01/queryeaccountbalance", payload)
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}

	if !decoded.Succeeded() {
		t.Errorf("Succeeded() = false, dealCode %q", decoded.DealCode)
	}
	if got := decoded.Fields.GetString("payAcctBal"); got != "88.00" {
		t.Errorf("payAcctBal = %q", got)
	}
	if got := bank.paths[0]; got != "/prdApiGW/V1/P01502/S01/queryeaccountbalance" {
		t.Errorf("request path = %q", got)
	}

	req := bank.requests[0]
	if req.AppID != "A1" || req.BankID != DefaultBankID {
		t.Errorf("app/bank id = %s/%s", req.AppID, req.BankID)
	}
	if req.MessageID == "" || req.Payload.GetString("mesgDate") == "" || req.Payload.GetString("mesgTime") == "" {
		t.Error("common fields were not merged into the request payload")
	}
}

func TestCallRetriesWithIdempotencyKey(t *testing.T) {
	c, bank := newTestClient(t, 2)

	decoded, err := c.Call(context.Background(), "V1/P01506/S01/singletrans",
		canonical.NewPayload().Set("orderNo", "100001"),
		WithIdempotencyKey("ABC123"))
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	if decoded.DealCode != "0000" {
		t.Errorf("DealCode = %q", decoded.DealCode)
	}

	if got := bank.calls.Load(); got != 3 {
		t.Fatalf("bank received %d calls, want 3", got)
	}

	seen := map[string]bool{}
	for _, req := range bank.requests {
		if req.IdempotencyKey != "ABC123" {
			t.Errorf("idempotency key = %q, want ABC123", req.IdempotencyKey)
		}
		if req.InteractionID != bank.requests[0].InteractionID {
			t.Error("interaction id changed between retries")
		}
		if seen[req.MessageID] {
			t.Errorf("mesgId %s reused on retry", req.MessageID)
		}
		seen[req.MessageID] = true
	}
}

func TestCallRetryRenewsCallerMessageID(t *testing.T) {
	c, bank := newTestClient(t, 1)

	payload := canonical.NewPayload().Set("orderNo", "100002").Set(reqctx.FieldMessageID, "caller-mesg-id")
	if _, err := c.Call(context.Background(), "V1/P01506/S01/singletrans", payload, WithIdempotencyKey("K2")); err != nil {
		t.Fatalf("Call() error: %v", err)
	}

	if len(bank.requests) != 2 {
		t.Fatalf("bank received %d requests, want 2", len(bank.requests))
	}
	if got := bank.requests[0].MessageID; got != "caller-mesg-id" {
		t.Errorf("first attempt mesgId = %q, want caller-mesg-id", got)
	}
	if got := bank.requests[1].MessageID; got == "caller-mesg-id" || got == "" {
		t.Errorf("retry mesgId = %q, want a fresh id", got)
	}
	if got := payload.GetString(reqctx.FieldMessageID); got != "caller-mesg-id" {
		t.Errorf("caller payload mesgId changed to %q", got)
	}
}

func TestCallRetriesIdempotentQuery(t *testing.T) {
	c, bank := newTestClient(t, 1)

	if _, err := c.Call(context.Background(), "V1/P01502/S01/queryeaccountbalance", nil, Idempotent()); err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	if got := bank.calls.Load(); got != 2 {
		t.Errorf("bank received %d calls, want 2", got)
	}
}

func TestCallDoesNotRetryWithoutKey(t *testing.T) {
	c, bank := newTestClient(t, 1)

	_, err := c.Call(context.Background(), "V1/P01506/S01/singletrans", canonical.NewPayload().Set("orderNo", "1"))
	if envelope.CodeOf(err) != envelope.ErrCodeTransport {
		t.Fatalf("Call() error = %v, want transport error", err)
	}

	var envErr *envelope.EnvelopeError
	if !errors.As(err, &envErr) || envErr.Status() != http.StatusServiceUnavailable {
		t.Errorf("error = %v, want HTTP 503", err)
	}
	if got := bank.calls.Load(); got != 1 {
		t.Errorf("bank received %d calls, want 1", got)
	}
}

func TestCallGivesUpAfterMaxRetries(t *testing.T) {
	c, bank := newTestClient(t, 100)

	_, err := c.Call(context.Background(), "V1/P01502/S01/queryeaccountbalance", nil, Idempotent())
	if envelope.CodeOf(err) != envelope.ErrCodeTransport {
		t.Fatalf("Call() error = %v, want transport error", err)
	}
	if got := bank.calls.Load(); got != 4 {
		t.Errorf("bank received %d calls, want 4 (1 + 3 retries)", got)
	}
}

func TestCallDoesNotRetrySignatureFailure(t *testing.T) {
	c, bank := newTestClient(t, 0)

	// the bank answers with keys the client does not trust
	otherBank, err := envelope.NewCodec(cryptotest.NewPair(t).Bank)
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bank.calls.Add(1)
		env, err := otherBank.SealResponse(canonical.NewPayload().Set("dealCode", "0000"),
			&envelope.IncomingRequest{AppID: "A1", BankID: "WZB"})
		if err != nil {
			t.Errorf("SealResponse() error: %v", err)
			return
		}
		for k, v := range env.Header {
			w.Header()[k] = v
		}
		_, _ = w.Write(env.Body)
	}))
	defer server.Close()
	c.baseURL = server.URL + "/"

	_, err = c.Call(context.Background(), "V1/P01502/S01/queryeaccountbalance", nil, WithIdempotencyKey("K1"))
	if envelope.CodeOf(err) != envelope.ErrCodeSignatureVerification {
		t.Fatalf("Call() error = %v, want signature_verification", err)
	}
	if got := bank.calls.Load(); got != 1 {
		t.Errorf("server received %d calls, want 1", got)
	}
}

func TestCallLogsForgedErrorBody(t *testing.T) {
	c, _ := newTestClient(t, 0)

	var logs bytes.Buffer
	c.logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	otherBank, err := envelope.NewCodec(cryptotest.NewPair(t).Bank)
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env, err := otherBank.SealResponse(canonical.NewPayload().Set("dealCode", "9999"),
			&envelope.IncomingRequest{AppID: "A1", BankID: "WZB"})
		if err != nil {
			t.Errorf("SealResponse() error: %v", err)
			return
		}
		for k, v := range env.Header {
			w.Header()[k] = v
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write(env.Body)
	}))
	defer server.Close()
	c.baseURL = server.URL + "/"

	_, err = c.Call(context.Background(), "V1/P01502/S01/queryeaccountbalance", nil)
	if envelope.CodeOf(err) != envelope.ErrCodeTransport {
		t.Fatalf("Call() error = %v, want transport", err)
	}
	if !envelope.HasCode(err, envelope.ErrCodeSignatureVerification) {
		t.Errorf("Call() error = %v, want the verification failure in the chain", err)
	}
	out := logs.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "response signature verification failed") {
		t.Errorf("verification failure was not logged at error level:\n%s", out)
	}
}

func TestCallCancelled(t *testing.T) {
	c, bank := newTestClient(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Call(ctx, "V1/P01502/S01/queryeaccountbalance", nil, Idempotent())
	if envelope.CodeOf(err) != envelope.ErrCodeCancelled {
		t.Fatalf("Call() error = %v, want cancelled", err)
	}
	if bank.calls.Load() != 0 {
		t.Error("request was sent after cancellation")
	}
}

func TestCallNetworkFailure(t *testing.T) {
	pair := cryptotest.NewPair(t)
	var attempts atomic.Int32

	c, err := New(Config{
		AppID:    "A1",
		Provider: pair.Client,
		Transport: transport.Func(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			attempts.Add(1)
			return nil, errors.New("connection refused")
		}),
		Retry:  RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond},
		Logger: logger.Discard(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	_, err = c.Call(context.Background(), "V1/P01502/S01/queryeaccountbalance", nil, Idempotent())
	if envelope.CodeOf(err) != envelope.ErrCodeTransport || !envelope.IsRetryable(err) {
		t.Fatalf("Call() error = %v, want retryable transport error", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestNew(t *testing.T) {
	pair := cryptotest.NewPair(t)

	if _, err := New(Config{Provider: pair.Client}); err == nil {
		t.Error("New() expected error without app id")
	}
	if _, err := New(Config{AppID: "A1"}); err == nil {
		t.Error("New() expected error without provider")
	}
	if _, err := New(Config{AppID: "A1", Provider: pair.Client, Retry: RetryPolicy{MaxRetries: -1}}); err == nil {
		t.Error("New() expected error for negative retries")
	}

	c, err := New(Config{AppID: "A1", Provider: pair.Client})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if c.BankID() != "WZB" {
		t.Errorf("BankID() = %q, want WZB", c.BankID())
	}
	if got := c.URL("/V1/P01502/S01/queryeaccountbalance"); got != "https://openapi.wzbank.cn/prdApiGW/V1/P01502/S01/queryeaccountbalance" {
		t.Errorf("URL() = %q", got)
	}
}
