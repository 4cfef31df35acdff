package reqctx

import (
	"regexp"
	"testing"
	"time"

	"github.com/renqiukai/wzbank-go/internal/canonical"
)

var messageIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

func fixedClock() time.Time {
	// 2025-12-02 11:06:08.045 in Shanghai
	return time.Date(2025, 12, 2, 3, 6, 8, 45_000_000, time.UTC)
}

func TestNew(t *testing.T) {
	rc, err := New("A1", "WZB", WithClock(fixedClock))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if rc.AppID != "A1" || rc.BankID != "WZB" {
		t.Errorf("AppID/BankID = %s/%s", rc.AppID, rc.BankID)
	}
	if !messageIDPattern.MatchString(rc.MessageID) {
		t.Errorf("MessageID = %q, want 32 lowercase hex characters", rc.MessageID)
	}
	if rc.InteractionID == "" {
		t.Error("InteractionID was not generated")
	}
	if rc.IdempotencyKey != "" {
		t.Errorf("IdempotencyKey = %q, want empty", rc.IdempotencyKey)
	}
	if rc.MessageDate != "20251202" {
		t.Errorf("MessageDate = %q, want 20251202", rc.MessageDate)
	}
	if rc.MessageTime != "110608045" {
		t.Errorf("MessageTime = %q, want 110608045", rc.MessageTime)
	}
}

func TestNewRequiresIDs(t *testing.T) {
	if _, err := New("", "WZB"); err == nil {
		t.Error("New() expected error for empty app id")
	}
	if _, err := New("A1", " "); err == nil {
		t.Error("New() expected error for empty bank id")
	}
}

func TestOptions(t *testing.T) {
	rc, err := New("A1", "WZB",
		WithIdempotencyKey("ABC123"),
		WithInteractionID("trace-1"),
		WithHeader("authorization", "Bearer t"),
		WithHeader("x-aob-signature", "forged"),
		WithHeader("x-aob-access-token", ""),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if rc.IdempotencyKey != "ABC123" {
		t.Errorf("IdempotencyKey = %q, want ABC123", rc.IdempotencyKey)
	}
	if rc.InteractionID != "trace-1" {
		t.Errorf("InteractionID = %q, want trace-1", rc.InteractionID)
	}
	if len(rc.Headers) != 1 || rc.Headers[canonical.HeaderAuthorization] != "Bearer t" {
		t.Errorf("Headers = %v, want only Authorization", rc.Headers)
	}

	h := rc.SignedHeaders()
	if got := h.Get(canonical.HeaderIdempotencyKey); got != "ABC123" {
		t.Errorf("SignedHeaders() idempotency key = %q", got)
	}
	if got := h.Get(canonical.HeaderInteractionID); got != "trace-1" {
		t.Errorf("SignedHeaders() interaction id = %q", got)
	}
}

func TestRenew(t *testing.T) {
	rc, err := New("A1", "WZB", WithIdempotencyKey("ABC123"), WithHeader("Authorization", "Bearer t"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	next := rc.Renew()
	if next.MessageID == rc.MessageID {
		t.Error("Renew() kept the message id")
	}
	if next.IdempotencyKey != rc.IdempotencyKey || next.InteractionID != rc.InteractionID {
		t.Error("Renew() changed the idempotency key or interaction id")
	}
	if next.AppID != rc.AppID || next.BankID != rc.BankID {
		t.Error("Renew() changed the app or bank id")
	}

	next.Headers["Authorization"] = "changed"
	if rc.Headers["Authorization"] != "Bearer t" {
		t.Error("Renew() shares the header map with the original")
	}
}

func TestMergeInto(t *testing.T) {
	rc, err := New("A1", "WZB", WithClock(fixedClock))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	t.Run("appends common fields after business fields", func(t *testing.T) {
		p := canonical.NewPayload().Set("payAcctNo", "1234567890123456")
		rc.MergeInto(p)

		keys := p.Keys()
		want := []string{"payAcctNo", FieldMessageID, FieldMessageDate, FieldMessageTime}
		if len(keys) != len(want) {
			t.Fatalf("Keys() = %v, want %v", keys, want)
		}
		for i := range want {
			if keys[i] != want[i] {
				t.Fatalf("Keys() = %v, want %v", keys, want)
			}
		}
		if p.GetString(FieldMessageID) != rc.MessageID {
			t.Errorf("mesgId = %q, want %q", p.GetString(FieldMessageID), rc.MessageID)
		}
	})

	t.Run("keeps caller supplied values", func(t *testing.T) {
		p := canonical.NewPayload().Set(FieldMessageID, "caller-id").Set("payAcctNo", "1")
		rc.MergeInto(p)

		if got := p.GetString(FieldMessageID); got != "caller-id" {
			t.Errorf("mesgId = %q, want caller-id", got)
		}
		if got := p.Keys()[0]; got != FieldMessageID {
			t.Errorf("first key = %q, want mesgId", got)
		}
	})
}

func TestStripCommonFields(t *testing.T) {
	p := canonical.NewPayload().
		Set(FieldMessageID, "caller-id").
		Set("payAcctNo", "1").
		Set(FieldMessageDate, "20250101").
		Set(FieldMessageTime, "000000000")

	stripped := StripCommonFields(p)
	if keys := stripped.Keys(); len(keys) != 1 || keys[0] != "payAcctNo" {
		t.Errorf("Keys() = %v, want [payAcctNo]", keys)
	}
	if p.GetString(FieldMessageID) != "caller-id" {
		t.Error("StripCommonFields() modified its argument")
	}

	rc, err := New("A1", "WZB")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	next := rc.Renew()
	next.MergeInto(stripped)
	if got := stripped.GetString(FieldMessageID); got != next.MessageID {
		t.Errorf("mesgId = %q, want the renewed %q", got, next.MessageID)
	}
}
