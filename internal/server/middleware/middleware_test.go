package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/renqiukai/wzbank-go/internal/sandbox"
)

func TestRequestSizeLimits(t *testing.T) {
	router := chi.NewRouter()
	route := "/V1/P01502/S01/queryeaccountbalance"
	maxRequestSize := int64(64)

	router.Group(func(r chi.Router) {
		r.Use(RequestSizeLimit(maxRequestSize))
		r.Post(route, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	tests := []struct {
		name     string
		bodySize int64
		wantCode int
	}{
		{"at the limit", maxRequestSize, http.StatusOK},
		{"oversized", 2 * maxRequestSize, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := strings.Repeat("x", int(tt.bodySize))
			req := httptest.NewRequest("POST", route, bytes.NewReader([]byte(body)))
			req.ContentLength = tt.bodySize

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("got status %d, want %d", rr.Code, tt.wantCode)
			}
			if header := rr.Header().Get("X-Max-Request-Size"); header != "64" {
				t.Errorf("X-Max-Request-Size = %q", header)
			}
			if tt.wantCode == http.StatusRequestEntityTooLarge {
				assertDealCode(t, rr, sandbox.ErrCodeRequestTooLarge)
			}
		})
	}
}

func TestRateLimitIsEnabled(t *testing.T) {
	router := chi.NewRouter()
	router.Use(RateLimit(10, 5)) // 10 requests per second, burst of 5
	router.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := range 5 {
		req := httptest.NewRequest("GET", "/test", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("Request %d failed: got status %d, want %d", i+1, rr.Code, http.StatusOK)
		}
	}

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("Rate limit request should fail: got status %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	assertDealCode(t, rr, sandbox.ErrCodeRateLimitExceeded)
}

func TestRateLimitIsDisabled(t *testing.T) {
	tests := []struct {
		name          string
		rps           int32
		expectLimited bool
	}{
		{"Rate limiting enabled", 10, true},
		{"Rate limiting disabled with 0", 0, false},
		{"Rate limiting disabled with negative", -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := chi.NewRouter()
			router.Use(RateLimit(tt.rps, 1))
			router.Get("/test", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			for i := 0; i < 2; i++ {
				req := httptest.NewRequest("GET", "/test", nil)
				rr := httptest.NewRecorder()
				router.ServeHTTP(rr, req)

				if tt.expectLimited && i == 1 {
					if rr.Code != http.StatusTooManyRequests {
						t.Errorf("Expected rate limit on request %d: got status %d, want %d", i+1, rr.Code, http.StatusTooManyRequests)
					}
				} else if rr.Code != http.StatusOK {
					t.Errorf("Request %d failed: got status %d, want %d", i+1, rr.Code, http.StatusOK)
				}
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	for _, env := range []string{"dev", "staging"} {
		t.Run(env, func(t *testing.T) {
			h := SecurityHeaders(env)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

			if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("X-Content-Type-Options not set")
			}
			hsts := rr.Header().Get("Strict-Transport-Security") != ""
			if hsts != (env == "staging") {
				t.Errorf("Strict-Transport-Security set = %v in %s", hsts, env)
			}
		})
	}
}

func assertDealCode(t *testing.T, rr *httptest.ResponseRecorder, want sandbox.ErrorCode) {
	t.Helper()
	var resp sandbox.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if resp.DealCode != want {
		t.Errorf("dealCode = %q, want %q", resp.DealCode, want)
	}
}
