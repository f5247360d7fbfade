package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/citymarket/gateward/pkg/auth"
	"github.com/citymarket/gateward/pkg/observability"
	"github.com/citymarket/gateward/pkg/ratelimit"
)

type failingCache struct{}

func (failingCache) CheckAndIncrement(ctx context.Context, key string, window time.Duration, max int) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("cache unavailable")
}

func newTestLimiter(cache ratelimit.CounterCache) *Limiter {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewLimiter(cache, log, observability.NewMetrics(nil))
}

func limitedRequest(handler http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestLimiterCountsDownAndRejects(t *testing.T) {
	limiter := newTestLimiter(ratelimit.NewMemoryCounterCache())
	policy := Policy{
		Name:        "test",
		Window:      time.Minute,
		MaxRequests: 5,
		KeyFunc:     IPKey,
	}
	handler := limiter.Middleware(policy)(okHandler())

	for i := 1; i <= 5; i++ {
		w := limitedRequest(handler, "10.0.0.1")
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
		if got := w.Header().Get("X-RateLimit-Limit"); got != "5" {
			t.Errorf("request %d: X-RateLimit-Limit = %q, want 5", i, got)
		}
		if got := w.Header().Get("X-RateLimit-Remaining"); got != strconv.Itoa(5-i) {
			t.Errorf("request %d: X-RateLimit-Remaining = %q, want %d", i, got, 5-i)
		}
		if _, err := time.Parse(time.RFC3339, w.Header().Get("X-RateLimit-Reset")); err != nil {
			t.Errorf("request %d: X-RateLimit-Reset is not RFC3339: %v", i, err)
		}
	}

	w := limitedRequest(handler, "10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}

	var body rateLimitBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding 429 body: %v", err)
	}
	if body.Success {
		t.Error("429 body must have success=false")
	}
	if body.Code != string(auth.CodeRateLimitExceeded) {
		t.Errorf("expected code %s, got %s", auth.CodeRateLimitExceeded, body.Code)
	}
	if body.RetryAfter <= 0 {
		t.Errorf("retryAfter = %d, want > 0", body.RetryAfter)
	}
	if body.RetryAfter > 60 {
		t.Errorf("retryAfter = %d, want <= window seconds", body.RetryAfter)
	}
}

func TestLimiterWindowReset(t *testing.T) {
	limiter := newTestLimiter(ratelimit.NewMemoryCounterCache())
	policy := Policy{
		Name:        "short",
		Window:      60 * time.Millisecond,
		MaxRequests: 1,
		KeyFunc:     IPKey,
	}
	handler := limiter.Middleware(policy)(okHandler())

	if w := limitedRequest(handler, "10.0.0.1"); w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}
	if w := limitedRequest(handler, "10.0.0.1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w.Code)
	}

	time.Sleep(80 * time.Millisecond)

	if w := limitedRequest(handler, "10.0.0.1"); w.Code != http.StatusOK {
		t.Errorf("after window rollover: expected 200, got %d", w.Code)
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter := newTestLimiter(ratelimit.NewMemoryCounterCache())
	policy := Policy{
		Name:        "test",
		Window:      time.Minute,
		MaxRequests: 1,
		KeyFunc:     IPKey,
	}
	handler := limiter.Middleware(policy)(okHandler())

	if w := limitedRequest(handler, "10.0.0.1"); w.Code != http.StatusOK {
		t.Fatalf("first IP: expected 200, got %d", w.Code)
	}
	if w := limitedRequest(handler, "10.0.0.1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("first IP again: expected 429, got %d", w.Code)
	}
	if w := limitedRequest(handler, "10.0.0.2"); w.Code != http.StatusOK {
		t.Errorf("second IP: expected 200, got %d", w.Code)
	}
}

func TestLimiterSkipPredicate(t *testing.T) {
	limiter := newTestLimiter(ratelimit.NewMemoryCounterCache())
	policy := Policy{
		Name:        "skippy",
		Window:      time.Minute,
		MaxRequests: 1,
		KeyFunc:     IPKey,
		Skip: func(r *http.Request) bool {
			return r.Header.Get("X-Internal") == "1"
		},
	}
	handler := limiter.Middleware(policy)(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/resource", nil)
		req.Header.Set("X-Internal", "1")
		req.Header.Set("X-Forwarded-For", "10.0.0.1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("skipped request %d: expected 200, got %d", i, w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "" {
			t.Error("skipped request must not carry rate limit headers")
		}
	}

	// Skipped traffic did not consume the quota.
	if w := limitedRequest(handler, "10.0.0.1"); w.Code != http.StatusOK {
		t.Errorf("counted request after skips: expected 200, got %d", w.Code)
	}
}

func TestLimiterFailsOpenOnCacheError(t *testing.T) {
	limiter := newTestLimiter(failingCache{})
	policy := Policy{
		Name:        "broken",
		Window:      time.Minute,
		MaxRequests: 1,
		KeyFunc:     IPKey,
	}
	handler := limiter.Middleware(policy)(okHandler())

	for i := 0; i < 3; i++ {
		w := limitedRequest(handler, "10.0.0.1")
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: cache failure must admit, got %d", i, w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "" {
			t.Error("failed-open request must not carry rate limit headers")
		}
	}
}

func TestLimiterOnLimitReached(t *testing.T) {
	limiter := newTestLimiter(ratelimit.NewMemoryCounterCache())
	hookCalls := 0
	policy := Policy{
		Name:        "hooked",
		Window:      time.Minute,
		MaxRequests: 1,
		KeyFunc:     IPKey,
		OnLimitReached: func(r *http.Request) {
			hookCalls++
		},
	}
	handler := limiter.Middleware(policy)(okHandler())

	limitedRequest(handler, "10.0.0.1")
	limitedRequest(handler, "10.0.0.1")
	limitedRequest(handler, "10.0.0.1")

	if hookCalls != 2 {
		t.Errorf("OnLimitReached ran %d times, want 2", hookCalls)
	}
}

func TestLimiterOnOutcomeSeesFinalStatus(t *testing.T) {
	limiter := newTestLimiter(ratelimit.NewMemoryCounterCache())
	var statuses []int
	policy := Policy{
		Name:        "observed",
		Window:      time.Minute,
		MaxRequests: 10,
		KeyFunc:     IPKey,
		OnOutcome: func(r *http.Request, status int) {
			statuses = append(statuses, status)
		},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") == "1" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})
	handler := limiter.Middleware(policy)(next)

	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	req = httptest.NewRequest(http.MethodGet, "/resource?fail=1", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if len(statuses) != 2 || statuses[0] != http.StatusCreated || statuses[1] != http.StatusBadGateway {
		t.Errorf("OnOutcome saw %v, want [201 502]", statuses)
	}
}

func TestLimiterUserKeySeparatesUsers(t *testing.T) {
	limiter := newTestLimiter(ratelimit.NewMemoryCounterCache())
	policy := Policy{
		Name:        "peruser",
		Window:      time.Minute,
		MaxRequests: 1,
		KeyFunc:     UserKey,
	}
	handler := limiter.Middleware(policy)(okHandler())

	serveAs := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/resource", nil)
		req = withContext(req, &auth.Context{ID: userID, Role: auth.RoleUser})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	if w := serveAs("u1"); w.Code != http.StatusOK {
		t.Fatalf("u1 first: expected 200, got %d", w.Code)
	}
	if w := serveAs("u1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("u1 second: expected 429, got %d", w.Code)
	}
	if w := serveAs("u2"); w.Code != http.StatusOK {
		t.Errorf("u2: expected 200, got %d", w.Code)
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"forwarded single", "203.0.113.7", "", "10.0.0.1:1234", "203.0.113.7"},
		{"forwarded chain", "203.0.113.7, 10.0.0.2", "", "10.0.0.1:1234", "203.0.113.7"},
		{"real ip", "", "203.0.113.9", "10.0.0.1:1234", "203.0.113.9"},
		{"remote addr", "", "", "10.0.0.1:1234", "10.0.0.1"},
		{"remote addr no port", "", "", "10.0.0.1", "10.0.0.1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				r.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := ClientIP(r); got != tc.want {
				t.Errorf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}
