package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"crud-scaffold/internal/metrics"
	"crud-scaffold/internal/repository"
	"crud-scaffold/internal/response"
	"crud-scaffold/internal/service"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func newGovernor(t *testing.T, window time.Duration, limit int64) *service.Governor {
	t.Helper()
	g, err := service.NewGovernor(repository.NewMemoryStore(), window, limit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return g
}

func TestRateLimitDeniesOverLimit(t *testing.T) {
	m := metrics.NewRegistry()
	h := RateLimit(newGovernor(t, time.Minute, 2), ClientIP, response.NewWriter(true), m)(okHandler)

	for i := 1; i <= 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, rr.Code)
		}
		if got := rr.Header().Get("X-RateLimit-Remaining"); got != strconv.Itoa(2-i) {
			t.Fatalf("request %d: unexpected remaining %q", i, got)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5678"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	var env response.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success || env.Message != response.MsgThrottled {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if got := testutil.ToFloat64(m.RateLimited); got != 1 {
		t.Fatalf("expected 1 rate limited, got %v", got)
	}

	// a different client is unaffected
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for other client got %d", rr.Code)
	}
}

func TestRateLimitRetryAfterFollowsGovernorClock(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	g, err := service.NewGovernor(repository.NewMemoryStore(repository.WithClock(clock)), time.Minute, 1, service.WithClock(clock))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := RateLimit(g, ClientIP, response.NewWriter(true), metrics.NewRegistry())(okHandler)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	now = now.Add(20 * time.Second)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "40" {
		t.Fatalf("expected Retry-After 40, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Reset"); got != strconv.FormatInt(now.Add(40*time.Second).Unix(), 10) {
		t.Fatalf("unexpected X-RateLimit-Reset %q", got)
	}
}

type failingStore struct{ repository.Store }

func (failingStore) FixedWindow(ctx context.Context, key string, window time.Duration, limit int64) (repository.Record, bool, error) {
	return repository.Record{}, false, context.DeadlineExceeded
}

func TestRateLimitStoreErrorIs500(t *testing.T) {
	g, err := service.NewGovernor(failingStore{}, time.Minute, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := RateLimit(g, ClientIP, response.NewWriter(true), metrics.NewRegistry())(okHandler)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rr.Code)
	}
}

func TestClientKeys(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := ClientIP(req); got != "192.0.2.1" {
		t.Fatalf("ClientIP: got %s", got)
	}
	if got := ForwardedClientIP(req); got != "203.0.113.9" {
		t.Fatalf("ForwardedClientIP: got %s", got)
	}
	req.Header.Del("X-Forwarded-For")
	if got := ForwardedClientIP(req); got != "192.0.2.1" {
		t.Fatalf("ForwardedClientIP fallback: got %s", got)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rr.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected generated id echoed, got ctx=%q header=%q", seen, rr.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen != "abc" || rr.Header().Get(RequestIDHeader) != "abc" {
		t.Fatalf("expected client id preserved, got %q", seen)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, kv := range securityHeaders {
		if got := rr.Header().Get(kv[0]); got != kv[1] {
			t.Fatalf("%s: expected %q got %q", kv[0], kv[1], got)
		}
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(response.NewWriter(false))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "kaboom") {
		t.Fatalf("expected panic detail outside production, got %s", rr.Body.String())
	}
}

func TestRequestSizeLimit(t *testing.T) {
	h := RequestSizeLimit(8, response.NewWriter(true))(okHandler)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"too long"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d", rr.Code)
	}
}

func TestLoggingRecordsStatus(t *testing.T) {
	m := metrics.NewRegistry()
	h := Logging(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/x", nil))
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("DELETE", "418")); got != 1 {
		t.Fatalf("expected 1 request recorded, got %v", got)
	}
}
