package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func rateLimitedHandler(store *rateLimiterStore) echo.HandlerFunc {
	return rateLimit(store)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

func hit(e *echo.Echo, h echo.HandlerFunc, ip string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(http.MethodPost, "/api/pacientes/login", nil)
	req.RemoteAddr = ip + ":12345"
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	e := echo.New()
	h := rateLimitedHandler(newRateLimiterStore(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5}))

	for i := 0; i < 5; i++ {
		rec, err := hit(e, h, "10.0.0.1")
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	e := echo.New()
	store := newRateLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	h := rateLimitedHandler(store)

	for i := 0; i < 2; i++ {
		if _, err := hit(e, h, "10.0.0.1"); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec, err := hit(e, h, "10.0.0.1")
	if err == nil {
		t.Fatal("expected error for rate-limited request")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
	retry, convErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if convErr != nil || retry < 1 {
		t.Errorf("expected positive Retry-After, got %q", rec.Header().Get("Retry-After"))
	}

	now = now.Add(time.Second)
	if _, err := hit(e, h, "10.0.0.1"); err != nil {
		t.Errorf("expected refill after one second, got %v", err)
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	e := echo.New()
	store := newRateLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	now := time.Now()
	store.now = func() time.Time { return now }
	h := rateLimitedHandler(store)

	if _, err := hit(e, h, "10.0.0.1"); err != nil {
		t.Fatalf("first client: %v", err)
	}
	if _, err := hit(e, h, "10.0.0.2"); err != nil {
		t.Errorf("second client should have its own bucket, got %v", err)
	}
	if _, err := hit(e, h, "10.0.0.1"); err == nil {
		t.Error("expected first client to be limited")
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 0})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	for i := 0; i < 100; i++ {
		if _, err := hit(e, h, "10.0.0.1"); err != nil {
			t.Fatalf("request %d: expected no limiting, got %v", i+1, err)
		}
	}
}

func TestRateLimitStore_DropsIdleBuckets(t *testing.T) {
	store := newRateLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	start := time.Now()
	store.getBucket("stale", start)

	later := start.Add(idleBucketTTL + time.Minute)
	for i := 0; i < 1024; i++ {
		store.getBucket("k"+strconv.Itoa(i), later)
	}

	store.mu.RLock()
	_, ok := store.buckets["stale"]
	store.mu.RUnlock()
	if ok {
		t.Error("expected idle bucket to be swept")
	}
}
