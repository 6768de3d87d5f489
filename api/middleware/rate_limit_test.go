package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeLimiter struct {
	counts map[string]int64
	err    error
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, window time.Duration) (bool, time.Duration, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[scope]++
	if f.counts[scope] > limit {
		return false, window / 2, nil
	}
	return true, 0, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestRateLimitBlocksAfterLimitPerUser(t *testing.T) {
	limiter := &fakeLimiter{}
	handler := RateLimit(NewRateLimitPolicy("relay", 2, time.Minute), limiter, nil)(okHandler())

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithUserID(req.Context(), user))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send("user_1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, rec.Code)
		}
	}
	rec := send("user_1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "30" {
		t.Fatalf("expected Retry-After 30 got %q", rec.Header().Get("Retry-After"))
	}
	if rec := send("user_2"); rec.Code != http.StatusOK {
		t.Fatalf("other users keep their own budget, got %d", rec.Code)
	}
	if _, ok := limiter.counts["relay:user:user_1"]; !ok {
		t.Fatalf("expected user scoped key, got %v", limiter.counts)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	limiter := &fakeLimiter{}
	handler := RateLimit(NewRateLimitPolicy("relay", 0, time.Minute), limiter, nil)(okHandler())
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", rec.Code)
		}
	}
	if len(limiter.counts) != 0 {
		t.Fatal("disabled policy should not touch the limiter")
	}

	handler = RateLimit(NewRateLimitPolicy("relay", 1, time.Minute), nil, nil)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("nil limiter: expected 200 got %d", rec.Code)
	}
}

func TestRateLimitStoreErrorIsDependencyError(t *testing.T) {
	handler := RateLimit(NewRateLimitPolicy("relay", 1, time.Minute), &fakeLimiter{err: errors.New("down")}, nil)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}

func TestRetrySecondsRoundsUp(t *testing.T) {
	if got := retrySeconds(1500 * time.Millisecond); got != 2 {
		t.Fatalf("expected 2 got %d", got)
	}
	if got := retrySeconds(0); got != 1 {
		t.Fatalf("expected 1 got %d", got)
	}
}
