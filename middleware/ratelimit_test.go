package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pacomedomagni/havenkeep-admission/internal/rate"
)

type stubLimiter struct {
	decision rate.Decision
	err      error
	calls    int
}

func (s *stubLimiter) Allow(context.Context, string) (rate.Decision, error) {
	s.calls++
	return s.decision, s.err
}

func rateLimitHandler(limiter rate.Limiter) (http.Handler, *bool) {
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	return RateLimit(limiter, nil)(next), &reached
}

func TestRateLimitAdmits(t *testing.T) {
	limiter := &stubLimiter{decision: rate.Decision{Allowed: true}}
	h, reached := rateLimitHandler(limiter)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items", nil))

	assert.True(t, *reached)
	assert.Equal(t, 1, limiter.calls)
}

func TestRateLimitRejects(t *testing.T) {
	limiter := &stubLimiter{decision: rate.Decision{Allowed: false, RetryAfter: time.Minute}}
	h, reached := rateLimitHandler(limiter)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items", nil))

	assert.False(t, *reached)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t,
		`{"error":"rate_limited","message":"too many requests, slow down","retryAfter":60}`,
		rec.Body.String())
}

func TestRateLimitHealthPathExempt(t *testing.T) {
	limiter := &stubLimiter{decision: rate.Decision{Allowed: false}}
	h, reached := rateLimitHandler(limiter)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.True(t, *reached)
	assert.Equal(t, 0, limiter.calls, "health checks never hit the limiter")
}

func TestRateLimitAdmitsOnStoreFailure(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis gone")}
	h, reached := rateLimitHandler(limiter)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items", nil))

	assert.True(t, *reached, "the limiter is a load shield, not the auth gate")
	assert.Equal(t, http.StatusOK, rec.Code)
}
