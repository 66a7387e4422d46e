package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pacomedomagni/havenkeep-admission/internal/rate"
)

// RateLimit admits requests through the sliding-window limiter, keyed by
// client address. Health paths are always exempt. Rejections are HTTP 429
// with a retry-after hint derived from the window size.
//
// A limiter store failure admits the request: the limiter is a load shield,
// and the fail-closed layer of this subsystem is revocation, not admission.
func RateLimit(limiter rate.Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isHealthPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := clientAddr(r)
			decision, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("rate limiter unavailable, admitting", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if !decision.Allowed {
				retryAfter := int(decision.RetryAfter.Seconds())
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				writeJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":      "rate_limited",
					"message":    "too many requests, slow down",
					"retryAfter": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
