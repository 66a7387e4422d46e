package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/pacomedomagni/havenkeep-admission/internal"
)

// CsrfConfig tunes the double-submit cookie guard.
type CsrfConfig struct {
	CookieName string
	HeaderName string
	MaxAge     time.Duration
	// Secure marks the cookie HTTPS-only; set in production.
	Secure bool
}

// Csrf enforces double-submit cookie protection on state-mutating requests.
//
// Safe methods bypass the comparison but still seed the cookie for
// first-time visitors, so the token exists before the first unsafe request.
// The cookie is deliberately readable by client script: the client must
// mirror it into the request header. On every successful validation the
// token rotates.
func Csrf(cfg CsrfConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isHealthPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if isSafeMethod(r.Method) {
				if _, err := r.Cookie(cfg.CookieName); err != nil {
					if !setCsrfCookie(w, cfg) {
						logger.Error("csrf cookie seeding failed")
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get(cfg.HeaderName)
			cookie, err := r.Cookie(cfg.CookieName)
			if header == "" || err != nil || cookie.Value == "" {
				forbidden(w)
				return
			}

			// Constant-time comparison; a short-circuiting compare would
			// leak match length through timing.
			if len(header) != len(cookie.Value) ||
				subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) != 1 {
				forbidden(w)
				return
			}

			// Rotate per use.
			if !setCsrfCookie(w, cfg) {
				logger.Error("csrf cookie rotation failed")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func setCsrfCookie(w http.ResponseWriter, cfg CsrfConfig) bool {
	token, err := internal.NewOpaqueToken()
	if err != nil {
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cfg.MaxAge.Seconds()),
		Secure:   cfg.Secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
	return true
}

func forbidden(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, map[string]any{
		"error":      "invalid csrf token",
		"statusCode": http.StatusForbidden,
	})
}
