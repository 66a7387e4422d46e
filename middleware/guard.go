package middleware

import (
	"context"
	"net/http"
	"strings"

	admission "github.com/pacomedomagni/havenkeep-admission"
)

type subjectContextKey struct{}

// SubjectFromContext returns the verified subject attached by Guard.
func SubjectFromContext(ctx context.Context) (*admission.Subject, bool) {
	subject, ok := ctx.Value(subjectContextKey{}).(*admission.Subject)
	return subject, ok
}

// Guard verifies the bearer access token and attaches the resolved subject
// to the request context. Every rejection produces the same
// information-minimal 401 body regardless of reason.
func Guard(engine *admission.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			subject, err := engine.Verify(r.Context(), token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), subjectContextKey{}, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
