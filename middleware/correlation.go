package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// CorrelationHeader carries the request correlation identifier.
const CorrelationHeader = "X-Request-ID"

type correlationContextKey struct{}

// CorrelationIDFromContext returns the request's correlation id.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationContextKey{}).(string)
	return id
}

// Correlation generates a correlation id when the request carries none and
// echoes it back on the response.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(CorrelationHeader, id)
		ctx := context.WithValue(r.Context(), correlationContextKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
