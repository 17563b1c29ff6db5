package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// HeaderCorrelationID is echoed on every response.
const HeaderCorrelationID = "X-Correlation-ID"

const maxCorrelationIDLen = 128

// CorrelationID takes the caller's X-Correlation-ID (or X-Request-ID) or
// generates a UUID, stores it on the request context and echoes it back.
// Oversized values are replaced so they cannot bloat the logs.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderCorrelationID)
		if id == "" {
			id = r.Header.Get("X-Request-ID")
		}
		if id == "" || len(id) > maxCorrelationIDLen {
			id = uuid.New().String()
		}
		w.Header().Set(HeaderCorrelationID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), correlationIDKey, id)))
	})
}

// GetCorrelationID returns the id stored by CorrelationID, or "".
func GetCorrelationID(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey).(string)
	return v
}
