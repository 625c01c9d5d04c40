package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// maxTraceIDLen bounds caller-supplied ids before they reach logs and problem bodies.
const maxTraceIDLen = 128

// TraceMiddleware propagates X-Trace-ID (or X-Request-ID) and mints one when absent.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := inboundTraceID(r)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set("X-Trace-ID", traceID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), traceContextKey, traceID)))
	})
}

func inboundTraceID(r *http.Request) string {
	for _, header := range []string{"X-Trace-ID", "X-Request-ID"} {
		if v := r.Header.Get(header); v != "" && len(v) <= maxTraceIDLen {
			return v
		}
	}
	return ""
}
