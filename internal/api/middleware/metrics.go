package middleware

import (
	"net/http"
	"time"

	"github.com/ayo6706/axis-ledger/internal/observability"
	"github.com/go-chi/chi/v5"
)

// Scrapes and probes would otherwise dominate the latency histogram.
var unobservedRoutes = map[string]struct{}{
	"/metrics":      {},
	"/health/live":  {},
	"/health/ready": {},
}

// MetricsMiddleware records ledger API latency by route pattern, so account and
// transaction ids never become label values.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		if route, ok := observedRoute(r); ok {
			observability.ObserveHTTP(r.Method, route, rw.status, time.Since(start))
		}
	})
}

func observedRoute(r *http.Request) (string, bool) {
	route := routePattern(r)
	if _, skip := unobservedRoutes[route]; skip {
		return "", false
	}
	return route, true
}

// routePattern falls back to "unmatched" so unknown paths stay one series.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
