package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayo6706/axis-ledger/internal/api/problem"
	"github.com/go-chi/httprate"
)

// PublicRateLimiter limits probes, metrics and docs per client IP.
func PublicRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimited(fmt.Sprintf("Rate limit of %d req/s exceeded for this IP", rps))),
	)
}

// AuthRateLimiter limits ledger calls per authenticated caller, falling back to IP.
func AuthRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if userID := UserIDFromContext(r.Context()); userID != "" {
				return "user:" + userID, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(rateLimited(fmt.Sprintf("Rate limit of %d req/s exceeded for this caller", rps))),
	)
}

func rateLimited(detail string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		problem.Write(w, r, http.StatusTooManyRequests, problem.Type("rate-limit-exceeded"), "", detail)
	}
}
