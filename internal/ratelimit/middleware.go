package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	httpx "github.com/wolfeidau/shortlink/internal/http"
)

// Middleware limits requests per (client IP, request path) to limit per window.
//
// Rejected requests get 429 with Retry-After. Every response carries X-RateLimit-Limit,
// X-RateLimit-Remaining and X-RateLimit-Reset (unix seconds).
func Middleware(limiter *Limiter, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := httpx.ClientIPFromContext(r.Context())
			if ip == "" {
				ip = httpx.RemoteIP(r)
			}

			result, err := limiter.Check(r.Context(), ip, r.URL.Path, limit, window)
			if err != nil {
				// Misconfigured route or unidentifiable caller, let the handler decide.
				log.Error().Err(err).Str("path", r.URL.Path).Msg("Rate limit check rejected arguments")
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				h.Set("Retry-After", strconv.Itoa(result.RetryAfter(limiter.now())))
				httpx.RespondError(w, http.StatusTooManyRequests, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
