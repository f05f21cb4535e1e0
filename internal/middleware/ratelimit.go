package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"crud-scaffold/internal/metrics"
	"crud-scaffold/internal/response"
	"crud-scaffold/internal/service"
)

// KeyFunc derives the rate limit key of a request.
type KeyFunc func(r *http.Request) string

// RateLimit counts every request against the governor under key(r). Denied
// requests get a 429 envelope and never reach next.
func RateLimit(g *service.Governor, key KeyFunc, wr *response.Writer, m *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)

			ctx, cancel := context.WithTimeout(r.Context(), 50*time.Millisecond)
			defer cancel()
			d, err := g.Check(ctx, k)
			if err != nil {
				log.Error().Err(err).Str("key", k).Msg("rate limit evaluation error")
				wr.Error(w, err)
				return
			}

			// attach rate-limit headers
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				m.RateLimited.Inc()
				w.Header().Set("Retry-After", strconv.FormatInt(d.RetryAfter, 10))
				wr.Throttled(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys on the connection's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedClientIP prefers the first X-Forwarded-For hop. Only use it behind
// a proxy that overwrites the header.
func ForwardedClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	return ClientIP(r)
}
