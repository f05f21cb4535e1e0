package middleware

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"crud-scaffold/internal/response"
)

const (
	// MaxRequestSize limits request body size to 10MB
	MaxRequestSize = 10 * 1024 * 1024
)

// RequestSizeLimit enforces maximum request body size.
func RequestSizeLimit(maxBytes int64, wr *response.Writer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				log.Warn().
					Int64("content_length", r.ContentLength).
					Int64("max_size", maxBytes).
					Msg("request body too large")
				wr.Fail(w, http.StatusRequestEntityTooLarge, "Request body too large",
					fmt.Errorf("limit is %d bytes", maxBytes))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
