package middleware

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"crud-scaffold/internal/response"
)

// Recovery turns a handler panic into a 500 envelope.
func Recovery(wr *response.Writer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err, ok := rec.(error)
				if ok {
					err = errors.WithStack(err)
				} else {
					err = errors.Errorf("panic: %v", rec)
				}
				log.Error().Err(err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("request_id", GetRequestID(r.Context())).
					Msg("handler panic")
				wr.Error(w, err)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
