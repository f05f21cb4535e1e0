// Package server assembles the HTTP router.
package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"crud-scaffold/internal/config"
	"crud-scaffold/internal/handler"
	"crud-scaffold/internal/metrics"
	"crud-scaffold/internal/middleware"
	"crud-scaffold/internal/response"
	"crud-scaffold/internal/service"
)

// Collection is a REST collection mounted under the API prefix.
type Collection interface {
	Name() string
	Routes() chi.Router
}

// Deps are the components the router dispatches to.
type Deps struct {
	Governor    *service.Governor
	Metrics     *metrics.Registry
	Writer      *response.Writer
	Collections []Collection
}

// New builds the router:
//
//	RequestID -> Recovery -> SecurityHeaders -> Logging -> CORS -> RateLimit -> RequestSizeLimit
//
// then /health, /metrics, {APIPrefix}/{collection} and, with a JWT secret
// configured, /admin.
func New(cfg config.Config, d Deps) http.Handler {
	wr := d.Writer
	key := middleware.ClientIP
	if cfg.TrustProxy {
		key = middleware.ForwardedClientIP
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recovery(wr),
		middleware.SecurityHeaders,
		middleware.Logging(d.Metrics),
		middleware.CORS(cfg.CORS.Origins(), cfg.CORS.Credentials),
		middleware.RateLimit(d.Governor, key, wr, d.Metrics),
		middleware.RequestSizeLimit(cfg.MaxRequestSize, wr),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		wr.Fail(w, http.StatusNotFound, fmt.Sprintf("Route %s %s not found", r.Method, r.URL.Path), nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		wr.Fail(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed on %s", r.Method, r.URL.Path), nil)
	})

	health := handler.NewHealthHandler(d.Governor)
	r.Get("/health", health.Status)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	// /admin is only served behind the JWT guard
	if cfg.JWT.Secret != "" {
		admin := handler.NewAdminHandler(d.Governor, wr).Routes()
		r.With(middleware.NewJWTMiddleware([]byte(cfg.JWT.Secret), cfg.JWT.Issuer, wr)).Mount("/admin", admin)
		log.Info().Msg("JWT authentication enabled for /admin")
	} else {
		log.Info().Msg("no JWT secret configured, /admin disabled")
	}

	r.Route(cfg.APIPrefix, func(api chi.Router) {
		for _, c := range d.Collections {
			api.Mount("/"+c.Name(), c.Routes())
		}
	})
	return r
}
