package handler

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"crud-scaffold/internal/response"
	"crud-scaffold/internal/service"
)

// AdminHandler exposes the governor's rate records at runtime.
type AdminHandler struct {
	governor *service.Governor
	wr       *response.Writer
}

func NewAdminHandler(g *service.Governor, wr *response.Writer) *AdminHandler {
	return &AdminHandler{governor: g, wr: wr}
}

// Routes returns the admin router, to be mounted at /admin.
func (a *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/rate-limits", a.ListRateLimits)
	r.Delete("/rate-limits/{key}", a.ResetRateLimit)
	return r
}

// ListRateLimits returns the active records with the governor's policy.
func (a *AdminHandler) ListRateLimits(w http.ResponseWriter, r *http.Request) {
	recs, err := a.governor.Records(r.Context())
	if err != nil {
		a.wr.Error(w, err)
		return
	}
	a.wr.OK(w, response.MsgRetrieved, map[string]any{
		"windowMs":    a.governor.Window().Milliseconds(),
		"maxRequests": a.governor.Limit(),
		"records":     recs,
	})
}

// ResetRateLimit forgets the record of one client key.
func (a *AdminHandler) ResetRateLimit(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		a.wr.Fail(w, http.StatusBadRequest, "Invalid key", err)
		return
	}
	if err := a.governor.Reset(r.Context(), key); err != nil {
		a.wr.Error(w, err)
		return
	}
	a.wr.OK(w, response.MsgDeleted, map[string]string{"key": key})
}
