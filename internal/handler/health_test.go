package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crud-scaffold/internal/repository"
	"crud-scaffold/internal/response"
	"crud-scaffold/internal/service"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthStatus(t *testing.T) {
	h := NewHealthHandler(pingFunc(func(context.Context) error { return nil }))
	rr := httptest.NewRecorder()
	h.Status(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "OK", body.Status)
	assert.GreaterOrEqual(t, body.Uptime, 0.0)
	_, err := time.Parse(time.RFC3339Nano, body.Timestamp)
	assert.NoError(t, err)
}

func TestHealthReadiness(t *testing.T) {
	up := NewHealthHandler(pingFunc(func(context.Context) error { return nil }))
	rr := httptest.NewRecorder()
	up.Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	down := NewHealthHandler(pingFunc(func(context.Context) error { return errors.New("connection refused") }))
	rr = httptest.NewRecorder()
	down.Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "connection refused")
}

func TestAdminRateLimits(t *testing.T) {
	g, err := service.NewGovernor(repository.NewMemoryStore(), time.Minute, 5)
	require.NoError(t, err)
	ctx := context.Background()
	g.Check(ctx, "10.0.0.1")
	g.Check(ctx, "10.0.0.1")
	g.Check(ctx, "::1")

	r := chi.NewRouter()
	r.Mount("/admin", NewAdminHandler(g, response.NewWriter(true)).Routes())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/rate-limits", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var env struct {
		Data struct {
			WindowMs    int64               `json:"windowMs"`
			MaxRequests int64               `json:"maxRequests"`
			Records     []repository.Record `json:"records"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, int64(60000), env.Data.WindowMs)
	assert.Equal(t, int64(5), env.Data.MaxRequests)
	require.Len(t, env.Data.Records, 2)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/admin/rate-limits/10.0.0.1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	recs, err := g.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "::1", recs[0].Key)
}
