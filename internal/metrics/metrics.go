package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the collectors of one server instance.
type Registry struct {
	Requests        *prometheus.CounterVec
	RateLimited     prometheus.Counter
	RequestDuration *prometheus.HistogramVec
	StoreOps        *prometheus.CounterVec
	Entities        *prometheus.GaugeVec

	reg *prometheus.Registry
}

func NewRegistry() *Registry {
	r := &Registry{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scaffold_requests_total",
			Help: "Total requests handled, by method and status",
		}, []string{"method", "status"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scaffold_rate_limited_total",
			Help: "Total rate limited responses",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scaffold_request_duration_seconds",
			Help:    "Request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		StoreOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scaffold_store_operations_total",
			Help: "Entity store operations, by resource, operation and outcome",
		}, []string{"resource", "op", "outcome"}),
		Entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scaffold_entities",
			Help: "Stored entities, by resource and state",
		}, []string{"resource", "state"}),
		reg: prometheus.NewRegistry(),
	}
	r.reg.MustRegister(
		r.Requests, r.RateLimited, r.RequestDuration, r.StoreOps, r.Entities,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// StoreOp counts one entity store operation; outcome is "ok" or an error kind.
func (r *Registry) StoreOp(resource, op, outcome string) {
	r.StoreOps.WithLabelValues(resource, op, outcome).Inc()
}

// SetEntities records the active and soft-deleted counts of a resource.
func (r *Registry) SetEntities(resource string, active, deleted int) {
	r.Entities.WithLabelValues(resource, "active").Set(float64(active))
	r.Entities.WithLabelValues(resource, "deleted").Set(float64(deleted))
}

// Gatherer exposes the underlying registry, mostly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
