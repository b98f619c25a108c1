// Package metrics provides prometheus collectors for the schedule client and
// synchronization service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors registered against a private registry so that
// tests can construct instances without double-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	APIRequests    *prometheus.CounterVec
	APIErrors      *prometheus.CounterVec
	APIDuration    *prometheus.HistogramVec
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	SyncRuns       *prometheus.CounterVec
	SyncDuration   prometheus.Histogram
	RateBudgetUsed prometheus.Gauge
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		APIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raceday_api_requests_total",
			Help: "Total requests made to the schedule API by endpoint and status.",
		}, []string{"endpoint", "status"}),
		APIErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raceday_api_errors_total",
			Help: "Total schedule API failures by endpoint and error kind.",
		}, []string{"endpoint", "kind"}),
		APIDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "raceday_api_request_duration_seconds",
			Help:    "Schedule API request duration by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raceday_cache_hits_total",
			Help: "Cache hits by cache name.",
		}, []string{"cache"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raceday_cache_misses_total",
			Help: "Cache misses by cache name.",
		}, []string{"cache"}),
		SyncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raceday_sync_runs_total",
			Help: "Synchronization runs by result.",
		}, []string{"result"}),
		SyncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "raceday_sync_duration_seconds",
			Help:    "Duration of full fetch-and-cache runs.",
			Buckets: prometheus.DefBuckets,
		}),
		RateBudgetUsed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "raceday_rate_budget_used",
			Help: "Requests recorded against the trailing-hour rate budget.",
		}),
	}
}

// Handler returns an http.Handler exposing the registry in the prometheus
// text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
