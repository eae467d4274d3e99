package facade

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the facade-layer Prometheus instruments. Registered
// into a caller-supplied prometheus.Registerer — never the global
// default registry — and never served over HTTP from this package
// (the metrics endpoint is a Non-goal; see SPEC_FULL.md). Grounded on
// internal/metrics.Collector's promauto.NewCounterVec/NewHistogramVec
// shape.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	executionSeconds *prometheus.HistogramVec
}

// NewMetrics registers the facade instruments into reg. A nil reg gets
// its own fresh prometheus.Registry rather than falling back to the
// global default, so concurrent tests never collide on metric names.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmem_facade_requests_total",
				Help: "Total facade requests by facade, operation and outcome.",
			},
			[]string{"facade", "operation", "outcome"},
		),
		executionSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentmem_facade_execution_seconds",
				Help:    "Facade request execution time in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"facade", "operation"},
		),
	}
}
