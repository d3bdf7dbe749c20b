package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/conduit/pkg/config"
)

// UpstreamMetrics tracks calls to the backend and vendor endpoints.
//
// Metrics:
//   - conduit_gateway_upstream_requests_total: calls by target and status
//   - conduit_gateway_upstream_latency_seconds: call latency by target
type UpstreamMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewUpstreamMetrics creates and registers upstream metrics with the provided registry.
func NewUpstreamMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *UpstreamMetrics {
	um := &UpstreamMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_requests_total",
				Help:      "Total number of upstream calls by target and status",
			},
			[]string{"target", "status"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_latency_seconds",
				Help:      "Upstream call latency in seconds",
				// LLM calls take from ~100ms to tens of seconds
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"target"},
		),
	}

	registry.MustRegister(um.requests, um.latency)
	return um
}

// Record records one upstream call.
func (um *UpstreamMetrics) Record(target, status string, duration time.Duration) {
	um.requests.WithLabelValues(target, status).Inc()
	um.latency.WithLabelValues(target).Observe(duration.Seconds())
}
