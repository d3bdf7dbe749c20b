package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/conduit/pkg/config"
)

// RouteMetrics tracks streaming route selection and delivery.
//
// Metrics:
//   - conduit_gateway_route_selections_total: selected routes by method
//   - conduit_gateway_fallbacks_total: fallback restarts by failed method
//   - conduit_gateway_chunks_total: chunks delivered by method
//   - conduit_gateway_streams_total: finished streams by method and outcome
type RouteMetrics struct {
	selections *prometheus.CounterVec
	fallbacks  *prometheus.CounterVec
	chunks     *prometheus.CounterVec
	outcomes   *prometheus.CounterVec
}

// NewRouteMetrics creates and registers route metrics with the provided registry.
func NewRouteMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RouteMetrics {
	rm := &RouteMetrics{
		selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "route_selections_total",
				Help:      "Total number of streaming route selections by method",
			},
			[]string{"method"},
		),

		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "fallbacks_total",
				Help:      "Total number of fallback restarts by the method that failed",
			},
			[]string{"failed_method"},
		),

		chunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "chunks_total",
				Help:      "Total number of stream chunks delivered by method",
			},
			[]string{"method"},
		),

		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "streams_total",
				Help:      "Total number of finished streams by method and outcome",
			},
			[]string{"method", "outcome"},
		),
	}

	registry.MustRegister(rm.selections, rm.fallbacks, rm.chunks, rm.outcomes)
	return rm
}

// RecordSelection records a route selection.
func (rm *RouteMetrics) RecordSelection(method string) {
	rm.selections.WithLabelValues(method).Inc()
}

// RecordFallback records a fallback restart.
func (rm *RouteMetrics) RecordFallback(failedMethod string) {
	rm.fallbacks.WithLabelValues(failedMethod).Inc()
}

// RecordChunk records a delivered chunk.
func (rm *RouteMetrics) RecordChunk(method string) {
	rm.chunks.WithLabelValues(method).Inc()
}

// RecordOutcome records how a stream ended.
func (rm *RouteMetrics) RecordOutcome(method, outcome string) {
	rm.outcomes.WithLabelValues(method, outcome).Inc()
}
