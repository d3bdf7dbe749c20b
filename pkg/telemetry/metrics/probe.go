package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/conduit/pkg/config"
)

// ProbeMetrics tracks capability probes.
//
// Metrics:
//   - conduit_gateway_probes_total: probes by model, target and result
//   - conduit_gateway_probe_duration_seconds: probe latency by target
type ProbeMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewProbeMetrics creates and registers probe metrics with the provided registry.
func NewProbeMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ProbeMetrics {
	pm := &ProbeMetrics{
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "probes_total",
				Help:      "Total number of streaming capability probes",
			},
			[]string{"model", "target", "supported"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "probe_duration_seconds",
				Help:      "Streaming capability probe latency in seconds",
				Buckets:   cfg.ProbeDurationBuckets,
			},
			[]string{"target"},
		),
	}

	registry.MustRegister(pm.total, pm.duration)
	return pm
}

// Record records one probe.
func (pm *ProbeMetrics) Record(model, target string, supported bool, duration time.Duration) {
	pm.total.WithLabelValues(model, target, strconv.FormatBool(supported)).Inc()
	pm.duration.WithLabelValues(target).Observe(duration.Seconds())
}
