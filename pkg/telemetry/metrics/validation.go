package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/conduit/pkg/config"
)

// ValidationMetrics tracks the response validator and its audit hand-off.
//
// Metrics:
//   - conduit_gateway_validations_total: validator runs by kind and corrected flag
//   - conduit_gateway_validation_issues_total: issues by tag
//   - conduit_gateway_audit_dropped_total: audit entries dropped by reason
type ValidationMetrics struct {
	runs         *prometheus.CounterVec
	issues       *prometheus.CounterVec
	auditDropped *prometheus.CounterVec
}

// NewValidationMetrics creates and registers validation metrics with the provided registry.
func NewValidationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ValidationMetrics {
	vm := &ValidationMetrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "validations_total",
				Help:      "Total number of validator runs",
			},
			[]string{"kind", "corrected"},
		),

		issues: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "validation_issues_total",
				Help:      "Total number of validation issues by tag",
			},
			[]string{"issue"},
		),

		auditDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_dropped_total",
				Help:      "Total number of audit entries that were not written",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(vm.runs, vm.issues, vm.auditDropped)
	return vm
}

// Record records one validator run.
func (vm *ValidationMetrics) Record(kind string, corrected bool, issues []string) {
	vm.runs.WithLabelValues(kind, strconv.FormatBool(corrected)).Inc()
	for _, issue := range issues {
		vm.issues.WithLabelValues(issue).Inc()
	}
}

// RecordAuditDrop records a dropped audit entry.
func (vm *ValidationMetrics) RecordAuditDrop(reason string) {
	vm.auditDropped.WithLabelValues(reason).Inc()
}
