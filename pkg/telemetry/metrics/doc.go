// Package metrics provides Prometheus metrics for the gateway.
//
// # Metrics Categories
//
//   - Probe Metrics: capability probes by target and result, probe latency
//   - Route Metrics: route selections, fallback restarts, chunks, stream outcomes
//   - Upstream Metrics: backend and vendor calls by status, latency
//   - Validation Metrics: validator runs, issues by tag, dropped audit entries
//   - Cache Metrics: capability cache hits, misses, size and invalidations
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordRoute("backendTrueStream")
//	collector.RecordProbe("claude", "backend", true, 420*time.Millisecond)
//	http.Handle("/metrics", collector.Handler())
//
// A nil *Collector records nothing, so tests and tools can omit it.
//
// # Prometheus Endpoint
//
//	# HELP conduit_gateway_route_selections_total Total number of streaming route selections by method
//	# TYPE conduit_gateway_route_selections_total counter
//	conduit_gateway_route_selections_total{method="backendTrueStream"} 1234
//
// # Cardinality Management
//
// The model label is bounded: past 1,000 distinct models further values are
// folded into "other".
package metrics
