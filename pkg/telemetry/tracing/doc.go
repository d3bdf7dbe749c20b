// Package tracing provides OpenTelemetry tracing for the gateway.
//
// New installs a global tracer provider exporting over OTLP gRPC, or a noop
// provider when tracing is disabled. Packages create spans with Start and
// never hold a tracer themselves:
//
//	ctx, span := tracing.Start(ctx, "streaming.route",
//	    attribute.String(tracing.AttrModel, model))
//	defer span.End()
//
// Spans are created around capability probes, route execution and upstream
// calls. Outbound requests carry the W3C traceparent header via InjectToMap.
//
// # Sampling Strategies
//
//   - always: sample every trace
//   - never: sample nothing
//   - ratio: sample a fraction of traces by trace ID
//   - parent: follow the parent's decision, ratio for root spans (default)
package tracing
