// Package telemetry groups the gateway's observability packages.
//
// # Components
//
//   - logging: slog construction with secret redaction and context fields
//   - metrics: Prometheus collector for probes, routes, chunks and validation
//   - tracing: OpenTelemetry tracer with an OTLP gRPC exporter
//   - health: liveness and readiness checks with HTTP handlers
//
// # Usage
//
//	logger, err := logging.Setup(logging.ConfigFrom(cfg.Telemetry.Logging))
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(context.Background())
//
// # Secret Redaction
//
// Log attributes are redacted before they are written:
//
//   - Bearer tokens: Bearer eyJhbGci... -> Bearer ***
//   - Vendor keys: sk-abc123def456 -> sk-***
//   - Secret-named fields: client_secret, api_key, x-api-key
package telemetry
