package tracing

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// W3C Trace Context propagation (https://www.w3.org/TR/trace-context/).
//
// Outbound vendor and backend requests carry the caller's trace context in
// the traceparent and tracestate headers:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01

// Propagator returns the configured text map propagator.
func Propagator() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}

// Extract extracts trace context from HTTP headers.
func Extract(ctx context.Context, headers http.Header) context.Context {
	return Propagator().Extract(ctx, propagation.HeaderCarrier(headers))
}

// InjectToMap injects trace context into a header map. A nil map is ignored.
func InjectToMap(ctx context.Context, carrier map[string]string) {
	if carrier == nil {
		return
	}
	Propagator().Inject(ctx, propagation.MapCarrier(carrier))
}

// HTTPMiddleware extracts trace context from incoming requests and echoes
// the trace ID in the X-Trace-ID response header.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := Extract(r.Context(), r.Header)
		if id := TraceID(ctx); id != "" {
			w.Header().Set("X-Trace-ID", id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ValidateTraceParent reports whether traceparent is well formed:
// version-trace_id-parent_id-trace_flags with 2, 32, 16 and 2 hex digits and
// non-zero IDs.
func ValidateTraceParent(traceparent string) bool {
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return false
	}

	widths := []int{2, 32, 16, 2}
	for i, part := range parts {
		if len(part) != widths[i] || !isHexString(part) {
			return false
		}
	}

	return parts[1] != strings.Repeat("0", 32) && parts[2] != strings.Repeat("0", 16)
}

// isHexString checks if a string contains only hexadecimal characters.
func isHexString(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
