package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestValidateTraceParent(t *testing.T) {
	tests := []struct {
		name        string
		traceparent string
		want        bool
	}{
		{name: "valid", traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", want: true},
		{name: "uppercase hex", traceparent: "00-4BF92F3577B34DA6A3CE929D0E0E4736-00F067AA0BA902B7-01", want: true},
		{name: "too few parts", traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-01", want: false},
		{name: "short trace id", traceparent: "00-4bf92f35-00f067aa0ba902b7-01", want: false},
		{name: "non-hex", traceparent: "00-4bf92f3577b34da6a3ce929d0e0e473z-00f067aa0ba902b7-01", want: false},
		{name: "zero trace id", traceparent: "00-00000000000000000000000000000000-00f067aa0ba902b7-01", want: false},
		{name: "zero parent id", traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-0000000000000000-01", want: false},
		{name: "empty", traceparent: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateTraceParent(tt.traceparent); got != tt.want {
				t.Errorf("ValidateTraceParent(%q) = %v, want %v", tt.traceparent, got, tt.want)
			}
		})
	}
}

func TestInjectToMap_CarriesSpanContext(t *testing.T) {
	installRecorder(t)
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	ctx, span := Start(context.Background(), "outbound")
	defer span.End()

	headers := map[string]string{"Content-Type": "application/json"}
	InjectToMap(ctx, headers)

	if !ValidateTraceParent(headers["traceparent"]) {
		t.Errorf("expected valid traceparent, got %q", headers["traceparent"])
	}

	// a nil map must not panic
	InjectToMap(ctx, nil)
}

func TestHTTPMiddleware_EchoesTraceID(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Trace-ID"); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("expected trace ID echo, got %q", got)
	}
}
