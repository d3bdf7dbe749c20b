package upstream

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	mock "mercator-hq/conduit/internal/providers"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/telemetry/metrics"
)

func TestClient_RecordsUpstreamMetrics(t *testing.T) {
	server := mock.NewMockServer()
	defer server.Close()
	server.SetResponse("/v2/inference/deployments/d1/chat/completions", mock.MockResponse{Body: mock.MockChatResponse("ok")})
	server.SetResponse("/chat/completions", mock.MockErrorResponse(400, "bad request"))

	registry := prometheus.NewRegistry()
	c := New(Config{
		BackendURL: server.URL(),
		VendorURLs: map[providers.VendorKind]string{providers.VendorGeneric: server.URL()},
		Metrics:    metrics.NewCollector(&config.MetricsConfig{}, registry),
	}, &mock.StaticTokens{Token: "t"}, mock.StaticKeys{"generic": "sk"}, nil, nil)

	m := backendModel(providers.FormatGeneric)
	msgs := []providers.Message{mock.TestMessage(providers.RoleUser, "Hi")}
	ctx := context.Background()

	if _, err := c.Complete(ctx, TargetBackend, m, msgs); err != nil {
		t.Fatalf("backend call failed: %v", err)
	}
	if _, err := c.Complete(ctx, TargetDirect, m, msgs); err == nil {
		t.Fatal("expected the direct call to fail")
	}

	// backend/success and direct/transport
	if n, err := testutil.GatherAndCount(registry, "conduit_gateway_upstream_requests_total"); err != nil || n != 2 {
		t.Errorf("expected 2 series, got %d (%v)", n, err)
	}
}

func TestErrorClass(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{context.Canceled, "cancelled"},
		{&providers.AuthError{Target: "backend"}, "auth"},
		{&providers.RateLimitError{Target: "backend"}, "rate_limit"},
		{&providers.ConfigurationError{Vendor: "anthropic"}, "config"},
		{&providers.UpstreamTransportError{Target: "backend", StatusCode: 502}, "transport"},
	}
	for _, tt := range tests {
		if got := providers.ErrorClass(tt.err); got != tt.want {
			t.Errorf("ErrorClass(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
