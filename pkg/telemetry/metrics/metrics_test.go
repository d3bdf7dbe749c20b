package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/conduit/pkg/config"
)

// Helper function to create test config
func testConfig() *config.MetricsConfig {
	enabled := true
	return &config.MetricsConfig{
		Enabled:              &enabled,
		Namespace:            "test",
		Subsystem:            "metrics",
		ProbeDurationBuckets: []float64{0.1, 0.5, 1.0, 5.0},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)
	if collector == nil {
		t.Fatal("Expected non-nil collector")
	}
	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
}

func TestCollector_RecordProbe(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordProbe("claude", "backend", true, 200*time.Millisecond)
	collector.RecordProbe("claude", "backend", true, 300*time.Millisecond)
	collector.RecordProbe("claude", "direct", false, 5*time.Second)

	if got := testutil.ToFloat64(collector.probeMetrics.total.WithLabelValues("claude", "backend", "true")); got != 2 {
		t.Errorf("expected 2 supported backend probes, got %v", got)
	}
	if got := testutil.ToFloat64(collector.probeMetrics.total.WithLabelValues("claude", "direct", "false")); got != 1 {
		t.Errorf("expected 1 unsupported direct probe, got %v", got)
	}
	if got := testutil.CollectAndCount(collector.probeMetrics.duration); got != 2 {
		t.Errorf("expected 2 duration series, got %d", got)
	}
}

func TestCollector_RouteMetrics(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordRoute("directTrueStream")
	collector.RecordFallback("directTrueStream")
	collector.RecordRoute("fallbackMockStream")
	for i := 0; i < 5; i++ {
		collector.RecordChunk("fallbackMockStream")
	}
	collector.RecordStreamOutcome("fallbackMockStream", "completed")

	tests := []struct {
		name   string
		metric prometheus.Collector
		want   float64
	}{
		{"selection", collector.routeMetrics.selections.WithLabelValues("directTrueStream"), 1},
		{"fallback", collector.routeMetrics.fallbacks.WithLabelValues("directTrueStream"), 1},
		{"chunks", collector.routeMetrics.chunks.WithLabelValues("fallbackMockStream"), 5},
		{"outcome", collector.routeMetrics.outcomes.WithLabelValues("fallbackMockStream", "completed"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.metric); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCollector_ValidationAndCache(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordValidation("response", true, []string{"empty_text", "missing_usage"})
	collector.RecordValidation("response", false, nil)
	collector.RecordAuditDrop("queue_full")
	collector.RecordCapabilityLookup(true)
	collector.RecordCapabilityLookup(false)
	collector.RecordCacheEviction("capability", 3)
	collector.UpdateCacheSize("capability", 4)

	if got := testutil.ToFloat64(collector.validationMetrics.issues.WithLabelValues("empty_text")); got != 1 {
		t.Errorf("expected 1 empty_text issue, got %v", got)
	}
	if got := testutil.ToFloat64(collector.validationMetrics.runs.WithLabelValues("response", "false")); got != 1 {
		t.Errorf("expected 1 clean run, got %v", got)
	}
	if got := testutil.ToFloat64(collector.validationMetrics.auditDropped.WithLabelValues("queue_full")); got != 1 {
		t.Errorf("expected 1 audit drop, got %v", got)
	}
	if got := testutil.ToFloat64(collector.cacheMetrics.hitsTotal.WithLabelValues("capability")); got != 1 {
		t.Errorf("expected 1 cache hit, got %v", got)
	}
	if got := testutil.ToFloat64(collector.cacheMetrics.evictionsTotal.WithLabelValues("capability")); got != 3 {
		t.Errorf("expected 3 evictions, got %v", got)
	}
	if got := testutil.ToFloat64(collector.cacheMetrics.entries.WithLabelValues("capability")); got != 4 {
		t.Errorf("expected cache size 4, got %v", got)
	}
}

func TestCollector_DisabledAndNil(t *testing.T) {
	disabled := false
	cfg := testConfig()
	cfg.Enabled = &disabled
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordRoute("backendTrueStream")
	if got := testutil.ToFloat64(collector.routeMetrics.selections.WithLabelValues("backendTrueStream")); got != 0 {
		t.Errorf("expected disabled collector to record nothing, got %v", got)
	}

	var nilCollector *Collector
	nilCollector.RecordRoute("backendTrueStream")
	nilCollector.RecordProbe("m", "backend", true, time.Second)
	nilCollector.RecordAuditDrop("queue_full")
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.RecordRoute("backendMockStream")

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_metrics_route_selections_total{method="backendMockStream"} 1`) {
		t.Errorf("expected route metric in exposition, got:\n%s", rec.Body.String())
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("expected first two label sets to be allowed")
	}
	if cl.Allow("c") {
		t.Error("expected third label set to be rejected")
	}
	if !cl.Allow("a") {
		t.Error("expected existing label set to stay allowed")
	}
	if cl.Count() != 2 {
		t.Errorf("expected count 2, got %d", cl.Count())
	}
}
