package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/conduit/pkg/config"
)

// Collector owns every Prometheus metric the gateway exports and is the
// single recording interface for the capability, streaming, validation and
// audit packages.
//
// A nil *Collector is valid and records nothing, so components can take one
// as an optional dependency.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry
	enabled  bool

	probeMetrics      *ProbeMetrics
	routeMetrics      *RouteMetrics
	upstreamMetrics   *UpstreamMetrics
	validationMetrics *ValidationMetrics
	cacheMetrics      *CacheMetrics

	// Cardinality tracking
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.ProbeDurationBuckets) == 0 {
		cfg.ProbeDurationBuckets = config.DefaultProbeDurationBuckets
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		enabled:            cfg.IsEnabled(),
		cardinalityLimiter: NewCardinalityLimiter(1000),
	}

	c.probeMetrics = NewProbeMetrics(cfg, registry)
	c.routeMetrics = NewRouteMetrics(cfg, registry)
	c.upstreamMetrics = NewUpstreamMetrics(cfg, registry)
	c.validationMetrics = NewValidationMetrics(cfg, registry)
	c.cacheMetrics = NewCacheMetrics(cfg, registry)

	return c
}

func (c *Collector) active() bool {
	return c != nil && c.enabled
}

// model bounds the model label's cardinality; excess models are folded into "other".
func (c *Collector) model(kind, model string) string {
	if !c.cardinalityLimiter.Allow(fmt.Sprintf("%s:%s", kind, model)) {
		return "other"
	}
	return model
}

// RecordProbe records one capability probe.
//
// Parameters:
//   - target: "backend" or "direct"
//   - supported: the probe outcome
//   - duration: time spent probing
func (c *Collector) RecordProbe(model, target string, supported bool, duration time.Duration) {
	if !c.active() {
		return
	}
	c.probeMetrics.Record(c.model("probe", model), target, supported, duration)
}

// RecordCapabilityLookup records a capability cache hit or miss.
func (c *Collector) RecordCapabilityLookup(hit bool) {
	if !c.active() {
		return
	}
	if hit {
		c.cacheMetrics.RecordHit("capability")
	} else {
		c.cacheMetrics.RecordMiss("capability")
	}
}

// RecordCacheEviction records an explicit cache invalidation.
func (c *Collector) RecordCacheEviction(cacheName string, n int) {
	if !c.active() {
		return
	}
	c.cacheMetrics.RecordEvictions(cacheName, n)
}

// UpdateCacheSize updates the current size of a cache.
func (c *Collector) UpdateCacheSize(cacheName string, size int) {
	if !c.active() {
		return
	}
	c.cacheMetrics.UpdateSize(cacheName, size)
}

// RecordRoute records the route selected for a request.
func (c *Collector) RecordRoute(method string) {
	if !c.active() {
		return
	}
	c.routeMetrics.RecordSelection(method)
}

// RecordFallback records a restart via fallback after failedMethod failed.
func (c *Collector) RecordFallback(failedMethod string) {
	if !c.active() {
		return
	}
	c.routeMetrics.RecordFallback(failedMethod)
}

// RecordChunk records one chunk delivered to a caller.
func (c *Collector) RecordChunk(method string) {
	if !c.active() {
		return
	}
	c.routeMetrics.RecordChunk(method)
}

// RecordStreamOutcome records how a stream ended: "completed", "cancelled"
// or "failed".
func (c *Collector) RecordStreamOutcome(method, outcome string) {
	if !c.active() {
		return
	}
	c.routeMetrics.RecordOutcome(method, outcome)
}

// RecordUpstream records one upstream call.
//
// Parameters:
//   - target: "backend" or "direct"
//   - status: "success" or an error class ("auth", "rate_limit", "transport", ...)
func (c *Collector) RecordUpstream(target, status string, duration time.Duration) {
	if !c.active() {
		return
	}
	c.upstreamMetrics.Record(target, status, duration)
}

// RecordValidation records one validator run and its issue tags.
func (c *Collector) RecordValidation(kind string, corrected bool, issues []string) {
	if !c.active() {
		return
	}
	c.validationMetrics.Record(kind, corrected, issues)
}

// RecordAuditDrop records an audit entry dropped because the queue was full
// or the sink failed.
func (c *Collector) RecordAuditDrop(reason string) {
	if !c.active() {
		return
	}
	c.validationMetrics.RecordAuditDrop(reason)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
