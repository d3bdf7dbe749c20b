package capability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/telemetry/metrics"
	"mercator-hq/conduit/pkg/telemetry/tracing"
	"mercator-hq/conduit/pkg/upstream"
)

// ModelResolver resolves a model key to its configuration.
type ModelResolver interface {
	Resolve(ctx context.Context, name string) (providers.ModelConfig, error)
}

// Prober issues single streaming requests. *upstream.Client implements it.
type Prober interface {
	Probe(ctx context.Context, target upstream.Target, m providers.ModelConfig, messages []providers.Message) (*http.Response, error)
	HasBackend(m providers.ModelConfig) bool
	HasDirectKey(ctx context.Context, m providers.ModelConfig) bool
}

// Config contains Detector configuration.
type Config struct {
	// TTL is how long a snapshot stays fresh.
	TTL time.Duration

	// ProbeTimeout bounds each probe.
	ProbeTimeout time.Duration

	// ProbeDirect enables probing vendor-direct endpoints.
	ProbeDirect bool
}

// probeMessages is the minimal conversation sent by a probe.
var probeMessages = []providers.Message{{Role: providers.RoleUser, Content: "ping"}}

// streamingContentTypes are the media types accepted as a streaming response.
var streamingContentTypes = map[string]bool{
	"text/event-stream":                  true,
	"application/x-ndjson":               true,
	"application/stream+json":            true,
	"application/vnd.amazon.eventstream": true,
}

// Detector probes and caches streaming capability per model. It is safe for
// concurrent use; one Detector is shared by the whole process.
type Detector struct {
	cfg     Config
	models  ModelResolver
	prober  Prober
	metrics *metrics.Collector

	// entries maps model keys to *Capability. Values are never mutated.
	entries sync.Map

	// group ensures one in-flight probe per model
	group singleflight.Group

	// mu guards generations and epoch. A probe stores its snapshot only if
	// neither changed since it started.
	mu          sync.Mutex
	generations map[string]uint64
	epoch       uint64

	// now is the clock, replaceable in tests
	now func() time.Time

	logger *slog.Logger
}

// New creates a Detector. collector may be nil.
func New(cfg Config, models ModelResolver, prober Prober, collector *metrics.Collector) *Detector {
	if cfg.TTL <= 0 {
		cfg.TTL = config.DefaultDetectionTTL
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = config.DefaultDetectionProbeTimeout
	}
	return &Detector{
		cfg:     cfg,
		models:  models,
		prober:  prober,
		metrics: collector,
		now:     time.Now,

		generations: make(map[string]uint64),
		logger:  slog.Default().With("component", "capability"),
	}
}

// FromConfig creates a Detector from the detection section.
func FromConfig(cfg config.DetectionConfig, models ModelResolver, prober Prober, collector *metrics.Collector) *Detector {
	return New(Config{
		TTL:          cfg.TTL,
		ProbeTimeout: cfg.ProbeTimeout,
		ProbeDirect:  cfg.ShouldProbeDirect(),
	}, models, prober, collector)
}

// Detect returns the model's capability, probing when no fresh snapshot is
// cached. Concurrent callers for the same model share one probe and receive
// the same snapshot. The only errors are an unknown model and cancellation
// of ctx; probe failures are reported through Capability.ProbeError.
func (d *Detector) Detect(ctx context.Context, model string) (*Capability, error) {
	if c, ok := d.cached(model); ok {
		d.metrics.RecordCapabilityLookup(true)
		return c, nil
	}
	d.metrics.RecordCapabilityLookup(false)
	return d.probeShared(ctx, model)
}

// Refresh evicts the model's snapshot and forces one new probe. A probe
// already in flight finishes for its own callers but its result is not
// cached.
func (d *Detector) Refresh(ctx context.Context, model string) (*Capability, error) {
	d.mu.Lock()
	d.generations[model]++
	_, loaded := d.entries.LoadAndDelete(model)
	d.mu.Unlock()

	if loaded {
		d.metrics.RecordCacheEviction("capability", 1)
	}
	d.group.Forget(model)
	return d.probeShared(ctx, model)
}

// ClearCache evicts every snapshot. Probes in flight are not cached.
func (d *Detector) ClearCache() {
	n := 0
	d.mu.Lock()
	d.epoch++
	d.entries.Range(func(key, _ any) bool {
		d.entries.Delete(key)
		n++
		return true
	})
	d.mu.Unlock()
	d.metrics.RecordCacheEviction("capability", n)
	d.metrics.UpdateCacheSize("capability", 0)
	d.logger.Info("capability cache cleared", "evicted", n)
}

// Snapshot returns copies of all cached capabilities sorted by model,
// stale ones included.
func (d *Detector) Snapshot() []Capability {
	var out []Capability
	d.entries.Range(func(_, value any) bool {
		out = append(out, *value.(*Capability))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

func (d *Detector) cached(model string) (*Capability, bool) {
	v, ok := d.entries.Load(model)
	if !ok {
		return nil, false
	}
	c := v.(*Capability)
	if !c.Fresh(d.now()) {
		return nil, false
	}
	return c, true
}

// probeShared runs or joins the model's probe. The probe itself is detached
// from ctx so one caller giving up does not cancel it for the others.
func (d *Detector) probeShared(ctx context.Context, model string) (*Capability, error) {
	m, err := d.models.Resolve(ctx, model)
	if err != nil {
		return nil, err
	}

	ch := d.group.DoChan(model, func() (any, error) {
		// a caller that lost the race to a just-finished probe reuses it
		if c, ok := d.cached(model); ok {
			return c, nil
		}
		gen := d.generation(model)
		c := d.probe(context.WithoutCancel(ctx), m)
		if d.store(model, gen, c) {
			d.metrics.UpdateCacheSize("capability", d.size())
		} else {
			d.logger.Debug("discarding superseded probe result", "model", model)
		}
		return c, nil
	})

	select {
	case res := <-ch:
		return res.Val.(*Capability), nil
	case <-ctx.Done():
		return nil, &providers.CancellationError{Cause: ctx.Err()}
	}
}

// probeGeneration identifies the cache state a probe started from.
type probeGeneration struct {
	epoch uint64
	model uint64
}

func (d *Detector) generation(model string) probeGeneration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return probeGeneration{epoch: d.epoch, model: d.generations[model]}
}

// store caches c unless a refresh or clear happened after gen was taken.
func (d *Detector) store(model string, gen probeGeneration, c *Capability) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != (probeGeneration{epoch: d.epoch, model: d.generations[model]}) {
		return false
	}
	d.entries.Store(model, c)
	return true
}

func (d *Detector) probe(ctx context.Context, m providers.ModelConfig) *Capability {
	ctx, span := tracing.Start(ctx, "capability.probe", attribute.String(tracing.AttrModel, m.Name))
	defer span.End()

	var failures []string
	c := &Capability{Model: m.Name, TTL: d.cfg.TTL}

	if m.APIType != providers.APITypeDirect {
		if d.prober.HasBackend(m) {
			ok, err := d.probeTarget(ctx, upstream.TargetBackend, m)
			c.BackendSupportsStream = ok
			if err != nil {
				failures = append(failures, err.Error())
			}
		} else {
			failures = append(failures, (&providers.ProbeFailure{Model: m.Name, Target: string(upstream.TargetBackend), Cause: providers.ErrBackendNotConfigured}).Error())
		}
	}

	if d.cfg.ProbeDirect || m.APIType == providers.APITypeDirect {
		if d.prober.HasDirectKey(ctx, m) {
			ok, err := d.probeTarget(ctx, upstream.TargetDirect, m)
			c.DirectSupportsStream = ok
			if err != nil {
				failures = append(failures, err.Error())
			}
		} else {
			failures = append(failures, (&providers.ProbeFailure{Model: m.Name, Target: string(upstream.TargetDirect), Cause: providers.ErrNoAPIKey}).Error())
		}
	}

	c.ProbeError = strings.Join(failures, "; ")
	c.ProbedAt = d.now()

	span.SetAttributes(
		attribute.Bool("conduit.capability.backend", c.BackendSupportsStream),
		attribute.Bool("conduit.capability.direct", c.DirectSupportsStream),
	)
	d.logger.Info("streaming capability probed",
		"model", m.Name,
		"backend", c.BackendSupportsStream,
		"direct", c.DirectSupportsStream,
		"probe_error", c.ProbeError,
	)
	return c
}

// probeTarget reports whether target streams for m: a 2xx response with a
// streaming content type that yields at least one byte before the timeout.
func (d *Detector) probeTarget(ctx context.Context, target upstream.Target, m providers.ModelConfig) (supported bool, err error) {
	start := d.now()
	defer func() {
		d.metrics.RecordProbe(m.Name, string(target), supported, time.Since(start))
		if err != nil {
			err = &providers.ProbeFailure{Model: m.Name, Target: string(target), Cause: err}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.ProbeTimeout)
	defer cancel()

	resp, err := d.prober.Probe(ctx, target, m, probeMessages)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}
	if !isStreamingContentType(resp.Header.Get("Content-Type")) {
		return false, fmt.Errorf("non-streaming content type %q", resp.Header.Get("Content-Type"))
	}

	var first [1]byte
	if _, err := io.ReadFull(resp.Body, first[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return false, errors.New("empty stream")
		}
		return false, err
	}
	return true, nil
}

func (d *Detector) size() int {
	n := 0
	d.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func isStreamingContentType(value string) bool {
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}
	return streamingContentTypes[strings.ToLower(mediaType)]
}
