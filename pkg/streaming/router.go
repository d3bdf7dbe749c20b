package streaming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/conduit/pkg/capability"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/processing/tokens"
	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/telemetry/metrics"
	"mercator-hq/conduit/pkg/telemetry/tracing"
	"mercator-hq/conduit/pkg/upstream"
	"mercator-hq/conduit/pkg/validation"
)

// ModelResolver resolves a model key to its configuration.
type ModelResolver interface {
	Resolve(ctx context.Context, name string) (providers.ModelConfig, error)
}

// CapabilityDetector reports streaming capability per model.
type CapabilityDetector interface {
	Detect(ctx context.Context, model string) (*capability.Capability, error)
}

// Upstream executes backend and direct calls. *upstream.Client implements it.
type Upstream interface {
	HasBackend(m providers.ModelConfig) bool
	HasDirectKey(ctx context.Context, m providers.ModelConfig) bool
	Complete(ctx context.Context, target upstream.Target, m providers.ModelConfig, messages []providers.Message) (*upstream.Result, error)
	OpenStream(ctx context.Context, target upstream.Target, m providers.ModelConfig, messages []providers.Message) (providers.StreamReader, error)
}

// Config contains Router configuration.
type Config struct {
	// TrustedSources are route methods whose chunks skip validation.
	TrustedSources []Method

	// ValidateChunks enables the chunk check for untrusted routes.
	ValidateChunks bool

	// Mock configures the synthesizer.
	Mock config.MockConfig
}

// Router selects and executes delivery routes. One Router serves the whole
// process; each request gets its own Stream.
type Router struct {
	models    ModelResolver
	detector  CapabilityDetector
	upstream  Upstream
	validator *validation.Validator
	synth     *Synthesizer
	trusted   map[Method]bool
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewRouter creates a router. collector may be nil.
func NewRouter(cfg Config, models ModelResolver, detector CapabilityDetector, up Upstream, validator *validation.Validator, collector *metrics.Collector) *Router {
	trusted := make(map[Method]bool)
	for _, m := range cfg.TrustedSources {
		trusted[m] = true
	}
	if !cfg.ValidateChunks {
		for _, m := range []Method{MethodBackendTrueStream, MethodDirectTrueStream, MethodBackendMockStream, MethodFallbackMockStream} {
			trusted[m] = true
		}
	}
	return &Router{
		models:    models,
		detector:  detector,
		upstream:  up,
		validator: validator,
		synth:     NewSynthesizer(cfg.Mock),
		trusted:   trusted,
		metrics:   collector,
		logger:    slog.Default().With("component", "streaming"),
	}
}

// ConfigFrom extracts the router configuration from the loaded configuration.
func ConfigFrom(cfg *config.Config) Config {
	methods := make([]Method, 0, len(cfg.Streaming.TrustedSources))
	for _, src := range cfg.Streaming.TrustedSources {
		methods = append(methods, Method(src))
	}
	return Config{
		TrustedSources: methods,
		ValidateChunks: cfg.Validation.ChunksEnabled(),
		Mock:           cfg.Streaming.Mock,
	}
}

// Plan resolves the model and selects its route without executing it.
func (r *Router) Plan(ctx context.Context, model string, prefs Preferences) (providers.ModelConfig, Route, error) {
	m, err := r.models.Resolve(ctx, model)
	if err != nil {
		return providers.ModelConfig{}, Route{}, err
	}
	c, err := r.detector.Detect(ctx, model)
	if err != nil {
		return providers.ModelConfig{}, Route{}, err
	}
	avail := Availability{
		Backend:   r.upstream.HasBackend(m),
		DirectKey: r.upstream.HasDirectKey(ctx, m),
	}
	return m, SelectRoute(c, avail, prefs), nil
}

// Stream selects a route and returns a lazy stream over it. Nothing is sent
// upstream until the first call to Next. The returned error covers only
// model resolution and capability lookup. The stream span starts on the
// first Next, as a child of the span active in ctx.
func (r *Router) Stream(ctx context.Context, model string, messages []providers.Message, prefs Preferences) (*Stream, error) {
	m, route, err := r.Plan(ctx, model, prefs)
	if err != nil {
		return nil, err
	}

	r.metrics.RecordRoute(string(route.Method))
	r.logger.InfoContext(ctx, "streaming route selected",
		"model", model,
		"method", route.Method,
		"rationale", route.Rationale,
		"cost_tier", route.CostTier,
	)

	return &Stream{
		router:    r,
		model:     m,
		messages:  messages,
		prefs:     prefs,
		route:     route,
		attempted: []string{string(route.Method)},
		parent:    trace.SpanContextFromContext(ctx),
		span:      trace.SpanFromContext(context.Background()),
	}, nil
}

// Completion is the result of a non-streaming request.
type Completion struct {
	Text       string               `json:"text"`
	Usage      providers.TokenUsage `json:"usage"`
	Target     upstream.Target      `json:"target"`
	Validation *validation.Result   `json:"validation"`
}

// Complete performs a non-streaming request on the first route that works
// and repairs the result. Direct is tried first when preferred and cost
// optimization is off; otherwise the backend is. When every route fails the
// error is an *AllRoutesFailedError.
func (r *Router) Complete(ctx context.Context, model string, messages []providers.Message, prefs Preferences) (*Completion, error) {
	m, err := r.models.Resolve(ctx, model)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.Start(ctx, "streaming.complete", attribute.String(tracing.AttrModel, model))
	defer span.End()

	c, err := r.complete(ctx, m, messages, prefs)
	if err != nil {
		tracing.RecordException(span, err)
		return nil, err
	}
	tracing.SetTokenAttributes(span, c.Usage.PromptTokens, c.Usage.CompletionTokens)
	return c, nil
}

type attempt struct {
	target    upstream.Target
	rationale string
}

func (r *Router) attempts(ctx context.Context, m providers.ModelConfig, prefs Preferences) []attempt {
	var backend, direct []attempt
	if r.upstream.HasBackend(m) {
		backend = []attempt{{upstream.TargetBackend, "backend non-streaming call"}}
	}
	if r.upstream.HasDirectKey(ctx, m) {
		direct = []attempt{{upstream.TargetDirect, "direct API non-streaming call"}}
	}
	if prefs.PreferDirectAPI && !prefs.CostOptimization {
		return append(direct, backend...)
	}
	return append(backend, direct...)
}

func (r *Router) complete(ctx context.Context, m providers.ModelConfig, messages []providers.Message, prefs Preferences) (*Completion, error) {
	plan := r.attempts(ctx, m, prefs)
	if len(plan) == 0 {
		return nil, &AllRoutesFailedError{
			Model:         m.Name,
			LastRationale: "no backend deployment and no vendor key",
			LastError:     ErrNoRoute,
		}
	}

	failure := &AllRoutesFailedError{Model: m.Name}
	for _, a := range plan {
		failure.Attempted = append(failure.Attempted, string(a.target))
		failure.LastRationale = a.rationale

		c, err := r.completeOn(ctx, a.target, m, messages)
		if err == nil {
			return c, nil
		}
		if ctx.Err() != nil {
			return nil, &providers.CancellationError{Cause: ctx.Err()}
		}
		failure.LastError = err
		r.logger.WarnContext(ctx, "non-streaming route failed",
			"model", m.Name,
			"target", a.target,
			"error", err,
		)
	}
	return nil, failure
}

func (r *Router) completeOn(ctx context.Context, target upstream.Target, m providers.ModelConfig, messages []providers.Message) (*Completion, error) {
	res, err := r.upstream.Complete(ctx, target, m, messages)
	if err != nil {
		return nil, err
	}

	// the validator gets the vendor body when the translator found no text
	var raw any = &res.Parsed
	if res.Parsed.Text == providers.NoResponseText {
		raw = res.Raw
	}
	v := r.validator.Validate(raw, m.Name, promptOf(messages))
	out := v.Response()

	usage := out.Usage
	if usage.TotalTokens == 0 {
		usage = tokens.EstimateUsage(tokens.Default, messages, out.Text, m.ModelID())
	}
	return &Completion{Text: out.Text, Usage: usage, Target: target, Validation: v}, nil
}

// promptOf returns the last user message text.
func promptOf(messages []providers.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == providers.RoleUser {
			return messages[i].Text()
		}
	}
	return ""
}

// open starts delivery over method.
func (r *Router) open(ctx context.Context, method Method, m providers.ModelConfig, messages []providers.Message, prefs Preferences) (providers.StreamReader, error) {
	switch method {
	case MethodBackendTrueStream:
		return r.upstream.OpenStream(ctx, upstream.TargetBackend, m, messages)
	case MethodDirectTrueStream:
		return r.upstream.OpenStream(ctx, upstream.TargetDirect, m, messages)
	case MethodBackendMockStream:
		c, err := r.completeOn(ctx, upstream.TargetBackend, m, messages)
		if err != nil {
			return nil, err
		}
		return r.synth.Stream(c.Text, c.Usage), nil
	case MethodFallbackMockStream:
		c, err := r.complete(ctx, m, messages, prefs)
		if err != nil {
			return nil, err
		}
		return r.synth.Stream(c.Text, c.Usage), nil
	default:
		return nil, fmt.Errorf("unknown route method %q", method)
	}
}

// unwrapRoutes flattens a nested AllRoutesFailedError so the outer error
// reports the innermost cause once.
func unwrapRoutes(err error) (cause error, rationale string) {
	var all *AllRoutesFailedError
	if errors.As(err, &all) {
		return all.LastError, all.LastRationale
	}
	return err, ""
}
