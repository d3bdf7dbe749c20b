// Package upstream builds authorized requests for the inference backend and
// for vendor-direct endpoints, and executes them.
//
// A backend request carries a bearer token and the AI-Resource-Group header
// and targets {base}/v2/inference/deployments/{id}/...; a direct request
// carries the vendor API key in the vendor's own header. Translators decide
// the body and path; this package decides where it goes and how it is
// authorized.
package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/providerfactory"
	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/telemetry/metrics"
	"mercator-hq/conduit/pkg/telemetry/tracing"
)

// Target selects the delivery path.
type Target string

const (
	// TargetBackend is the primary inference backend.
	TargetBackend Target = "backend"

	// TargetDirect is the vendor's own public endpoint.
	TargetDirect Target = "direct"
)

// TokenSource supplies backend bearer tokens.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// KeySource supplies vendor API keys by vendor kind.
type KeySource interface {
	APIKey(ctx context.Context, vendor string) (string, bool)
}

// Config contains Client configuration.
type Config struct {
	// BackendURL is the inference backend base URL; empty disables the backend.
	BackendURL string

	// ResourceGroup is sent as the AI-Resource-Group header.
	ResourceGroup string

	// VendorURLs override the public base URL per vendor kind.
	VendorURLs map[providers.VendorKind]string

	// Metrics receives per-call outcomes; may be nil.
	Metrics *metrics.Collector
}

// Client executes requests against the backend and vendor endpoints.
type Client struct {
	cfg     Config
	tokens  TokenSource
	keys    KeySource
	backend *providers.HTTPClient
	direct  *providers.HTTPClient
	logger  *slog.Logger
}

// New creates a client. tokens may be nil when no backend is configured and
// keys may be nil when no direct route is wanted.
func New(cfg Config, tokens TokenSource, keys KeySource, backend, direct *providers.HTTPClient) *Client {
	if cfg.ResourceGroup == "" {
		cfg.ResourceGroup = config.DefaultBackendResourceGroup
	}
	if backend == nil {
		backend = providers.NewHTTPClient(providers.ClientConfig{Name: string(TargetBackend), Timeout: config.DefaultBackendTimeout})
	}
	if direct == nil {
		direct = providers.NewHTTPClient(providers.ClientConfig{Name: string(TargetDirect), Timeout: config.DefaultVendorTimeout})
	}
	return &Client{
		cfg:     cfg,
		tokens:  tokens,
		keys:    keys,
		backend: backend,
		direct:  direct,
		logger:  slog.Default().With("component", "upstream"),
	}
}

// FromConfig creates a client from the loaded configuration. collector may be nil.
func FromConfig(cfg *config.Config, tokens TokenSource, keys KeySource, collector *metrics.Collector) *Client {
	vendorURLs := make(map[providers.VendorKind]string)
	directTimeout := config.DefaultVendorTimeout
	for kind, v := range cfg.Vendors {
		if v.BaseURL != "" {
			vendorURLs[providers.VendorKind(kind)] = v.BaseURL
		}
		if v.Timeout > directTimeout {
			directTimeout = v.Timeout
		}
	}

	backend := providers.NewHTTPClient(providers.ClientConfig{
		Name:       string(TargetBackend),
		Timeout:    cfg.Backend.Timeout,
		MaxRetries: cfg.Backend.MaxRetries,
	})
	direct := providers.NewHTTPClient(providers.ClientConfig{
		Name:       string(TargetDirect),
		Timeout:    directTimeout,
		MaxRetries: cfg.Backend.MaxRetries,
	})

	return New(Config{
		BackendURL:    cfg.Backend.BaseURL,
		ResourceGroup: cfg.Backend.ResourceGroup,
		VendorURLs:    vendorURLs,
		Metrics:       collector,
	}, tokens, keys, backend, direct)
}

// DirectModel returns m configured for its vendor-direct endpoint.
func DirectModel(m providers.ModelConfig) providers.ModelConfig {
	m.APIType = providers.APITypeDirect
	m.DeploymentID = ""
	return m
}

// HasBackend reports whether m can be served by the backend: it is a
// backend model with a resolved deployment and the backend is configured.
func (c *Client) HasBackend(m providers.ModelConfig) bool {
	return m.APIType != providers.APITypeDirect &&
		m.DeploymentID != "" &&
		c.cfg.BackendURL != "" &&
		c.tokens != nil
}

// HasDirectKey reports whether a vendor API key is available for m.
func (c *Client) HasDirectKey(ctx context.Context, m providers.ModelConfig) bool {
	kind, err := providerfactory.KindFor(m)
	if err != nil || c.keys == nil {
		return false
	}
	_, ok := c.keys.APIKey(ctx, string(kind))
	return ok
}

// BuildRequest builds an authorized request for target. stream selects the
// vendor's native streaming protocol.
func (c *Client) BuildRequest(ctx context.Context, target Target, m providers.ModelConfig, messages []providers.Message, stream bool) (*providers.VendorRequest, providers.Translator, error) {
	translator, err := providerfactory.ForModel(m)
	if err != nil {
		return nil, nil, err
	}

	build := translator.BuildRequest
	if stream {
		build = translator.BuildStreamRequest
	}

	var req *providers.VendorRequest
	switch target {
	case TargetBackend:
		if m.APIType == providers.APITypeDirect {
			return nil, nil, &providers.ConfigurationError{Vendor: m.Provider, Field: "api_type", Message: fmt.Sprintf("model %q is direct-only", m.Name)}
		}
		if c.cfg.BackendURL == "" || c.tokens == nil {
			return nil, nil, providers.ErrBackendNotConfigured
		}
		req, err = build(c.cfg.BackendURL, m, messages)
		if err != nil {
			return nil, nil, err
		}
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return nil, nil, err
		}
		req.SetHeader("Authorization", "Bearer "+token)
		req.SetHeader("AI-Resource-Group", c.cfg.ResourceGroup)

	case TargetDirect:
		kind := translator.Kind()
		var key string
		var ok bool
		if c.keys != nil {
			key, ok = c.keys.APIKey(ctx, string(kind))
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w for vendor %q", providers.ErrNoAPIKey, kind)
		}
		req, err = build(c.cfg.VendorURLs[kind], DirectModel(m), messages)
		if err != nil {
			return nil, nil, err
		}
		translator.Authorize(req, key)

	default:
		return nil, nil, fmt.Errorf("unknown upstream target %q", target)
	}

	tracing.InjectToMap(ctx, req.Headers)
	return req, translator, nil
}

// Result is the outcome of a non-streaming call.
type Result struct {
	// Parsed is the translator's reading of the body.
	Parsed providers.ParsedResponse

	// Raw is the vendor body.
	Raw []byte

	// Target is where the call went.
	Target Target
}

// Complete performs a non-streaming call against target.
func (c *Client) Complete(ctx context.Context, target Target, m providers.ModelConfig, messages []providers.Message) (*Result, error) {
	ctx, span := tracing.Start(ctx, "upstream.complete",
		attribute.String(tracing.AttrModel, m.Name),
		attribute.String(tracing.AttrTarget, string(target)),
	)
	defer span.End()

	req, translator, err := c.BuildRequest(ctx, target, m, messages, false)
	if err != nil {
		tracing.RecordException(span, err)
		return nil, err
	}

	start := time.Now()
	body, err := c.client(target).SendAndRead(ctx, c.name(target, translator), req)
	c.cfg.Metrics.RecordUpstream(string(target), providers.ErrorClass(err), time.Since(start))
	if err != nil {
		tracing.RecordException(span, err)
		return nil, err
	}

	parsed := translator.ParseResponse(body)
	tracing.SetTokenAttributes(span, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)
	c.logger.Debug("upstream call completed",
		"model", m.Name,
		"target", target,
		"bytes", len(body),
	)
	return &Result{Parsed: parsed, Raw: body, Target: target}, nil
}

// OpenStream starts a true stream against target. The returned reader yields
// exactly one terminal chunk and must be closed.
func (c *Client) OpenStream(ctx context.Context, target Target, m providers.ModelConfig, messages []providers.Message) (providers.StreamReader, error) {
	ctx, span := tracing.Start(ctx, "upstream.open_stream",
		attribute.String(tracing.AttrModel, m.Name),
		attribute.String(tracing.AttrTarget, string(target)),
	)
	defer span.End()

	req, translator, err := c.BuildRequest(ctx, target, m, messages, true)
	if err != nil {
		tracing.RecordException(span, err)
		return nil, err
	}

	name := c.name(target, translator)
	start := time.Now()
	resp, err := c.client(target).Send(ctx, name, req)
	c.cfg.Metrics.RecordUpstream(string(target), providers.ErrorClass(err), time.Since(start))
	if err != nil {
		tracing.RecordException(span, err)
		return nil, err
	}
	return newVendorStream(resp, translator, name, m, messages), nil
}

// Probe performs a single streaming request without retries and returns the
// raw response for inspection. The caller closes the body.
func (c *Client) Probe(ctx context.Context, target Target, m providers.ModelConfig, messages []providers.Message) (*http.Response, error) {
	req, _, err := c.BuildRequest(ctx, target, m, messages, true)
	if err != nil {
		return nil, err
	}
	return c.client(target).Do(ctx, req)
}

func (c *Client) client(target Target) *providers.HTTPClient {
	if target == TargetBackend {
		return c.backend
	}
	return c.direct
}

// name labels errors and logs, e.g. "backend" or "direct-anthropic".
func (c *Client) name(target Target, t providers.Translator) string {
	if target == TargetBackend {
		return string(TargetBackend)
	}
	return string(TargetDirect) + "-" + string(t.Kind())
}
