// Package routing resolves model names to their configuration, discovering
// backend deployment IDs for models that do not pin one.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/providerfactory"
	"mercator-hq/conduit/pkg/providers"
)

// TokenSource supplies backend bearer tokens.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Config contains ModelRouter configuration.
type Config struct {
	// BaseURL is the inference backend base URL.
	BaseURL string

	// ResourceGroup is sent as the AI-Resource-Group header.
	ResourceGroup string

	// CacheTTL is how long discovered deployment IDs, and the absence of
	// one, are reused.
	CacheTTL time.Duration

	// Timeout bounds one shared discovery request. It is independent of
	// any caller's deadline.
	Timeout time.Duration
}

// Validation is the result of ValidateModel.
type Validation struct {
	// Valid reports whether the model can be served.
	Valid bool

	// Err explains why the model cannot be served.
	Err error
}

// ModelRouter implements the model-resolution collaborator. It is safe for
// concurrent use; the model table is replaced atomically on reload.
type ModelRouter struct {
	cfg    Config
	tokens TokenSource
	client *providers.HTTPClient

	// models is the current model table
	models atomic.Pointer[map[string]providers.ModelConfig]

	// cache holds discovered deployments keyed by vendor model name
	cache *DeploymentCache

	// group collapses concurrent discoveries into one request
	group singleflight.Group

	logger *slog.Logger
}

// NewModelRouter creates a router over models. tokens and client are only
// used for deployment discovery and may be nil when no model needs it.
func NewModelRouter(cfg Config, models map[string]providers.ModelConfig, tokens TokenSource, client *providers.HTTPClient) *ModelRouter {
	if cfg.ResourceGroup == "" {
		cfg.ResourceGroup = config.DefaultBackendResourceGroup
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = config.DefaultBackendDeploymentCacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultBackendTimeout
	}
	r := &ModelRouter{
		cfg:    cfg,
		tokens: tokens,
		client: client,
		cache:  NewDeploymentCache(cfg.CacheTTL),
		logger: slog.Default().With("component", "model_router"),
	}
	r.UpdateModels(models)
	return r
}

// ModelsFromConfig converts the configured model table into resolved model
// configurations, filling vendor API versions from the vendor section.
func ModelsFromConfig(cfg *config.Config) map[string]providers.ModelConfig {
	out := make(map[string]providers.ModelConfig, len(cfg.Models))
	for name, m := range cfg.Models {
		mc := providers.ModelConfig{
			Name:          name,
			Provider:      m.Provider,
			APIType:       m.APIType,
			Endpoint:      m.Endpoint,
			RequestFormat: m.RequestFormat,
			DeploymentID:  m.DeploymentID,
			VendorModel:   m.VendorModel,
			Defaults:      m.Defaults,
		}
		if kind, err := providerfactory.KindFor(mc); err == nil {
			mc.APIVersion = cfg.Vendors[string(kind)].APIVersion
		}
		out[name] = mc
	}
	return out
}

// UpdateModels replaces the model table and drops cached deployments.
func (r *ModelRouter) UpdateModels(models map[string]providers.ModelConfig) {
	copied := make(map[string]providers.ModelConfig, len(models))
	for name, m := range models {
		if m.Name == "" {
			m.Name = name
		}
		copied[name] = m
	}
	r.models.Store(&copied)
	r.cache.Clear()
	r.logger.Info("model table updated", "models", len(copied))
}

// Models returns the configured model names in sorted order.
func (r *ModelRouter) Models() []string {
	models := *r.models.Load()
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the configured model without deployment discovery.
func (r *ModelRouter) Lookup(name string) (providers.ModelConfig, bool) {
	m, ok := (*r.models.Load())[name]
	return m, ok
}

// Resolve returns the model's configuration with its deployment ID filled
// in when the backend serves it. A discovery failure is logged and leaves
// DeploymentID empty, which callers treat as "no backend route"; only an
// unknown model is an error.
func (r *ModelRouter) Resolve(ctx context.Context, name string) (providers.ModelConfig, error) {
	m, ok := r.Lookup(name)
	if !ok {
		return providers.ModelConfig{}, &UnknownModelError{Model: name, AvailableModels: r.Models()}
	}
	if m.APIType == providers.APITypeDirect || m.DeploymentID != "" {
		return m, nil
	}

	id, err := r.deployment(ctx, m)
	if err != nil {
		if providers.IsCancellation(err) {
			return providers.ModelConfig{}, err
		}
		r.logger.Warn("deployment discovery failed", "model", name, "error", err)
		return m, nil
	}
	m.DeploymentID = id
	return m, nil
}

// DeploymentFor returns the backend deployment for a model, surfacing
// discovery failures.
func (r *ModelRouter) DeploymentFor(ctx context.Context, name string) (string, error) {
	m, ok := r.Lookup(name)
	if !ok {
		return "", &UnknownModelError{Model: name, AvailableModels: r.Models()}
	}
	if m.APIType == providers.APITypeDirect {
		return "", &NoDeploymentError{Model: name, VendorModel: m.ModelID()}
	}
	if m.DeploymentID != "" {
		return m.DeploymentID, nil
	}
	return r.deployment(ctx, m)
}

// ValidateModel reports whether name is configured and, for backend models,
// whether a running deployment exists.
func (r *ModelRouter) ValidateModel(ctx context.Context, name string) Validation {
	m, ok := r.Lookup(name)
	if !ok {
		return Validation{Err: &UnknownModelError{Model: name, AvailableModels: r.Models()}}
	}
	if _, err := providerfactory.KindFor(m); err != nil {
		return Validation{Err: err}
	}
	if m.APIType == providers.APITypeDirect {
		return Validation{Valid: true}
	}
	if _, err := r.DeploymentFor(ctx, name); err != nil {
		return Validation{Err: err}
	}
	return Validation{Valid: true}
}

// Close stops background work.
func (r *ModelRouter) Close() {
	r.cache.Close()
}

// deployment returns the running deployment for m. Concurrent callers share
// one discovery request, which runs detached from every caller so that one
// caller giving up does not fail the others.
func (r *ModelRouter) deployment(ctx context.Context, m providers.ModelConfig) (string, error) {
	vendorModel := m.ModelID()
	if id, ok := r.cache.Get(vendorModel); ok {
		if id == "" {
			return "", &NoDeploymentError{Model: m.Name, VendorModel: vendorModel}
		}
		return id, nil
	}
	if r.tokens == nil || r.client == nil || r.cfg.BaseURL == "" {
		return "", &NoDeploymentError{Model: m.Name, VendorModel: vendorModel, Cause: providers.ErrBackendNotConfigured}
	}

	ch := r.group.DoChan("discover", func() (any, error) {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Timeout)
		defer cancel()

		deployments, err := r.discover(dctx)
		if err != nil {
			if providers.IsCancellation(err) {
				return nil, &providers.UpstreamTransportError{
					Target:  "backend-deployments",
					Message: fmt.Sprintf("deployment discovery timed out after %s", r.cfg.Timeout),
				}
			}
			return nil, err
		}
		running := make(map[string]string, len(deployments))
		for _, d := range deployments {
			if _, seen := running[d.Model]; d.Running() && !seen {
				running[d.Model] = d.ID
			}
		}
		r.cache.SetAll(running)
		for _, mc := range *r.models.Load() {
			if mc.APIType == providers.APITypeDirect || mc.DeploymentID != "" {
				continue
			}
			if _, ok := running[mc.ModelID()]; !ok {
				r.cache.SetMissing(mc.ModelID())
			}
		}
		r.logger.Debug("discovered backend deployments", "total", len(deployments), "running", len(running))
		return running, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return "", &providers.CancellationError{Cause: ctx.Err()}
	}
	if res.Err != nil {
		return "", &NoDeploymentError{Model: m.Name, VendorModel: vendorModel, Cause: res.Err}
	}

	id, ok := res.Val.(map[string]string)[vendorModel]
	if !ok {
		return "", &NoDeploymentError{Model: m.Name, VendorModel: vendorModel}
	}
	return id, nil
}
