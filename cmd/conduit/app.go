package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/conduit/pkg/audit"
	"mercator-hq/conduit/pkg/capability"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/routing"
	"mercator-hq/conduit/pkg/security/secrets"
	"mercator-hq/conduit/pkg/security/token"
	"mercator-hq/conduit/pkg/streaming"
	"mercator-hq/conduit/pkg/telemetry/metrics"
	"mercator-hq/conduit/pkg/telemetry/tracing"
	"mercator-hq/conduit/pkg/upstream"
	"mercator-hq/conduit/pkg/validation"
)

// app holds the wired gateway components shared by the commands.
type app struct {
	cfg *config.Config

	collector *metrics.Collector
	tracer    *tracing.Tracer
	secrets   *secrets.Manager
	tokens    *token.Manager
	models    *routing.ModelRouter
	upstream  *upstream.Client
	detector  *capability.Detector
	audit     *audit.Recorder
	validator *validation.Validator
	router    *streaming.Router

	logger *slog.Logger
}

// newApp wires every component from cfg. The backend token manager is only
// created when the backend is configured; without it every model is served
// vendor-direct or not at all.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: slog.Default().With("component", "app"),
	}

	a.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracer = tracer

	a.secrets, err = secrets.NewFromConfig(cfg.Secrets)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize secrets: %w", err)
	}
	keys := secrets.NewVendorKeys(a.secrets, vendorKeyNames(cfg))

	var tokens upstream.TokenSource
	if cfg.Backend.AuthURL != "" && cfg.Backend.ClientID != "" {
		clientSecret, err := a.secrets.ResolveReferences(ctx, cfg.Backend.ClientSecret)
		if err != nil {
			a.close()
			return nil, &providers.ConfigurationError{Vendor: "backend", Field: "client_secret", Message: err.Error()}
		}
		a.tokens, err = token.New(token.Config{
			AuthURL:      cfg.Backend.AuthURL,
			ClientID:     cfg.Backend.ClientID,
			ClientSecret: clientSecret,
			ExpiryBuffer: cfg.Backend.TokenExpiryBuffer,
			Timeout:      cfg.Backend.Timeout,
		})
		if err != nil {
			a.close()
			return nil, err
		}
		tokens = a.tokens
	} else {
		a.logger.Info("backend credentials not configured; serving vendor-direct only")
	}

	discovery := providers.NewHTTPClient(providers.ClientConfig{
		Name:       "discovery",
		Timeout:    cfg.Backend.Timeout,
		MaxRetries: cfg.Backend.MaxRetries,
	})
	a.models = routing.NewModelRouter(routing.Config{
		BaseURL:       cfg.Backend.BaseURL,
		ResourceGroup: cfg.Backend.ResourceGroup,
		CacheTTL:      cfg.Backend.DeploymentCacheTTL,
		Timeout:       cfg.Backend.Timeout,
	}, routing.ModelsFromConfig(cfg), tokens, discovery)

	a.upstream = upstream.FromConfig(cfg, tokens, keys, a.collector)
	a.detector = capability.FromConfig(cfg.Detection, a.models, a.upstream, a.collector)

	a.audit, err = audit.FromConfig(cfg.Audit, a.collector)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize audit log: %w", err)
	}
	var recorder validation.AuditRecorder
	if a.audit != nil {
		recorder = a.audit
	}
	a.validator = validation.New(cfg.Validation, recorder, a.collector)

	a.router = streaming.NewRouter(streaming.ConfigFrom(cfg), a.models, a.detector, a.upstream, a.validator, a.collector)
	return a, nil
}

// reload applies a reloaded configuration: the model table is replaced and
// every capability snapshot is dropped.
func (a *app) reload(cfg *config.Config) {
	a.models.UpdateModels(routing.ModelsFromConfig(cfg))
	a.detector.ClearCache()
	a.logger.Info("model table reloaded", "models", len(cfg.Models))
}

// preferences returns the configured default route preferences.
func (a *app) preferences() streaming.Preferences {
	return streaming.PreferencesFromConfig(a.cfg.Streaming.Preferences)
}

// close releases components in reverse order of creation.
func (a *app) close() {
	var errs []error
	if a.audit != nil {
		errs = append(errs, a.audit.Close())
	}
	if a.models != nil {
		a.models.Close()
	}
	if a.secrets != nil {
		errs = append(errs, a.secrets.Close())
	}
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(context.Background()))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown incomplete", "error", err)
	}
}

// vendorKeyNames maps vendor kinds to the secret holding their API key.
func vendorKeyNames(cfg *config.Config) map[string]string {
	names := make(map[string]string, len(cfg.Vendors))
	for kind, v := range cfg.Vendors {
		names[kind] = v.APIKeyEnv
	}
	return names
}
