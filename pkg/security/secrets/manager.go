package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"mercator-hq/conduit/pkg/config"
)

// secretRefRegex matches ${secret:name} references in configuration values.
var secretRefRegex = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Manager resolves secrets through an ordered list of providers and caches
// the results.
type Manager struct {
	providers []SecretProvider
	cache     *Cache
	logger    *slog.Logger
}

// NewManager creates a manager over providers, tried in order.
func NewManager(providers []SecretProvider, cache *Cache) *Manager {
	return &Manager{
		providers: providers,
		cache:     cache,
		logger:    slog.Default().With("component", "secrets"),
	}
}

// NewFromConfig builds the manager described by cfg: mounted files first
// when a file path is configured, then the environment.
func NewFromConfig(cfg config.SecretsConfig) (*Manager, error) {
	var providers []SecretProvider

	if cfg.FilePath != "" {
		fp, err := NewFileProvider(cfg.FilePath, cfg.Watch)
		if err != nil {
			return nil, fmt.Errorf("failed to create file secret provider: %w", err)
		}
		providers = append(providers, fp)
	}
	providers = append(providers, NewEnvProvider(cfg.EnvPrefix))

	m := NewManager(providers, NewCache(cfg.CacheTTL))
	for _, p := range providers {
		if fp, ok := p.(*FileProvider); ok {
			fp.OnChange(m.cache.Clear)
		}
	}
	return m, nil
}

// GetSecret returns the first value any provider holds for name.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	if value, ok := m.cache.Get(name); ok {
		return value, nil
	}

	var lastErr error
	for _, p := range m.providers {
		value, err := p.GetSecret(ctx, name)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				m.logger.Warn("secret provider failed",
					"provider", p.Provider(),
					"name", redactSecretName(name),
					"error", err,
				)
			}
			lastErr = err
			continue
		}
		m.cache.Set(name, value)
		m.logger.Debug("secret resolved", "provider", p.Provider(), "name", redactSecretName(name))
		return value, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return "", fmt.Errorf("failed to get secret %q: %w", name, lastErr)
}

// Lookup returns the secret and whether it was found. Provider failures
// other than absence are logged and reported as not found.
func (m *Manager) Lookup(ctx context.Context, name string) (string, bool) {
	value, err := m.GetSecret(ctx, name)
	return value, err == nil
}

// ResolveReferences replaces ${secret:name} references in input. On
// failure the unresolved references are kept and an error lists them.
func (m *Manager) ResolveReferences(ctx context.Context, input string) (string, error) {
	var failed []string

	output := secretRefRegex.ReplaceAllStringFunc(input, func(match string) string {
		name := secretRefRegex.FindStringSubmatch(match)[1]
		value, err := m.GetSecret(ctx, name)
		if err != nil {
			failed = append(failed, name)
			return match
		}
		return value
	})

	if len(failed) > 0 {
		return output, fmt.Errorf("failed to resolve secret references: %s", strings.Join(failed, ", "))
	}
	return output, nil
}

// Refresh re-reads refreshable providers and clears the cache.
func (m *Manager) Refresh(ctx context.Context) error {
	var errs []error
	for _, p := range m.providers {
		if rp, ok := p.(RefreshableProvider); ok {
			if err := rp.Refresh(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.Provider(), err))
			}
		}
	}
	m.cache.Clear()
	return errors.Join(errs...)
}

// Close releases provider resources such as file watchers.
func (m *Manager) Close() error {
	var errs []error
	for _, p := range m.providers {
		if c, ok := p.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func redactSecretName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
