package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider loads secrets from environment variables.
//
// Names that already look like variables (ANTHROPIC_API_KEY) are used as
// they are; kebab-case names (backend-client-secret) are upper-cased with
// hyphens replaced by underscores. Prefix is prepended in both cases.
type EnvProvider struct {
	// Prefix namespaces the variables, e.g. "CONDUIT_SECRET_".
	Prefix string

	// lookup reads a variable; os.LookupEnv outside tests.
	lookup func(string) (string, bool)
}

// NewEnvProvider creates an environment variable secret provider.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix, lookup: os.LookupEnv}
}

// GetSecret implements SecretProvider. An empty variable counts as unset.
func (p *EnvProvider) GetSecret(ctx context.Context, name string) (string, error) {
	lookup := p.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	envVar := p.EnvVar(name)
	value, ok := lookup(envVar)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: %s (env var: %s)", ErrNotFound, name, envVar)
	}
	return strings.TrimSpace(value), nil
}

// Provider implements SecretProvider.
func (p *EnvProvider) Provider() string {
	return "env"
}

// EnvVar returns the environment variable consulted for name.
func (p *EnvProvider) EnvVar(name string) string {
	return p.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
