// Package providerfactory selects translator strategies from configuration.
//
// The vendor set is closed: a request format or provider name maps to exactly
// one providers.VendorKind, and each kind has exactly one translator. The
// choice is made once per resolved ModelConfig rather than by string
// matching at every call site.
package providerfactory

import (
	"fmt"
	"log/slog"
	"strings"

	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/providers/anthropic"
	"mercator-hq/conduit/pkg/providers/generic"
	"mercator-hq/conduit/pkg/providers/google"
)

// translators holds one stateless translator per kind.
var translators = map[providers.VendorKind]providers.Translator{
	providers.VendorAnthropic: anthropic.New(),
	providers.VendorGoogle:    google.New(),
	providers.VendorGeneric:   generic.New(),
}

// NewTranslator returns the translator for kind.
func NewTranslator(kind providers.VendorKind) (providers.Translator, error) {
	t, ok := translators[kind]
	if !ok {
		return nil, &providers.ConfigurationError{
			Vendor:  string(kind),
			Field:   "kind",
			Message: fmt.Sprintf("unsupported vendor kind %q (supported: anthropic, google, generic)", kind),
		}
	}
	return t, nil
}

// KindFor determines the vendor kind for a model. An explicit request format
// wins; without one the kind is inferred from the provider name:
//   - "anthropic", "claude" -> anthropic
//   - "google", "gemini", "vertex" -> google
//   - everything else -> generic
func KindFor(cfg providers.ModelConfig) (providers.VendorKind, error) {
	switch strings.ToLower(cfg.RequestFormat) {
	case providers.FormatAnthropic, "anthropic":
		return providers.VendorAnthropic, nil
	case providers.FormatGoogle, "google", "gemini":
		return providers.VendorGoogle, nil
	case providers.FormatGeneric, "openai-style", "openai":
		return providers.VendorGeneric, nil
	case "":
		return inferKind(cfg.Provider), nil
	}
	return "", &providers.ConfigurationError{
		Vendor:  cfg.Provider,
		Field:   "request_format",
		Message: fmt.Sprintf("unsupported request format %q", cfg.RequestFormat),
	}
}

// ForModel returns the translator for a resolved model.
func ForModel(cfg providers.ModelConfig) (providers.Translator, error) {
	kind, err := KindFor(cfg)
	if err != nil {
		return nil, err
	}

	slog.Debug("selected translator",
		"model", cfg.Name,
		"kind", kind,
		"request_format", cfg.RequestFormat,
	)
	return NewTranslator(kind)
}

func inferKind(provider string) providers.VendorKind {
	switch strings.ToLower(provider) {
	case "anthropic", "claude":
		return providers.VendorAnthropic
	case "google", "gemini", "vertex", "vertexai":
		return providers.VendorGoogle
	}
	return providers.VendorGeneric
}
