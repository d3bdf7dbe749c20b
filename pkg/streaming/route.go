package streaming

import (
	"mercator-hq/conduit/pkg/capability"
	"mercator-hq/conduit/pkg/config"
)

// Method is a delivery method.
type Method string

const (
	MethodBackendTrueStream  Method = "backendTrueStream"
	MethodDirectTrueStream   Method = "directTrueStream"
	MethodBackendMockStream  Method = "backendMockStream"
	MethodFallbackMockStream Method = "fallbackMockStream"
)

// Cost tiers. Backend usage is billed under the platform contract; direct
// usage is billed by the vendor.
const (
	CostBackend = "backend"
	CostDirect  = "direct"
	CostMixed   = "mixed"
)

// Route is the delivery decision for one request. It is never persisted.
type Route struct {
	Method    Method `json:"method"`
	Rationale string `json:"rationale"`
	CostTier  string `json:"cost_tier"`
}

// Preferences are per-request routing preferences.
type Preferences struct {
	PreferDirectAPI     bool `json:"prefer_direct_api"`
	PreferTrueStreaming bool `json:"prefer_true_streaming"`
	FallbackToMock      bool `json:"fallback_to_mock"`
	CostOptimization    bool `json:"cost_optimization"`
}

// DefaultPreferences prefers true streaming and allows fallback.
func DefaultPreferences() Preferences {
	return Preferences{PreferTrueStreaming: true, FallbackToMock: true}
}

// PreferencesFromConfig returns the configured default preferences.
func PreferencesFromConfig(cfg config.PreferencesConfig) Preferences {
	return Preferences{
		PreferDirectAPI:     cfg.PreferDirectAPI,
		PreferTrueStreaming: cfg.TrueStreaming(),
		FallbackToMock:      cfg.MockFallback(),
		CostOptimization:    cfg.CostOptimization,
	}
}

// Availability describes what can serve the model right now.
type Availability struct {
	// Backend is true when the model has a deployment and the backend is configured.
	Backend bool

	// DirectKey is true when a vendor API key is present.
	DirectKey bool
}

// SelectRoute picks the delivery method for a request.
func SelectRoute(c *capability.Capability, avail Availability, prefs Preferences) Route {
	backendStream := c != nil && c.BackendSupportsStream && avail.Backend
	directStream := c != nil && c.DirectSupportsStream && avail.DirectKey

	preferDirect := prefs.PreferDirectAPI
	if preferDirect && prefs.CostOptimization && backendStream {
		preferDirect = false
	}

	switch {
	case preferDirect && directStream:
		return Route{
			Method:    MethodDirectTrueStream,
			Rationale: "direct API preferred and direct streaming confirmed",
			CostTier:  CostDirect,
		}
	case prefs.PreferTrueStreaming && backendStream:
		return Route{
			Method:    MethodBackendTrueStream,
			Rationale: "backend streaming confirmed",
			CostTier:  CostBackend,
		}
	case prefs.PreferTrueStreaming && directStream:
		return Route{
			Method:    MethodDirectTrueStream,
			Rationale: "direct streaming confirmed; backend cannot stream",
			CostTier:  CostDirect,
		}
	case avail.Backend:
		return Route{
			Method:    MethodBackendMockStream,
			Rationale: "backend available without true streaming",
			CostTier:  CostBackend,
		}
	default:
		return Route{
			Method:    MethodFallbackMockStream,
			Rationale: "no streaming or backend route available",
			CostTier:  CostMixed,
		}
	}
}
