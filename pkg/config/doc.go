// Package config provides configuration management for Conduit.
//
// Configuration is read from a YAML file, completed with defaults and
// checked by Validate, which collects every field problem into a single
// ValidationError.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CONDUIT_SECTION_FIELD:
//
//   - CONDUIT_BACKEND_BASE_URL overrides backend.base_url
//   - CONDUIT_VENDORS_ANTHROPIC_BASE_URL overrides vendors.anthropic.base_url
//   - CONDUIT_STREAMING_FALLBACK_TO_MOCK overrides streaming.preferences.fallback_to_mock
//   - CONDUIT_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Precedence, later wins: defaults, YAML file, environment.
//
// # Hot Reload
//
// Watcher observes the configuration file and, after a debounce interval,
// reloads it through ReloadConfig. A file that fails validation is logged
// and ignored; the previous configuration stays in effect.
//
// # Example Configuration
//
//	backend:
//	  base_url: "https://api.ai.example.com"
//	  auth_url: "https://auth.example.com"
//	  client_id: "conduit"
//	  client_secret: "${secret:backend-client-secret}"
//
//	models:
//	  claude-sonnet:
//	    provider: "anthropic"
//	    request_format: "anthropic-style"
//	  gemini-pro:
//	    provider: "google"
//	    api_type: "direct"
//
//	streaming:
//	  preferences:
//	    prefer_true_streaming: true
//	    fallback_to_mock: true
//	  trusted_sources: ["backendTrueStream"]
package config
