package config

import "time"

// Config is the root configuration structure for Conduit.
// It contains all configuration sections for the inference backend, direct
// vendor APIs, the model table, capability detection, streaming, response
// validation, audit logging, secrets, the operations server and telemetry.
type Config struct {
	// Backend contains the primary inference backend connection and
	// OAuth2 client-credentials settings.
	Backend BackendConfig `yaml:"backend"`

	// Vendors contains direct vendor API settings keyed by vendor kind
	// ("anthropic", "google", "generic").
	Vendors map[string]VendorConfig `yaml:"vendors"`

	// Models is the model table keyed by the model name callers use.
	Models map[string]ModelConfig `yaml:"models"`

	// Detection contains streaming-capability probe and cache settings.
	Detection DetectionConfig `yaml:"detection"`

	// Streaming contains route preferences and mock-stream pacing.
	Streaming StreamingConfig `yaml:"streaming"`

	// Validation contains response validator settings.
	Validation ValidationConfig `yaml:"validation"`

	// Audit contains the optional response audit log settings.
	Audit AuditConfig `yaml:"audit"`

	// Secrets contains secret source settings for vendor API keys.
	Secrets SecretsConfig `yaml:"secrets"`

	// Server contains the operations listener settings.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// BackendConfig contains configuration for the primary inference backend.
type BackendConfig struct {
	// BaseURL is the inference API base, e.g. "https://api.ai.example.com".
	// Requests go to {base_url}/v2/inference/deployments/{id}/...
	BaseURL string `yaml:"base_url"`

	// AuthURL is the OAuth2 token endpoint base; "/oauth/token" is appended
	// unless the URL already ends with it.
	AuthURL string `yaml:"auth_url"`

	// ClientID is the OAuth2 client ID.
	ClientID string `yaml:"client_id"`

	// ClientSecret is the OAuth2 client secret. Supports ${secret:name}
	// references resolved through the secrets manager.
	ClientSecret string `yaml:"client_secret"`

	// ResourceGroup is sent as the AI-Resource-Group header.
	// Default: "default"
	ResourceGroup string `yaml:"resource_group"`

	// Timeout bounds non-streaming backend calls.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the retry count for transient backend failures.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`

	// TokenExpiryBuffer refreshes the access token this long before it expires.
	// Default: 60s
	TokenExpiryBuffer time.Duration `yaml:"token_expiry_buffer"`

	// DeploymentCacheTTL is how long discovered deployment IDs are reused.
	// Default: 10m
	DeploymentCacheTTL time.Duration `yaml:"deployment_cache_ttl"`
}

// VendorConfig contains direct vendor API configuration.
type VendorConfig struct {
	// BaseURL overrides the vendor's public API host.
	BaseURL string `yaml:"base_url"`

	// APIKeyEnv names the environment variable (or secret) holding the API key.
	// Defaults: ANTHROPIC_API_KEY, GOOGLE_API_KEY, OPENAI_API_KEY
	APIKeyEnv string `yaml:"api_key_env"`

	// APIVersion is the vendor API version header, where the vendor has one.
	APIVersion string `yaml:"api_version"`

	// Timeout bounds non-streaming direct calls.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`
}

// ModelConfig contains configuration for one model.
type ModelConfig struct {
	// Provider is the vendor family ("anthropic", "google", "openai", ...).
	Provider string `yaml:"provider"`

	// APIType is "provider" (backend deployment) or "direct" (vendor API only).
	// Default: "provider"
	APIType string `yaml:"api_type"`

	// Endpoint overrides the vendor base URL for direct calls.
	Endpoint string `yaml:"endpoint"`

	// RequestFormat selects the translator: "anthropic-style", "google-style"
	// or "generic". Inferred from Provider when empty.
	RequestFormat string `yaml:"request_format"`

	// DeploymentID pins the backend deployment. When empty it is discovered.
	DeploymentID string `yaml:"deployment_id"`

	// VendorModel is the vendor-side model identifier (defaults to the key).
	VendorModel string `yaml:"vendor_model"`

	// Defaults are request body fields merged into every request for this
	// model, keyed by dot path (e.g. "generationConfig.temperature").
	Defaults map[string]any `yaml:"defaults"`
}

// DetectionConfig contains capability detection configuration.
type DetectionConfig struct {
	// TTL is how long a probe result is reused.
	// Default: 10m
	TTL time.Duration `yaml:"ttl"`

	// ProbeTimeout is the hard timeout for one probe.
	// Default: 5s
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// ProbeDirect enables probing vendor-direct endpoints when a key is present.
	// Default: true
	ProbeDirect *bool `yaml:"probe_direct"`

	// WarmupSchedule is a cron expression for re-probing every configured
	// model. Empty disables scheduled warm-up.
	WarmupSchedule string `yaml:"warmup_schedule"`
}

// StreamingConfig contains streaming router configuration.
type StreamingConfig struct {
	// Preferences are the defaults applied when a request sets none.
	Preferences PreferencesConfig `yaml:"preferences"`

	// TrustedSources lists route methods whose chunks skip validation,
	// e.g. ["backendTrueStream"].
	TrustedSources []string `yaml:"trusted_sources"`

	// Mock contains mock-stream synthesizer pacing.
	Mock MockConfig `yaml:"mock"`
}

// PreferencesConfig contains per-request route preferences.
type PreferencesConfig struct {
	// PreferDirectAPI tries the vendor's own endpoint first.
	// Default: false
	PreferDirectAPI bool `yaml:"prefer_direct_api"`

	// PreferTrueStreaming allows native streaming routes.
	// Default: true
	PreferTrueStreaming *bool `yaml:"prefer_true_streaming"`

	// FallbackToMock restarts failed routes via fallback mock streaming.
	// Default: true
	FallbackToMock *bool `yaml:"fallback_to_mock"`

	// CostOptimization prefers the backend over direct vendor calls.
	// Default: false
	CostOptimization bool `yaml:"cost_optimization"`
}

// MockConfig contains mock-stream synthesizer configuration.
type MockConfig struct {
	// MinChunkChars is the lower bound of the randomized chunk target size.
	// Default: 8
	MinChunkChars int `yaml:"min_chunk_chars"`

	// MaxChunkChars is the upper bound of the randomized chunk target size.
	// Default: 32
	MaxChunkChars int `yaml:"max_chunk_chars"`

	// MinDelay is the lower bound of the randomized inter-chunk delay.
	// Default: 10ms
	MinDelay time.Duration `yaml:"min_delay"`

	// MaxDelay is the upper bound of the randomized inter-chunk delay.
	// Default: 40ms
	MaxDelay time.Duration `yaml:"max_delay"`

	// WordBoundary also cuts chunks at sentence-ending punctuation.
	// Default: true
	WordBoundary *bool `yaml:"word_boundary"`
}

// ValidationConfig contains response validator configuration.
type ValidationConfig struct {
	// Enabled applies the chunk check to streamed chunks. When false every
	// stream source is treated as trusted; full responses are still repaired.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// MaxSnippet bounds the before/after text stored in audit entries.
	// Default: 200
	MaxSnippet int `yaml:"max_snippet"`
}

// AuditConfig contains response audit log configuration.
type AuditConfig struct {
	// Enabled turns the audit log on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Mode is "issues" (only runs with issues) or "all".
	// Default: "issues"
	Mode string `yaml:"mode"`

	// Backend is "jsonl" or "sqlite".
	// Default: "jsonl"
	Backend string `yaml:"backend"`

	// Path is the JSON-lines file path.
	// Default: "data/responses.jsonl"
	Path string `yaml:"path"`

	// SQLite contains SQLite backend settings.
	SQLite AuditSQLiteConfig `yaml:"sqlite"`

	// AsyncBuffer is the recorder queue size; entries beyond it are dropped.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds one sink write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RetentionDays prunes SQLite entries older than this (0 = keep forever).
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron expression for retention pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// AuditSQLiteConfig contains SQLite audit sink configuration.
type AuditSQLiteConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file path.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait for locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// SecretsConfig contains secret source configuration.
type SecretsConfig struct {
	// EnvPrefix is prepended to secret names looked up in the environment.
	// Default: "" (vendor key variables are read as named)
	EnvPrefix string `yaml:"env_prefix"`

	// FilePath is a directory of mounted secret files, one secret per file.
	FilePath string `yaml:"file_path"`

	// Watch reloads mounted secret files on change.
	// Default: false
	Watch bool `yaml:"watch"`

	// CacheTTL is how long resolved secrets are cached.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ServerConfig contains operations listener configuration.
type ServerConfig struct {
	// ListenAddress is the address for /health, /ready, /metrics and the
	// capability admin endpoints.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactSecrets masks bearer tokens and API keys in log attributes.
	// Default: true
	RedactSecrets *bool `yaml:"redact_secrets"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "conduit"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "gateway"
	Subsystem string `yaml:"subsystem"`

	// ProbeDurationBuckets defines histogram buckets for probe latency (seconds).
	// Default: [0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10]
	ProbeDurationBuckets []float64 `yaml:"probe_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio", "parent"
	// Default: "parent"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the collector connection.
	// Default: true
	Insecure *bool `yaml:"insecure"`

	// ServiceName is the service name in traces.
	// Default: "conduit"
	ServiceName string `yaml:"service_name"`
}

// IsEnabled reports whether metrics are enabled.
func (c MetricsConfig) IsEnabled() bool { return boolOr(c.Enabled, true) }

// ShouldRedact reports whether secret redaction is on.
func (c LoggingConfig) ShouldRedact() bool { return boolOr(c.RedactSecrets, true) }

// IsInsecure reports whether the collector connection skips TLS.
func (c TracingConfig) IsInsecure() bool { return boolOr(c.Insecure, true) }

// ShouldProbeDirect reports whether direct endpoints are probed.
func (c DetectionConfig) ShouldProbeDirect() bool { return boolOr(c.ProbeDirect, true) }

// UsesWordBoundary reports whether the synthesizer cuts at punctuation.
func (c MockConfig) UsesWordBoundary() bool { return boolOr(c.WordBoundary, true) }

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// TrueStreaming reports whether native streaming routes are allowed.
func (c PreferencesConfig) TrueStreaming() bool { return boolOr(c.PreferTrueStreaming, true) }

// MockFallback reports whether failed routes fall back to mock streaming.
func (c PreferencesConfig) MockFallback() bool { return boolOr(c.FallbackToMock, true) }

// ChunksEnabled reports whether streamed chunks are validated.
func (c ValidationConfig) ChunksEnabled() bool { return boolOr(c.Enabled, true) }
