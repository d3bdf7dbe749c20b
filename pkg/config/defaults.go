package config

import (
	"strings"
	"time"
)

// Default values for configuration fields.
const (
	// Backend defaults
	DefaultBackendResourceGroup      = "default"
	DefaultBackendTimeout            = 60 * time.Second
	DefaultBackendMaxRetries         = 2
	DefaultBackendTokenExpiryBuffer  = 60 * time.Second
	DefaultBackendDeploymentCacheTTL = 10 * time.Minute

	// Vendor defaults
	DefaultVendorTimeout = 60 * time.Second

	// Model defaults
	DefaultModelAPIType = "provider"

	// Detection defaults
	DefaultDetectionTTL          = 10 * time.Minute
	DefaultDetectionProbeTimeout = 5 * time.Second

	// Mock stream defaults
	DefaultMockMinChunkChars = 8
	DefaultMockMaxChunkChars = 32
	DefaultMockMinDelay      = 10 * time.Millisecond
	DefaultMockMaxDelay      = 40 * time.Millisecond

	// Validation defaults
	DefaultValidationMaxSnippet = 200

	// Audit defaults
	DefaultAuditMode          = "issues"
	DefaultAuditBackend       = "jsonl"
	DefaultAuditPath          = "data/responses.jsonl"
	DefaultAuditSQLiteDriver  = "sqlite"
	DefaultAuditSQLitePath    = "data/audit.db"
	DefaultAuditBusyTimeout   = 5 * time.Second
	DefaultAuditAsyncBuffer   = 1000
	DefaultAuditWriteTimeout  = 5 * time.Second
	DefaultAuditRetentionDays = 30
	DefaultAuditPruneSchedule = "0 3 * * *"

	// Secrets defaults
	DefaultSecretsCacheTTL = 5 * time.Minute

	// Server defaults
	DefaultServerListenAddress   = "127.0.0.1:9090"
	DefaultServerShutdownTimeout = 15 * time.Second

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "conduit"
	DefaultMetricsSubsystem   = "gateway"
	DefaultTracingSampler     = "parent"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingServiceName = "conduit"
)

// DefaultProbeDurationBuckets are the histogram buckets for probe latency.
var DefaultProbeDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// DefaultTrustedSources are the route methods whose chunks skip validation
// when trusted_sources is not set.
var DefaultTrustedSources = []string{"backendTrueStream"}

// DefaultVendorKeyEnv maps vendor kinds to the environment variable holding
// their API key.
var DefaultVendorKeyEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"google":    "GOOGLE_API_KEY",
	"generic":   "OPENAI_API_KEY",
}

// ApplyDefaults fills zero-valued fields with their defaults.
// Optional booleans are left nil and resolved by their accessor methods.
func ApplyDefaults(cfg *Config) {
	// Backend defaults
	if cfg.Backend.ResourceGroup == "" {
		cfg.Backend.ResourceGroup = DefaultBackendResourceGroup
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = DefaultBackendTimeout
	}
	if cfg.Backend.MaxRetries == 0 {
		cfg.Backend.MaxRetries = DefaultBackendMaxRetries
	}
	if cfg.Backend.TokenExpiryBuffer == 0 {
		cfg.Backend.TokenExpiryBuffer = DefaultBackendTokenExpiryBuffer
	}
	if cfg.Backend.DeploymentCacheTTL == 0 {
		cfg.Backend.DeploymentCacheTTL = DefaultBackendDeploymentCacheTTL
	}

	// Vendor defaults, including entries for vendors that were not configured
	if cfg.Vendors == nil {
		cfg.Vendors = make(map[string]VendorConfig)
	}
	for kind, env := range DefaultVendorKeyEnv {
		vendor := cfg.Vendors[kind]
		if vendor.APIKeyEnv == "" {
			vendor.APIKeyEnv = env
		}
		cfg.Vendors[kind] = vendor
	}
	for name, vendor := range cfg.Vendors {
		if vendor.Timeout == 0 {
			vendor.Timeout = DefaultVendorTimeout
		}
		cfg.Vendors[name] = vendor
	}

	// Model defaults
	for name, model := range cfg.Models {
		if model.APIType == "" {
			model.APIType = DefaultModelAPIType
		}
		model.APIType = strings.ToLower(model.APIType)
		cfg.Models[name] = model
	}

	// Detection defaults
	if cfg.Detection.TTL == 0 {
		cfg.Detection.TTL = DefaultDetectionTTL
	}
	if cfg.Detection.ProbeTimeout == 0 {
		cfg.Detection.ProbeTimeout = DefaultDetectionProbeTimeout
	}

	// Streaming defaults; an explicit empty list validates every route
	if cfg.Streaming.TrustedSources == nil {
		cfg.Streaming.TrustedSources = append([]string(nil), DefaultTrustedSources...)
	}

	// Mock stream defaults
	mock := &cfg.Streaming.Mock
	if mock.MinChunkChars == 0 {
		mock.MinChunkChars = DefaultMockMinChunkChars
	}
	if mock.MaxChunkChars == 0 {
		mock.MaxChunkChars = DefaultMockMaxChunkChars
	}
	if mock.MinDelay == 0 {
		mock.MinDelay = DefaultMockMinDelay
	}
	if mock.MaxDelay == 0 {
		mock.MaxDelay = DefaultMockMaxDelay
	}

	// Validation defaults
	if cfg.Validation.MaxSnippet == 0 {
		cfg.Validation.MaxSnippet = DefaultValidationMaxSnippet
	}

	// Audit defaults
	if cfg.Audit.Mode == "" {
		cfg.Audit.Mode = DefaultAuditMode
	}
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = DefaultAuditPath
	}
	if cfg.Audit.SQLite.Driver == "" {
		cfg.Audit.SQLite.Driver = DefaultAuditSQLiteDriver
	}
	if cfg.Audit.SQLite.Path == "" {
		cfg.Audit.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.Audit.SQLite.BusyTimeout == 0 {
		cfg.Audit.SQLite.BusyTimeout = DefaultAuditBusyTimeout
	}
	if cfg.Audit.AsyncBuffer == 0 {
		cfg.Audit.AsyncBuffer = DefaultAuditAsyncBuffer
	}
	if cfg.Audit.WriteTimeout == 0 {
		cfg.Audit.WriteTimeout = DefaultAuditWriteTimeout
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = DefaultAuditRetentionDays
	}
	if cfg.Audit.PruneSchedule == "" {
		cfg.Audit.PruneSchedule = DefaultAuditPruneSchedule
	}

	// Secrets defaults
	if cfg.Secrets.CacheTTL == 0 {
		cfg.Secrets.CacheTTL = DefaultSecretsCacheTTL
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultServerListenAddress
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.ProbeDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.ProbeDurationBuckets = append([]float64(nil), DefaultProbeDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
}

// NewDefault returns a configuration with every default applied and no
// models. It is the starting point for programmatic configuration.
func NewDefault() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
