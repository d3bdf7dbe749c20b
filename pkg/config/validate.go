package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "backend.base_url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Route method names accepted in streaming.trusted_sources.
var routeMethods = map[string]bool{
	"backendTrueStream":  true,
	"directTrueStream":   true,
	"backendMockStream":  true,
	"fallbackMockStream": true,
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateBackend(cfg)...)
	errs = append(errs, validateModels(cfg)...)
	errs = append(errs, validateDetection(&cfg.Detection)...)
	errs = append(errs, validateStreaming(&cfg.Streaming)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// usesBackend reports whether any model is served through the backend.
func usesBackend(cfg *Config) bool {
	for _, m := range cfg.Models {
		if m.APIType == "provider" {
			return true
		}
	}
	return false
}

func validateBackend(cfg *Config) []FieldError {
	var errs []FieldError
	b := &cfg.Backend

	if b.BaseURL == "" {
		if usesBackend(cfg) {
			errs = append(errs, FieldError{
				Field:   "backend.base_url",
				Message: "base URL is required when any model uses api_type provider",
			})
		}
	} else if err := validateURL(b.BaseURL); err != nil {
		errs = append(errs, FieldError{Field: "backend.base_url", Message: err.Error()})
	}

	if b.BaseURL != "" {
		if b.AuthURL == "" {
			errs = append(errs, FieldError{Field: "backend.auth_url", Message: "auth URL is required with a backend"})
		} else if err := validateURL(b.AuthURL); err != nil {
			errs = append(errs, FieldError{Field: "backend.auth_url", Message: err.Error()})
		}
		if b.ClientID == "" {
			errs = append(errs, FieldError{Field: "backend.client_id", Message: "client ID is required with a backend"})
		}
	}

	if b.Timeout < 0 {
		errs = append(errs, FieldError{Field: "backend.timeout", Message: "timeout must be positive"})
	}
	if b.MaxRetries < 0 {
		errs = append(errs, FieldError{Field: "backend.max_retries", Message: "max retries must be non-negative"})
	}
	if b.MaxRetries > 10 {
		errs = append(errs, FieldError{Field: "backend.max_retries", Message: "max retries exceeds reasonable limit (10)"})
	}
	if b.TokenExpiryBuffer < 0 {
		errs = append(errs, FieldError{Field: "backend.token_expiry_buffer", Message: "expiry buffer must be non-negative"})
	}

	for kind, v := range cfg.Vendors {
		if v.BaseURL != "" {
			if err := validateURL(v.BaseURL); err != nil {
				errs = append(errs, FieldError{Field: "vendors." + kind + ".base_url", Message: err.Error()})
			}
		}
		if v.Timeout < 0 {
			errs = append(errs, FieldError{Field: "vendors." + kind + ".timeout", Message: "timeout must be positive"})
		}
	}
	return errs
}

func validateModels(cfg *Config) []FieldError {
	var errs []FieldError

	validFormats := map[string]bool{
		"":                true,
		"anthropic-style": true,
		"anthropic":       true,
		"google-style":    true,
		"google":          true,
		"gemini":          true,
		"generic":         true,
		"openai-style":    true,
		"openai":          true,
	}

	for name, m := range cfg.Models {
		prefix := "models." + name

		if m.Provider == "" {
			errs = append(errs, FieldError{Field: prefix + ".provider", Message: "provider is required"})
		}
		if m.APIType != "provider" && m.APIType != "direct" {
			errs = append(errs, FieldError{
				Field:   prefix + ".api_type",
				Message: fmt.Sprintf("invalid api_type %q (must be one of: provider, direct)", m.APIType),
			})
		}
		if !validFormats[strings.ToLower(m.RequestFormat)] {
			errs = append(errs, FieldError{
				Field:   prefix + ".request_format",
				Message: fmt.Sprintf("invalid request_format %q (must be one of: anthropic-style, google-style, generic)", m.RequestFormat),
			})
		}
		if m.Endpoint != "" {
			if err := validateURL(m.Endpoint); err != nil {
				errs = append(errs, FieldError{Field: prefix + ".endpoint", Message: err.Error()})
			}
		}
	}
	return errs
}

func validateDetection(cfg *DetectionConfig) []FieldError {
	var errs []FieldError

	if cfg.TTL <= 0 {
		errs = append(errs, FieldError{Field: "detection.ttl", Message: "ttl must be positive"})
	}
	if cfg.ProbeTimeout <= 0 {
		errs = append(errs, FieldError{Field: "detection.probe_timeout", Message: "probe timeout must be positive"})
	}
	if cfg.WarmupSchedule != "" {
		if _, err := cron.ParseStandard(cfg.WarmupSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "detection.warmup_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}
	return errs
}

func validateStreaming(cfg *StreamingConfig) []FieldError {
	var errs []FieldError

	for i, src := range cfg.TrustedSources {
		if !routeMethods[src] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("streaming.trusted_sources[%d]", i),
				Message: fmt.Sprintf("unknown route method %q", src),
			})
		}
	}

	mock := &cfg.Mock
	if mock.MinChunkChars < 1 {
		errs = append(errs, FieldError{Field: "streaming.mock.min_chunk_chars", Message: "must be at least 1"})
	}
	if mock.MaxChunkChars < mock.MinChunkChars {
		errs = append(errs, FieldError{Field: "streaming.mock.max_chunk_chars", Message: "must not be less than min_chunk_chars"})
	}
	if mock.MinDelay < 0 {
		errs = append(errs, FieldError{Field: "streaming.mock.min_delay", Message: "must be non-negative"})
	}
	if mock.MaxDelay < mock.MinDelay {
		errs = append(errs, FieldError{Field: "streaming.mock.max_delay", Message: "must not be less than min_delay"})
	}
	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if cfg.Mode != "issues" && cfg.Mode != "all" {
		errs = append(errs, FieldError{
			Field:   "audit.mode",
			Message: fmt.Sprintf("invalid mode %q (must be one of: issues, all)", cfg.Mode),
		})
	}

	switch cfg.Backend {
	case "jsonl":
		if cfg.Enabled && cfg.Path == "" {
			errs = append(errs, FieldError{Field: "audit.path", Message: "path is required for the jsonl backend"})
		}
	case "sqlite":
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "audit.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q (must be one of: sqlite, sqlite3)", cfg.SQLite.Driver),
			})
		}
		if cfg.Enabled && cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "audit.sqlite.path", Message: "path is required for the sqlite backend"})
		}
		if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "audit.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("invalid backend %q (must be one of: jsonl, sqlite)", cfg.Backend),
		})
	}

	if cfg.AsyncBuffer < 1 {
		errs = append(errs, FieldError{Field: "audit.async_buffer", Message: "must be at least 1"})
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{Field: "audit.retention_days", Message: "must be non-negative"})
	}
	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError
	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "shutdown timeout must be positive"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be one of: debug, info, warn, error)", cfg.Logging.Level),
		})
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be one of: json, text)", cfg.Logging.Format),
		})
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "path must start with /"})
	}
	for i := 1; i < len(cfg.Metrics.ProbeDurationBuckets); i++ {
		if cfg.Metrics.ProbeDurationBuckets[i] <= cfg.Metrics.ProbeDurationBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.probe_duration_buckets",
				Message: "buckets must be in strictly increasing order",
			})
			break
		}
	}

	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true, "parent": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q (must be one of: always, never, ratio, parent)", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "sample ratio must be between 0.0 and 1.0"})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
	}
	return errs
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL format: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host: %q", raw)
	}
	return nil
}
