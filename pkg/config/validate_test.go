package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := &Config{
		Backend: BackendConfig{
			BaseURL:  "https://api.ai.example.com",
			AuthURL:  "https://auth.example.com",
			ClientID: "conduit",
		},
		Models: map[string]ModelConfig{
			"claude": {Provider: "anthropic", RequestFormat: "anthropic-style"},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:      "backend without auth url",
			mutate:    func(c *Config) { c.Backend.AuthURL = "" },
			wantField: "backend.auth_url",
		},
		{
			name:      "backend url without scheme",
			mutate:    func(c *Config) { c.Backend.BaseURL = "api.example.com" },
			wantField: "backend.base_url",
		},
		{
			name: "invalid api type",
			mutate: func(c *Config) {
				c.Models["claude"] = ModelConfig{Provider: "anthropic", APIType: "proxy"}
			},
			wantField: "models.claude.api_type",
		},
		{
			name: "unknown request format",
			mutate: func(c *Config) {
				c.Models["claude"] = ModelConfig{Provider: "anthropic", APIType: "provider", RequestFormat: "xml"}
			},
			wantField: "models.claude.request_format",
		},
		{
			name: "missing provider",
			mutate: func(c *Config) {
				c.Models["claude"] = ModelConfig{APIType: "provider"}
			},
			wantField: "models.claude.provider",
		},
		{
			name:      "unknown trusted source",
			mutate:    func(c *Config) { c.Streaming.TrustedSources = []string{"backendTrueStream", "everything"} },
			wantField: "streaming.trusted_sources[1]",
		},
		{
			name: "mock chunk bounds inverted",
			mutate: func(c *Config) {
				c.Streaming.Mock.MinChunkChars = 20
				c.Streaming.Mock.MaxChunkChars = 10
			},
			wantField: "streaming.mock.max_chunk_chars",
		},
		{
			name:      "mock delay bounds inverted",
			mutate:    func(c *Config) { c.Streaming.Mock.MaxDelay = time.Millisecond },
			wantField: "streaming.mock.max_delay",
		},
		{
			name:      "invalid warmup schedule",
			mutate:    func(c *Config) { c.Detection.WarmupSchedule = "every minute" },
			wantField: "detection.warmup_schedule",
		},
		{
			name:      "negative probe timeout",
			mutate:    func(c *Config) { c.Detection.ProbeTimeout = -time.Second },
			wantField: "detection.probe_timeout",
		},
		{
			name:      "invalid audit mode",
			mutate:    func(c *Config) { c.Audit.Mode = "sometimes" },
			wantField: "audit.mode",
		},
		{
			name: "invalid sqlite driver",
			mutate: func(c *Config) {
				c.Audit.Backend = "sqlite"
				c.Audit.SQLite.Driver = "postgres"
			},
			wantField: "audit.sqlite.driver",
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Telemetry.Logging.Level = "trace" },
			wantField: "telemetry.logging.level",
		},
		{
			name:      "sample ratio out of range",
			mutate:    func(c *Config) { c.Telemetry.Tracing.SampleRatio = 1.5 },
			wantField: "telemetry.tracing.sample_ratio",
		},
		{
			name:      "unsorted buckets",
			mutate:    func(c *Config) { c.Telemetry.Metrics.ProbeDurationBuckets = []float64{1, 0.5} },
			wantField: "telemetry.metrics.probe_duration_buckets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}

			var vErr ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, fe := range vErr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %q, got %v", tt.wantField, vErr)
			}
		})
	}
}

func TestValidate_DirectOnlyNeedsNoBackend(t *testing.T) {
	cfg := &Config{
		Models: map[string]ModelConfig{
			"gemini": {Provider: "google", APIType: "direct"},
		},
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		t.Fatalf("direct-only configuration should not need a backend: %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := single.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("unexpected single error message: %q", got)
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if got := multi.Error(); !strings.Contains(got, "2 errors") || !strings.Contains(got, "b: worse") {
		t.Errorf("unexpected multi error message: %q", got)
	}
}
