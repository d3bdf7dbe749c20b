package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "CONDUIT_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides
// for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML configuration bytes, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention CONDUIT_SECTION_FIELD (e.g., CONDUIT_BACKEND_BASE_URL) and always
// take precedence over the file.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		// Env-only configuration
		cfg = NewDefault()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
		ApplyDefaults(cfg)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Backend overrides
	envString("BACKEND_BASE_URL", &cfg.Backend.BaseURL)
	envString("BACKEND_AUTH_URL", &cfg.Backend.AuthURL)
	envString("BACKEND_CLIENT_ID", &cfg.Backend.ClientID)
	envString("BACKEND_CLIENT_SECRET", &cfg.Backend.ClientSecret)
	envString("BACKEND_RESOURCE_GROUP", &cfg.Backend.ResourceGroup)
	envDuration("BACKEND_TIMEOUT", &cfg.Backend.Timeout)
	envInt("BACKEND_MAX_RETRIES", &cfg.Backend.MaxRetries)

	// Vendor overrides
	for kind, vendor := range cfg.Vendors {
		key := strings.ToUpper(kind)
		envString("VENDORS_"+key+"_BASE_URL", &vendor.BaseURL)
		envString("VENDORS_"+key+"_API_KEY_ENV", &vendor.APIKeyEnv)
		envDuration("VENDORS_"+key+"_TIMEOUT", &vendor.Timeout)
		cfg.Vendors[kind] = vendor
	}

	// Detection overrides
	envDuration("DETECTION_TTL", &cfg.Detection.TTL)
	envDuration("DETECTION_PROBE_TIMEOUT", &cfg.Detection.ProbeTimeout)
	envBoolPtr("DETECTION_PROBE_DIRECT", &cfg.Detection.ProbeDirect)
	envString("DETECTION_WARMUP_SCHEDULE", &cfg.Detection.WarmupSchedule)

	// Streaming overrides
	envBool("STREAMING_PREFER_DIRECT_API", &cfg.Streaming.Preferences.PreferDirectAPI)
	envBoolPtr("STREAMING_PREFER_TRUE_STREAMING", &cfg.Streaming.Preferences.PreferTrueStreaming)
	envBoolPtr("STREAMING_FALLBACK_TO_MOCK", &cfg.Streaming.Preferences.FallbackToMock)
	envBool("STREAMING_COST_OPTIMIZATION", &cfg.Streaming.Preferences.CostOptimization)
	if val := os.Getenv(EnvPrefix + "STREAMING_TRUSTED_SOURCES"); val != "" {
		cfg.Streaming.TrustedSources = splitList(val)
	}

	// Audit overrides
	envBool("AUDIT_ENABLED", &cfg.Audit.Enabled)
	envString("AUDIT_MODE", &cfg.Audit.Mode)
	envString("AUDIT_BACKEND", &cfg.Audit.Backend)
	envString("AUDIT_PATH", &cfg.Audit.Path)
	envString("AUDIT_SQLITE_DRIVER", &cfg.Audit.SQLite.Driver)
	envString("AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)
	envInt("AUDIT_RETENTION_DAYS", &cfg.Audit.RetentionDays)

	// Secrets overrides
	envString("SECRETS_ENV_PREFIX", &cfg.Secrets.EnvPrefix)
	envString("SECRETS_FILE_PATH", &cfg.Secrets.FilePath)
	envBool("SECRETS_WATCH", &cfg.Secrets.Watch)

	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBoolPtr("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envString("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envBoolPtr(name string, dst **bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = &b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func splitList(val string) []string {
	var out []string
	for _, s := range strings.Split(val, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
