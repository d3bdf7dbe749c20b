package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testConfigYAML = `
backend:
  base_url: "https://api.ai.example.com"
  auth_url: "https://auth.example.com"
  client_id: "conduit"
  client_secret: "s3cret"
  timeout: "30s"

vendors:
  anthropic:
    base_url: "https://anthropic.example.com"

models:
  claude-sonnet:
    provider: "anthropic"
    request_format: "anthropic-style"
  gemini-pro:
    provider: "google"
    api_type: "Direct"
    defaults:
      generationConfig.temperature: 0.2

streaming:
  preferences:
    prefer_direct_api: true
    fallback_to_mock: false
  trusted_sources: ["backendTrueStream"]

telemetry:
  logging:
    level: "debug"
    format: "text"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Backend.Timeout != 30*time.Second {
		t.Errorf("expected backend timeout %v, got %v", 30*time.Second, cfg.Backend.Timeout)
	}
	if cfg.Backend.ResourceGroup != "default" {
		t.Errorf("expected default resource group, got %q", cfg.Backend.ResourceGroup)
	}

	gemini, ok := cfg.Models["gemini-pro"]
	if !ok {
		t.Fatal("expected gemini-pro model")
	}
	if gemini.APIType != "direct" {
		t.Errorf("expected api_type to be normalized to %q, got %q", "direct", gemini.APIType)
	}
	if gemini.Defaults["generationConfig.temperature"] != 0.2 {
		t.Errorf("expected model default temperature 0.2, got %v", gemini.Defaults["generationConfig.temperature"])
	}
	if cfg.Models["claude-sonnet"].APIType != "provider" {
		t.Errorf("expected default api_type provider, got %q", cfg.Models["claude-sonnet"].APIType)
	}

	prefs := cfg.Streaming.Preferences
	if !prefs.PreferDirectAPI {
		t.Error("expected prefer_direct_api to be true")
	}
	if prefs.MockFallback() {
		t.Error("expected fallback_to_mock to be false")
	}
	if !prefs.TrueStreaming() {
		t.Error("expected prefer_true_streaming to default to true")
	}

	if got := cfg.Vendors["google"].APIKeyEnv; got != "GOOGLE_API_KEY" {
		t.Errorf("expected default google key env, got %q", got)
	}
	if got := cfg.Vendors["anthropic"].BaseURL; got != "https://anthropic.example.com" {
		t.Errorf("expected anthropic base URL to be kept, got %q", got)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read configuration file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "backend: [unclosed"))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
models:
  claude:
    provider: "anthropic"
`))
	if err == nil {
		t.Fatal("expected validation error for provider model without backend")
	}

	var vErr ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if vErr.Errors[0].Field != "backend.base_url" {
		t.Errorf("expected backend.base_url error, got %q", vErr.Errors[0].Field)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, testConfigYAML)

	t.Setenv("CONDUIT_BACKEND_RESOURCE_GROUP", "team-a")
	t.Setenv("CONDUIT_DETECTION_TTL", "2m")
	t.Setenv("CONDUIT_STREAMING_FALLBACK_TO_MOCK", "true")
	t.Setenv("CONDUIT_STREAMING_TRUSTED_SOURCES", "backendTrueStream, directTrueStream")
	t.Setenv("CONDUIT_VENDORS_GOOGLE_BASE_URL", "https://google.example.com")
	t.Setenv("CONDUIT_TELEMETRY_LOGGING_LEVEL", "warn")
	t.Setenv("CONDUIT_AUDIT_RETENTION_DAYS", "not-a-number")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Backend.ResourceGroup != "team-a" {
		t.Errorf("expected resource group override, got %q", cfg.Backend.ResourceGroup)
	}
	if cfg.Detection.TTL != 2*time.Minute {
		t.Errorf("expected ttl override 2m, got %v", cfg.Detection.TTL)
	}
	if !cfg.Streaming.Preferences.MockFallback() {
		t.Error("expected fallback_to_mock env override to win over file")
	}
	if len(cfg.Streaming.TrustedSources) != 2 || cfg.Streaming.TrustedSources[1] != "directTrueStream" {
		t.Errorf("unexpected trusted sources: %v", cfg.Streaming.TrustedSources)
	}
	if cfg.Vendors["google"].BaseURL != "https://google.example.com" {
		t.Errorf("expected google base URL override, got %q", cfg.Vendors["google"].BaseURL)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Audit.RetentionDays != DefaultAuditRetentionDays {
		t.Errorf("expected unparsable override to be ignored, got %d", cfg.Audit.RetentionDays)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	path := writeConfig(t, testConfigYAML)
	t.Setenv("CONDUIT_AUDIT_MODE", "sometimes")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Fatal("expected validation error after invalid override")
	}
}

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default configuration should be valid: %v", err)
	}
	if cfg.Detection.TTL != DefaultDetectionTTL {
		t.Errorf("expected detection ttl %v, got %v", DefaultDetectionTTL, cfg.Detection.TTL)
	}
	if !cfg.Telemetry.Metrics.IsEnabled() {
		t.Error("expected metrics enabled by default")
	}
	if !cfg.Validation.ChunksEnabled() {
		t.Error("expected chunk validation enabled by default")
	}
}

func TestReloadConfig(t *testing.T) {
	path := writeConfig(t, testConfigYAML)

	configMutex.Lock()
	globalPath = path
	globalConfig = nil
	configMutex.Unlock()
	t.Cleanup(func() { SetConfig(nil) })

	cfg, err := ReloadConfig()
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if GetConfig() != cfg {
		t.Error("expected reloaded config to be installed globally")
	}

	if err := os.WriteFile(path, []byte("audit:\n  mode: bogus\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}
	if _, err := ReloadConfig(); err == nil {
		t.Fatal("expected reload of invalid file to fail")
	}
	if GetConfig() != cfg {
		t.Error("expected previous config to stay active after failed reload")
	}
}
