package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/streaming"
	"mercator-hq/conduit/pkg/validation"
)

func TestPrefFlags_Apply(t *testing.T) {
	base := streaming.DefaultPreferences()

	tests := []struct {
		name string
		args []string
		want streaming.Preferences
	}{
		{
			name: "no flags keeps defaults",
			args: nil,
			want: base,
		},
		{
			name: "prefer direct",
			args: []string{"--prefer-direct"},
			want: streaming.Preferences{PreferDirectAPI: true, PreferTrueStreaming: true, FallbackToMock: true},
		},
		{
			name: "disable true streaming and fallback",
			args: []string{"--no-true-stream", "--no-fallback"},
			want: streaming.Preferences{},
		},
		{
			name: "cost optimization",
			args: []string{"--cost-optimize"},
			want: streaming.Preferences{PreferTrueStreaming: true, FallbackToMock: true, CostOptimization: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var flags prefFlags
			cmd := &cobra.Command{Use: "test"}
			flags.register(cmd)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("failed to parse flags: %v", err)
			}
			if got := flags.apply(cmd, base); got != tt.want {
				t.Errorf("apply() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPrefFlags_Messages(t *testing.T) {
	flags := prefFlags{system: "Be brief."}
	msgs := flags.messages("Hello")

	want := []providers.Message{
		{Role: providers.RoleSystem, Content: "Be brief."},
		{Role: providers.RoleUser, Content: "Hello"},
	}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i := range want {
		if msgs[i].Role != want[i].Role || msgs[i].Content != want[i].Content {
			t.Errorf("message %d = %+v, want %+v", i, msgs[i], want[i])
		}
	}

	if got := (&prefFlags{}).messages("Hi"); len(got) != 1 || got[0].Role != providers.RoleUser {
		t.Errorf("messages without system = %+v", got)
	}
}

func TestDecodeRaw(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want any
	}{
		{"object", `{"text":"hi"}`, map[string]any{"text": "hi"}},
		{"json string", `"hello"`, "hello"},
		{"plain text", "Just an answer.\n", "Just an answer.\n"},
		{"truncated json", `{"text":"hi"`, `{"text":"hi"`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeRaw([]byte(tt.in))
			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(tt.want)
			if string(gotJSON) != string(wantJSON) {
				t.Errorf("decodeRaw(%q) = %s, want %s", tt.in, gotJSON, wantJSON)
			}
		})
	}
}

func TestWriteValidation(t *testing.T) {
	v := validation.New(config.ValidationConfig{}, nil, nil)
	result := v.Validate("   ", "gpt-4o", "")

	buf := &bytes.Buffer{}
	if err := writeValidation(buf, result); err != nil {
		t.Fatalf("writeValidation() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"valid: false", "corrected: true", "issues: ", "correlation_id: "} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSummarize(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Models = map[string]config.ModelConfig{
		"gpt-4o":            {Provider: "openai", APIType: "provider", DeploymentID: "d1"},
		"claude-3-5-sonnet": {Provider: "anthropic", APIType: "direct"},
		"gemini-1.5-pro":    {Provider: "google", APIType: "direct", RequestFormat: "google-style"},
	}

	s, err := summarize(cfg)
	if err != nil {
		t.Fatalf("summarize() error = %v", err)
	}
	want := map[string]string{
		"claude-3-5-sonnet": string(providers.VendorAnthropic),
		"gemini-1.5-pro":    string(providers.VendorGoogle),
		"gpt-4o":            string(providers.VendorGeneric),
	}
	if len(s.Models) != len(want) {
		t.Fatalf("got %d models, want %d", len(s.Models), len(want))
	}
	if s.Models[0].Name != "claude-3-5-sonnet" {
		t.Errorf("models not sorted: %+v", s.Models)
	}
	for _, m := range s.Models {
		if m.Translator != want[m.Name] {
			t.Errorf("%s translator = %q, want %q", m.Name, m.Translator, want[m.Name])
		}
	}

	cfg.Models["broken"] = config.ModelConfig{Provider: "openai", APIType: "provider", RequestFormat: "xml"}
	_, err = summarize(cfg)
	var cfgErr *cli.ConfigError
	if !errors.As(err, &cfgErr) || cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("summarize() error = %v, want ConfigError", err)
	}
}

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "response.json")
	body := `{"choices":[{"message":{"content":"Paris."}}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write response: %v", err)
	}

	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"validate", "--model", "gpt-4o", "-o", "json", path})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		outputFormat = "text"
	}()

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	var result validation.Result
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode output %q: %v", buf.String(), err)
	}
	if !result.IsValid {
		t.Errorf("IsValid = false, issues %v", result.Issues)
	}
	if got := result.Response().Text; got != "Paris." {
		t.Errorf("text = %q, want %q", got, "Paris.")
	}
}
