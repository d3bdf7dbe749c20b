package generic

import (
	"errors"
	"testing"

	"github.com/tidwall/gjson"

	"mercator-hq/conduit/pkg/providers"
)

func TestBuildRequest_Passthrough(t *testing.T) {
	m := providers.ModelConfig{
		Name:     "llama-3",
		Provider: "openai",
		APIType:  providers.APITypeDirect,
		Endpoint: "http://localhost:11434/v1/",
	}
	req, err := New().BuildRequest("", m, []providers.Message{
		{Role: providers.RoleSystem, Content: "Be brief."},
		{Role: providers.RoleUser, Content: "Hi"},
	})
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}

	if req.URL != "http://localhost:11434/v1/chat/completions" {
		t.Errorf("URL = %q", req.URL)
	}
	body := gjson.ParseBytes(req.Body)
	if body.Get("model").String() != "llama-3" {
		t.Errorf("model = %q", body.Get("model").String())
	}
	roles := []string{body.Get("messages.0.role").String(), body.Get("messages.1.role").String()}
	if roles[0] != "system" || roles[1] != "user" {
		t.Errorf("roles = %v, want [system user]", roles)
	}
	if body.Get("stream").Exists() {
		t.Errorf("non-stream body has stream field: %s", req.Body)
	}
}

func TestBuildStreamRequest_Backend(t *testing.T) {
	m := providers.ModelConfig{Name: "gpt-4o", Provider: "openai", APIType: providers.APITypeProvider, DeploymentID: "d1"}
	req, err := New().BuildStreamRequest("https://api.ai.example.com", m, []providers.Message{
		{Role: providers.RoleUser, Content: "Hi"},
	})
	if err != nil {
		t.Fatalf("BuildStreamRequest() error = %v", err)
	}

	want := "https://api.ai.example.com/v2/inference/deployments/d1/chat/completions?api-version=" + DefaultBackendAPIVersion
	if req.URL != want {
		t.Errorf("URL = %q, want %q", req.URL, want)
	}
	body := gjson.ParseBytes(req.Body)
	if !body.Get("stream").Bool() || !body.Get("stream_options.include_usage").Bool() {
		t.Errorf("stream body = %s", req.Body)
	}
	if body.Get("model").Exists() {
		t.Errorf("backend body carries model: %s", req.Body)
	}
}

func TestBuildRequest_DirectWithoutEndpoint(t *testing.T) {
	m := providers.ModelConfig{Name: "local", Provider: "openai", APIType: providers.APITypeDirect}
	_, err := New().BuildRequest("", m, []providers.Message{{Role: providers.RoleUser, Content: "Hi"}})

	var cfgErr *providers.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "endpoint" {
		t.Errorf("error = %v, want ConfigurationError on endpoint", err)
	}
}

func TestBuildRequest_ImageParts(t *testing.T) {
	m := providers.ModelConfig{Name: "gpt-4o", APIType: providers.APITypeDirect, Endpoint: "https://api.openai.com/v1"}
	req, err := New().BuildRequest("", m, []providers.Message{{
		Role: providers.RoleUser,
		Parts: []providers.ContentPart{
			providers.TextPart("Look"),
			providers.ImagePart("data:image/png;base64,aGVsbG8="),
			providers.ImagePart("data:image/tiff;base64,aGVsbG8="),
			providers.ImagePart("https://example.com/cat.png"),
			providers.ImagePart("ftp://example.com/cat.png"),
		},
	}})
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}

	parts := gjson.GetBytes(req.Body, "messages.0.content").Array()
	if len(parts) != 5 {
		t.Fatalf("got %d parts, want 5", len(parts))
	}
	if parts[3].Get("type").String() != "image_url" || parts[3].Get("image_url.url").String() != "https://example.com/cat.png" {
		t.Errorf("remote image part = %s", parts[3].Raw)
	}
	if parts[4].Get("text").String() != "[image omitted: remote reference]" {
		t.Errorf("unsupported scheme placeholder = %s", parts[4].Raw)
	}
	if parts[1].Get("image_url.url").String() != "data:image/png;base64,aGVsbG8=" {
		t.Errorf("image part = %s", parts[1].Raw)
	}
	if parts[2].Get("text").String() != "[image omitted: image/tiff]" {
		t.Errorf("placeholder = %s", parts[2].Raw)
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantText  string
		wantUsage providers.TokenUsage
	}{
		{
			name:      "chat choices",
			body:      `{"choices":[{"message":{"content":"Paris."},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
			wantText:  "Paris.",
			wantUsage: providers.TokenUsage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7},
		},
		{
			name:     "legacy completion",
			body:     `{"choices":[{"text":"old"}]}`,
			wantText: "old",
		},
		{
			name:     "output text",
			body:     `{"output_text":"responses api"}`,
			wantText: "responses api",
		},
		{
			name:     "null content",
			body:     `{"choices":[{"message":{"content":null}}]}`,
			wantText: providers.NoResponseText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New().ParseResponse([]byte(tt.body))
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
			if got.Usage != tt.wantUsage {
				t.Errorf("Usage = %+v, want %+v", got.Usage, tt.wantUsage)
			}
		})
	}
}

func TestDecodeStreamEvent(t *testing.T) {
	tr := New()

	d := tr.DecodeStreamEvent(providers.SSEEvent{Data: []byte(`{"choices":[{"delta":{"content":"Hel"}}]}`)})
	if d.Text != "Hel" || d.Done {
		t.Errorf("delta event = %+v", d)
	}

	d = tr.DecodeStreamEvent(providers.SSEEvent{Data: []byte(`{"choices":[],"usage":{"prompt_tokens":3,"completion_tokens":4}}`)})
	if d.Usage == nil || *d.Usage != (providers.TokenUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7}) {
		t.Errorf("usage event = %+v", d.Usage)
	}

	d = tr.DecodeStreamEvent(providers.SSEEvent{Data: []byte("[DONE]")})
	if !d.Done {
		t.Error("[DONE] did not end the stream")
	}

	d = tr.DecodeStreamEvent(providers.SSEEvent{Data: []byte(`{"error":{"message":"rate limited"}}`)})
	if d.Err == nil {
		t.Error("in-band error not reported")
	}
}

func TestAuthorize(t *testing.T) {
	req := &providers.VendorRequest{}
	New().Authorize(req, "sk-test")
	if req.Headers["Authorization"] != "Bearer sk-test" {
		t.Errorf("Authorization = %q", req.Headers["Authorization"])
	}
}
