package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"mercator-hq/conduit/pkg/providers"
)

const (
	// DefaultBaseURL is the public Messages API host.
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultAPIVersion is sent as the anthropic-version header on direct calls.
	DefaultAPIVersion = "2023-06-01"

	// BackendAPIVersion is the body-level version the backend's invoke endpoint expects.
	BackendAPIVersion = "bedrock-2023-05-31"

	// DefaultMaxTokens is required by the Messages API.
	DefaultMaxTokens = 4096
)

// Request is the Messages API request body.
type Request struct {
	Model            string    `json:"model,omitempty"`
	AnthropicVersion string    `json:"anthropic_version,omitempty"`
	System           string    `json:"system,omitempty"`
	Messages         []Message `json:"messages"`
	MaxTokens        int       `json:"max_tokens"`
	Stream           bool      `json:"stream,omitempty"`
}

// Message is one turn; Content is a string or []ContentBlock.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentBlock is a text or image block.
type ContentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource is an inline base64 image.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// Translator implements providers.Translator for Anthropic-style vendors.
type Translator struct{}

// New returns an Anthropic-style translator.
func New() *Translator {
	return &Translator{}
}

// Kind implements providers.Translator.
func (t *Translator) Kind() providers.VendorKind {
	return providers.VendorAnthropic
}

// BuildRequest implements providers.Translator.
func (t *Translator) BuildRequest(baseURL string, model providers.ModelConfig, messages []providers.Message) (*providers.VendorRequest, error) {
	return t.build(baseURL, model, messages, false)
}

// BuildStreamRequest implements providers.Translator.
func (t *Translator) BuildStreamRequest(baseURL string, model providers.ModelConfig, messages []providers.Message) (*providers.VendorRequest, error) {
	return t.build(baseURL, model, messages, true)
}

func (t *Translator) build(baseURL string, model providers.ModelConfig, messages []providers.Message, stream bool) (*providers.VendorRequest, error) {
	system, turns := transformMessages(messages)
	req := Request{
		System:    system,
		Messages:  turns,
		MaxTokens: DefaultMaxTokens,
	}

	var url string
	headers := map[string]string{"Content-Type": "application/json"}

	if model.APIType == providers.APITypeDirect {
		base := model.Endpoint
		if base == "" {
			base = baseURL
		}
		if base == "" {
			base = DefaultBaseURL
		}
		url = providers.JoinURL(base, "/v1/messages")
		req.Model = model.ModelID()
		req.Stream = stream

		version := model.APIVersion
		if version == "" {
			version = DefaultAPIVersion
		}
		headers["anthropic-version"] = version
	} else {
		if baseURL == "" {
			return nil, &providers.ConfigurationError{Vendor: string(providers.VendorAnthropic), Field: "base_url", Message: "backend base URL is required"}
		}
		if model.DeploymentID == "" {
			return nil, &providers.ConfigurationError{Vendor: string(providers.VendorAnthropic), Field: "deployment_id", Message: fmt.Sprintf("no deployment for model %q", model.Name)}
		}
		path := "/invoke"
		if stream {
			path = "/invoke-with-response-stream"
		}
		url = providers.JoinURL(baseURL, "/v2/inference/deployments/"+model.DeploymentID+path)
		req.AnthropicVersion = BackendAPIVersion
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal anthropic request: %w", err)
	}
	body = providers.MergeDefaults(body, model.Defaults)

	if stream {
		headers["Accept"] = "text/event-stream"
	}

	return &providers.VendorRequest{URL: url, Body: body, Headers: headers}, nil
}

// Authorize implements providers.Translator.
func (t *Translator) Authorize(req *providers.VendorRequest, apiKey string) {
	req.SetHeader("x-api-key", apiKey)
}

// transformMessages lifts system messages into the top-level system field
// and merges consecutive turns with the same role, which the Messages API
// rejects.
func transformMessages(messages []providers.Message) (string, []Message) {
	var system []string
	turns := make([]Message, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == providers.RoleSystem {
			if text := msg.Text(); text != "" {
				system = append(system, text)
			}
			continue
		}

		var content any = msg.Content
		if len(msg.Parts) > 0 {
			content = transformParts(msg.Parts)
		}

		if n := len(turns); n > 0 && turns[n-1].Role == msg.Role {
			turns[n-1].Content = append(asBlocks(turns[n-1].Content), asBlocks(content)...)
			continue
		}
		turns = append(turns, Message{Role: msg.Role, Content: content})
	}

	return strings.Join(system, "\n\n"), turns
}

// transformParts maps content parts to blocks; unsupported images become a
// text placeholder.
func transformParts(parts []providers.ContentPart) []ContentBlock {
	blocks := make([]ContentBlock, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case providers.PartImage:
			img, ok := providers.ParseDataURI(p.ImageURL)
			if !ok {
				blocks = append(blocks, ContentBlock{Type: "text", Text: providers.ImagePlaceholder(p.ImageURL)})
				continue
			}
			blocks = append(blocks, ContentBlock{
				Type:   "image",
				Source: &ImageSource{Type: "base64", MediaType: img.MediaType, Data: img.Data},
			})
		default:
			blocks = append(blocks, ContentBlock{Type: "text", Text: p.Text})
		}
	}
	return blocks
}

func asBlocks(content any) []ContentBlock {
	switch c := content.(type) {
	case []ContentBlock:
		return c
	case string:
		return []ContentBlock{{Type: "text", Text: c}}
	}
	return nil
}

// ParseResponse implements providers.Translator. Shapes are tried in order:
// Messages API content blocks, legacy completion, OpenAI-compatible choices,
// bare text.
func (t *Translator) ParseResponse(body []byte) providers.ParsedResponse {
	if !gjson.ValidBytes(body) {
		return providers.ParsedResponse{Text: providers.NoResponseText}
	}
	root := gjson.ParseBytes(body)

	out := providers.ParsedResponse{
		Usage:        parseUsage(root.Get("usage")),
		FinishReason: root.Get("stop_reason").String(),
	}

	switch {
	case root.Get("content").IsArray():
		var sb strings.Builder
		for _, block := range root.Get("content").Array() {
			if typ := block.Get("type").String(); typ == "text" || typ == "" {
				sb.WriteString(block.Get("text").String())
			}
		}
		out.Text = sb.String()
	case root.Get("completion").Type == gjson.String:
		out.Text = root.Get("completion").String()
	case root.Get("choices.0.message.content").Type == gjson.String:
		out.Text = root.Get("choices.0.message.content").String()
		out.FinishReason = root.Get("choices.0.finish_reason").String()
	case root.Get("text").Type == gjson.String:
		out.Text = root.Get("text").String()
	}

	if out.Text == "" {
		out.Text = providers.NoResponseText
	}
	return out
}

func parseUsage(u gjson.Result) providers.TokenUsage {
	usage := providers.TokenUsage{
		PromptTokens:     int(u.Get("input_tokens").Int()),
		CompletionTokens: int(u.Get("output_tokens").Int()),
	}
	if usage.PromptTokens == 0 {
		usage.PromptTokens = int(u.Get("prompt_tokens").Int())
	}
	if usage.CompletionTokens == 0 {
		usage.CompletionTokens = int(u.Get("completion_tokens").Int())
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	return usage
}
