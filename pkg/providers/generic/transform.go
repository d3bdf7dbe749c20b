package generic

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"mercator-hq/conduit/pkg/providers"
)

// DefaultBackendAPIVersion is the api-version query parameter the backend's
// chat/completions deployments expect.
const DefaultBackendAPIVersion = "2024-02-01"

// Request is an OpenAI-style chat completion request.
type Request struct {
	Model         string         `json:"model,omitempty"`
	Messages      []Message      `json:"messages"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`
}

// StreamOptions asks for a trailing usage event.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// Message is one chat message; Content is a string or []ContentPart.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is an OpenAI-style content part.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image by URL or data-URI.
type ImageURL struct {
	URL string `json:"url"`
}

// Translator implements providers.Translator for OpenAI-compatible vendors.
// Messages pass through with their roles unchanged.
type Translator struct{}

// New returns a generic passthrough translator.
func New() *Translator {
	return &Translator{}
}

// Kind implements providers.Translator.
func (t *Translator) Kind() providers.VendorKind {
	return providers.VendorGeneric
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
	req := Request{Messages: transformMessages(messages)}
	if stream {
		req.Stream = true
		req.StreamOptions = &StreamOptions{IncludeUsage: true}
	}

	var url string
	if model.APIType == providers.APITypeDirect {
		base := model.Endpoint
		if base == "" {
			base = baseURL
		}
		if base == "" {
			return nil, &providers.ConfigurationError{
				Vendor:  model.Provider,
				Field:   "endpoint",
				Message: fmt.Sprintf("model %q has no endpoint and generic vendors have no default", model.Name),
			}
		}
		url = providers.JoinURL(base, "/chat/completions")
		req.Model = model.ModelID()
	} else {
		if baseURL == "" {
			return nil, &providers.ConfigurationError{Vendor: model.Provider, Field: "base_url", Message: "backend base URL is required"}
		}
		if model.DeploymentID == "" {
			return nil, &providers.ConfigurationError{Vendor: model.Provider, Field: "deployment_id", Message: fmt.Sprintf("no deployment for model %q", model.Name)}
		}
		version := model.APIVersion
		if version == "" {
			version = DefaultBackendAPIVersion
		}
		url = providers.JoinURL(baseURL, "/v2/inference/deployments/"+model.DeploymentID+"/chat/completions?api-version="+version)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}
	body = providers.MergeDefaults(body, model.Defaults)

	headers := map[string]string{"Content-Type": "application/json"}
	if stream {
		headers["Accept"] = "text/event-stream"
	}
	return &providers.VendorRequest{URL: url, Body: body, Headers: headers}, nil
}

// Authorize implements providers.Translator.
func (t *Translator) Authorize(req *providers.VendorRequest, apiKey string) {
	req.SetHeader("Authorization", "Bearer "+apiKey)
}

func transformMessages(messages []providers.Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if len(msg.Parts) == 0 {
			out = append(out, Message{Role: msg.Role, Content: msg.Content})
			continue
		}

		parts := make([]ContentPart, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			if p.Type != providers.PartImage {
				parts = append(parts, ContentPart{Type: "text", Text: p.Text})
				continue
			}
			if isRemoteURL(p.ImageURL) {
				parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: p.ImageURL}})
				continue
			}
			img, ok := providers.ParseDataURI(p.ImageURL)
			if !ok {
				parts = append(parts, ContentPart{Type: "text", Text: providers.ImagePlaceholder(p.ImageURL)})
				continue
			}
			uri := "data:" + img.MediaType + ";base64," + img.Data
			parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: uri}})
		}
		out = append(out, Message{Role: msg.Role, Content: parts})
	}
	return out
}

// isRemoteURL reports whether uri is an http(s) image reference, which
// OpenAI-compatible vendors fetch themselves.
func isRemoteURL(uri string) bool {
	scheme, _, ok := strings.Cut(uri, "://")
	if !ok {
		return false
	}
	scheme = strings.ToLower(scheme)
	return scheme == "http" || scheme == "https"
}

// ParseResponse implements providers.Translator. Shapes are tried in order:
// chat choices, legacy completion choices, bare output_text, bare text.
func (t *Translator) ParseResponse(body []byte) providers.ParsedResponse {
	if !gjson.ValidBytes(body) {
		return providers.ParsedResponse{Text: providers.NoResponseText}
	}
	root := gjson.ParseBytes(body)

	out := providers.ParsedResponse{
		Usage:        parseUsage(root.Get("usage")),
		FinishReason: root.Get("choices.0.finish_reason").String(),
	}

	switch {
	case root.Get("choices.0.message.content").Type == gjson.String:
		out.Text = root.Get("choices.0.message.content").String()
	case root.Get("choices.0.text").Type == gjson.String:
		out.Text = root.Get("choices.0.text").String()
	case root.Get("output_text").Type == gjson.String:
		out.Text = root.Get("output_text").String()
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
		PromptTokens:     int(u.Get("prompt_tokens").Int()),
		CompletionTokens: int(u.Get("completion_tokens").Int()),
		TotalTokens:      int(u.Get("total_tokens").Int()),
	}
	if usage.TotalTokens < usage.PromptTokens+usage.CompletionTokens {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

// DecodeStreamEvent implements providers.Translator. The stream ends with a
// [DONE] sentinel; usage arrives on a trailing event with no choices.
func (t *Translator) DecodeStreamEvent(event providers.SSEEvent) providers.StreamDelta {
	if event.IsDone() {
		return providers.StreamDelta{Done: true}
	}
	if !gjson.ValidBytes(event.Data) {
		return providers.StreamDelta{}
	}
	data := gjson.ParseBytes(event.Data)

	if msg := data.Get("error.message"); msg.Exists() {
		return providers.StreamDelta{Err: errors.New(msg.String())}
	}

	d := providers.StreamDelta{
		Text:         data.Get("choices.0.delta.content").String(),
		FinishReason: data.Get("choices.0.finish_reason").String(),
	}
	if u := data.Get("usage"); u.IsObject() {
		usage := parseUsage(u)
		d.Usage = &usage
	}
	return d
}
