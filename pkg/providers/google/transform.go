package google

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"mercator-hq/conduit/pkg/providers"
)

// DefaultBaseURL is the public generateContent host.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Request is the generateContent request body.
type Request struct {
	Contents []Content `json:"contents"`
}

// Content is a role plus its parts.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is a text or inline image part.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

// InlineData carries a base64 image.
type InlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Translator implements providers.Translator for Google-style vendors.
//
// The backend's Google deployments have no per-turn role model, so every
// message (system included) is merged in order into a single user content
// with one parts array.
type Translator struct{}

// New returns a Google-style translator.
func New() *Translator {
	return &Translator{}
}

// Kind implements providers.Translator.
func (t *Translator) Kind() providers.VendorKind {
	return providers.VendorGoogle
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
	method := ":generateContent"
	if stream {
		method = ":streamGenerateContent?alt=sse"
	}

	var url string
	if model.APIType == providers.APITypeDirect {
		base := model.Endpoint
		if base == "" {
			base = baseURL
		}
		if base == "" {
			base = DefaultBaseURL
		}
		url = providers.JoinURL(base, "/v1beta/models/"+model.ModelID()+method)
	} else {
		if baseURL == "" {
			return nil, &providers.ConfigurationError{Vendor: string(providers.VendorGoogle), Field: "base_url", Message: "backend base URL is required"}
		}
		if model.DeploymentID == "" {
			return nil, &providers.ConfigurationError{Vendor: string(providers.VendorGoogle), Field: "deployment_id", Message: fmt.Sprintf("no deployment for model %q", model.Name)}
		}
		url = providers.JoinURL(baseURL, "/v2/inference/deployments/"+model.DeploymentID+"/models/"+model.ModelID()+method)
	}

	req := Request{Contents: []Content{{Role: "user", Parts: mergeParts(messages)}}}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal google request: %w", err)
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
	req.SetHeader("x-goog-api-key", apiKey)
}

// mergeParts flattens all messages into one ordered parts array.
func mergeParts(messages []providers.Message) []Part {
	parts := make([]Part, 0, len(messages))
	for _, msg := range messages {
		for _, p := range msg.ContentParts() {
			if p.Type != providers.PartImage {
				parts = append(parts, Part{Text: p.Text})
				continue
			}
			img, ok := providers.ParseDataURI(p.ImageURL)
			if !ok {
				parts = append(parts, Part{Text: providers.ImagePlaceholder(p.ImageURL)})
				continue
			}
			parts = append(parts, Part{InlineData: &InlineData{MimeType: img.MediaType, Data: img.Data}})
		}
	}
	return parts
}

// ParseResponse implements providers.Translator. Shapes are tried in order:
// candidate content parts, candidate output, prediction content, bare text.
func (t *Translator) ParseResponse(body []byte) providers.ParsedResponse {
	if !gjson.ValidBytes(body) {
		return providers.ParsedResponse{Text: providers.NoResponseText}
	}
	root := gjson.ParseBytes(body)

	out := providers.ParsedResponse{
		Usage:        parseUsage(root.Get("usageMetadata")),
		FinishReason: root.Get("candidates.0.finishReason").String(),
	}

	switch {
	case root.Get("candidates.0.content.parts").IsArray():
		out.Text = joinParts(root.Get("candidates.0.content.parts"))
	case root.Get("candidates.0.output").Type == gjson.String:
		out.Text = root.Get("candidates.0.output").String()
	case root.Get("predictions.0.content").Type == gjson.String:
		out.Text = root.Get("predictions.0.content").String()
	case root.Get("text").Type == gjson.String:
		out.Text = root.Get("text").String()
	}

	if out.Text == "" {
		out.Text = providers.NoResponseText
	}
	return out
}

func joinParts(parts gjson.Result) string {
	var sb strings.Builder
	for _, p := range parts.Array() {
		// thought parts are internal reasoning, not answer text
		if p.Get("thought").Bool() {
			continue
		}
		sb.WriteString(p.Get("text").String())
	}
	return sb.String()
}

func parseUsage(u gjson.Result) providers.TokenUsage {
	usage := providers.TokenUsage{
		PromptTokens:     int(u.Get("promptTokenCount").Int()),
		CompletionTokens: int(u.Get("candidatesTokenCount").Int()),
		TotalTokens:      int(u.Get("totalTokenCount").Int()),
	}
	if usage.TotalTokens < usage.PromptTokens+usage.CompletionTokens {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}
