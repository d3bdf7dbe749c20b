package providers

import "strings"

// Role constants for canonical messages. The role set is closed.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ValidRole reports whether role is one of the canonical roles.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Content part types.
const (
	PartText  = "text"
	PartImage = "image"
)

// ContentPart is one ordered element of a multi-part message.
type ContentPart struct {
	// Type is PartText or PartImage
	Type string `json:"type"`

	// Text holds the text for PartText parts
	Text string `json:"text,omitempty"`

	// ImageURL holds a data-URI (or remote URL) for PartImage parts
	ImageURL string `json:"image_url,omitempty"`
}

// TextPart returns a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart returns an image content part referencing a data-URI.
func ImagePart(uri string) ContentPart {
	return ContentPart{Type: PartImage, ImageURL: uri}
}

// Message is the provider-agnostic request representation consumed by translators.
// Content is either plain text or an ordered list of parts; when Parts is
// non-empty it takes precedence over Content.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant
	Role string `json:"role"`

	// Content is the plain-text content
	Content string `json:"content,omitempty"`

	// Parts is the ordered multi-part content
	Parts []ContentPart `json:"parts,omitempty"`
}

// ContentParts returns the message content as an ordered part list.
func (m Message) ContentParts() []ContentPart {
	if len(m.Parts) > 0 {
		return m.Parts
	}
	return []ContentPart{TextPart(m.Content)}
}

// Text returns the concatenated text of all text parts.
func (m Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// TokenUsage reports token consumption for one response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Merge overlays the non-zero fields of other onto u and keeps TotalTokens
// at least the sum of its parts. Vendors report usage piecemeal across
// stream events, so later values replace earlier ones.
func (u *TokenUsage) Merge(other TokenUsage) {
	if other.PromptTokens > 0 {
		u.PromptTokens = other.PromptTokens
	}
	if other.CompletionTokens > 0 {
		u.CompletionTokens = other.CompletionTokens
	}
	if other.TotalTokens > 0 {
		u.TotalTokens = other.TotalTokens
	}
	if u.TotalTokens < u.PromptTokens+u.CompletionTokens {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
}

// ParsedResponse is the structurally valid result of parsing a vendor body.
type ParsedResponse struct {
	Text         string     `json:"text"`
	Usage        TokenUsage `json:"usage"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// NoResponseText is returned by translators when no known response shape matched.
const NoResponseText = "No response"

// StreamChunk is one element of a chunk sequence. Exactly one chunk with
// Finished set closes a sequence, and only that chunk carries Usage.
type StreamChunk struct {
	// Delta is the incremental text
	Delta string `json:"delta"`

	// Finished marks the terminal chunk
	Finished bool `json:"finished"`

	// Usage is set on the terminal chunk only
	Usage *TokenUsage `json:"usage,omitempty"`

	// FinishReason is the vendor stop reason on the terminal chunk, if known
	FinishReason string `json:"finish_reason,omitempty"`
}

// StreamDelta is the decoded content of a single vendor stream event.
type StreamDelta struct {
	// Text is the text carried by the event (may be empty)
	Text string

	// Done is set when the event ends the vendor stream
	Done bool

	// Usage is any usage the event reports; merged into the terminal chunk
	Usage *TokenUsage

	// FinishReason is the vendor stop reason if the event reports one
	FinishReason string

	// Err is set when the vendor reports an error in-band
	Err error
}

// API types for ModelConfig.
const (
	// APITypeProvider routes through the primary inference backend
	APITypeProvider = "provider"

	// APITypeDirect calls the vendor's own public endpoint
	APITypeDirect = "direct"
)

// Request formats for ModelConfig.
const (
	FormatAnthropic = "anthropic-style"
	FormatGoogle    = "google-style"
	FormatGeneric   = "generic"
)

// ModelConfig is the resolved configuration for one model.
type ModelConfig struct {
	// Name is the model key callers use
	Name string `json:"name" yaml:"name"`

	// Provider is the vendor family ("anthropic", "google", "openai", ...)
	Provider string `json:"provider" yaml:"provider"`

	// APIType is APITypeProvider or APITypeDirect
	APIType string `json:"api_type" yaml:"api_type"`

	// Endpoint overrides the vendor base URL for direct calls
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint"`

	// RequestFormat selects the translator
	RequestFormat string `json:"request_format" yaml:"request_format"`

	// DeploymentID is the backend deployment serving the model
	DeploymentID string `json:"deployment_id,omitempty" yaml:"deployment_id"`

	// VendorModel is the vendor-side model identifier (defaults to Name)
	VendorModel string `json:"vendor_model,omitempty" yaml:"vendor_model"`

	// APIVersion is a vendor API version header value, if the vendor needs one
	APIVersion string `json:"api_version,omitempty" yaml:"api_version"`

	// Defaults are per-model request body fields merged into every request
	Defaults map[string]any `json:"defaults,omitempty" yaml:"defaults"`
}

// ModelID returns the identifier sent to the vendor.
func (c ModelConfig) ModelID() string {
	if c.VendorModel != "" {
		return c.VendorModel
	}
	return c.Name
}

// VendorRequest is a fully built upstream request.
type VendorRequest struct {
	Method  string
	URL     string
	Body    []byte
	Headers map[string]string
}

// SetHeader sets a header, allocating the map when needed.
func (r *VendorRequest) SetHeader(key, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
}
