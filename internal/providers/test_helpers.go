package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"mercator-hq/conduit/pkg/providers"
)

// TestMessage creates a text message.
func TestMessage(role, content string) providers.Message {
	return providers.Message{Role: role, Content: content}
}

// TestModel returns a model configuration for tests.
func TestModel(name, format, apiType string) providers.ModelConfig {
	provider := "openai"
	switch format {
	case providers.FormatAnthropic:
		provider = "anthropic"
	case providers.FormatGoogle:
		provider = "google"
	}
	return providers.ModelConfig{
		Name:          name,
		Provider:      provider,
		APIType:       apiType,
		RequestFormat: format,
	}
}

// StaticTokens is a token source that always returns the same token and
// counts calls.
type StaticTokens struct {
	Token string
	Err   error
	calls atomic.Int32
}

// AccessToken returns the static token.
func (s *StaticTokens) AccessToken(ctx context.Context) (string, error) {
	s.calls.Add(1)
	if s.Err != nil {
		return "", s.Err
	}
	return s.Token, nil
}

// Calls returns how many tokens were requested.
func (s *StaticTokens) Calls() int {
	return int(s.calls.Load())
}

// StaticKeys is a vendor key lookup backed by a map.
type StaticKeys map[string]string

// APIKey returns the key configured for vendor.
func (k StaticKeys) APIKey(ctx context.Context, vendor string) (string, bool) {
	v, ok := k[vendor]
	return v, ok && v != ""
}

// MockAnthropicResponse creates an Anthropic messages response.
func MockAnthropicResponse(content string) map[string]any {
	return map[string]any{
		"id":          "msg_123",
		"type":        "message",
		"role":        "assistant",
		"content":     []map[string]any{{"type": "text", "text": content}},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 20},
	}
}

// MockGoogleResponse creates a generateContent response.
func MockGoogleResponse(content string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"role": "model", "parts": []map[string]any{{"text": content}}},
			"finishReason": "STOP",
		}},
		"usageMetadata": map[string]any{"promptTokenCount": 10, "candidatesTokenCount": 20, "totalTokenCount": 30},
	}
}

// MockChatResponse creates an OpenAI-style chat completion response.
func MockChatResponse(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-123",
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	}
}

// AnthropicStreamEvents builds a Messages API event stream emitting texts.
func AnthropicStreamEvents(texts ...string) []string {
	events := []string{
		anthropicEvent("message_start", map[string]any{
			"type":    "message_start",
			"message": map[string]any{"usage": map[string]any{"input_tokens": 10, "output_tokens": 1}},
		}),
	}
	for _, text := range texts {
		events = append(events, anthropicEvent("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]any{"type": "text_delta", "text": text},
		}))
	}
	events = append(events,
		anthropicEvent("message_delta", map[string]any{
			"type":  "message_delta",
			"delta": map[string]any{"stop_reason": "end_turn"},
			"usage": map[string]any{"output_tokens": 20},
		}),
		anthropicEvent("message_stop", map[string]any{"type": "message_stop"}),
	)
	return events
}

func anthropicEvent(eventType string, data any) string {
	b, _ := json.Marshal(data)
	return fmt.Sprintf("event: %s\ndata: %s", eventType, b)
}

// GoogleStreamEvents builds a streamGenerateContent SSE stream emitting texts.
func GoogleStreamEvents(texts ...string) []string {
	events := make([]string, 0, len(texts))
	for i, text := range texts {
		chunk := map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"role": "model", "parts": []map[string]any{{"text": text}}},
			}},
		}
		if i == len(texts)-1 {
			chunk["candidates"].([]map[string]any)[0]["finishReason"] = "STOP"
			chunk["usageMetadata"] = map[string]any{"promptTokenCount": 10, "candidatesTokenCount": 20, "totalTokenCount": 30}
		}
		b, _ := json.Marshal(chunk)
		events = append(events, string(b))
	}
	return events
}

// ChatStreamEvents builds an OpenAI-style chunk stream emitting texts,
// followed by a usage-only chunk. The caller's MockResponse adds [DONE].
func ChatStreamEvents(texts ...string) []string {
	events := make([]string, 0, len(texts)+1)
	for i, text := range texts {
		finish := any(nil)
		if i == len(texts)-1 {
			finish = "stop"
		}
		b, _ := json.Marshal(map[string]any{
			"object":  "chat.completion.chunk",
			"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": text}, "finish_reason": finish}},
		})
		events = append(events, string(b))
	}
	b, _ := json.Marshal(map[string]any{
		"object":  "chat.completion.chunk",
		"choices": []any{},
		"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	})
	return append(events, string(b))
}

// MockErrorResponse creates an error response.
func MockErrorResponse(statusCode int, message string) MockResponse {
	return MockResponse{
		StatusCode: statusCode,
		Body: map[string]any{
			"error": map[string]any{"message": message, "code": statusCode},
		},
	}
}

// MockServerError creates a 500 internal server error response.
func MockServerError() MockResponse {
	return MockErrorResponse(http.StatusInternalServerError, "Internal server error")
}

// ExpectHeader checks that a header contains value.
func ExpectHeader(h http.Header, key, value string) error {
	actual := h.Get(key)
	if !strings.Contains(actual, value) {
		return fmt.Errorf("header %q mismatch: expected %q, got %q", key, value, actual)
	}
	return nil
}
