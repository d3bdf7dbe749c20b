package providerfactory

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"mercator-hq/conduit/pkg/providers"
)

// sentText extracts the text of the first message a translator put on the wire.
func sentText(kind providers.VendorKind, body []byte) string {
	var content gjson.Result
	switch kind {
	case providers.VendorGoogle:
		content = gjson.GetBytes(body, "contents.0.parts")
	default:
		content = gjson.GetBytes(body, "messages.0.content")
	}
	if !content.IsArray() {
		return content.String()
	}
	var sb strings.Builder
	for _, part := range content.Array() {
		sb.WriteString(part.Get("text").String())
	}
	return sb.String()
}

// echo wraps text in the response shape of kind.
func echo(t *testing.T, kind providers.VendorKind, text string) []byte {
	t.Helper()
	var v any
	switch kind {
	case providers.VendorAnthropic:
		v = map[string]any{
			"content":     []any{map[string]any{"type": "text", "text": text}},
			"stop_reason": "end_turn",
		}
	case providers.VendorGoogle:
		v = map[string]any{
			"candidates": []any{map[string]any{
				"content":      map[string]any{"parts": []any{map[string]any{"text": text}}},
				"finishReason": "STOP",
			}},
		}
	default:
		v = map[string]any{
			"choices": []any{map[string]any{
				"message": map[string]any{"role": "assistant", "content": text},
			}},
		}
	}
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal echo: %v", err)
	}
	return body
}

func TestTranslators_TextRoundTrip(t *testing.T) {
	texts := []string{
		"Hi",
		"What is the capital of France?",
		"line one\nline two\n\ttabbed",
		`quotes "inside" and {braces}, [brackets]`,
		"unicode: héllo wörld 日本語 🚀",
		"  leading and trailing spaces  ",
	}

	for _, kind := range providers.VendorKinds() {
		tr, err := NewTranslator(kind)
		if err != nil {
			t.Fatalf("NewTranslator(%q) error = %v", kind, err)
		}
		model := providers.ModelConfig{
			Name:     "roundtrip",
			Provider: string(kind),
			APIType:  providers.APITypeDirect,
			Endpoint: "http://vendor.invalid/v1",
		}

		for _, text := range texts {
			t.Run(string(kind)+"/"+text, func(t *testing.T) {
				req, err := tr.BuildRequest("", model, []providers.Message{
					{Role: providers.RoleUser, Content: text},
				})
				if err != nil {
					t.Fatalf("BuildRequest() error = %v", err)
				}

				sent := sentText(kind, req.Body)
				if sent != text {
					t.Fatalf("request carries %q, want %q", sent, text)
				}

				parsed := tr.ParseResponse(echo(t, kind, sent))
				if parsed.Text != text {
					t.Errorf("ParseResponse().Text = %q, want %q", parsed.Text, text)
				}
			})
		}
	}
}
