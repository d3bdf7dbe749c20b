package tokens

import (
	"strings"
	"testing"

	"mercator-hq/conduit/pkg/providers"
)

func TestSimpleEstimator_EstimateText(t *testing.T) {
	estimator := NewSimpleEstimator(map[string]float64{
		"gpt-4":   4.0,
		"claude":  3.5,
		"default": 4.0,
	})

	tests := []struct {
		name        string
		text        string
		model       string
		expectedMin int
		expectedMax int
	}{
		{
			name:        "empty text",
			text:        "",
			model:       "gpt-4",
			expectedMin: 0,
			expectedMax: 0,
		},
		{
			name:        "single character",
			text:        "a",
			model:       "gpt-4",
			expectedMin: 1,
			expectedMax: 1,
		},
		{
			name:        "short text gpt-4",
			text:        "Hello, world!",
			model:       "gpt-4",
			expectedMin: 2,
			expectedMax: 4,
		},
		{
			name:        "short text claude",
			text:        "Hello, world!",
			model:       "claude",
			expectedMin: 3,
			expectedMax: 5,
		},
		{
			name:        "medium text",
			text:        "This is a longer message that should result in more tokens being estimated for the request.",
			model:       "gpt-4",
			expectedMin: 20,
			expectedMax: 25,
		},
		{
			name:        "unknown model uses default",
			text:        "Hello, world!",
			model:       "unknown-model",
			expectedMin: 2,
			expectedMax: 4,
		},
		{
			name:        "model prefix match",
			text:        "Hello, world!",
			model:       "claude-3-5-sonnet",
			expectedMin: 3,
			expectedMax: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := estimator.EstimateText(tt.text, tt.model)
			if tokens < tt.expectedMin || tokens > tt.expectedMax {
				t.Errorf("expected tokens between %d and %d, got %d",
					tt.expectedMin, tt.expectedMax, tokens)
			}
		})
	}
}

func TestSimpleEstimator_EstimateMessages(t *testing.T) {
	estimator := NewSimpleEstimator(nil)

	tests := []struct {
		name        string
		messages    []providers.Message
		expectedMin int
		expectedMax int
	}{
		{
			name:        "no messages",
			messages:    nil,
			expectedMin: 0,
			expectedMax: 0,
		},
		{
			name: "single message",
			messages: []providers.Message{
				{Role: providers.RoleUser, Content: "Hello, how are you?"},
			},
			expectedMin: 10,
			expectedMax: 14,
		},
		{
			name: "system and user",
			messages: []providers.Message{
				{Role: providers.RoleSystem, Content: "You are a helpful assistant."},
				{Role: providers.RoleUser, Content: "What is the weather like today?"},
			},
			expectedMin: 20,
			expectedMax: 30,
		},
		{
			name: "image part",
			messages: []providers.Message{
				{Role: providers.RoleUser, Parts: []providers.ContentPart{
					providers.TextPart("What is this?"),
					providers.ImagePart("data:image/png;base64,AAAA"),
				}},
			},
			expectedMin: 1000,
			expectedMax: 1015,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := estimator.EstimateMessages(tt.messages, "gpt-4o")
			if tokens < tt.expectedMin || tokens > tt.expectedMax {
				t.Errorf("expected tokens between %d and %d, got %d",
					tt.expectedMin, tt.expectedMax, tokens)
			}
		})
	}
}

func TestEstimateUsage(t *testing.T) {
	messages := []providers.Message{{Role: providers.RoleUser, Content: "Hi"}}
	completion := strings.Repeat("word ", 40)

	usage := EstimateUsage(Default, messages, completion, "gpt-4o")

	if usage.PromptTokens == 0 || usage.CompletionTokens != 50 {
		t.Errorf("unexpected usage: %+v", usage)
	}
	if usage.TotalTokens != usage.PromptTokens+usage.CompletionTokens {
		t.Errorf("total %d is not the sum of its parts", usage.TotalTokens)
	}
}

func TestSimpleEstimator_LongestPrefixWins(t *testing.T) {
	e := NewSimpleEstimator(map[string]float64{"gpt": 4.0, "gpt-4o": 2.0})
	if got := e.charsPerToken("GPT-4o-mini"); got != 2.0 {
		t.Errorf("expected longest prefix ratio 2.0, got %v", got)
	}
}
