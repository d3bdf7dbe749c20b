package tokens

import (
	"strings"

	"mercator-hq/conduit/pkg/providers"
)

// DefaultCharsPerToken is the ratio used for models without a specific one.
const DefaultCharsPerToken = 4.0

// imageTokens is the flat estimate charged per image part.
const imageTokens = 1000

// DefaultRatios are the built-in characters-per-token ratios, matched by
// model-name prefix.
var DefaultRatios = map[string]float64{
	"claude":    3.5,
	"anthropic": 3.5,
	"gemini":    4.0,
	"gpt":       4.0,
}

// SimpleEstimator implements character-based token estimation.
// It uses model-specific characters-per-token ratios to estimate token counts.
type SimpleEstimator struct {
	// ratios maps model names or prefixes to characters per token
	ratios map[string]float64
}

// NewSimpleEstimator creates a character-based estimator. A nil ratios map
// selects DefaultRatios.
func NewSimpleEstimator(ratios map[string]float64) *SimpleEstimator {
	if ratios == nil {
		ratios = DefaultRatios
	}
	copied := make(map[string]float64, len(ratios))
	for k, v := range ratios {
		if v > 0 {
			copied[k] = v
		}
	}
	return &SimpleEstimator{ratios: copied}
}

// EstimateText estimates tokens for a single text string.
// Non-empty text is always at least one token.
func (e *SimpleEstimator) EstimateText(text string, model string) int {
	if text == "" {
		return 0
	}

	charCount := len([]rune(text))
	tokens := float64(charCount) / e.charsPerToken(model)
	if tokens < 1.0 {
		tokens = 1.0
	}
	return int(tokens + 0.5)
}

// EstimateMessages estimates prompt tokens for a list of messages.
func (e *SimpleEstimator) EstimateMessages(messages []providers.Message, model string) int {
	if len(messages) == 0 {
		return 0
	}

	total := 0
	for _, msg := range messages {
		// role
		total++

		for _, part := range msg.ContentParts() {
			switch part.Type {
			case providers.PartImage:
				total += imageTokens
			default:
				total += e.EstimateText(part.Text, model)
			}
		}

		// per-message formatting
		total += 3
	}

	// conversation framing
	return total + 3
}

// charsPerToken returns the ratio for model: exact match, then the longest
// matching prefix, then "default", then DefaultCharsPerToken.
func (e *SimpleEstimator) charsPerToken(model string) float64 {
	model = strings.ToLower(model)
	if ratio, ok := e.ratios[model]; ok {
		return ratio
	}

	best, bestLen := 0.0, 0
	for prefix, ratio := range e.ratios {
		if len(prefix) > bestLen && strings.HasPrefix(model, prefix) {
			best, bestLen = ratio, len(prefix)
		}
	}
	if bestLen > 0 {
		return best
	}
	if ratio, ok := e.ratios["default"]; ok {
		return ratio
	}
	return DefaultCharsPerToken
}
