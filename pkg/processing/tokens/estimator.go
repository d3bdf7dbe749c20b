package tokens

import "mercator-hq/conduit/pkg/providers"

// Estimator estimates token counts for text and messages.
// Implementations may use different algorithms (character-based, BPE, tiktoken, etc.).
type Estimator interface {
	// EstimateText estimates tokens for a single text string.
	EstimateText(text string, model string) int

	// EstimateMessages estimates prompt tokens for a list of canonical
	// messages, including formatting overhead.
	EstimateMessages(messages []providers.Message, model string) int
}

// EstimateUsage builds a best-effort usage record for a completion produced
// from messages, for routes whose upstream reported no usage.
func EstimateUsage(e Estimator, messages []providers.Message, completion, model string) providers.TokenUsage {
	usage := providers.TokenUsage{
		PromptTokens:     e.EstimateMessages(messages, model),
		CompletionTokens: e.EstimateText(completion, model),
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	return usage
}

// Default is the estimator used when a component is not given one.
var Default Estimator = NewSimpleEstimator(nil)
