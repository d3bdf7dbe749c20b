// Package tokens provides character-based token estimation.
//
// Estimates are used wherever an upstream reports no usage: the terminal
// chunk of a synthesized mock stream and vendor streams that end without a
// usage event. Ratios are characters per token, matched by model-name prefix:
//
//   - Claude: ~3.5 characters per token
//   - GPT and Gemini: ~4 characters per token
//
// Image parts are charged a flat estimate.
//
//	usage := tokens.EstimateUsage(tokens.Default, messages, text, "claude-3-5-sonnet")
package tokens
