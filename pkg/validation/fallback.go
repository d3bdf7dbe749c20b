package validation

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// alternateTextFields are consulted, in order, when the primary text is empty.
var alternateTextFields = []string{
	"choices.0.message.refusal",
	"output",
	"answer",
	"reply",
	"generated_text",
	"result",
	"data.text",
}

// errorFields hold upstream failure descriptions.
var errorFields = []string{
	"error.message",
	"error",
	"detail",
	"status",
	"reason",
}

var (
	timeoutSignatures  = []string{"timeout", "timed out", "deadline exceeded"}
	capacitySignatures = []string{"overloaded", "capacity", "busy", "rate limit", "too many requests", "unavailable", "429", "503", "529"}
)

// fallbackText synthesizes a response when the upstream gave no usable text.
func fallbackText(s shape, model string) string {
	if s.object {
		for _, path := range alternateTextFields {
			if v := s.body.Get(path); v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
				return strings.TrimSpace(v.String())
			}
		}
	}
	return failureText(upstreamError(s), model)
}

func upstreamError(s shape) string {
	if !s.object {
		return ""
	}
	for _, path := range errorFields {
		if v := s.body.Get(path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// failureText maps known failure signatures to tailored text.
func failureText(errText, model string) string {
	name := displayName(model)
	lower := strings.ToLower(errText)
	switch {
	case containsAny(lower, timeoutSignatures):
		return fmt.Sprintf("The request to %s timed out before a response was produced. Please try again.", name)
	case containsAny(lower, capacitySignatures):
		return fmt.Sprintf("%s is currently busy and could not respond. Please try again in a moment.", name)
	case errText != "":
		return fmt.Sprintf("%s encountered an error while generating a response. Please try again.", name)
	default:
		return apology(model)
	}
}

func apology(model string) string {
	return fmt.Sprintf("I'm sorry, but %s did not return a response. Please try again.", displayName(model))
}

func displayName(model string) string {
	if model == "" {
		return "the model"
	}
	return model
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
