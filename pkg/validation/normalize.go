package validation

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"mercator-hq/conduit/pkg/providers"
)

type usageState int

const (
	usageOK usageState = iota
	usageMissing
	usageInvalid
)

// textPaths are the response text locations, in priority order. Paths with
// '#' collect every match and are joined.
var textPaths = []string{
	"choices.0.message.content",
	"choices.0.text",
	"choices.0.delta.content",
	"content.#.text",
	"candidates.0.content.parts.#.text",
	"message.content",
	"text",
	"message",
	"output_text",
	"response",
	"completion",
	"content",
}

// shape is an upstream response reduced to what the checks need.
type shape struct {
	// object is true when the input was a JSON object
	object bool

	// nonObject is true when the input was neither an object nor text
	nonObject bool

	// body is the parsed object
	body gjson.Result

	// text is the extracted response text
	text string

	// nonString is true when the first text location held a non-string
	nonString bool

	success bool
	usage   providers.TokenUsage
	usageSt usageState
}

// normalize reduces any supported input to a shape. It never fails; inputs
// it cannot interpret become a non-object shape with empty text.
func normalize(raw any) shape {
	switch v := raw.(type) {
	case nil:
		return nonObject()
	case string:
		return fromString(v)
	case []byte:
		return fromBytes(v)
	case json.RawMessage:
		return fromBytes(v)
	case providers.ParsedResponse:
		return fromParsed(&v)
	case *providers.ParsedResponse:
		if v == nil {
			return nonObject()
		}
		return fromParsed(v)
	case Response:
		return shape{object: true, text: v.Text, success: v.Success, usage: v.Usage}
	case *Response:
		if v == nil {
			return nonObject()
		}
		return shape{object: true, text: v.Text, success: v.Success, usage: v.Usage}
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nonObject()
		}
		return fromBytes(b)
	}
}

func nonObject() shape {
	return shape{nonObject: true, usageSt: usageMissing}
}

func fromParsed(p *providers.ParsedResponse) shape {
	text := p.Text
	if text == providers.NoResponseText {
		text = ""
	}
	return shape{object: true, text: text, success: true, usage: p.Usage}
}

func fromString(v string) shape {
	trimmed := strings.TrimSpace(v)
	if strings.HasPrefix(trimmed, "{") && gjson.Valid(trimmed) {
		return fromObject(gjson.Parse(trimmed))
	}
	// plain text has no usage object to check
	return shape{text: v, success: true, usageSt: usageOK}
}

func fromBytes(b []byte) shape {
	if !gjson.ValidBytes(b) {
		return shape{text: string(b), success: true, usageSt: usageOK}
	}
	r := gjson.ParseBytes(b)
	switch {
	case r.IsObject():
		return fromObject(r)
	case r.Type == gjson.String:
		return fromString(r.String())
	default:
		return nonObject()
	}
}

func fromObject(r gjson.Result) shape {
	s := shape{object: true, body: r}

	for _, path := range textPaths {
		v := r.Get(path)
		if !v.Exists() {
			continue
		}
		if strings.Contains(path, "#") {
			parts := v.Array()
			if len(parts) == 0 {
				continue
			}
			var sb strings.Builder
			for _, p := range parts {
				if p.Type == gjson.String {
					sb.WriteString(p.String())
				}
			}
			s.text = sb.String()
			break
		}
		if v.Type == gjson.String {
			s.text = v.String()
		} else {
			s.nonString = true
		}
		break
	}

	if v := r.Get("success"); v.Exists() {
		s.success = v.Type == gjson.True
	} else {
		s.success = !r.Get("error").Exists() || s.text != ""
	}

	s.usage, s.usageSt = parseUsage(r)
	return s
}

var (
	promptFields     = []string{"prompt_tokens", "input_tokens", "promptTokenCount"}
	completionFields = []string{"completion_tokens", "output_tokens", "candidatesTokenCount"}
	totalFields      = []string{"total_tokens", "totalTokenCount"}
)

// parseUsage reads the usage object. Counts must be non-negative integers;
// anything else makes the whole object invalid.
func parseUsage(r gjson.Result) (providers.TokenUsage, usageState) {
	u := r.Get("usage")
	if !u.Exists() {
		u = r.Get("usageMetadata")
	}
	if !u.Exists() || u.Type == gjson.Null {
		return providers.TokenUsage{}, usageMissing
	}
	if !u.IsObject() {
		return providers.TokenUsage{}, usageInvalid
	}

	var usage providers.TokenUsage
	found := false
	for _, f := range []struct {
		names []string
		dst   *int
	}{
		{promptFields, &usage.PromptTokens},
		{completionFields, &usage.CompletionTokens},
		{totalFields, &usage.TotalTokens},
	} {
		for _, name := range f.names {
			v := u.Get(name)
			if !v.Exists() {
				continue
			}
			n, ok := tokenCount(v)
			if !ok {
				return providers.TokenUsage{}, usageInvalid
			}
			*f.dst = n
			found = true
			break
		}
	}
	if !found {
		return providers.TokenUsage{}, usageInvalid
	}
	if usage.TotalTokens < usage.PromptTokens+usage.CompletionTokens {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage, usageOK
}

func tokenCount(v gjson.Result) (int, bool) {
	if v.Type != gjson.Number {
		return 0, false
	}
	f := v.Float()
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func validUsage(u providers.TokenUsage) bool {
	return u.PromptTokens >= 0 && u.CompletionTokens >= 0 && u.TotalTokens >= 0
}
