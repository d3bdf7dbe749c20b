package anthropic

import (
	"errors"

	"github.com/tidwall/gjson"

	"mercator-hq/conduit/pkg/providers"
)

// DecodeStreamEvent implements providers.Translator.
//
// Event types handled: message_start (input usage), content_block_delta
// (text), message_delta (stop reason, output usage), message_stop (done) and
// error. ping and block start/stop events carry nothing.
func (t *Translator) DecodeStreamEvent(event providers.SSEEvent) providers.StreamDelta {
	if !gjson.ValidBytes(event.Data) {
		return providers.StreamDelta{}
	}
	data := gjson.ParseBytes(event.Data)

	typ := data.Get("type").String()
	if typ == "" {
		typ = event.Event
	}

	switch typ {
	case "message_start":
		usage := parseUsage(data.Get("message.usage"))
		return providers.StreamDelta{Usage: &usage}

	case "content_block_delta":
		if dt := data.Get("delta.type").String(); dt != "" && dt != "text_delta" {
			return providers.StreamDelta{}
		}
		return providers.StreamDelta{Text: data.Get("delta.text").String()}

	case "message_delta":
		d := providers.StreamDelta{FinishReason: data.Get("delta.stop_reason").String()}
		if u := data.Get("usage"); u.Exists() {
			usage := parseUsage(u)
			d.Usage = &usage
		}
		return d

	case "message_stop":
		d := providers.StreamDelta{Done: true}
		// the backend's invoke stream appends invocation metrics here
		if m := data.Get("amazon-bedrock-invocationMetrics"); m.Exists() {
			usage := providers.TokenUsage{
				PromptTokens:     int(m.Get("inputTokenCount").Int()),
				CompletionTokens: int(m.Get("outputTokenCount").Int()),
			}
			usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
			d.Usage = &usage
		}
		return d

	case "error":
		msg := data.Get("error.message").String()
		if msg == "" {
			msg = "vendor reported a stream error"
		}
		return providers.StreamDelta{Err: errors.New(msg)}
	}

	return providers.StreamDelta{}
}
