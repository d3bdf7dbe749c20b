package google

import (
	"errors"

	"github.com/tidwall/gjson"

	"mercator-hq/conduit/pkg/providers"
)

// DecodeStreamEvent implements providers.Translator. Each event is a partial
// GenerateContentResponse; the one carrying a finishReason ends the stream.
func (t *Translator) DecodeStreamEvent(event providers.SSEEvent) providers.StreamDelta {
	if !gjson.ValidBytes(event.Data) {
		return providers.StreamDelta{}
	}
	data := gjson.ParseBytes(event.Data)

	if msg := data.Get("error.message"); msg.Exists() {
		return providers.StreamDelta{Err: errors.New(msg.String())}
	}

	d := providers.StreamDelta{
		Text:         joinParts(data.Get("candidates.0.content.parts")),
		FinishReason: data.Get("candidates.0.finishReason").String(),
	}
	if u := data.Get("usageMetadata"); u.Exists() {
		usage := parseUsage(u)
		d.Usage = &usage
	}
	d.Done = d.FinishReason != ""
	return d
}
