package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"mercator-hq/conduit/pkg/processing/tokens"
	"mercator-hq/conduit/pkg/providers"
)

// vendorStream adapts an SSE response body to providers.StreamReader.
// Vendor usage reported on intermediate events is accumulated and attached
// to the single terminal chunk.
type vendorStream struct {
	resp       *http.Response
	events     *providers.SSEReader
	translator providers.Translator
	target     string
	model      providers.ModelConfig
	messages   []providers.Message

	usage        providers.TokenUsage
	finishReason string
	text         strings.Builder
	done         bool

	closeOnce sync.Once
}

func newVendorStream(resp *http.Response, t providers.Translator, target string, m providers.ModelConfig, messages []providers.Message) *vendorStream {
	return &vendorStream{
		resp:       resp,
		events:     providers.NewSSEReader(resp.Body),
		translator: t,
		target:     target,
		model:      m,
		messages:   messages,
	}
}

// Read implements providers.StreamReader. Cancelling ctx aborts a blocked
// read by closing the body.
func (s *vendorStream) Read(ctx context.Context) (*providers.StreamChunk, error) {
	if s.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, &providers.CancellationError{Cause: err}
	}

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		event, err := s.events.Next()
		if errors.Is(err, io.EOF) {
			// the vendor closed the stream without a stop event
			return s.terminal(""), nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, &providers.CancellationError{Cause: ctx.Err()}
			}
			return nil, &providers.UpstreamTransportError{Target: s.target, Message: "stream read failed", Cause: err}
		}

		d := s.translator.DecodeStreamEvent(event)
		if d.Err != nil {
			return nil, &providers.UpstreamTransportError{Target: s.target, Message: "vendor reported a stream error", Cause: d.Err}
		}
		if d.Usage != nil {
			s.usage.Merge(*d.Usage)
		}
		if d.FinishReason != "" {
			s.finishReason = d.FinishReason
		}
		s.text.WriteString(d.Text)

		if d.Done {
			return s.terminal(d.Text), nil
		}
		if d.Text != "" {
			return &providers.StreamChunk{Delta: d.Text}, nil
		}
	}
}

// terminal builds the one finished chunk, estimating usage when the vendor
// reported none.
func (s *vendorStream) terminal(delta string) *providers.StreamChunk {
	s.done = true

	usage := s.usage
	if usage.TotalTokens == 0 {
		usage = tokens.EstimateUsage(tokens.Default, s.messages, s.text.String(), s.model.ModelID())
	}
	return &providers.StreamChunk{
		Delta:        delta,
		Finished:     true,
		Usage:        &usage,
		FinishReason: s.finishReason,
	}
}

// Close implements providers.StreamReader.
func (s *vendorStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.resp.Body.Close()
	})
	return err
}
