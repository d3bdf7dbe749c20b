package streaming

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/conduit/pkg/processing/tokens"
	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/telemetry/tracing"
)

// Stream outcomes reported to metrics.
const (
	outcomeCompleted = "completed"
	outcomeCancelled = "cancelled"
	outcomeFailed    = "failed"
)

// Stream is a lazy, finite, non-restartable chunk sequence for one request.
// Next yields chunks in order and returns io.EOF after the terminal chunk.
// A stream that ends with a cancellation error has no terminal chunk.
//
// A Stream serves one consumer. Cancel the context given to Next to stop a
// blocked read.
type Stream struct {
	router   *Router
	model    providers.ModelConfig
	messages []providers.Message
	prefs    Preferences

	mu        sync.Mutex
	route     Route
	attempted []string
	reader    providers.StreamReader
	text      strings.Builder
	chunks    int
	done      bool
	closed    bool
	started   bool
	parent    trace.SpanContext
	span      trace.Span
}

// Route returns the route currently delivering the stream. It changes once
// if the stream falls back.
func (s *Stream) Route() Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.route
}

// Next returns the next chunk. After the terminal chunk it returns io.EOF.
// When every route has failed the error is an *AllRoutesFailedError (or the
// original error when fallback is disabled); when ctx is cancelled it is a
// *providers.CancellationError and no terminal chunk follows.
func (s *Stream) Next(ctx context.Context) (*providers.StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.done {
		return nil, io.EOF
	}
	ctx = s.spanContext(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return nil, s.cancel(err)
		}

		if s.reader == nil {
			reader, err := s.router.open(ctx, s.route.Method, s.model, s.messages, s.prefs)
			if err != nil {
				if ferr := s.fail(ctx, err); ferr != nil {
					return nil, ferr
				}
				continue
			}
			s.reader = reader
		}

		chunk, err := s.reader.Read(ctx)
		if errors.Is(err, io.EOF) {
			// the reader ended without a terminal chunk
			chunk, err = s.syntheticTerminal(), nil
		}
		if err != nil {
			if ferr := s.fail(ctx, err); ferr != nil {
				return nil, ferr
			}
			continue
		}

		chunk = s.check(chunk)
		s.text.WriteString(chunk.Delta)
		s.chunks++
		s.router.metrics.RecordChunk(string(s.route.Method))

		if chunk.Finished {
			if chunk.Usage != nil {
				tracing.SetTokenAttributes(s.span, chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens)
			}
			s.finish(outcomeCompleted)
		}
		return chunk, nil
	}
}

// spanContext returns ctx carrying the stream span, starting the span on
// first use. Upstream spans opened with the result are its children while
// cancellation still follows ctx.
func (s *Stream) spanContext(ctx context.Context) context.Context {
	if !s.started {
		s.started = true
		_, s.span = tracing.Start(trace.ContextWithSpanContext(ctx, s.parent), "streaming.stream")
		tracing.SetRouteAttributes(s.span, s.model.Name, string(s.route.Method))
	}
	return trace.ContextWithSpan(ctx, s.span)
}

// Close releases the underlying reader. Further calls to Next return
// ErrStreamClosed.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if !s.done {
		s.finish(outcomeCancelled)
	}
	return s.release()
}

// check runs the chunk check unless the current route is trusted.
func (s *Stream) check(chunk *providers.StreamChunk) *providers.StreamChunk {
	if s.router.trusted[s.route.Method] {
		return chunk
	}
	res := s.router.validator.ValidateChunk(chunk, s.model.Name)
	return res.Chunk
}

func (s *Stream) syntheticTerminal() *providers.StreamChunk {
	usage := tokens.EstimateUsage(tokens.Default, s.messages, s.text.String(), s.model.ModelID())
	return &providers.StreamChunk{Finished: true, Usage: &usage, FinishReason: "stop"}
}

// fail handles a route failure. It returns nil when delivery restarted on the
// fallback route, otherwise the error to surface.
func (s *Stream) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return s.cancel(ctx.Err())
	}

	failed := s.route.Method
	s.router.logger.WarnContext(ctx, "streaming route failed",
		"model", s.model.Name,
		"method", failed,
		"chunks", s.chunks,
		"error", err,
	)
	_ = s.release()

	if s.prefs.FallbackToMock && failed != MethodFallbackMockStream {
		s.router.metrics.RecordFallback(string(failed))
		tracing.AddEvent(s.span, "fallback", attribute.String(tracing.AttrRoute, string(failed)))
		s.span.SetAttributes(attribute.Bool(tracing.AttrFallback, true))

		s.route = Route{
			Method:    MethodFallbackMockStream,
			Rationale: "fallback after " + string(failed) + " failed",
			CostTier:  CostMixed,
		}
		s.attempted = append(s.attempted, string(s.route.Method))
		s.text.Reset()
		return nil
	}

	s.finish(outcomeFailed)
	if !s.prefs.FallbackToMock {
		tracing.RecordException(s.span, err)
		return err
	}

	cause, rationale := unwrapRoutes(err)
	if rationale == "" {
		rationale = s.route.Rationale
	}
	all := &AllRoutesFailedError{
		Model:         s.model.Name,
		Attempted:     append([]string(nil), s.attempted...),
		LastRationale: rationale,
		LastError:     cause,
	}
	tracing.RecordException(s.span, all)
	return all
}

func (s *Stream) cancel(cause error) error {
	_ = s.release()
	s.finish(outcomeCancelled)
	return providers.AsCancellation(cause)
}

func (s *Stream) release() error {
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	s.reader = nil
	return err
}

// finish marks the stream done and closes its span exactly once.
func (s *Stream) finish(outcome string) {
	if s.done {
		return
	}
	s.done = true
	s.router.metrics.RecordStreamOutcome(string(s.route.Method), outcome)
	s.span.SetAttributes(attribute.Int(tracing.AttrChunks, s.chunks))
	s.span.End()
	if outcome == outcomeCompleted {
		_ = s.release()
	}
}
