package streaming

import (
	"context"
	"io"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/providers"
)

// tokenPattern splits text into words with their trailing whitespace, plus
// leading whitespace on its own, so the pieces concatenate back exactly.
var tokenPattern = regexp.MustCompile(`\s+|\S+\s*`)

// Synthesizer turns one complete response into a paced chunk sequence.
type Synthesizer struct {
	minChunk, maxChunk int
	minDelay, maxDelay time.Duration
	wordBoundary       bool

	mu   sync.Mutex
	rand *rand.Rand
}

// NewSynthesizer creates a synthesizer from the mock configuration.
func NewSynthesizer(cfg config.MockConfig) *Synthesizer {
	if cfg.MinChunkChars < 1 {
		cfg.MinChunkChars = config.DefaultMockMinChunkChars
	}
	if cfg.MaxChunkChars < cfg.MinChunkChars {
		cfg.MaxChunkChars = cfg.MinChunkChars
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return &Synthesizer{
		minChunk:     cfg.MinChunkChars,
		maxChunk:     cfg.MaxChunkChars,
		minDelay:     cfg.MinDelay,
		maxDelay:     cfg.MaxDelay,
		wordBoundary: cfg.UsesWordBoundary(),
		rand:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
}

// Stream returns a reader over text. The reader emits the text in chunks
// and then one terminal chunk with an empty delta carrying usage.
func (s *Synthesizer) Stream(text string, usage providers.TokenUsage) providers.StreamReader {
	return &mockStream{
		synth:  s,
		tokens: tokenPattern.FindAllString(text, -1),
		usage:  usage,
	}
}

func (s *Synthesizer) chunkTarget() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minChunk + s.rand.IntN(s.maxChunk-s.minChunk+1)
}

func (s *Synthesizer) delay() time.Duration {
	if s.maxDelay <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minDelay + time.Duration(s.rand.Int64N(int64(s.maxDelay-s.minDelay)+1))
}

type mockStream struct {
	synth  *Synthesizer
	tokens []string
	pos    int
	usage  providers.TokenUsage

	// paced is set after a non-final emission
	paced bool
	done  bool
}

// Read implements providers.StreamReader.
func (m *mockStream) Read(ctx context.Context) (*providers.StreamChunk, error) {
	if m.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, &providers.CancellationError{Cause: err}
	}

	if m.paced {
		m.paced = false
		if d := m.synth.delay(); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, &providers.CancellationError{Cause: ctx.Err()}
			}
		}
	}

	if m.pos >= len(m.tokens) {
		m.done = true
		usage := m.usage
		return &providers.StreamChunk{Finished: true, Usage: &usage, FinishReason: "stop"}, nil
	}

	target := m.synth.chunkTarget()
	var buf strings.Builder
	for m.pos < len(m.tokens) {
		tok := m.tokens[m.pos]
		m.pos++
		buf.WriteString(tok)
		if buf.Len() >= target {
			break
		}
		if m.synth.wordBoundary && endsSentence(tok) {
			break
		}
	}

	m.paced = true
	return &providers.StreamChunk{Delta: buf.String()}, nil
}

// Close implements providers.StreamReader.
func (m *mockStream) Close() error {
	m.done = true
	return nil
}

func endsSentence(tok string) bool {
	t := strings.TrimRight(tok, " \t\r\n")
	if t == "" {
		return false
	}
	switch t[len(t)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
