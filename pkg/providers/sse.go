package providers

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// maxEventSize bounds a single SSE line.
const maxEventSize = 1024 * 1024

// SSEEvent is one server-sent event.
type SSEEvent struct {
	// Event is the "event:" field, empty when the server sent none
	Event string

	// Data is the joined "data:" lines
	Data []byte
}

// IsDone reports whether the event is the OpenAI-style [DONE] sentinel.
func (e SSEEvent) IsDone() bool {
	return bytes.Equal(bytes.TrimSpace(e.Data), []byte("[DONE]"))
}

// SSEReader splits a text/event-stream body into events. A line that is not
// an SSE field is returned as its own event so NDJSON bodies decode one
// object per line.
type SSEReader struct {
	scanner *bufio.Scanner
	pending *SSEEvent
}

// NewSSEReader creates a reader over r.
func NewSSEReader(r io.Reader) *SSEReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &SSEReader{scanner: scanner}
}

// Next returns the next event, or io.EOF when the body is exhausted.
func (r *SSEReader) Next() (SSEEvent, error) {
	if r.pending != nil {
		ev := *r.pending
		r.pending = nil
		return ev, nil
	}

	var name string
	var data [][]byte
	started := func() bool { return name != "" || len(data) > 0 }
	build := func() SSEEvent {
		return SSEEvent{Event: name, Data: bytes.Join(data, []byte("\n"))}
	}

	for r.scanner.Scan() {
		line := r.scanner.Text()

		switch {
		case line == "":
			if started() {
				return build(), nil
			}
		case strings.HasPrefix(line, ":"):
			// comment or keep-alive
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			v := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
			data = append(data, []byte(v))
		case strings.HasPrefix(line, "id:"), strings.HasPrefix(line, "retry:"):
		default:
			bare := SSEEvent{Data: []byte(line)}
			if started() {
				r.pending = &bare
				return build(), nil
			}
			return bare, nil
		}
	}

	if err := r.scanner.Err(); err != nil {
		return SSEEvent{}, err
	}
	if started() {
		return build(), nil
	}
	return SSEEvent{}, io.EOF
}
