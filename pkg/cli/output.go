package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"mercator-hq/conduit/pkg/providers"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is plain text output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is JSON output.
	FormatJSON OutputFormat = "json"
)

// ParseFormat parses an --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", NewConfigError("output", fmt.Sprintf("unsupported output format %q (use text or json)", s))
	}
}

// Formatter formats command output.
type Formatter interface {
	Format(data any) ([]byte, error)
	FormatTo(w io.Writer, data any) error
}

// TextFormatter formats output as plain text.
type TextFormatter struct{}

// Format converts data to text format.
func (f *TextFormatter) Format(data any) ([]byte, error) {
	return []byte(fmt.Sprintf("%v\n", data)), nil
}

// FormatTo writes data to writer in text format.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	_, err := fmt.Fprintf(w, "%v\n", data)
	return err
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// Format converts data to JSON format.
func (f *JSONFormatter) Format(data any) ([]byte, error) {
	if f.Indent {
		return json.MarshalIndent(data, "", "  ")
	}
	return json.Marshal(data)
}

// FormatTo writes data to writer in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	default:
		return &TextFormatter{}
	}
}

// WriteTable writes rows as aligned columns under headers.
func WriteTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if len(headers) > 0 {
		fmt.Fprintln(tw, strings.Join(headers, "\t"))
	}
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// ChunkWriter prints stream chunks as they arrive. In text mode only the
// deltas are written, followed by a newline after the terminal chunk; in
// JSON mode every chunk is one line.
type ChunkWriter struct {
	w      io.Writer
	format OutputFormat
	enc    *json.Encoder
	chunks int
	chars  int
}

// NewChunkWriter creates a ChunkWriter.
func NewChunkWriter(w io.Writer, format OutputFormat) *ChunkWriter {
	return &ChunkWriter{w: w, format: format, enc: json.NewEncoder(w)}
}

// Write prints one chunk.
func (c *ChunkWriter) Write(chunk *providers.StreamChunk) error {
	if chunk == nil {
		return nil
	}
	c.chunks++
	c.chars += len([]rune(chunk.Delta))

	if c.format == FormatJSON {
		return c.enc.Encode(chunk)
	}
	if chunk.Delta != "" {
		if _, err := io.WriteString(c.w, chunk.Delta); err != nil {
			return err
		}
	}
	if chunk.Finished {
		_, err := io.WriteString(c.w, "\n")
		return err
	}
	return nil
}

// Counts returns the number of chunks and delta characters written.
func (c *ChunkWriter) Counts() (chunks, chars int) {
	return c.chunks, c.chars
}
