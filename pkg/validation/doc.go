// Package validation repairs upstream responses and stream chunks.
//
// Validate normalizes any upstream shape into {success, text, usage} and
// applies a fixed sequence of checks: empty text, whitespace-only text,
// malformed JSON, leaked reasoning and missing or invalid usage. Each check
// that fires appends an issue tag and marks the result corrected. Validate
// never panics and never returns an error; a corrected result always carries
// non-empty, trimmed text.
//
// ValidateChunk applies the structural subset to stream chunks: object
// shape, string delta, boolean finished flag and control-character
// stripping.
//
// When an audit recorder is configured, every run is handed to it without
// waiting; the recorder decides which runs to keep.
package validation
