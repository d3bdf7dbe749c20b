package audit

import (
	"context"
	"errors"
	"time"
)

// Modes select which validator runs are recorded.
const (
	// ModeIssues records only runs that found issues.
	ModeIssues = "issues"

	// ModeAll records every run.
	ModeAll = "all"
)

// Entry kinds.
const (
	KindResponse = "response"
	KindChunk    = "chunk"
)

// ErrClosed is returned by sinks after Close.
var ErrClosed = errors.New("audit sink is closed")

// Entry is one audit log record.
type Entry struct {
	// ID uniquely identifies the entry. Assigned by the recorder when empty.
	ID string `json:"id"`

	// Timestamp is when the validator ran. Assigned when zero.
	Timestamp time.Time `json:"timestamp"`

	// CorrelationID links the entry to the validator result.
	CorrelationID string `json:"correlation_id"`

	// Model is the model key.
	Model string `json:"model"`

	// Kind is KindResponse or KindChunk.
	Kind string `json:"kind"`

	// Issues are the machine-readable issue tags.
	Issues []string `json:"issues"`

	// Corrected reports whether the payload was repaired.
	Corrected bool `json:"corrected"`

	// Before is a snippet of the text before correction.
	Before string `json:"before,omitempty"`

	// After is a snippet of the text after correction.
	After string `json:"after,omitempty"`

	// Prompt is a snippet of the prompt, when known.
	Prompt string `json:"prompt,omitempty"`
}

// Sink persists audit entries.
type Sink interface {
	// Write persists one entry.
	Write(ctx context.Context, e *Entry) error

	// Close flushes and releases resources.
	Close() error
}

// Pruner removes entries older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}
