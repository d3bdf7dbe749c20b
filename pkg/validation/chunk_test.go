package validation

import (
	"strings"
	"testing"

	"mercator-hq/conduit/pkg/providers"
)

func TestValidateChunk(t *testing.T) {
	usage := &providers.TokenUsage{TotalTokens: 3}

	tests := []struct {
		name         string
		raw          any
		wantIssues   []string
		wantDelta    string
		wantFinished bool
	}{
		{
			name:      "valid chunk",
			raw:       &providers.StreamChunk{Delta: "hello"},
			wantDelta: "hello",
		},
		{
			name:       "control characters stripped",
			raw:        &providers.StreamChunk{Delta: "he\x00ll\x1bo\n"},
			wantIssues: []string{IssueControlCharacters},
			wantDelta:  "hello\n",
		},
		{
			name:       "usage on non-terminal chunk",
			raw:        providers.StreamChunk{Delta: "x", Usage: usage},
			wantIssues: []string{IssueMisplacedUsage},
			wantDelta:  "x",
		},
		{
			name:         "terminal chunk keeps usage",
			raw:          &providers.StreamChunk{Finished: true, Usage: usage},
			wantFinished: true,
		},
		{
			name:       "nil chunk",
			raw:        (*providers.StreamChunk)(nil),
			wantIssues: []string{IssueInvalidChunkShape},
		},
		{
			name:       "non-object",
			raw:        "just text",
			wantIssues: []string{IssueInvalidChunkShape},
		},
		{
			name:       "numeric delta",
			raw:        map[string]any{"delta": 42, "finished": false},
			wantIssues: []string{IssueNonStringDelta},
			wantDelta:  "42",
		},
		{
			name:         "string finished",
			raw:          []byte(`{"delta":"a","finished":"true"}`),
			wantIssues:   []string{IssueNonBooleanFinished},
			wantDelta:    "a",
			wantFinished: true,
		},
		{
			name:      "delta text alias",
			raw:       `{"deltaText":"b","finished":false}`,
			wantDelta: "b",
		},
	}

	v := newTestValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateChunk(tt.raw, "m")
			if strings.Join(res.Issues, ",") != strings.Join(tt.wantIssues, ",") {
				t.Errorf("issues = %v, want %v", res.Issues, tt.wantIssues)
			}
			if res.Chunk == nil {
				t.Fatal("expected a chunk")
			}
			if res.Chunk.Delta != tt.wantDelta || res.Chunk.Finished != tt.wantFinished {
				t.Errorf("chunk = %+v", res.Chunk)
			}
			if res.IsValid == res.WasCorrected {
				t.Errorf("IsValid and WasCorrected must differ: %+v", res)
			}
		})
	}
}

func TestValidateChunk_ValidPassesThrough(t *testing.T) {
	v := newTestValidator(nil)
	in := &providers.StreamChunk{Delta: "same"}
	if res := v.ValidateChunk(in, "m"); res.Chunk != in {
		t.Error("expected a valid chunk to be forwarded unchanged")
	}
}

func TestValidateChunk_AuditsOnlyIssues(t *testing.T) {
	rec := &captureRecorder{}
	v := newTestValidator(rec)

	v.ValidateChunk(&providers.StreamChunk{Delta: "ok"}, "m")
	v.ValidateChunk(&providers.StreamChunk{Delta: "bad\x07"}, "m")

	if len(rec.entries) != 1 || rec.entries[0].Kind != "chunk" {
		t.Fatalf("expected one chunk entry, got %+v", rec.entries)
	}
}
