package validation

import "mercator-hq/conduit/pkg/providers"

// Response issue tags.
const (
	IssueNonObject         = "non_object_response"
	IssueEmptyText         = "empty_text"
	IssueWhitespaceOnly    = "whitespace_only_text"
	IssueMalformedJSON     = "malformed_json"
	IssueReasoningOnly     = "reasoning_only"
	IssueReasoningStripped = "reasoning_stripped"
	IssueMissingUsage      = "missing_usage"
	IssueInvalidUsage      = "invalid_usage"
)

// Chunk issue tags.
const (
	IssueInvalidChunkShape  = "invalid_chunk_shape"
	IssueNonStringDelta     = "non_string_delta"
	IssueNonBooleanFinished = "non_boolean_finished"
	IssueControlCharacters  = "control_characters"
	IssueMisplacedUsage     = "misplaced_usage"
)

// Response is the canonical shape every upstream response is normalized to.
type Response struct {
	Success bool                 `json:"success"`
	Text    string               `json:"text"`
	Usage   providers.TokenUsage `json:"usage"`
}

// Result is the outcome of one Validate run.
type Result struct {
	// IsValid is true when no issue was found.
	IsValid bool `json:"is_valid"`

	// WasCorrected is true when any repair was applied.
	WasCorrected bool `json:"was_corrected"`

	// Issues lists the issue tags in the order they fired.
	Issues []string `json:"issues"`

	// CorrelationID identifies this run in logs and the audit trail.
	CorrelationID string `json:"correlation_id"`

	// Normalized is the response as found, before repairs.
	Normalized Response `json:"normalized"`

	// Corrected is set when WasCorrected is true.
	Corrected *Response `json:"corrected,omitempty"`
}

// Response returns the corrected response when there is one, otherwise the
// normalized response.
func (r *Result) Response() Response {
	if r.Corrected != nil {
		return *r.Corrected
	}
	return r.Normalized
}

// ChunkResult is the outcome of one ValidateChunk run.
type ChunkResult struct {
	IsValid       bool     `json:"is_valid"`
	WasCorrected  bool     `json:"was_corrected"`
	Issues        []string `json:"issues"`
	CorrelationID string   `json:"correlation_id"`

	// Chunk is the chunk to forward: the input when valid, a repaired copy otherwise.
	Chunk *providers.StreamChunk `json:"chunk"`
}
