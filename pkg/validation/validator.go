package validation

import (
	"encoding/json"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"mercator-hq/conduit/pkg/audit"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/telemetry/metrics"
)

// AuditRecorder receives validator runs. *audit.Recorder implements it and
// never blocks.
type AuditRecorder interface {
	Record(e audit.Entry)
}

// Validator repairs responses and chunks. It is stateless apart from its
// collaborators and safe for concurrent use.
type Validator struct {
	maxSnippet int
	recorder   AuditRecorder
	metrics    *metrics.Collector
	logger     *slog.Logger
	newID      func() string
}

// New creates a validator. recorder and collector may be nil.
func New(cfg config.ValidationConfig, recorder AuditRecorder, collector *metrics.Collector) *Validator {
	if cfg.MaxSnippet <= 0 {
		cfg.MaxSnippet = config.DefaultValidationMaxSnippet
	}
	return &Validator{
		maxSnippet: cfg.MaxSnippet,
		recorder:   recorder,
		metrics:    collector,
		logger:     slog.Default().With("component", "validation"),
		newID:      uuid.NewString,
	}
}

// Validate normalizes raw and repairs it. raw may be a vendor body ([]byte,
// string or decoded JSON), a *providers.ParsedResponse, a Response, or
// anything else; prompt is optional and only used for the audit trail.
func (v *Validator) Validate(raw any, model, prompt string) *Result {
	s := normalize(raw)
	res := &Result{
		CorrelationID: v.newID(),
		Normalized:    Response{Success: s.success, Text: s.text, Usage: s.usage},
	}
	issue := func(tag string) { res.Issues = append(res.Issues, tag) }

	text := s.text
	usage := s.usage

	if s.nonObject {
		issue(IssueNonObject)
	}

	switch {
	case s.nonString || text == "":
		issue(IssueEmptyText)
		text = fallbackText(s, model)
	case strings.TrimSpace(text) == "":
		issue(IssueWhitespaceOnly)
		text = fallbackText(s, model)
	}

	if repaired, ok := repairMalformedJSON(text, model); ok {
		issue(IssueMalformedJSON)
		text = repaired
	}

	if rewritten, tag := stripReasoning(text); tag != "" {
		issue(tag)
		text = rewritten
	}

	switch {
	case s.object && s.usageSt == usageMissing:
		issue(IssueMissingUsage)
		usage = providers.TokenUsage{}
	case s.usageSt == usageInvalid || !validUsage(usage):
		issue(IssueInvalidUsage)
		usage = providers.TokenUsage{}
	}

	// every tag implies a repair; a non-object input always has empty text too
	res.IsValid = len(res.Issues) == 0
	res.WasCorrected = !res.IsValid
	if res.WasCorrected {
		text = strings.TrimSpace(text)
		if text == "" {
			text = apology(model)
		}
		res.Corrected = &Response{Success: true, Text: text, Usage: usage}
	}

	v.metrics.RecordValidation(audit.KindResponse, res.WasCorrected, res.Issues)
	if !res.IsValid {
		v.logger.Debug("response corrected",
			"model", model,
			"correlation_id", res.CorrelationID,
			"issues", res.Issues,
		)
	}
	v.record(audit.Entry{
		CorrelationID: res.CorrelationID,
		Model:         model,
		Kind:          audit.KindResponse,
		Issues:        res.Issues,
		Corrected:     res.WasCorrected,
		Before:        v.snippet(s.text),
		After:         v.snippet(res.Response().Text),
		Prompt:        v.snippet(prompt),
	})
	return res
}

// ValidateChunk checks one stream chunk. raw may be a *providers.StreamChunk,
// a providers.StreamChunk, or a decoded/encoded JSON object with "delta"
// and "finished" fields.
func (v *Validator) ValidateChunk(raw any, model string) *ChunkResult {
	chunk, issues := normalizeChunk(raw)

	if cleaned := stripControl(chunk.Delta); cleaned != chunk.Delta {
		issues = append(issues, IssueControlCharacters)
		chunk.Delta = cleaned
	}
	if !chunk.Finished && chunk.Usage != nil {
		issues = append(issues, IssueMisplacedUsage)
		chunk.Usage = nil
	}

	res := &ChunkResult{
		IsValid:       len(issues) == 0,
		WasCorrected:  len(issues) > 0,
		Issues:        issues,
		CorrelationID: v.newID(),
		Chunk:         chunk,
	}
	v.metrics.RecordValidation(audit.KindChunk, res.WasCorrected, issues)
	if res.IsValid {
		if orig, ok := raw.(*providers.StreamChunk); ok {
			res.Chunk = orig
		}
		return res
	}

	v.record(audit.Entry{
		CorrelationID: res.CorrelationID,
		Model:         model,
		Kind:          audit.KindChunk,
		Issues:        issues,
		Corrected:     true,
		After:         v.snippet(chunk.Delta),
	})
	return res
}

func normalizeChunk(raw any) (*providers.StreamChunk, []string) {
	switch c := raw.(type) {
	case *providers.StreamChunk:
		if c == nil {
			return &providers.StreamChunk{}, []string{IssueInvalidChunkShape}
		}
		cp := *c
		return &cp, nil
	case providers.StreamChunk:
		return &c, nil
	}

	var r gjson.Result
	switch c := raw.(type) {
	case []byte:
		r = gjson.ParseBytes(c)
	case string:
		r = gjson.Parse(c)
	default:
		r = gjson.ParseBytes(encodeJSON(raw))
	}
	if !r.IsObject() {
		return &providers.StreamChunk{}, []string{IssueInvalidChunkShape}
	}

	var issues []string
	chunk := &providers.StreamChunk{}

	for _, name := range []string{"delta", "deltaText", "text"} {
		d := r.Get(name)
		if !d.Exists() {
			continue
		}
		switch d.Type {
		case gjson.String:
			chunk.Delta = d.String()
		case gjson.Number, gjson.True, gjson.False:
			issues = append(issues, IssueNonStringDelta)
			chunk.Delta = d.Raw
		default:
			issues = append(issues, IssueNonStringDelta)
		}
		break
	}

	if f := r.Get("finished"); f.Exists() {
		switch f.Type {
		case gjson.True, gjson.False:
			chunk.Finished = f.Bool()
		default:
			issues = append(issues, IssueNonBooleanFinished)
			chunk.Finished = f.Bool()
		}
	}

	if u, st := parseUsage(r); st == usageOK {
		chunk.Usage = &u
	}
	chunk.FinishReason = r.Get("finish_reason").String()
	return chunk, issues
}

func stripControl(s string) string {
	clean := true
	for _, r := range s {
		if isStrippedControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isStrippedControl(r) {
			return -1
		}
		return r
	}, s)
}

func isStrippedControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t'
}

// encodeJSON returns nil for values that cannot be encoded.
func encodeJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func (v *Validator) record(e audit.Entry) {
	if v.recorder == nil {
		return
	}
	v.recorder.Record(e)
}

func (v *Validator) snippet(s string) string {
	if utf8.RuneCountInString(s) <= v.maxSnippet {
		return s
	}
	return string([]rune(s)[:v.maxSnippet])
}
