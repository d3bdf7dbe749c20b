package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks credentials in log attributes: backend bearer tokens,
// vendor API keys and OAuth client secrets.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Pattern names.
const (
	PatternBearerToken = "bearer_token"
	PatternAPIKey      = "api_key"
	PatternGoogleKey   = "google_key"
	PatternQueryKey    = "query_key"
	PatternSecretField = "secret_field"
)

var defaultPatterns = []struct {
	name, regex, replacement string
}{
	{PatternBearerToken, `(?i)bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
	// sk-... and sk-ant-... style keys
	{PatternAPIKey, `\bsk-[a-zA-Z0-9\-_]{8,}`, "sk-***"},
	{PatternGoogleKey, `\bAIza[0-9A-Za-z\-_]{20,}`, "AIza***"},
	{PatternQueryKey, `([?&]key=)[^&\s]+`, "${1}***"},
	{PatternSecretField, `(?i)("?(?:client_secret|api_key|x-api-key|x-goog-api-key)"?\s*[:=]\s*"?)[^"&\s,}]+`, "${1}***"},
}

// sensitiveKeys mark attribute keys whose whole value is masked.
var sensitiveKeys = map[string]bool{
	"authorization": true,
	"token":         true,
	"access_token":  true,
	"api_key":       true,
	"apikey":        true,
	"x-api-key":     true,
	"client_secret": true,
	"secret":        true,
	"password":      true,
}

var sensitiveSuffixes = []string{"_secret", "_token", "_api_key"}

// NewRedactor creates a Redactor with the built-in patterns.
func NewRedactor() *Redactor {
	r := &Redactor{}
	for _, p := range defaultPatterns {
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}
	return r
}

// RedactString masks credentials in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr masks an attribute with a sensitive key, and masks credentials inside
// string, error and group values.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		switch a.Value.Kind() {
		case slog.KindString:
			return slog.String(a.Key, RedactAPIKey(a.Value.String()))
		case slog.KindAny:
			return slog.String(a.Key, "***")
		}
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		out := make([]any, len(group))
		for i, g := range group {
			out[i] = r.RedactAttr(g)
		}
		return slog.Group(a.Key, out...)
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	return a
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	if sensitiveKeys[lower] {
		return true
	}
	for _, s := range sensitiveSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// RedactAPIKey masks a credential, keeping a 4 character prefix for
// identification.
func RedactAPIKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "***"
}
