package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

var smartQuotes = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`,
	"‘", "'", "’", "'",
)

// textField extracts a "text" value from JSON too broken to repair.
var textField = regexp.MustCompile(`["']text["']\s*:\s*"((?:[^"\\]|\\.)*)"`)

// looksLikeJSON reports whether text is shaped like a JSON document: an
// object or array delimited at both ends. Prose that merely opens with a
// brace, such as set notation, is not.
func looksLikeJSON(text string) bool {
	t := strings.TrimSpace(text)
	return (strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}")) ||
		(strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]"))
}

// repairMalformedJSON returns text unchanged (and false) when it is not
// JSON-shaped or already valid. Otherwise it returns repaired JSON, a text
// field extracted from it, or a safe sentence, and true.
func repairMalformedJSON(text, model string) (string, bool) {
	if !looksLikeJSON(text) {
		return text, false
	}
	trimmed := strings.TrimSpace(text)
	if gjson.Valid(trimmed) {
		return text, false
	}

	if repaired := repairJSON(trimmed); gjson.Valid(repaired) {
		return repaired, true
	}

	if m := textField.FindStringSubmatch(trimmed); m != nil {
		if s, err := strconv.Unquote(`"` + m[1] + `"`); err == nil && strings.TrimSpace(s) != "" {
			return s, true
		}
		if strings.TrimSpace(m[1]) != "" {
			return m[1], true
		}
	}
	return fmt.Sprintf("The response from %s was malformed and could not be recovered. Please try again.", displayName(model)), true
}

// repairJSON applies conservative repairs in one pass: smart quotes are
// normalized, single-quoted strings become double-quoted, raw control
// characters inside strings are escaped, bare object keys are quoted and
// trailing commas are removed.
func repairJSON(s string) string {
	rs := []rune(smartQuotes.Replace(s))

	var b strings.Builder
	var quote rune     // active string delimiter, 0 outside strings
	var prev rune = -1 // last significant rune written outside strings

	for i := 0; i < len(rs); i++ {
		r := rs[i]

		if quote != 0 {
			switch {
			case r == '\\' && i+1 < len(rs):
				i++
				if quote == '\'' && rs[i] == '\'' {
					b.WriteRune('\'')
				} else {
					b.WriteRune('\\')
					b.WriteRune(rs[i])
				}
			case r == quote:
				b.WriteRune('"')
				quote = 0
				prev = '"'
			case r == '"':
				b.WriteString(`\"`)
			case r < 0x20:
				b.WriteString(escapeControl(r))
			default:
				b.WriteRune(r)
			}
			continue
		}

		switch {
		case r == '"' || r == '\'':
			quote = r
			b.WriteRune('"')

		case r == ',':
			if next := nextSignificant(rs, i+1); next == '}' || next == ']' {
				continue
			}
			b.WriteRune(r)
			prev = r

		case (prev == '{' || prev == ',') && isIdentStart(r):
			j := i
			for j < len(rs) && isIdentPart(rs[j]) {
				j++
			}
			ident := string(rs[i:j])
			if nextSignificant(rs, j) == ':' {
				b.WriteString(strconv.Quote(ident))
			} else {
				b.WriteString(ident)
			}
			prev = rs[j-1]
			i = j - 1

		default:
			b.WriteRune(r)
			if !unicode.IsSpace(r) {
				prev = r
			}
		}
	}
	if quote != 0 {
		b.WriteRune('"')
	}
	return b.String()
}

func nextSignificant(rs []rune, from int) rune {
	for i := from; i < len(rs); i++ {
		if !unicode.IsSpace(rs[i]) {
			return rs[i]
		}
	}
	return -1
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || r == '-' || unicode.IsDigit(r)
}

func escapeControl(r rune) string {
	switch r {
	case '\n':
		return `\n`
	case '\t':
		return `\t`
	case '\r':
		return `\r`
	default:
		return fmt.Sprintf(`\u%04x`, r)
	}
}
