// Package tags reads and writes the inline bracket directives ([key: value])
// that the model embeds in its free-text replies.
//
// The grammar is a best-effort heuristic: anything that does not scan as a
// directive is left alone as prose, and parsing never fails.
package tags

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Tags maps a directive key to its value: a string, []any or map[string]any.
type Tags map[string]any

// Parse extracts every directive in text. When a key repeats, the last one wins.
func Parse(text string) Tags {
	out := Tags{}
	for _, m := range scan(text) {
		for _, p := range m.pairs {
			out[p.key] = decode(p.raw)
		}
	}
	return out
}

// Strip removes every directive from text and trims the remainder.
func Strip(text string) string {
	matches := scan(text)
	if len(matches) == 0 {
		return strings.TrimSpace(text)
	}
	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(text[last:m.start])
		last = m.end
	}
	sb.WriteString(text[last:])
	return strings.TrimSpace(sb.String())
}

// Format serializes value as a single directive, e.g. [WEB_SEARCH_RESULTS: {...}].
func Format(key string, value any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return "", fmt.Errorf("format tag %s: %w", key, err)
	}
	return fmt.Sprintf("[%s: %s]", key, strings.TrimRight(buf.String(), "\n")), nil
}

func (t Tags) Has(key string) bool {
	_, ok := t[key]
	return ok
}

func (t Tags) String(key string) (string, bool) {
	s, ok := t[key].(string)
	return s, ok
}

// Equal reports whether key holds a string equal to want, ignoring case and
// surrounding space.
func (t Tags) Equal(key, want string) bool {
	s, ok := t.String(key)
	return ok && strings.EqualFold(strings.TrimSpace(s), want)
}

func (t Tags) List(key string) ([]any, bool) {
	l, ok := t[key].([]any)
	return l, ok
}

func decode(raw string) any {
	raw = strings.TrimSpace(raw)

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		switch v.(type) {
		case string, []any, map[string]any:
			return v
		}
	}

	if n := len(raw); n >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[n-1] == raw[0] {
		raw = raw[1 : n-1]
	}
	return unescapeUnicode(raw)
}

var unicodeRun = regexp.MustCompile(`(?:\\u[0-9a-fA-F]{4})+`)

// unescapeUnicode resolves \uXXXX sequences, pairing UTF-16 surrogates.
func unescapeUnicode(s string) string {
	if !strings.Contains(s, `\u`) {
		return s
	}
	return unicodeRun.ReplaceAllStringFunc(s, func(run string) string {
		units := make([]uint16, 0, len(run)/6)
		for i := 0; i+6 <= len(run); i += 6 {
			n, err := strconv.ParseUint(run[i+2:i+6], 16, 16)
			if err != nil {
				return run
			}
			units = append(units, uint16(n))
		}
		return string(utf16.Decode(units))
	})
}
