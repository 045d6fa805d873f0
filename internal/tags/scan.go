package tags

import "strings"

type pair struct {
	key string
	raw string
}

// match is one bracket group: text[start:end] including both brackets.
type match struct {
	start, end int
	pairs      []pair
}

func scan(text string) []match {
	var out []match
	for i := 0; i < len(text); {
		if text[i] != '[' || isDoubleBracket(text, i) {
			i++
			continue
		}
		m, ok := matchAt(text, i)
		if !ok {
			i++
			continue
		}
		out = append(out, m)
		i = m.end
	}
	return out
}

// [[...]] markers belong to the citation layer.
func isDoubleBracket(text string, i int) bool {
	return (i > 0 && text[i-1] == '[') || (i+1 < len(text) && text[i+1] == '[')
}

func matchAt(text string, start int) (match, bool) {
	m := match{start: start}
	pos := start + 1
	for {
		key, p, ok := ident(text, pos)
		if !ok || p >= len(text) || text[p] != ':' {
			return match{}, false
		}
		p = skipSpace(text, p+1)

		raw, next, closed, ok := value(text, p)
		if !ok {
			return match{}, false
		}
		m.pairs = append(m.pairs, pair{key: key, raw: raw})
		if closed {
			m.end = next
			return m, true
		}
		pos = next
	}
}

// value returns the raw value starting at p and where scanning resumes.
// closed reports whether the bracket group ended; otherwise next points at
// the identifier of a further comma-separated pair.
func value(text string, p int) (raw string, next int, closed bool, ok bool) {
	if p < len(text) {
		switch text[p] {
		case '"', '\'':
			if end, n, c, found := quoted(text, p); found {
				return text[p:end], n, c, true
			}
		case '[', '{':
			if end, n, c, found := balanced(text, p); found {
				return text[p:end], n, c, true
			}
		}
	}
	end, found := bare(text, p)
	if !found {
		return "", 0, false, false
	}
	return strings.TrimSpace(text[p:end]), end + 1, true, true
}

// quoted finds the shortest quoted run whose closing quote is followed by a
// terminator on the same line. A value that does not close there is read by
// bare instead.
func quoted(text string, p int) (end, next int, closed, ok bool) {
	q := text[p]
	for j := p + 1; j < len(text); j++ {
		c := text[j]
		switch {
		case c == '\n':
			return 0, 0, false, false
		case c == '\\':
			j++
		case c == q:
			if n, cl, found := terminator(text, j+1); found {
				return j + 1, n, cl, true
			}
		}
	}
	return 0, 0, false, false
}

// balanced scans a JSON array or object, honouring double-quoted strings.
func balanced(text string, p int) (end, next int, closed, ok bool) {
	depth := 0
	inString := false
	for j := p; j < len(text); j++ {
		c := text[j]
		if inString {
			switch c {
			case '\\':
				j++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				n, cl, found := terminator(text, j+1)
				if !found {
					return 0, 0, false, false
				}
				return j + 1, n, cl, true
			}
			if depth < 0 {
				return 0, 0, false, false
			}
		}
	}
	return 0, 0, false, false
}

// bare returns the index of the next ']', which may be on a later line.
func bare(text string, p int) (int, bool) {
	if j := strings.IndexByte(text[p:], ']'); j >= 0 {
		return p + j, true
	}
	return 0, false
}

func terminator(text string, p int) (next int, closed bool, ok bool) {
	q := skipSpace(text, p)
	if q >= len(text) {
		return 0, false, false
	}
	switch text[q] {
	case ']':
		return q + 1, true, true
	case ',':
		r := skipSpace(text, q+1)
		if _, after, found := ident(text, r); found && after < len(text) && text[after] == ':' {
			return r, false, true
		}
	}
	return 0, false, false
}

func ident(text string, p int) (string, int, bool) {
	j := p
	for j < len(text) && isWordByte(text[j]) {
		j++
	}
	if j == p {
		return "", p, false
	}
	return text[p:j], j, true
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func skipSpace(text string, p int) int {
	for p < len(text) {
		switch text[p] {
		case ' ', '\t', '\r', '\n':
			p++
		default:
			return p
		}
	}
	return p
}
