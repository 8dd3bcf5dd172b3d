package extract

import (
	"strings"

	"github.com/tidwall/gjson"
)

// RepairObject tries a fixed sequence of repair heuristics on an invalid JSON
// span, re-checking strict validity after each. Heuristics accumulate: closing
// braces runs on the comma/quote-fixed text. Returns the first valid variant.
func RepairObject(span string) (string, bool) {
	if gjson.Valid(span) {
		return span, true
	}
	for _, repair := range []func(string) string{
		stripTrailingCommas,
		normalizeQuotes,
		closeTrailingBraces,
	} {
		span = repair(span)
		if gjson.Valid(span) {
			return span, true
		}
	}
	return "", false
}

// stripTrailingCommas removes commas that directly precede a closing brace or
// bracket, outside string literals.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escape := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			continue
		}
		if ch == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue // drop the comma
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// normalizeQuotes converts single-quoted and typographic-quoted strings to
// double-quoted ones, leaving apostrophes inside double-quoted strings alone.
func normalizeQuotes(s string) string {
	replacer := strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
	s = replacer.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	inDouble := false
	inSingle := false
	escape := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case inDouble:
			b.WriteByte(ch)
			if escape {
				escape = false
			} else if ch == '\\' {
				escape = true
			} else if ch == '"' {
				inDouble = false
			}
		case inSingle:
			if ch == '\'' {
				b.WriteByte('"')
				inSingle = false
			} else if ch == '"' {
				b.WriteString(`\"`)
			} else {
				b.WriteByte(ch)
			}
		case ch == '"':
			inDouble = true
			b.WriteByte(ch)
		case ch == '\'':
			inSingle = true
			b.WriteByte('"')
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// closeTrailingBraces appends the closers a truncated object is missing.
func closeTrailingBraces(s string) string {
	type opener struct{ ch byte }
	var stack []opener
	inString := false
	escape := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, opener{ch})
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if inString {
		s += `"`
	}
	s = strings.TrimRight(s, " \t\r\n")
	s = strings.TrimSuffix(s, ",")
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].ch == '{' {
			s += "}"
		} else {
			s += "]"
		}
	}
	return s
}
