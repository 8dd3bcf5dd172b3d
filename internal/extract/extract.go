package extract

import (
	"strings"

	"github.com/tidwall/gjson"
)

const codeFence = "```"

// ExtractObject locates the most plausible JSON object span inside raw model
// text. A balanced span inside a fenced code block wins, then a balanced span
// anywhere in the text; only when no balanced span exists is a truncated tail
// handed through for the repair pass. The second return is false only when no
// '{' exists at all.
func ExtractObject(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	block, hasFence := fencedBlock(raw)
	if hasFence {
		if span, ok := balancedObject(block); ok {
			return span, true
		}
	}
	if span, ok := balancedObject(raw); ok {
		return span, true
	}
	// Truncated output: hand everything from the first brace to the repair
	// pass, which can close trailing braces.
	if hasFence {
		if start := strings.Index(block, "{"); start != -1 {
			return strings.TrimSpace(block[start:]), true
		}
	}
	if start := strings.Index(raw, "{"); start != -1 {
		return strings.TrimSpace(raw[start:]), true
	}
	return "", false
}

// fencedBlock returns the content of the first ``` code block, with a leading
// language tag line such as "json" dropped.
func fencedBlock(raw string) (string, bool) {
	start := strings.Index(raw, codeFence)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(codeFence):]
	end := strings.Index(rest, codeFence)
	if end == -1 {
		return "", false
	}
	block := strings.TrimLeft(rest[:end], "\r\n")
	if idx := strings.Index(block, "\n"); idx != -1 {
		first := strings.TrimSpace(block[:idx])
		if first != "" && !strings.ContainsAny(first, "{") {
			block = block[idx+1:]
		}
	}
	block = strings.TrimSpace(block)
	return block, block != ""
}

// balancedObject scans for a balanced {...} span, aware of string literals and
// escapes. Every '{' is tried as a start: a span that parses as JSON wins over
// an earlier balanced-but-invalid one, so a stray brace in surrounding prose
// cannot shadow the real object.
func balancedObject(raw string) (string, bool) {
	first := ""
	start := strings.Index(raw, "{")
	for start != -1 {
		if span, ok := scanBalanced(raw, start); ok {
			if gjson.Valid(span) {
				return span, true
			}
			if first == "" {
				first = span
			}
		}
		next := strings.Index(raw[start+1:], "{")
		if next == -1 {
			break
		}
		start += 1 + next
	}
	if first != "" {
		return first, true
	}
	return "", false
}

func scanBalanced(raw string, start int) (string, bool) {
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(raw[start : i+1]), true
			}
		}
	}
	return "", false
}
