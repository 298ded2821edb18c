// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import "strings"

// ExtractJSON returns the first balanced JSON object or array in s,
// stripping markdown code fences and any prose around it. Returns ""
// when no JSON value is present.
func ExtractJSON(s string) string {
	s = stripFences(s)

	start := -1
	for i, ch := range s {
		if ch == '{' || ch == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{' || ch == '[':
			depth++
		case ch == '}' || ch == ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:] // drop the language tag line
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// RepairJSON fixes the formatting slips models most often make:
// trailing commas before a closing brace or bracket, and unquoted
// object keys.
func RepairJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString := false
	escaped := false
	expectKey := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			b.WriteByte(ch)
			escaped = false
			continue
		}
		if inString {
			if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			b.WriteByte(ch)
			continue
		}
		switch ch {
		case '"':
			inString = true
			expectKey = false
			b.WriteByte(ch)
		case '{', ',':
			expectKey = true
			b.WriteByte(ch)
		case '}', ']':
			// Drop a trailing comma emitted before the close.
			trimmed := strings.TrimRight(b.String(), " \t\n")
			if strings.HasSuffix(trimmed, ",") {
				rebuilt := trimmed[:len(trimmed)-1]
				b.Reset()
				b.WriteString(rebuilt)
			}
			expectKey = false
			b.WriteByte(ch)
		default:
			if expectKey && isIdentStart(ch) {
				// Quote an unquoted key: word characters up to ':'.
				j := i
				for j < len(s) && isIdentChar(s[j]) {
					j++
				}
				k := j
				for k < len(s) && (s[k] == ' ' || s[k] == '\t') {
					k++
				}
				if k < len(s) && s[k] == ':' {
					b.WriteByte('"')
					b.WriteString(s[i:j])
					b.WriteByte('"')
					i = j - 1
					expectKey = false
					continue
				}
			}
			if !isSpace(ch) {
				expectKey = false
			}
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func isIdentStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_'
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || ch >= '0' && ch <= '9'
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}
