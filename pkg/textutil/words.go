package textutil

import (
	"strings"
	"unicode/utf8"
)

// ContainsWholeWord reports whether phrase occurs in s delimited by non-word runes
// or the string edges.
func ContainsWholeWord(s, phrase string) bool {
	if phrase == "" {
		return false
	}
	for i := 0; i < len(s); {
		j := strings.Index(s[i:], phrase)
		if j < 0 {
			return false
		}
		start := i + j
		if atBoundary(s, start, start+len(phrase)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		i = start + size
	}
	return false
}

// ReplaceWholeWord replaces every whole-word occurrence of old in s with repl,
// scanning left to right without re-examining replaced text.
func ReplaceWholeWord(s, old, repl string) string {
	if old == "" || !strings.Contains(s, old) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		j := strings.Index(s[i:], old)
		if j < 0 {
			break
		}
		start := i + j
		end := start + len(old)
		if atBoundary(s, start, end) {
			b.WriteString(s[i:start])
			b.WriteString(repl)
			i = end
			continue
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		b.WriteString(s[i : start+size])
		i = start + size
	}
	b.WriteString(s[i:])
	return b.String()
}

func atBoundary(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if IsWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if IsWordRune(r) {
			return false
		}
	}
	return true
}
