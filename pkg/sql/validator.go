// Package sql provides the statement-level checks applied to oracle output
// before anything reaches the data engine.
package sql

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	fencedBlockPattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	codeFencePattern   = regexp.MustCompile("```[a-zA-Z]*")
	selectStartPattern = regexp.MustCompile(`(?i)\bSELECT\b`)
)

// ExtractSelect returns the text starting at the first SELECT keyword of raw
// oracle output. A fenced code block holding a SELECT wins over surrounding
// commentary. It returns "" if no SELECT exists.
func ExtractSelect(raw string) string {
	for _, block := range fencedBlockPattern.FindAllStringSubmatch(raw, -1) {
		if loc := selectStartPattern.FindStringIndex(block[1]); loc != nil {
			return strings.TrimSpace(block[1][loc[0]:])
		}
	}

	cleaned := codeFencePattern.ReplaceAllString(raw, " ")
	loc := selectStartPattern.FindStringIndex(cleaned)
	if loc == nil {
		return ""
	}
	return strings.TrimSpace(cleaned[loc[0]:])
}

// TruncateAtTerminator cuts sqlQuery at the first statement terminator found
// outside string literals and quoted identifiers, so at most one statement survives.
func TruncateAtTerminator(sqlQuery string) string {
	if idx := firstSemicolonOutsideStrings(sqlQuery); idx >= 0 {
		sqlQuery = sqlQuery[:idx]
	}
	return strings.TrimSpace(sqlQuery)
}

// IsSelectStatement reports whether sqlQuery begins, case-insensitively, with
// the SELECT keyword.
func IsSelectStatement(sqlQuery string) bool {
	q := strings.TrimSpace(sqlQuery)
	if len(q) < len("SELECT") || !strings.EqualFold(q[:len("SELECT")], "SELECT") {
		return false
	}
	if len(q) == len("SELECT") {
		return true
	}
	r, _ := utf8.DecodeRuneInString(q[len("SELECT"):])
	return !isIdentRune(r)
}

// ReferencesAny returns the first allowed name referenced as an identifier in
// sqlQuery. Names that only appear inside string literals or comments do not count.
func ReferencesAny(sqlQuery string, allowed []string) (string, bool) {
	code := strings.ToLower(StripLiteralsAndComments(sqlQuery))
	for _, name := range allowed {
		if name == "" {
			continue
		}
		if containsIdentifier(code, strings.ToLower(name)) {
			return name, true
		}
	}
	return "", false
}

// StripLiteralsAndComments blanks out single-quoted literals, line comments and
// block comments while keeping offsets stable. Double-quoted identifiers keep
// their content without the quotes.
func StripLiteralsAndComments(sqlQuery string) string {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateLineComment
		stateBlockComment
	)

	out := []byte(sqlQuery)
	state := stateNormal
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch state {
		case stateNormal:
			switch {
			case c == '\'':
				state = stateSingleQuote
				out[i] = ' '
			case c == '"':
				state = stateDoubleQuote
				out[i] = ' '
			case c == '-' && i+1 < len(out) && out[i+1] == '-':
				state = stateLineComment
				out[i] = ' '
			case c == '/' && i+1 < len(out) && out[i+1] == '*':
				state = stateBlockComment
				out[i] = ' '
			}
		case stateSingleQuote:
			if c == '\'' {
				state = stateNormal
			}
			out[i] = ' '
		case stateDoubleQuote:
			if c == '"' {
				state = stateNormal
				out[i] = ' '
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
			} else {
				out[i] = ' '
			}
		case stateBlockComment:
			if c == '/' && i > 0 && sqlQuery[i-1] == '*' {
				state = stateNormal
			}
			out[i] = ' '
		}
	}
	return string(out)
}

// firstSemicolonOutsideStrings returns the byte offset of the first semicolon
// outside string literals and quoted identifiers, or -1.
func firstSemicolonOutsideStrings(sqlQuery string) int {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for i, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return i
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// A doubled quote ('') exits and immediately re-enters, staying in the literal.
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return -1
}

func containsIdentifier(code, name string) bool {
	for i := 0; i < len(code); {
		j := strings.Index(code[i:], name)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(name)
		before, after := rune(' '), rune(' ')
		if start > 0 {
			before, _ = utf8.DecodeLastRuneInString(code[:start])
		}
		if end < len(code) {
			after, _ = utf8.DecodeRuneInString(code[end:])
		}
		if !isIdentRune(before) && !isIdentRune(after) {
			return true
		}
		i = start + 1
	}
	return false
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$'
}
