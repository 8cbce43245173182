package sql

import (
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a value flagged by libinjection.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Field       string // Name of the field that failed the check
	Value       string // The value that was checked
}

// CheckValueForInjection runs libinjection over a caller-supplied value that
// will be embedded in prompts or in a fallback query literal. It returns nil
// when the value is clean.
//
//	CheckValueForInjection("circonscription", "DIVO, COMMUNE")    // nil
//	CheckValueForInjection("circonscription", "1' OR '1'='1")     // IsSQLi == true
func CheckValueForInjection(field, value string) *InjectionCheckResult {
	if value == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Field:       field,
		Value:       value,
	}
}

// QuoteLiteral renders value as a single-quoted SQL string literal with
// embedded quotes doubled.
func QuoteLiteral(value string) string {
	out := make([]byte, 0, len(value)+2)
	out = append(out, '\'')
	for i := 0; i < len(value); i++ {
		if value[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, value[i])
	}
	return string(append(out, '\''))
}

// EscapeLike escapes the LIKE wildcards % and _ and the escape character
// itself, for patterns declared with ESCAPE '\'.
func EscapeLike(value string) string {
	return likeEscaper.Replace(value)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// QuoteIdentifier renders name as a double-quoted identifier.
func QuoteIdentifier(name string) string {
	out := make([]byte, 0, len(name)+2)
	out = append(out, '"')
	for i := 0; i < len(name); i++ {
		if name[i] == '"' {
			out = append(out, '"')
		}
		out = append(out, name[i])
	}
	return string(append(out, '"'))
}
