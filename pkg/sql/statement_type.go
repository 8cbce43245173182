package sql

import (
	"regexp"
	"strings"
)

// StatementType is the kind of statement a query text starts with.
type StatementType string

const (
	StatementSelect  StatementType = "SELECT"
	StatementCTE     StatementType = "WITH"
	StatementInsert  StatementType = "INSERT"
	StatementUpdate  StatementType = "UPDATE"
	StatementDelete  StatementType = "DELETE"
	StatementCall    StatementType = "CALL"
	StatementDDL     StatementType = "DDL"     // CREATE, ALTER, DROP, TRUNCATE
	StatementPragma  StatementType = "PRAGMA"  // PRAGMA, SET, ATTACH, COPY, INSTALL, LOAD
	StatementUnknown StatementType = "UNKNOWN" // Unrecognized or transaction control
)

// modifyingCTEPattern matches CTEs that contain data-modifying operations.
// Example: WITH deleted AS (DELETE FROM ...) SELECT * FROM deleted
var modifyingCTEPattern = regexp.MustCompile(`(?i)\bAS\s*\(\s*(INSERT|UPDATE|DELETE)\b`)

// DetectStatementType classifies sqlQuery by its first keyword. It is used to
// label gate rejections; the gate itself only admits StatementSelect.
func DetectStatementType(sqlQuery string) StatementType {
	normalized := strings.ToUpper(strings.TrimSpace(sqlQuery))
	firstWord := normalized
	if i := strings.IndexFunc(normalized, func(r rune) bool { return !isIdentRune(r) }); i >= 0 {
		firstWord = normalized[:i]
	}

	switch firstWord {
	case "SELECT":
		return StatementSelect
	case "WITH":
		if modifyingCTEPattern.MatchString(sqlQuery) {
			return StatementUnknown
		}
		return StatementCTE
	case "INSERT":
		return StatementInsert
	case "UPDATE":
		return StatementUpdate
	case "DELETE":
		return StatementDelete
	case "CALL":
		return StatementCall
	case "CREATE", "ALTER", "DROP", "TRUNCATE":
		return StatementDDL
	case "PRAGMA", "SET", "ATTACH", "DETACH", "COPY", "INSTALL", "LOAD", "EXPORT", "IMPORT":
		return StatementPragma
	default:
		return StatementUnknown
	}
}

// IsModifying returns true if the statement type can change data or schema.
func IsModifying(t StatementType) bool {
	switch t {
	case StatementInsert, StatementUpdate, StatementDelete, StatementCall, StatementDDL, StatementPragma:
		return true
	default:
		return false
	}
}
