package datasource

import "fmt"

// EffectiveLimit clamps a requested limit to (0, MaxQueryLimit].
func EffectiveLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}

// WrapWithLimit bounds sqlQuery. One extra row is requested so callers can
// tell a result that exactly fills the limit from a truncated one. The inner
// query ends on its own line so a trailing -- comment cannot swallow the
// closing parenthesis.
func WrapWithLimit(sqlQuery string, limit int) string {
	return fmt.Sprintf("SELECT * FROM (\n%s\n) AS _limited LIMIT %d", sqlQuery, EffectiveLimit(limit)+1)
}

// TrimToLimit drops the extra row requested by WrapWithLimit and marks the result truncated.
func TrimToLimit(result *QueryExecutionResult, limit int) *QueryExecutionResult {
	limit = EffectiveLimit(limit)
	if len(result.Rows) > limit {
		result.Rows = result.Rows[:limit]
		result.Truncated = true
	}
	result.RowCount = len(result.Rows)
	return result
}
