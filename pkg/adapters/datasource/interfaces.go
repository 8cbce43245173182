// Package datasource defines the read-only data engine contract and the
// registry that engine adapters add themselves to.
package datasource

import "context"

// MaxQueryLimit is the hard cap on rows returned by Query methods.
const MaxQueryLimit = 1000

// Dialect names the SQL flavour an executor speaks.
type Dialect string

const (
	DialectDuckDB   Dialect = "duckdb"
	DialectPostgres Dialect = "postgres"
)

// DisplayName is the engine name used in generation instructions.
func (d Dialect) DisplayName() string {
	switch d {
	case DialectDuckDB:
		return "DuckDB"
	case DialectPostgres:
		return "PostgreSQL"
	default:
		return string(d)
	}
}

// QueryExecutor runs bounded read-only queries against the election dataset.
// Each implementation owns its connection and must be closed when done.
type QueryExecutor interface {
	// Query runs a SELECT statement and returns bounded results.
	// The query is always wrapped: SELECT * FROM (\n query \n) AS _limited LIMIT n.
	//
	// Limit behavior:
	//   - limit <= 0: uses MaxQueryLimit
	//   - limit > MaxQueryLimit: capped to MaxQueryLimit
	Query(ctx context.Context, sqlQuery string, limit int) (*QueryExecutionResult, error)

	// QueryWithParams runs a parameterized SELECT with the same bounding as Query.
	// Placeholders follow the dialect: ? for DuckDB, $1..$n for PostgreSQL.
	QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*QueryExecutionResult, error)

	// FindSimilarValues returns up to limit distinct values of column in view
	// that contain term, sit within edit distance 2 of it, or contain it as a
	// whole word. Matching is case-insensitive. Shorter values come first.
	FindSimilarValues(ctx context.Context, view, column, term string, limit int) ([]string, error)

	// Dialect reports the SQL flavour.
	Dialect() Dialect

	// Ping verifies the engine is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the executor.
	Close() error
}

// ColumnInfo describes a result column with database-agnostic type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Engine type name (e.g., "VARCHAR", "INT8")
}

// QueryExecutionResult holds the results from executing a query.
type QueryExecutionResult struct {
	Columns  []ColumnInfo     `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
	// Truncated is set when the engine had more rows than the applied limit.
	Truncated bool `json:"truncated"`
}

// ColumnNames returns the result column names in order.
func (r *QueryExecutionResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}
