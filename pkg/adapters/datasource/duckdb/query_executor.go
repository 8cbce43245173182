package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/adapters/datasource"
	sqlpkg "github.com/ekaya-inc/election-assistant/pkg/sql"
)

// QueryExecutor provides DuckDB query execution through database/sql.
type QueryExecutor struct {
	db     *sql.DB
	logger *zap.Logger

	// serialize guards the handle when Serialize is set; the embedded engine
	// is opened once per process and some builds do not tolerate parallel readers.
	serialize bool
	mu        sync.Mutex
}

// NewQueryExecutor opens the database file described by cfg.
func NewQueryExecutor(ctx context.Context, cfg *Config, logger *zap.Logger) (*QueryExecutor, error) {
	db, err := sql.Open("duckdb", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	return NewQueryExecutorFromDB(db, cfg.Serialize, logger), nil
}

// NewQueryExecutorFromDB wraps an existing handle. The executor takes ownership of db.
func NewQueryExecutorFromDB(db *sql.DB, serialize bool, logger *zap.Logger) *QueryExecutor {
	return &QueryExecutor{
		db:        db,
		serialize: serialize,
		logger:    logger.Named("duckdb"),
	}
}

// Query runs a SELECT statement wrapped with a row limit.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
	return e.QueryWithParams(ctx, sqlQuery, nil, limit)
}

// QueryWithParams runs a parameterized SELECT wrapped with a row limit. Placeholders use ?.
func (e *QueryExecutor) QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryExecutionResult, error) {
	result, err := e.collect(ctx, datasource.WrapWithLimit(sqlQuery, limit), params)
	if err != nil {
		return nil, err
	}
	return datasource.TrimToLimit(result, limit), nil
}

// FindSimilarValues implements datasource.QueryExecutor using DuckDB's levenshtein and list functions.
func (e *QueryExecutor) FindSimilarValues(ctx context.Context, view, column, term string, limit int) ([]string, error) {
	col := fmt.Sprintf("CAST(%s AS VARCHAR)", sqlpkg.QuoteIdentifier(column))
	query := fmt.Sprintf(`SELECT val FROM (
	SELECT DISTINCT %[1]s AS val
	FROM %[2]s
	WHERE %[3]s IS NOT NULL AND (
		%[1]s ILIKE '%%' || ? || '%%' ESCAPE '\'
		OR levenshtein(UPPER(%[1]s), UPPER(?)) <= 2
		OR list_contains(string_split(UPPER(%[1]s), ' '), UPPER(?))
	)
) d
ORDER BY length(val), val
LIMIT ?`, col, quoteQualified(view), sqlpkg.QuoteIdentifier(column))

	result, err := e.collect(ctx, query, []any{sqlpkg.EscapeLike(term), term, term, limit})
	if err != nil {
		return nil, fmt.Errorf("find similar values for %s.%s: %w", view, column, err)
	}

	values := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		if s, ok := row["val"].(string); ok {
			values = append(values, s)
		}
	}
	return values, nil
}

// Dialect implements datasource.QueryExecutor.
func (e *QueryExecutor) Dialect() datasource.Dialect {
	return datasource.DialectDuckDB
}

// Ping implements datasource.QueryExecutor.
func (e *QueryExecutor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Close releases the database handle.
func (e *QueryExecutor) Close() error {
	return e.db.Close()
}

func (e *QueryExecutor) collect(ctx context.Context, query string, params []any) (*datasource.QueryExecutionResult, error) {
	if e.serialize {
		e.mu.Lock()
		defer e.mu.Unlock()
	}

	rows, err := e.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read column types: %w", err)
	}
	columns := make([]datasource.ColumnInfo, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = datasource.ColumnInfo{Name: ct.Name(), Type: strings.ToUpper(ct.DatabaseTypeName())}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = normalizeValue(values[i])
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &datasource.QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// normalizeValue converts driver-specific values into JSON-friendly ones.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case duckdb.Decimal:
		return val.Float64()
	case []byte:
		return string(val)
	default:
		return v
	}
}

// quoteQualified quotes each part of a possibly schema-qualified name.
func quoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = sqlpkg.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}
