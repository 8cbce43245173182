package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/adapters/datasource"
	sqlpkg "github.com/ekaya-inc/election-assistant/pkg/sql"
)

// QueryExecutor provides PostgreSQL query execution over a pgx pool whose
// sessions default to read-only transactions.
type QueryExecutor struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewQueryExecutor creates a pool for cfg.
func NewQueryExecutor(ctx context.Context, cfg *Config, logger *zap.Logger) (*QueryExecutor, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "election-assistant"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &QueryExecutor{
		pool:   pool,
		logger: logger.Named("postgres"),
	}, nil
}

// Query runs a SELECT statement wrapped with a row limit.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
	return e.QueryWithParams(ctx, sqlQuery, nil, limit)
}

// QueryWithParams runs a parameterized SELECT wrapped with a row limit.
// pgx binds $1, $2, ... natively.
func (e *QueryExecutor) QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryExecutionResult, error) {
	result, err := e.collect(ctx, datasource.WrapWithLimit(sqlQuery, limit), params)
	if err != nil {
		return nil, err
	}
	return datasource.TrimToLimit(result, limit), nil
}

// FindSimilarValues implements datasource.QueryExecutor. Requires fuzzystrmatch.
func (e *QueryExecutor) FindSimilarValues(ctx context.Context, view, column, term string, limit int) ([]string, error) {
	col := pgx.Identifier{column}.Sanitize() + "::text"
	query := fmt.Sprintf(`SELECT val FROM (
	SELECT DISTINCT %[1]s AS val
	FROM %[2]s
	WHERE %[3]s IS NOT NULL AND (
		%[1]s ILIKE '%%' || $3 || '%%' ESCAPE '\'
		OR levenshtein(UPPER(%[1]s), UPPER($1)) <= 2
		OR UPPER($1) = ANY(string_to_array(UPPER(%[1]s), ' '))
	)
) d
ORDER BY length(val), val
LIMIT $2`, col, pgx.Identifier(strings.Split(view, ".")).Sanitize(), pgx.Identifier{column}.Sanitize())

	rows, err := e.pool.Query(ctx, query, term, limit, sqlpkg.EscapeLike(term))
	if err != nil {
		return nil, fmt.Errorf("find similar values for %s.%s: %w", view, column, err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("find similar values for %s.%s: %w", view, column, err)
	}
	return values, nil
}

// Dialect implements datasource.QueryExecutor.
func (e *QueryExecutor) Dialect() datasource.Dialect {
	return datasource.DialectPostgres
}

// Ping implements datasource.QueryExecutor.
func (e *QueryExecutor) Ping(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

// Close releases the pool.
func (e *QueryExecutor) Close() error {
	e.pool.Close()
	return nil
}

func (e *QueryExecutor) collect(ctx context.Context, query string, params []any) (*datasource.QueryExecutionResult, error) {
	rows, err := e.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	typeMap := rows.Conn().TypeMap()
	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		typeName := "UNKNOWN"
		if t, ok := typeMap.TypeForOID(fd.DataTypeOID); ok {
			typeName = strings.ToUpper(t.Name)
		}
		columns[i] = datasource.ColumnInfo{Name: fd.Name, Type: typeName}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
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

// normalizeValue turns NUMERIC (SUM over integers, AVG) into float64.
func normalizeValue(v any) any {
	if n, ok := v.(pgtype.Numeric); ok {
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	}
	return v
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
