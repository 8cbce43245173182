package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/adapters/datasource"
	"github.com/ekaya-inc/election-assistant/pkg/apperrors"
	"github.com/ekaya-inc/election-assistant/pkg/logging"
	"github.com/ekaya-inc/election-assistant/pkg/models"
	"github.com/ekaya-inc/election-assistant/pkg/schema"
	sqlpkg "github.com/ekaya-inc/election-assistant/pkg/sql"
)

// ExecutionGate is the safety boundary between oracle output and the engine.
type ExecutionGate interface {
	// Check truncates queryText at its first terminator and verifies it is a
	// SELECT reading only allow-listed objects. The returned text is what
	// Execute would run. Rejections wrap apperrors.ErrSecurity; text the SQL
	// grammar does not accept returns *apperrors.ExecutionError with
	// KindSyntaxError so it can be regenerated.
	Check(queryText string) (string, error)

	// Execute gates and runs queryText. An empty result is not an error and
	// carries KindNoResults. Engine failures return *apperrors.ExecutionError.
	Execute(ctx context.Context, queryText string) (*models.ExecutionResult, error)
}

type executionGate struct {
	registry *schema.Registry
	executor datasource.QueryExecutor
	logger   *zap.Logger
}

// NewExecutionGate creates an ExecutionGate running queries through executor.
func NewExecutionGate(registry *schema.Registry, executor datasource.QueryExecutor, logger *zap.Logger) ExecutionGate {
	return &executionGate{
		registry: registry,
		executor: executor,
		logger:   logger.Named("execution-gate"),
	}
}

var _ ExecutionGate = (*executionGate)(nil)

func (g *executionGate) Check(queryText string) (string, error) {
	query := sqlpkg.TruncateAtTerminator(queryText)

	if !sqlpkg.IsSelectStatement(query) {
		stmtType := sqlpkg.DetectStatementType(query)
		g.logger.Warn("Blocked non-SELECT statement",
			zap.String("statement_type", string(stmtType)),
			zap.Bool("modifying", sqlpkg.IsModifying(stmtType)),
			zap.String("sql", logging.SanitizeQuery(query)))
		return query, fmt.Errorf("%w: only SELECT statements may run", apperrors.ErrSecurity)
	}

	allowed := g.registry.AllowedObjects()
	if _, ok := sqlpkg.ReferencesAny(query, allowed); !ok {
		g.logger.Warn("Blocked query without allow-listed source", zap.String("sql", logging.SanitizeQuery(query)))
		return query, fmt.Errorf("%w: query references no allowed view or table", apperrors.ErrSecurity)
	}

	unlisted, err := sqlpkg.UnlistedSources(query, allowed)
	var parseErr *sqlpkg.ParseError
	switch {
	case errors.As(err, &parseErr):
		g.logger.Info("Query rejected by SQL parser",
			zap.String("sql", logging.SanitizeQuery(query)),
			zap.String("error", logging.SanitizeError(err)))
		return query, &apperrors.ExecutionError{Kind: apperrors.KindSyntaxError, Cause: err}
	case err != nil:
		g.logger.Warn("Blocked statement that is not a single SELECT",
			zap.String("sql", logging.SanitizeQuery(query)),
			zap.String("error", err.Error()))
		return query, fmt.Errorf("%w: %v", apperrors.ErrSecurity, err)
	case len(unlisted) > 0:
		g.logger.Warn("Blocked query reading unlisted sources",
			zap.Strings("sources", unlisted),
			zap.String("sql", logging.SanitizeQuery(query)))
		return query, fmt.Errorf("%w: query reads from %s", apperrors.ErrSecurity, strings.Join(unlisted, ", "))
	}

	return query, nil
}

func (g *executionGate) Execute(ctx context.Context, queryText string) (*models.ExecutionResult, error) {
	query, err := g.Check(queryText)
	if err != nil {
		return &models.ExecutionResult{QueryText: query, Kind: apperrors.KindOf(err)}, err
	}

	res, err := g.executor.Query(ctx, query, g.registry.RowLimit())
	if err != nil {
		kind := ClassifyExecutionError(err)
		g.logger.Warn("Query execution failed",
			zap.String("kind", string(kind)),
			zap.String("sql", logging.SanitizeQuery(query)),
			zap.String("error", logging.SanitizeError(err)))
		return &models.ExecutionResult{QueryText: query, Kind: kind}, &apperrors.ExecutionError{Kind: kind, Cause: err}
	}

	result := &models.ExecutionResult{
		Columns:   res.ColumnNames(),
		Rows:      res.Rows,
		QueryText: query,
		Truncated: res.Truncated,
	}
	if len(res.Rows) == 0 {
		result.Kind = apperrors.KindNoResults
	}
	return result, nil
}

// ClassifyExecutionError maps an engine error onto the retry taxonomy by
// substring: "column" means an unknown column, "syntax" or "parser" a
// syntax error. Everything else, including timeouts, is terminal.
func ClassifyExecutionError(err error) apperrors.ErrorKind {
	if err == nil {
		return apperrors.KindNone
	}
	var execErr *apperrors.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Kind
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "column"):
		return apperrors.KindUnknownColumn
	case strings.Contains(msg, "syntax"), strings.Contains(msg, "parser"):
		return apperrors.KindSyntaxError
	default:
		return apperrors.KindExecutionFailed
	}
}
