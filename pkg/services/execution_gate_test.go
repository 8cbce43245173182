package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/election-assistant/pkg/adapters/datasource"
	"github.com/ekaya-inc/election-assistant/pkg/apperrors"
	"github.com/ekaya-inc/election-assistant/pkg/testhelpers"
)

func TestExecutionGate_Check(t *testing.T) {
	gate := NewExecutionGate(testhelpers.ElectionRegistry(t), &datasource.MockQueryExecutor{}, zap.NewNop())

	tests := []struct {
		name      string
		query     string
		wantQuery string
		wantErr   bool
	}{
		{
			name:      "plain select",
			query:     "SELECT SUM(voix) FROM vw_results_clean WHERE parti_standardized = 'RHDP'",
			wantQuery: "SELECT SUM(voix) FROM vw_results_clean WHERE parti_standardized = 'RHDP'",
		},
		{
			name:      "second statement dropped",
			query:     "SELECT * FROM vw_winners; DROP TABLE election_results",
			wantQuery: "SELECT * FROM vw_winners",
		},
		{
			name:      "semicolon inside literal kept",
			query:     "SELECT * FROM vw_results_clean WHERE candidat = 'A;B'",
			wantQuery: "SELECT * FROM vw_results_clean WHERE candidat = 'A;B'",
		},
		{
			name:      "case-insensitive keyword and name",
			query:     "  select candidat from VW_WINNERS  ",
			wantQuery: "select candidat from VW_WINNERS",
		},
		{
			name:      "allow-listed table with alias",
			query:     "SELECT c.region FROM circonscriptions c",
			wantQuery: "SELECT c.region FROM circonscriptions c",
		},
		{
			name:      "subquery over allowed views",
			query:     "SELECT * FROM vw_winners WHERE circonscription IN (SELECT circonscription FROM vw_results_clean)",
			wantQuery: "SELECT * FROM vw_winners WHERE circonscription IN (SELECT circonscription FROM vw_results_clean)",
		},
		{
			name:      "IS DISTINCT FROM",
			query:     "SELECT candidat FROM vw_results_clean WHERE parti_standardized IS DISTINCT FROM 'RHDP'",
			wantQuery: "SELECT candidat FROM vw_results_clean WHERE parti_standardized IS DISTINCT FROM 'RHDP'",
		},
		{
			name:      "TRIM with FROM",
			query:     "SELECT TRIM(BOTH ' ' FROM candidat) AS candidat FROM vw_winners",
			wantQuery: "SELECT TRIM(BOTH ' ' FROM candidat) AS candidat FROM vw_winners",
		},
		{
			name:      "EXTRACT with FROM",
			query:     "SELECT EXTRACT(YEAR FROM date_scrutin) AS annee, COUNT(*) FROM vw_results_clean GROUP BY 1",
			wantQuery: "SELECT EXTRACT(YEAR FROM date_scrutin) AS annee, COUNT(*) FROM vw_results_clean GROUP BY 1",
		},
		{name: "delete", query: "DELETE FROM vw_results_clean", wantQuery: "DELETE FROM vw_results_clean", wantErr: true},
		{name: "common table expression", query: "WITH t AS (SELECT * FROM vw_winners) SELECT * FROM t", wantQuery: "WITH t AS (SELECT * FROM vw_winners) SELECT * FROM t", wantErr: true},
		{name: "selector prefix is not select", query: "SELECTED FROM vw_winners", wantQuery: "SELECTED FROM vw_winners", wantErr: true},
		{name: "no source", query: "SELECT 1", wantQuery: "SELECT 1", wantErr: true},
		{name: "allowed name only in literal", query: "SELECT 'vw_results_clean' FROM users", wantQuery: "SELECT 'vw_results_clean' FROM users", wantErr: true},
		{name: "unlisted join", query: "SELECT * FROM vw_results_clean r JOIN users u ON u.id = r.id", wantQuery: "SELECT * FROM vw_results_clean r JOIN users u ON u.id = r.id", wantErr: true},
		{name: "table function", query: "SELECT * FROM vw_winners, read_csv('/etc/passwd')", wantQuery: "SELECT * FROM vw_winners, read_csv('/etc/passwd')", wantErr: true},
		{name: "unlisted table in WHERE subquery", query: "SELECT * FROM vw_winners WHERE candidat IN (SELECT usename FROM pg_user)", wantQuery: "SELECT * FROM vw_winners WHERE candidat IN (SELECT usename FROM pg_user)", wantErr: true},
		{name: "select into", query: "SELECT * INTO stolen FROM vw_results_clean", wantQuery: "SELECT * INTO stolen FROM vw_results_clean", wantErr: true},
		{name: "empty", query: "", wantQuery: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.Check(tt.query)

			assert.Equal(t, tt.wantQuery, got)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrSecurity)
				assert.Equal(t, apperrors.KindSecurity, apperrors.KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExecutionGate_BlockedQueryNeverReachesEngine(t *testing.T) {
	exec := &datasource.MockQueryExecutor{}
	gate := NewExecutionGate(testhelpers.ElectionRegistry(t), exec, zap.NewNop())

	for _, q := range []string{
		"DROP TABLE election_results",
		"UPDATE election_results SET voix = 0",
		"SELECT * FROM pg_catalog.pg_user",
		"SELECT * FROM vw_results_clean UNION SELECT * FROM secrets",
	} {
		result, err := gate.Execute(context.Background(), q)

		require.Error(t, err, q)
		assert.ErrorIs(t, err, apperrors.ErrSecurity, q)
		require.NotNil(t, result)
		assert.Equal(t, apperrors.KindSecurity, result.Kind)
		assert.Nil(t, result.Rows)
	}
	assert.Zero(t, exec.QueryCallCount())
}

func TestExecutionGate_UnparsableQueryIsRetryable(t *testing.T) {
	exec := &datasource.MockQueryExecutor{}
	gate := NewExecutionGate(testhelpers.ElectionRegistry(t), exec, zap.NewNop())

	result, err := gate.Execute(context.Background(), "SELECT candidat FROM vw_results_clean WHERE voix >")

	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrSecurity)
	var execErr *apperrors.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, apperrors.KindSyntaxError, execErr.Kind)
	assert.True(t, execErr.Retryable())
	assert.Equal(t, apperrors.KindSyntaxError, result.Kind)
	assert.Zero(t, exec.QueryCallCount())
}

func TestExecutionGate_LogsWhetherBlockedStatementModifies(t *testing.T) {
	tests := []struct {
		query         string
		wantModifying bool
	}{
		{"DELETE FROM vw_results_clean", true},
		{"DROP TABLE election_results", true},
		{"EXPLAIN SELECT * FROM vw_winners", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			gate := NewExecutionGate(testhelpers.ElectionRegistry(t), &datasource.MockQueryExecutor{}, zap.New(core))

			_, err := gate.Check(tt.query)
			require.ErrorIs(t, err, apperrors.ErrSecurity)

			entries := logs.FilterMessage("Blocked non-SELECT statement").All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantModifying, entries[0].ContextMap()["modifying"])
		})
	}
}

func TestExecutionGate_ExecuteRows(t *testing.T) {
	var gotLimit int
	exec := &datasource.MockQueryExecutor{
		QueryFunc: func(_ context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
			gotLimit = limit
			return &datasource.QueryExecutionResult{
				Columns:   []datasource.ColumnInfo{{Name: "total_voix"}},
				Rows:      []map[string]any{{"total_voix": int64(12450)}},
				RowCount:  1,
				Truncated: true,
			}, nil
		},
	}
	gate := NewExecutionGate(testhelpers.ElectionRegistry(t), exec, zap.NewNop())

	result, err := gate.Execute(context.Background(), "SELECT SUM(voix) AS total_voix FROM vw_results_clean;")

	require.NoError(t, err)
	assert.Equal(t, 500, gotLimit)
	assert.Equal(t, []string{"SELECT SUM(voix) AS total_voix FROM vw_results_clean"}, exec.QueryCalls)
	assert.Equal(t, "SELECT SUM(voix) AS total_voix FROM vw_results_clean", result.QueryText)
	assert.Equal(t, []string{"total_voix"}, result.Columns)
	assert.Equal(t, []map[string]any{{"total_voix": int64(12450)}}, result.Rows)
	assert.True(t, result.Truncated)
	assert.Equal(t, apperrors.KindNone, result.Kind)
	assert.True(t, result.HasRows())
}

func TestExecutionGate_EmptyResultIsNotAnError(t *testing.T) {
	exec := &datasource.MockQueryExecutor{
		QueryFunc: func(context.Context, string, int) (*datasource.QueryExecutionResult, error) {
			return &datasource.QueryExecutionResult{
				Columns: []datasource.ColumnInfo{{Name: "candidat"}},
				Rows:    []map[string]any{},
			}, nil
		},
	}
	gate := NewExecutionGate(testhelpers.ElectionRegistry(t), exec, zap.NewNop())

	result, err := gate.Execute(context.Background(), "SELECT candidat FROM vw_winners WHERE region = 'NOWHERE'")

	require.NoError(t, err)
	assert.Equal(t, apperrors.KindNoResults, result.Kind)
	assert.False(t, result.HasRows())
	assert.Equal(t, []string{"candidat"}, result.Columns)
}

func TestExecutionGate_EngineErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name     string
		engine   error
		wantKind apperrors.ErrorKind
	}{
		{"unknown column", errors.New(`Binder Error: Referenced column "nom" not found in FROM clause`), apperrors.KindUnknownColumn},
		{"syntax", errors.New(`Parser Error: syntax error at or near "FROMM"`), apperrors.KindSyntaxError},
		{"timeout", context.DeadlineExceeded, apperrors.KindExecutionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &datasource.MockQueryExecutor{
				QueryFunc: func(context.Context, string, int) (*datasource.QueryExecutionResult, error) {
					return nil, tt.engine
				},
			}
			gate := NewExecutionGate(testhelpers.ElectionRegistry(t), exec, zap.NewNop())

			result, err := gate.Execute(context.Background(), "SELECT nom FROM vw_results_clean")

			require.Error(t, err)
			var execErr *apperrors.ExecutionError
			require.ErrorAs(t, err, &execErr)
			assert.Equal(t, tt.wantKind, execErr.Kind)
			assert.ErrorIs(t, err, tt.engine)
			assert.Equal(t, tt.wantKind, result.Kind)
			assert.Nil(t, result.Rows)
		})
	}
}

func TestClassifyExecutionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.ErrorKind
	}{
		{"nil", nil, apperrors.KindNone},
		{"duckdb binder", errors.New(`Binder Error: Referenced column "nom" not found`), apperrors.KindUnknownColumn},
		{"postgres undefined column", errors.New(`ERROR: column "nom" does not exist (SQLSTATE 42703)`), apperrors.KindUnknownColumn},
		{"duckdb parser", errors.New(`Parser Error: syntax error at end of input`), apperrors.KindSyntaxError},
		{"parser only", errors.New(`parser failure near token`), apperrors.KindSyntaxError},
		{"column wins over syntax", errors.New(`syntax error: column list mismatch`), apperrors.KindUnknownColumn},
		{"missing table", errors.New(`Catalog Error: Table with name foo does not exist`), apperrors.KindExecutionFailed},
		{"conversion", errors.New(`Conversion Error: Could not convert string 'X' to INT32`), apperrors.KindExecutionFailed},
		{"already classified", fmt.Errorf("run: %w", &apperrors.ExecutionError{Kind: apperrors.KindSyntaxError}), apperrors.KindSyntaxError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyExecutionError(tt.err))
		})
	}
}
