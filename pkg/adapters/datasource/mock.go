package datasource

import (
	"context"
	"sync"
)

// MockQueryExecutor is a configurable QueryExecutor for tests.
// Set the function fields to control behavior.
type MockQueryExecutor struct {
	QueryFunc             func(ctx context.Context, sqlQuery string, limit int) (*QueryExecutionResult, error)
	QueryWithParamsFunc   func(ctx context.Context, sqlQuery string, params []any, limit int) (*QueryExecutionResult, error)
	FindSimilarValuesFunc func(ctx context.Context, view, column, term string, limit int) ([]string, error)
	PingFunc              func(ctx context.Context) error

	// DialectValue is returned by Dialect. Defaults to DialectDuckDB.
	DialectValue Dialect

	mu                     sync.Mutex
	QueryCalls             []string
	FindSimilarValuesCalls []string // "column=term"
	PingCalls              int
	Closed                 bool
}

// Query implements QueryExecutor.
func (m *MockQueryExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*QueryExecutionResult, error) {
	m.mu.Lock()
	m.QueryCalls = append(m.QueryCalls, sqlQuery)
	m.mu.Unlock()
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, sqlQuery, limit)
	}
	return &QueryExecutionResult{Rows: []map[string]any{}}, nil
}

// QueryWithParams implements QueryExecutor.
func (m *MockQueryExecutor) QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*QueryExecutionResult, error) {
	if m.QueryWithParamsFunc != nil {
		return m.QueryWithParamsFunc(ctx, sqlQuery, params, limit)
	}
	return m.Query(ctx, sqlQuery, limit)
}

// FindSimilarValues implements QueryExecutor.
func (m *MockQueryExecutor) FindSimilarValues(ctx context.Context, view, column, term string, limit int) ([]string, error) {
	m.mu.Lock()
	m.FindSimilarValuesCalls = append(m.FindSimilarValuesCalls, column+"="+term)
	m.mu.Unlock()
	if m.FindSimilarValuesFunc != nil {
		return m.FindSimilarValuesFunc(ctx, view, column, term, limit)
	}
	return nil, nil
}

// Dialect implements QueryExecutor.
func (m *MockQueryExecutor) Dialect() Dialect {
	if m.DialectValue == "" {
		return DialectDuckDB
	}
	return m.DialectValue
}

// Ping implements QueryExecutor.
func (m *MockQueryExecutor) Ping(ctx context.Context) error {
	m.mu.Lock()
	m.PingCalls++
	m.mu.Unlock()
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// Close implements QueryExecutor.
func (m *MockQueryExecutor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// QueryCallCount returns the number of Query/QueryWithParams calls.
func (m *MockQueryExecutor) QueryCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.QueryCalls)
}

// LookupCallCount returns the number of FindSimilarValues calls.
func (m *MockQueryExecutor) LookupCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.FindSimilarValuesCalls)
}

var _ QueryExecutor = (*MockQueryExecutor)(nil)
