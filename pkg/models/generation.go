package models

import "github.com/ekaya-inc/election-assistant/pkg/apperrors"

// MaxGenerationAttempts bounds attempts per question: the initial one plus one retry.
const MaxGenerationAttempts = 2

// GenerationAttempt records one oracle round-trip for query generation.
type GenerationAttempt struct {
	Instructions  string `json:"-"`
	RawOutput     string `json:"-"`
	QueryText     string `json:"query_text"`
	AttemptNumber int    `json:"attempt_number"`
	UsedFallback  bool   `json:"used_fallback,omitempty"`
}

// ExecutionResult is the outcome of running a gated query.
// Rows is nil when Kind is a failure; an empty result carries KindNoResults.
type ExecutionResult struct {
	Columns   []string            `json:"columns,omitempty"`
	Rows      []map[string]any    `json:"rows,omitempty"`
	QueryText string              `json:"query_text"`
	Kind      apperrors.ErrorKind `json:"error_kind,omitempty"`
	Truncated bool                `json:"truncated,omitempty"`
}

// HasRows reports whether the result carries at least one row.
func (r *ExecutionResult) HasRows() bool {
	return r != nil && len(r.Rows) > 0
}
