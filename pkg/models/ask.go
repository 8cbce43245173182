package models

import "github.com/ekaya-inc/election-assistant/pkg/apperrors"

// AskRequest is a single user turn.
type AskRequest struct {
	Question       string          `json:"question"`
	ResolvedEntity *ResolvedEntity `json:"resolved_entity,omitempty"`
}

// Correction reports an automatic entity correction applied before generation.
type Correction struct {
	Original string       `json:"original"`
	Resolved string       `json:"resolved"`
	Column   EntityColumn `json:"column"`
}

// AskResponse is everything the presentation layer needs to render a turn.
type AskResponse struct {
	RequestID  string                    `json:"request_id"`
	Question   string                    `json:"question"`
	Normalized string                    `json:"normalized"`
	Intent     Intent                    `json:"intent"`
	Message    string                    `json:"message,omitempty"`
	Choices    []DisambiguationCandidate `json:"choices,omitempty"`
	Correction *Correction               `json:"correction,omitempty"`
	QueryText  string                    `json:"query_text,omitempty"`
	Columns    []string                  `json:"columns,omitempty"`
	Rows       []map[string]any          `json:"rows,omitempty"`
	Truncated  bool                      `json:"truncated,omitempty"`
	ErrorKind  apperrors.ErrorKind       `json:"error_kind,omitempty"`
	Attempts   int                       `json:"attempts"`
}

// NeedsSelection reports whether the caller must pick among choices before continuing.
func (r *AskResponse) NeedsSelection() bool {
	return len(r.Choices) > 0
}
