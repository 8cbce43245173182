package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrConfig        = errors.New("configuration error")
	ErrSecurity      = errors.New("query blocked for security reasons")
	ErrGeneration    = errors.New("query generation failed")
	ErrEmptyQuestion = errors.New("question is empty")
)

// ErrorKind classifies the terminal outcome of a question.
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindSecurity        ErrorKind = "security"
	KindGeneration      ErrorKind = "generation"
	KindUnknownColumn   ErrorKind = "unknown_column"
	KindSyntaxError     ErrorKind = "syntax_error"
	KindNoResults       ErrorKind = "no_results"
	KindExecutionFailed ErrorKind = "execution_failed"
)

// Retryable reports whether a failure of this kind earns one regeneration attempt.
func (k ErrorKind) Retryable() bool {
	return k == KindUnknownColumn || k == KindSyntaxError
}

// ExecutionError wraps an engine failure with its classification.
// Cause holds the raw engine error and must never be shown to end users.
type ExecutionError struct {
	Kind  ErrorKind
	Cause error
}

func (e *ExecutionError) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the failure is eligible for regeneration.
func (e *ExecutionError) Retryable() bool {
	return e.Kind.Retryable()
}

// KindOf extracts the ErrorKind carried by err.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Kind
	}
	switch {
	case errors.Is(err, ErrSecurity):
		return KindSecurity
	case errors.Is(err, ErrGeneration):
		return KindGeneration
	default:
		return KindExecutionFailed
	}
}

// Fixed messages shown to end users. Raw engine or oracle text never appears here.
const (
	MsgSecurity       = "🔒 Requête bloquée pour raisons de sécurité."
	MsgOffTopic       = "❌ Hors sujet par rapport aux élections législatives 2025."
	MsgGeneration     = "Je n'ai pas pu répondre à cette question. Essayez de la reformuler."
	MsgUnknownColumn  = "Donnée non disponible dans ce format."
	MsgSyntaxError    = "Erreur de formulation technique."
	MsgNoResults      = "Aucune donnée trouvée."
	MsgEmptyQuestion  = "Veuillez saisir une question."
	MsgNeedsSelection = "Plusieurs correspondances trouvées. Précisez votre choix."
)

// UserMessage returns the user-facing message for kind.
func UserMessage(kind ErrorKind) string {
	switch kind {
	case KindSecurity:
		return MsgSecurity
	case KindGeneration:
		return MsgGeneration
	case KindUnknownColumn:
		return MsgUnknownColumn
	case KindSyntaxError:
		return MsgSyntaxError
	case KindNoResults, KindExecutionFailed:
		// Engine failures outside the retryable kinds read as an empty answer.
		return MsgNoResults
	default:
		return ""
	}
}
