// Package llm talks to the text-generation oracle used for SQL drafting,
// narrative summaries and greetings.
package llm

import (
	"context"
)

// Operation labels a call for logging and metrics.
type Operation string

const (
	OperationSQL       Operation = "sql"
	OperationNarrative Operation = "narrative"
	OperationGreeting  Operation = "greeting"
)

// GenerateOptions control a single oracle call.
type GenerateOptions struct {
	Operation   Operation
	Model       string
	Temperature float32
	MaxTokens   int
	Stop        []string
}

// TextGenerator is the oracle contract. Implementations must be safe for concurrent use.
type TextGenerator interface {
	// Generate returns the full completion for prompt under the given instructions.
	Generate(ctx context.Context, instructions, prompt string, opts GenerateOptions) (string, error)

	// GenerateStream sends completion fragments to chunks as they arrive.
	// It does not close chunks; the caller owns the channel.
	GenerateStream(ctx context.Context, instructions, prompt string, opts GenerateOptions, chunks chan<- string) error
}

var (
	_ TextGenerator = (*Client)(nil)
	_ TextGenerator = (*AnthropicClient)(nil)
	_ TextGenerator = (*GuardedGenerator)(nil)
	_ TextGenerator = (*MockTextGenerator)(nil)
)
