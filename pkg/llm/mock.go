package llm

import (
	"context"
	"sync"
)

// GenerateCall records the arguments of one mock invocation.
type GenerateCall struct {
	Instructions string
	Prompt       string
	Options      GenerateOptions
	Stream       bool
}

// MockTextGenerator is a configurable TextGenerator for tests.
// Set the function fields to control behavior.
type MockTextGenerator struct {
	// GenerateFunc is called by Generate. If nil, returns "" and nil.
	GenerateFunc func(ctx context.Context, instructions, prompt string, opts GenerateOptions) (string, error)

	// GenerateStreamFunc is called by GenerateStream. If nil, the result of
	// Generate (or GenerateFunc) is sent as a single chunk.
	GenerateStreamFunc func(ctx context.Context, instructions, prompt string, opts GenerateOptions, chunks chan<- string) error

	mu    sync.Mutex
	calls []GenerateCall
}

// NewMockTextGenerator returns a mock that always answers with reply.
func NewMockTextGenerator(reply string) *MockTextGenerator {
	return &MockTextGenerator{
		GenerateFunc: func(context.Context, string, string, GenerateOptions) (string, error) {
			return reply, nil
		},
	}
}

// Generate implements TextGenerator.
func (m *MockTextGenerator) Generate(ctx context.Context, instructions, prompt string, opts GenerateOptions) (string, error) {
	m.record(GenerateCall{Instructions: instructions, Prompt: prompt, Options: opts})
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, instructions, prompt, opts)
	}
	return "", nil
}

// GenerateStream implements TextGenerator.
func (m *MockTextGenerator) GenerateStream(ctx context.Context, instructions, prompt string, opts GenerateOptions, chunks chan<- string) error {
	m.record(GenerateCall{Instructions: instructions, Prompt: prompt, Options: opts, Stream: true})
	if m.GenerateStreamFunc != nil {
		return m.GenerateStreamFunc(ctx, instructions, prompt, opts, chunks)
	}
	if m.GenerateFunc == nil {
		return nil
	}
	out, err := m.GenerateFunc(ctx, instructions, prompt, opts)
	if err != nil {
		return err
	}
	if out != "" {
		chunks <- out
	}
	return nil
}

// Calls returns a copy of all recorded invocations.
func (m *MockTextGenerator) Calls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]GenerateCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of invocations, optionally restricted to one operation.
func (m *MockTextGenerator) CallCount(ops ...Operation) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(ops) == 0 {
		return len(m.calls)
	}
	n := 0
	for _, c := range m.calls {
		for _, op := range ops {
			if c.Options.Operation == op {
				n++
				break
			}
		}
	}
	return n
}

func (m *MockTextGenerator) record(call GenerateCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}
