package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Recorder receives per-call oracle observations. errType is "" on success.
type Recorder interface {
	ObserveOracleCall(operation string, elapsed time.Duration, errType string)
	ObserveCircuitState(state CircuitState)
}

// GuardedGenerator wraps a TextGenerator with a circuit breaker and call metrics.
type GuardedGenerator struct {
	inner    TextGenerator
	breaker  *CircuitBreaker
	recorder Recorder
	logger   *zap.Logger
}

// NewGuardedGenerator wraps inner. recorder may be nil.
func NewGuardedGenerator(inner TextGenerator, breaker *CircuitBreaker, recorder Recorder, logger *zap.Logger) *GuardedGenerator {
	return &GuardedGenerator{
		inner:    inner,
		breaker:  breaker,
		recorder: recorder,
		logger:   logger.Named("llm-guard"),
	}
}

// Generate implements TextGenerator.
func (g *GuardedGenerator) Generate(ctx context.Context, instructions, prompt string, opts GenerateOptions) (string, error) {
	var out string
	err := g.guard(ctx, opts, func() error {
		var err error
		out, err = g.inner.Generate(ctx, instructions, prompt, opts)
		return err
	})
	return out, err
}

// GenerateStream implements TextGenerator.
func (g *GuardedGenerator) GenerateStream(ctx context.Context, instructions, prompt string, opts GenerateOptions, chunks chan<- string) error {
	return g.guard(ctx, opts, func() error {
		return g.inner.GenerateStream(ctx, instructions, prompt, opts, chunks)
	})
}

// Breaker exposes the breaker for health reporting.
func (g *GuardedGenerator) Breaker() *CircuitBreaker {
	return g.breaker
}

func (g *GuardedGenerator) guard(ctx context.Context, opts GenerateOptions, call func() error) error {
	if allowed, err := g.breaker.Allow(); !allowed {
		g.observe(opts.Operation, 0, err)
		return err
	}

	start := time.Now()
	err := call()
	g.observe(opts.Operation, time.Since(start), err)

	switch {
	case err == nil:
		g.breaker.RecordSuccess()
	case errors.Is(err, context.Canceled) && ctx.Err() != nil && g.breaker.State() != CircuitHalfOpen:
		// The caller went away; that says nothing about oracle health.
	default:
		g.breaker.RecordFailure()
		if g.breaker.State() == CircuitOpen {
			g.logger.Warn("Oracle circuit open",
				zap.Int("consecutive_failures", g.breaker.ConsecutiveFailures()),
				zap.Error(err))
		}
	}
	return err
}

func (g *GuardedGenerator) observe(op Operation, elapsed time.Duration, err error) {
	if g.recorder == nil {
		return
	}
	var errType string
	if err != nil {
		errType = string(GetErrorType(err))
	}
	g.recorder.ObserveOracleCall(string(op), elapsed, errType)
}
