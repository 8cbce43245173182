package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/config"
)

// NewFromConfig builds the configured provider client wrapped in a circuit
// breaker. recorder may be nil.
func NewFromConfig(cfg config.LLMConfig, recorder Recorder, logger *zap.Logger) (*GuardedGenerator, error) {
	clientCfg := &Config{Endpoint: cfg.BaseURL, APIKey: cfg.APIKey}

	var (
		inner TextGenerator
		err   error
	)
	switch cfg.Provider {
	case "openai":
		inner, err = NewClient(clientCfg, logger)
	case "anthropic":
		inner, err = NewAnthropicClient(clientCfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	breaker := NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:     cfg.CircuitThreshold,
		ResetAfter:    cfg.CircuitReset,
		OnStateChange: circuitObserver(recorder, logger),
	})

	logger.Info("Oracle configured",
		zap.String("provider", cfg.Provider),
		zap.String("sql_model", cfg.SQLModel),
		zap.String("narrative_model", cfg.NarrativeModel))

	return NewGuardedGenerator(inner, breaker, recorder, logger), nil
}

// circuitObserver logs breaker transitions and forwards them to recorder, which may be nil.
func circuitObserver(recorder Recorder, logger *zap.Logger) func(from, to CircuitState) {
	return func(from, to CircuitState) {
		if to == CircuitOpen {
			logger.Warn("Oracle circuit opened", zap.Stringer("from", from))
		} else {
			logger.Info("Oracle circuit state changed",
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		}
		if recorder != nil {
			recorder.ObserveCircuitState(to)
		}
	}
}
