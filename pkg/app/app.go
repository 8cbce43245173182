// Package app assembles the question-answering pipeline from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/election-assistant/pkg/adapters/datasource/duckdb"
	_ "github.com/ekaya-inc/election-assistant/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/election-assistant/pkg/config"
	"github.com/ekaya-inc/election-assistant/pkg/llm"
	"github.com/ekaya-inc/election-assistant/pkg/metrics"
	"github.com/ekaya-inc/election-assistant/pkg/schema"
	"github.com/ekaya-inc/election-assistant/pkg/services"
)

// App holds the long-lived pipeline components.
type App struct {
	Registry  *schema.Registry
	Executor  datasource.QueryExecutor
	Oracle    llm.TextGenerator
	Metrics   *metrics.Metrics
	Assistant services.Assistant
}

// Build loads the schema registry, opens the engine and wires the services.
// reg receives the pipeline metrics; pass prometheus.NewRegistry() when they are not exported.
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *zap.Logger) (*App, error) {
	registry, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("load schema registry: %w", err)
	}
	logger.Info("Schema registry loaded",
		zap.String("path", cfg.SchemaPath),
		zap.Strings("views", registry.AllowedViews()))

	executor, err := datasource.Open(ctx, cfg.Engine.Type, cfg.Engine.Options(), nil, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s engine: %w", cfg.Engine.Type, err)
	}

	m := metrics.New(reg)

	oracle, err := llm.NewFromConfig(cfg.LLM, m, logger)
	if err != nil {
		_ = executor.Close()
		return nil, fmt.Errorf("configure oracle: %w", err)
	}

	return &App{
		Registry:  registry,
		Executor:  executor,
		Oracle:    oracle,
		Metrics:   m,
		Assistant: NewAssistant(cfg, registry, executor, oracle, m, logger),
	}, nil
}

// NewAssistant wires the pipeline stages over an already opened engine and oracle.
func NewAssistant(
	cfg *config.Config,
	registry *schema.Registry,
	executor datasource.QueryExecutor,
	oracle llm.TextGenerator,
	recorder services.PipelineRecorder,
	logger *zap.Logger,
) services.Assistant {
	return services.NewAssistant(services.AssistantDeps{
		Normalizer:    services.NewNormalizer(registry),
		Router:        services.NewIntentRouter(registry),
		Disambiguator: services.NewDisambiguator(executor, registry.CanonicalView(), logger),
		Generator: services.NewQueryGenerator(registry, oracle, services.GeneratorConfig{
			Model:     cfg.LLM.SQLModel,
			MaxTokens: cfg.LLM.MaxTokens,
			Dialect:   executor.Dialect().DisplayName(),
		}, logger),
		Gate: services.NewExecutionGate(registry, executor, logger),
		Greeter: services.NewGreetingResponder(registry, oracle, services.GreetingConfig{
			Model:     cfg.LLM.NarrativeModel,
			MaxTokens: cfg.LLM.NarrativeMaxTokens,
			CacheSize: cfg.GreetingCacheSize,
		}, logger),
		Summarizer: services.NewSummarizer(oracle, services.SummarizerConfig{
			Model:     cfg.LLM.NarrativeModel,
			MaxTokens: cfg.LLM.NarrativeMaxTokens,
		}, logger),
		Recorder: recorder,
	}, logger)
}

// Close releases the engine.
func (a *App) Close() error {
	return a.Executor.Close()
}
