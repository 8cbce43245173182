package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/llm"
	"github.com/ekaya-inc/election-assistant/pkg/logging"
	"github.com/ekaya-inc/election-assistant/pkg/prompts"
	"github.com/ekaya-inc/election-assistant/pkg/schema"
)

// GreetingConfig holds the oracle and cache settings for greetings.
type GreetingConfig struct {
	Model     string
	MaxTokens int
	CacheSize int
}

// GreetingResponder answers greetings, memoizing replies per question text.
type GreetingResponder interface {
	// Respond returns a cached reply when available. Oracle failures yield
	// prompts.GreetingFallback, which is not cached.
	Respond(ctx context.Context, question string) string
}

type greetingResponder struct {
	oracle       llm.TextGenerator
	cfg          GreetingConfig
	instructions string
	cache        *greetingCache
	logger       *zap.Logger
}

// NewGreetingResponder creates a GreetingResponder presenting the registry's dataset.
func NewGreetingResponder(registry *schema.Registry, oracle llm.TextGenerator, cfg GreetingConfig, logger *zap.Logger) GreetingResponder {
	info := registry.DatabaseInfo()
	return &greetingResponder{
		oracle:       oracle,
		cfg:          cfg,
		instructions: prompts.BuildGreetingInstructions(info.Description, info.Statistics),
		cache:        newGreetingCache(cfg.CacheSize),
		logger:       logger.Named("greeting"),
	}
}

var _ GreetingResponder = (*greetingResponder)(nil)

func (g *greetingResponder) Respond(ctx context.Context, question string) string {
	key := strings.TrimSpace(question)
	if reply, ok := g.cache.Get(key); ok {
		return reply
	}

	raw, err := g.oracle.Generate(ctx, g.instructions, key, llm.GenerateOptions{
		Operation:   llm.OperationGreeting,
		Model:       g.cfg.Model,
		Temperature: 0,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		g.logger.Warn("Greeting generation failed, using fallback",
			zap.String("error_type", string(llm.GetErrorType(err))),
			zap.String("error", logging.SanitizeError(err)))
		return prompts.GreetingFallback
	}

	reply := strings.TrimSpace(llm.StripThinking(raw))
	if reply == "" {
		return prompts.GreetingFallback
	}
	g.cache.Put(key, reply)
	return reply
}
