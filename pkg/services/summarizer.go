package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/llm"
	"github.com/ekaya-inc/election-assistant/pkg/logging"
	"github.com/ekaya-inc/election-assistant/pkg/prompts"
)

// narrativeTemperature leaves room for natural phrasing; the instructions
// and preview constrain the content.
const narrativeTemperature = 1

// SummarizerConfig holds the oracle settings for narrative summaries.
type SummarizerConfig struct {
	Model     string
	MaxTokens int
}

// Summarizer produces a one-sentence answer from a result set.
type Summarizer interface {
	// Summarize streams summary chunks on a channel that is closed when the
	// summary ends. An empty result yields the fixed no-data message without
	// calling the oracle. The channel is single-use. Callers must drain it
	// or cancel ctx; an abandoned reader leaves the producing goroutine
	// blocked on send.
	Summarize(ctx context.Context, question string, columns []string, rows []map[string]any) <-chan string
}

type summarizer struct {
	oracle llm.TextGenerator
	cfg    SummarizerConfig
	logger *zap.Logger
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(oracle llm.TextGenerator, cfg SummarizerConfig, logger *zap.Logger) Summarizer {
	return &summarizer{
		oracle: oracle,
		cfg:    cfg,
		logger: logger.Named("summarizer"),
	}
}

var _ Summarizer = (*summarizer)(nil)

func (s *summarizer) Summarize(ctx context.Context, question string, columns []string, rows []map[string]any) <-chan string {
	out := make(chan string, 8)
	if len(rows) == 0 {
		out <- prompts.NoDataMessage
		close(out)
		return out
	}

	go func() {
		defer close(out)

		instructions := prompts.BuildNarrativeInstructions(len(rows),
			prompts.RenderPreview(columns, rows, prompts.NarrativePreviewRows))

		chunks := make(chan string)
		errCh := make(chan error, 1)
		go func() {
			defer close(chunks)
			errCh <- s.oracle.GenerateStream(ctx, instructions, question, llm.GenerateOptions{
				Operation:   llm.OperationNarrative,
				Model:       s.cfg.Model,
				Temperature: narrativeTemperature,
				MaxTokens:   s.cfg.MaxTokens,
			}, chunks)
		}()

		sent := false
		for chunk := range chunks {
			if ctx.Err() != nil {
				// Keep draining so the producer can finish.
				continue
			}
			select {
			case out <- chunk:
				sent = true
			case <-ctx.Done():
			}
		}

		err := <-errCh
		if err != nil {
			s.logger.Warn("Narrative stream failed",
				zap.Bool("partial", sent),
				zap.String("error_type", string(llm.GetErrorType(err))),
				zap.String("error", logging.SanitizeError(err)))
		}
		if sent || ctx.Err() != nil {
			return
		}
		out <- prompts.NarrativeFallback(len(rows))
	}()

	return out
}

// CollectSummary drains a summary stream into one string.
func CollectSummary(chunks <-chan string) string {
	var sb strings.Builder
	for c := range chunks {
		sb.WriteString(c)
	}
	return strings.TrimSpace(llm.StripThinking(sb.String()))
}
