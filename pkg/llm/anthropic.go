package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

const anthropicEndpoint = "https://api.anthropic.com/v1"

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client   *anthropic.Client
	endpoint string
	logger   *zap.Logger
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
// An empty endpoint selects the public API.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	opts := []anthropic.ClientOption{anthropic.WithHTTPClient(newHTTPClient())}
	if endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(endpoint))
	} else {
		endpoint = anthropicEndpoint
	}

	return &AnthropicClient{
		client:   anthropic.NewClient(cfg.APIKey, opts...),
		endpoint: endpoint,
		logger:   logger.Named("llm-anthropic"),
	}, nil
}

// Generate returns the text blocks of a single Messages response.
func (c *AnthropicClient) Generate(ctx context.Context, instructions, prompt string, opts GenerateOptions) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateMessages(ctx, c.request(instructions, prompt, opts))
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.String("operation", string(opts.Operation)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", c.classify(err, opts.Model)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			sb.WriteString(*block.Text)
		}
	}

	c.logger.Debug("LLM request completed",
		zap.String("operation", string(opts.Operation)),
		zap.String("request_id", RequestIDFromContext(ctx)),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return sb.String(), nil
}

// GenerateStream forwards content deltas to chunks.
func (c *AnthropicClient) GenerateStream(ctx context.Context, instructions, prompt string, opts GenerateOptions, chunks chan<- string) error {
	_, err := c.client.CreateMessagesStream(ctx, anthropic.MessagesStreamRequest{
		MessagesRequest: c.request(instructions, prompt, opts),
		OnContentBlockDelta: func(data anthropic.MessagesEventContentBlockDeltaData) {
			if data.Delta.Text == nil || *data.Delta.Text == "" {
				return
			}
			select {
			case chunks <- *data.Delta.Text:
			case <-ctx.Done():
			}
		},
	})
	if err != nil {
		return c.classify(err, opts.Model)
	}
	return ctx.Err()
}

func (c *AnthropicClient) request(instructions, prompt string, opts GenerateOptions) anthropic.MessagesRequest {
	temperature := opts.Temperature
	return anthropic.MessagesRequest{
		Model:         anthropic.Model(opts.Model),
		System:        instructions,
		MaxTokens:     opts.MaxTokens,
		Temperature:   &temperature,
		StopSequences: opts.Stop,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	}
}

func (c *AnthropicClient) classify(err error, model string) error {
	llmErr := ClassifyError(err)
	if llmErr.Model == "" {
		llmErr.Model = model
	}
	if llmErr.Endpoint == "" {
		llmErr.Endpoint = c.endpoint
	}
	return llmErr
}
