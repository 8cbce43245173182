package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client talks to any OpenAI-compatible chat endpoint, including Ollama's /v1 API.
type Client struct {
	client   *openai.Client
	endpoint string
	logger   *zap.Logger
}

// Config holds configuration for creating an oracle client.
type Config struct {
	Endpoint string // Base URL, e.g. "http://localhost:11434/v1"
	APIKey   string // Optional for local endpoints
}

// NewClient creates a new OpenAI-compatible client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	clientConfig.HTTPClient = newHTTPClient()

	return &Client{
		client:   openai.NewClientWithConfig(clientConfig),
		endpoint: cfg.Endpoint,
		logger:   logger.Named("llm"),
	}, nil
}

// Generate returns a single chat completion.
func (c *Client) Generate(ctx context.Context, instructions, prompt string, opts GenerateOptions) (string, error) {
	c.logger.Debug("LLM request",
		zap.String("operation", string(opts.Operation)),
		zap.String("model", opts.Model),
		zap.String("request_id", RequestIDFromContext(ctx)),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, c.request(instructions, prompt, opts, false))
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.String("operation", string(opts.Operation)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", c.classify(err, opts.Model)
	}

	if len(resp.Choices) == 0 {
		return "", c.classify(NewError(ErrorTypeEmpty, "no choices in response", true, nil), opts.Model)
	}

	c.logger.Debug("LLM request completed",
		zap.String("operation", string(opts.Operation)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

// GenerateStream streams completion deltas to chunks.
func (c *Client) GenerateStream(ctx context.Context, instructions, prompt string, opts GenerateOptions, chunks chan<- string) error {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.request(instructions, prompt, opts, true))
	if err != nil {
		return c.classify(err, opts.Model)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return c.classify(err, opts.Model)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		select {
		case chunks <- resp.Choices[0].Delta.Content:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) request(instructions, prompt string, opts GenerateOptions, stream bool) openai.ChatCompletionRequest {
	temperature := opts.Temperature
	if temperature == 0 {
		// go-openai drops a zero temperature from the payload, which means "provider default".
		temperature = math.SmallestNonzeroFloat32
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if instructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: instructions})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	return openai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: temperature,
		Stop:        opts.Stop,
		Stream:      stream,
	}
}

func (c *Client) classify(err error, model string) error {
	llmErr := ClassifyError(err)
	if llmErr.Model == "" {
		llmErr.Model = model
	}
	if llmErr.Endpoint == "" {
		llmErr.Endpoint = c.endpoint
	}
	return llmErr
}
