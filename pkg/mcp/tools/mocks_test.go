package tools

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/election-assistant/pkg/models"
	"github.com/ekaya-inc/election-assistant/pkg/services"
)

// mockAssistant implements services.Assistant for testing.
type mockAssistant struct {
	AskFunc       func(ctx context.Context, req models.AskRequest) (*models.AskResponse, error)
	SummaryChunks []string

	mu             sync.Mutex
	askRequests    []models.AskRequest
	summarizeCalls int
}

var _ services.Assistant = (*mockAssistant)(nil)

func (m *mockAssistant) Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
	m.mu.Lock()
	m.askRequests = append(m.askRequests, req)
	m.mu.Unlock()
	if m.AskFunc != nil {
		return m.AskFunc(ctx, req)
	}
	return &models.AskResponse{Question: req.Question, Intent: models.IntentData}, nil
}

func (m *mockAssistant) Summarize(ctx context.Context, resp *models.AskResponse) <-chan string {
	m.mu.Lock()
	m.summarizeCalls++
	m.mu.Unlock()
	ch := make(chan string, len(m.SummaryChunks))
	for _, c := range m.SummaryChunks {
		ch <- c
	}
	close(ch)
	return ch
}

func (m *mockAssistant) AskRequests() []models.AskRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AskRequest(nil), m.askRequests...)
}

func (m *mockAssistant) SummarizeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summarizeCalls
}

// mockPinger implements EnginePinger for testing.
type mockPinger struct {
	err   error
	calls int
}

var _ EnginePinger = (*mockPinger)(nil)

func (m *mockPinger) Ping(ctx context.Context) error {
	m.calls++
	return m.err
}

// getTextContent extracts the text string from the first text content item
func getTextContent(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if text, ok := result.Content[0].(mcp.TextContent); ok {
		return text.Text
	}
	jsonBytes, _ := json.Marshal(result.Content[0])
	var textContent struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(jsonBytes, &textContent)
	return textContent.Text
}

// toolCallResponse is the JSON-RPC envelope returned by HandleMessage for tools/call.
type toolCallResponse struct {
	Result struct {
		IsError bool `json:"isError"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
