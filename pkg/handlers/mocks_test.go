package handlers

import (
	"context"
	"sync"

	"github.com/ekaya-inc/election-assistant/pkg/models"
	"github.com/ekaya-inc/election-assistant/pkg/services"
)

// mockAssistant is a configurable services.Assistant for handler tests.
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
	return &models.AskResponse{RequestID: "req-1", Question: req.Question, Intent: models.IntentData}, nil
}

func (m *mockAssistant) Summarize(ctx context.Context, resp *models.AskResponse) <-chan string {
	m.mu.Lock()
	m.summarizeCalls++
	m.mu.Unlock()
	out := make(chan string, len(m.SummaryChunks))
	for _, c := range m.SummaryChunks {
		out <- c
	}
	close(out)
	return out
}

func (m *mockAssistant) SummarizeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summarizeCalls
}

// mockPinger is a configurable EnginePinger.
type mockPinger struct {
	err   error
	calls int
}

func (m *mockPinger) Ping(ctx context.Context) error {
	m.calls++
	return m.err
}
