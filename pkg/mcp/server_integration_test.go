package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/models"
)

type stubAssistant struct {
	requests []models.AskRequest
}

func (s *stubAssistant) Ask(_ context.Context, req models.AskRequest) (*models.AskResponse, error) {
	s.requests = append(s.requests, req)
	return &models.AskResponse{
		RequestID: "req-7",
		Question:  req.Question,
		Intent:    models.IntentData,
		Columns:   []string{"total_elus"},
		Rows:      []map[string]any{{"total_elus": 255}},
		Attempts:  1,
	}, nil
}

func (s *stubAssistant) Summarize(context.Context, *models.AskResponse) <-chan string {
	ch := make(chan string, 1)
	ch <- "255 députés ont été élus."
	close(ch)
	return ch
}

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

// TestServer_StreamableHTTPToolCall runs a tools/call through the stateless HTTP transport.
func TestServer_StreamableHTTPToolCall(t *testing.T) {
	assistant := &stubAssistant{}
	s := NewServer("election-assistant", "1.0.0", zap.NewNop())
	s.RegisterElectionTools(assistant, stubPinger{})

	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      "ask_election_question",
			"arguments": map[string]any{"question": "Combien de députés élus ?"},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	rec := httptest.NewRecorder()

	s.NewStreamableHTTPServer().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	respBody, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	payload := string(respBody)
	// The transport may answer with plain JSON or a single SSE message.
	if i := strings.Index(payload, "data: "); i >= 0 {
		payload = strings.TrimSpace(payload[i+len("data: "):])
	}

	var response struct {
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(payload), &response))
	require.Len(t, response.Result.Content, 1)
	assert.Contains(t, response.Result.Content[0].Text, `"request_id":"req-7"`)
	assert.Contains(t, response.Result.Content[0].Text, `"summary":"255 députés ont été élus."`)

	require.Len(t, assistant.requests, 1)
	assert.Equal(t, "Combien de députés élus ?", assistant.requests[0].Question)
}
