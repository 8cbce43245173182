package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/apperrors"
	"github.com/ekaya-inc/election-assistant/pkg/models"
)

func newAskServer(assistant *mockAssistant) *server.MCPServer {
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterAskTool(s, &AskToolDeps{Assistant: assistant, Logger: zap.NewNop()})
	return s
}

func callAskTool(t *testing.T, s *server.MCPServer, args map[string]any) toolCallResponse {
	t.Helper()
	request, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": AskToolName, "arguments": args},
	})
	require.NoError(t, err)

	resultBytes, err := json.Marshal(s.HandleMessage(context.Background(), request))
	require.NoError(t, err)

	var response toolCallResponse
	require.NoError(t, json.Unmarshal(resultBytes, &response))
	return response
}

func TestRegisterAskTool_Listed(t *testing.T) {
	s := newAskServer(&mockAssistant{})

	resultBytes, err := json.Marshal(s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`)))
	require.NoError(t, err)

	var response struct {
		Result struct {
			Tools []struct {
				Name        string `json:"name"`
				InputSchema struct {
					Required   []string       `json:"required"`
					Properties map[string]any `json:"properties"`
				} `json:"inputSchema"`
				Annotations struct {
					ReadOnlyHint *bool `json:"readOnlyHint"`
				} `json:"annotations"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))
	require.Len(t, response.Result.Tools, 1)

	tool := response.Result.Tools[0]
	assert.Equal(t, AskToolName, tool.Name)
	assert.Equal(t, []string{"question"}, tool.InputSchema.Required)
	assert.Contains(t, tool.InputSchema.Properties, "resolved_value")
	assert.Contains(t, tool.InputSchema.Properties, "resolved_column")
	require.NotNil(t, tool.Annotations.ReadOnlyHint)
	assert.True(t, *tool.Annotations.ReadOnlyHint)
}

func TestAskTool_ReturnsResponseWithSummary(t *testing.T) {
	assistant := &mockAssistant{
		AskFunc: func(_ context.Context, req models.AskRequest) (*models.AskResponse, error) {
			return &models.AskResponse{
				RequestID: "req-1",
				Question:  req.Question,
				Intent:    models.IntentData,
				QueryText: "SELECT COUNT(*) AS sieges FROM vw_winners WHERE parti_standardized = 'RHDP'",
				Columns:   []string{"sieges"},
				Rows:      []map[string]any{{"sieges": float64(155)}},
				Attempts:  1,
			}, nil
		},
		SummaryChunks: []string{"Le RHDP a remporté ", "155 sièges."},
	}
	s := newAskServer(assistant)

	response := callAskTool(t, s, map[string]any{"question": "Combien de sièges pour le RHDP ?"})

	require.Nil(t, response.Error)
	require.False(t, response.Result.IsError)
	require.Len(t, response.Result.Content, 1)

	var payload struct {
		RequestID string           `json:"request_id"`
		Rows      []map[string]any `json:"rows"`
		Summary   string           `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(response.Result.Content[0].Text), &payload))
	assert.Equal(t, "req-1", payload.RequestID)
	assert.Equal(t, float64(155), payload.Rows[0]["sieges"])
	assert.Equal(t, "Le RHDP a remporté 155 sièges.", payload.Summary)

	requests := assistant.AskRequests()
	require.Len(t, requests, 1)
	assert.Nil(t, requests[0].ResolvedEntity)
	assert.Equal(t, 1, assistant.SummarizeCalls())
}

func TestAskTool_ChoicesReturnedWithoutSummary(t *testing.T) {
	assistant := &mockAssistant{
		AskFunc: func(_ context.Context, req models.AskRequest) (*models.AskResponse, error) {
			return &models.AskResponse{
				Question: req.Question,
				Intent:   models.IntentData,
				Message:  apperrors.MsgNeedsSelection,
				Choices: []models.DisambiguationCandidate{
					models.NewDisambiguationCandidate("DIVO, COMMUNE", models.ColumnCirconscription),
					models.NewDisambiguationCandidate("DIVO, SOUS-PREFECTURE", models.ColumnCirconscription),
				},
			}, nil
		},
	}
	s := newAskServer(assistant)

	response := callAskTool(t, s, map[string]any{"question": "Qui a gagné à Divo ?"})

	require.False(t, response.Result.IsError)
	var payload models.AskResponse
	require.NoError(t, json.Unmarshal([]byte(response.Result.Content[0].Text), &payload))
	require.Len(t, payload.Choices, 2)
	assert.Equal(t, "Circonscription: DIVO, COMMUNE", payload.Choices[0].DisplayLabel)
	assert.Zero(t, assistant.SummarizeCalls())
}

func TestAskTool_ForwardsResolvedEntity(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want *models.ResolvedEntity
	}{
		{
			name: "value and column",
			args: map[string]any{"question": "Qui a gagné à Divo ?", "resolved_value": " DIVO, COMMUNE ", "resolved_column": "circonscription"},
			want: &models.ResolvedEntity{Value: "DIVO, COMMUNE", Column: models.ColumnCirconscription},
		},
		{
			name: "value only",
			args: map[string]any{"question": "Qui a gagné à Divo ?", "resolved_value": "DIVO, COMMUNE"},
			want: &models.ResolvedEntity{Value: "DIVO, COMMUNE"},
		},
		{
			name: "column without value ignored",
			args: map[string]any{"question": "Qui a gagné à Divo ?", "resolved_column": "region"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assistant := &mockAssistant{}
			s := newAskServer(assistant)

			response := callAskTool(t, s, tt.args)

			require.False(t, response.Result.IsError)
			requests := assistant.AskRequests()
			require.Len(t, requests, 1)
			assert.Equal(t, tt.want, requests[0].ResolvedEntity)
		})
	}
}

func TestAskTool_CallerErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]any
		wantCode string
	}{
		{"missing question", map[string]any{}, "empty_question"},
		{"blank question", map[string]any{"question": "   "}, "empty_question"},
		{"unknown column", map[string]any{"question": "Q", "resolved_value": "X", "resolved_column": "parti"}, "invalid_column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assistant := &mockAssistant{}
			s := newAskServer(assistant)

			response := callAskTool(t, s, tt.args)

			require.Nil(t, response.Error)
			assert.True(t, response.Result.IsError)
			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal([]byte(response.Result.Content[0].Text), &errResp))
			assert.Equal(t, tt.wantCode, errResp.Code)
			assert.Empty(t, assistant.AskRequests())
		})
	}
}

func TestAskTool_AssistantErrors(t *testing.T) {
	t.Run("empty question from pipeline", func(t *testing.T) {
		s := newAskServer(&mockAssistant{
			AskFunc: func(context.Context, models.AskRequest) (*models.AskResponse, error) {
				return nil, fmt.Errorf("ask: %w", apperrors.ErrEmptyQuestion)
			},
		})

		response := callAskTool(t, s, map[string]any{"question": "?"})

		assert.True(t, response.Result.IsError)
		assert.Contains(t, response.Result.Content[0].Text, "empty_question")
	})

	t.Run("pipeline failure is a protocol error", func(t *testing.T) {
		s := newAskServer(&mockAssistant{
			AskFunc: func(context.Context, models.AskRequest) (*models.AskResponse, error) {
				return nil, errors.New("registry closed")
			},
		})

		response := callAskTool(t, s, map[string]any{"question": "Qui a gagné ?"})

		require.NotNil(t, response.Error)
		assert.Contains(t, response.Error.Message, "failed to answer question")
	})
}
