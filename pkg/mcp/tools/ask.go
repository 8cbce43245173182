package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/apperrors"
	"github.com/ekaya-inc/election-assistant/pkg/models"
	"github.com/ekaya-inc/election-assistant/pkg/services"
)

// AskToolName is the MCP name of the election question tool.
const AskToolName = "ask_election_question"

// AskToolDeps contains dependencies for the ask tool.
type AskToolDeps struct {
	Assistant services.Assistant
	Logger    *zap.Logger
}

// askResult is the tool payload: the pipeline response plus its narrative summary.
type askResult struct {
	*models.AskResponse
	Summary string `json:"summary,omitempty"`
}

// RegisterAskTool adds the ask_election_question tool to the MCP server.
func RegisterAskTool(s *server.MCPServer, deps *AskToolDeps) {
	tool := mcp.NewTool(
		AskToolName,
		mcp.WithDescription(
			"Répond à une question en français sur les résultats des élections législatives 2025 en Côte d'Ivoire. "+
				"Si la réponse contient des 'choices', demandez à l'utilisateur d'en choisir une puis rappelez l'outil "+
				"avec la même question, resolved_value et resolved_column.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("La question de l'utilisateur, en langage naturel"),
		),
		mcp.WithString(
			"resolved_value",
			mcp.Description("Optional: valeur choisie parmi les 'choices' d'une réponse précédente"),
		),
		mcp.WithString(
			"resolved_column",
			mcp.Description("Optional: colonne de la valeur choisie"),
			mcp.Enum(string(models.ColumnRegion), string(models.ColumnCirconscription), string(models.ColumnCandidat)),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return NewErrorResult("empty_question", apperrors.MsgEmptyQuestion), nil
		}

		askReq := models.AskRequest{Question: question}
		if value := strings.TrimSpace(req.GetString("resolved_value", "")); value != "" {
			column := models.EntityColumn(strings.TrimSpace(req.GetString("resolved_column", "")))
			if column != "" && !column.IsValid() {
				return NewErrorResultWithDetails("invalid_column",
					fmt.Sprintf("unknown resolved_column %q", column),
					map[string]any{"valid_columns": models.EntityColumns},
				), nil
			}
			askReq.ResolvedEntity = &models.ResolvedEntity{Value: value, Column: column}
		}

		resp, err := deps.Assistant.Ask(ctx, askReq)
		if err != nil {
			if errors.Is(err, apperrors.ErrEmptyQuestion) {
				return NewErrorResult("empty_question", apperrors.MsgEmptyQuestion), nil
			}
			deps.Logger.Error("ask_election_question failed", zap.Error(err))
			return nil, fmt.Errorf("failed to answer question: %w", err)
		}

		result := askResult{AskResponse: resp}
		if len(resp.Rows) > 0 {
			result.Summary = services.CollectSummary(deps.Assistant.Summarize(ctx, resp))
		}

		jsonResult, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
