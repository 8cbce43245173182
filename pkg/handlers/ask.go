package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/apperrors"
	"github.com/ekaya-inc/election-assistant/pkg/models"
	"github.com/ekaya-inc/election-assistant/pkg/services"
)

// maxAskBodyBytes bounds the request body of the ask endpoints.
const maxAskBodyBytes = 64 << 10

// ============================================================================
// Request/Response Types
// ============================================================================

// AskRequest for POST /api/ask and POST /api/ask/stream
type AskRequest struct {
	Question       string                 `json:"question"`
	ResolvedEntity *models.ResolvedEntity `json:"resolved_entity,omitempty"`
}

// AskResult is the pipeline response plus the collected narrative summary.
type AskResult struct {
	*models.AskResponse
	Summary string `json:"summary,omitempty"`
}

// SummaryChunk is the payload of a streamed summary event.
type SummaryChunk struct {
	Text string `json:"text"`
}

// ============================================================================
// Handler
// ============================================================================

// AskHandler serves questions to the assistant pipeline.
type AskHandler struct {
	assistant services.Assistant
	timeout   time.Duration
	logger    *zap.Logger
}

// NewAskHandler creates an AskHandler. A zero timeout leaves requests without a deadline.
func NewAskHandler(assistant services.Assistant, timeout time.Duration, logger *zap.Logger) *AskHandler {
	return &AskHandler{
		assistant: assistant,
		timeout:   timeout,
		logger:    logger,
	}
}

// RegisterRoutes registers the ask handler's routes on the given mux.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ask", h.Ask)
	mux.HandleFunc("POST /api/ask/stream", h.AskStream)
}

// Ask handles POST /api/ask
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	resp, ok := h.ask(ctx, w, req)
	if !ok {
		return
	}

	result := AskResult{AskResponse: resp}
	if len(resp.Rows) > 0 {
		result.Summary = services.CollectSummary(h.assistant.Summarize(ctx, resp))
	}

	w.Header().Set("X-Request-Id", resp.RequestID)
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// AskStream handles POST /api/ask/stream
// The pipeline response is sent as a "result" event, followed by one
// "summary" event per narrative chunk and a final "done" event.
func (h *AskHandler) AskStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	resp, ok := h.ask(ctx, w, req)
	if !ok {
		return
	}

	w.Header().Set("X-Request-Id", resp.RequestID)
	events, ok := newEventWriter(w)
	if !ok {
		h.logger.Error("SSE not supported")
		if err := ErrorResponse(w, http.StatusInternalServerError, "sse_unsupported", "SSE not supported"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := events.Send("result", resp); err != nil {
		h.logger.Error("Failed to write result event", zap.Error(err))
		return
	}

	if len(resp.Rows) > 0 {
		chunks := h.assistant.Summarize(ctx, resp)
		for chunk := range chunks {
			if err := events.Send("summary", SummaryChunk{Text: chunk}); err != nil {
				h.logger.Debug("Client left during summary stream", zap.Error(err))
				cancel()
				for range chunks {
				}
				return
			}
		}
	}

	if ctx.Err() != nil {
		if err := events.Send("error", map[string]string{"error": "timeout", "message": "Délai de réponse dépassé."}); err != nil {
			h.logger.Debug("Failed to write error event", zap.Error(err))
		}
		return
	}
	if err := events.Send("done", struct{}{}); err != nil {
		h.logger.Debug("Failed to write done event", zap.Error(err))
	}
}

func (h *AskHandler) decode(w http.ResponseWriter, r *http.Request) (models.AskRequest, bool) {
	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBodyBytes)).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return models.AskRequest{}, false
	}

	if strings.TrimSpace(req.Question) == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "empty_question", apperrors.MsgEmptyQuestion); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return models.AskRequest{}, false
	}

	return models.AskRequest{Question: req.Question, ResolvedEntity: req.ResolvedEntity}, true
}

func (h *AskHandler) ask(ctx context.Context, w http.ResponseWriter, req models.AskRequest) (*models.AskResponse, bool) {
	resp, err := h.assistant.Ask(ctx, req)
	if err == nil {
		return resp, true
	}

	status, code, message := http.StatusInternalServerError, "ask_failed", "Failed to answer question"
	switch {
	case errors.Is(err, apperrors.ErrEmptyQuestion):
		status, code, message = http.StatusBadRequest, "empty_question", apperrors.MsgEmptyQuestion
	case errors.Is(err, context.DeadlineExceeded):
		status, code, message = http.StatusGatewayTimeout, "timeout", "Délai de réponse dépassé."
	default:
		h.logger.Error("Failed to answer question", zap.Error(err))
	}
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
	return nil, false
}

func (h *AskHandler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}
