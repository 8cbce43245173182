package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/schema"
)

// StatsResponse for GET /api/stats
type StatsResponse struct {
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Statistics  map[string]any `json:"statistics"`
	Views       []string       `json:"views"`
}

// StatsHandler serves the dataset summary from the schema registry.
type StatsHandler struct {
	registry *schema.Registry
	logger   *zap.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(registry *schema.Registry, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{registry: registry, logger: logger}
}

// RegisterRoutes registers the stats handler's routes on the given mux.
func (h *StatsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stats", h.Stats)
}

// Stats handles GET /api/stats
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	info := h.registry.DatabaseInfo()
	data := StatsResponse{
		Name:        info.Name,
		Description: info.Description,
		Statistics:  info.Statistics,
		Views:       h.registry.AllowedViews(),
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
