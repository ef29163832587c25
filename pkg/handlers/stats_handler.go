package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/models"
	"github.com/veridata-labs/veridata-engine/pkg/services"
)

// FieldStatsResponse is the API shape of the field aggregate view.
type FieldStatsResponse struct {
	TotalFields       int            `json:"total_fields"`
	ByStatus          map[string]int `json:"by_status"`
	ByClassification  map[string]int `json:"by_classification"`
	BySensitivity     map[string]int `json:"by_sensitivity"`
	AverageConfidence float64        `json:"average_confidence"`
	RecentDiscoveries int            `json:"recent_discoveries"`
}

// StatsHandler handles aggregate statistics endpoints.
type StatsHandler struct {
	stats  *services.StatsService
	logger *zap.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(stats *services.StatsService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		stats:  stats,
		logger: logger,
	}
}

// RegisterRoutes registers the stats handler's routes on the given mux.
func (h *StatsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/fields/stats", h.Get)
}

// Get handles GET /api/fields/stats
// Accepts an optional dataSourceId query parameter.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	dataSourceID := r.URL.Query().Get("dataSourceId")

	stats, err := h.stats.FieldStats(r.Context(), dataSourceID)
	if err != nil {
		h.logger.Error("Failed to aggregate field stats", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to aggregate field stats"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: statsResponse(stats)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// statsResponse converts the stats model to its API shape.
func statsResponse(s *models.FieldStats) FieldStatsResponse {
	resp := FieldStatsResponse{
		TotalFields:       s.TotalFields,
		ByStatus:          make(map[string]int, len(s.ByStatus)),
		ByClassification:  make(map[string]int, len(s.ByClassification)),
		BySensitivity:     make(map[string]int, len(s.BySensitivity)),
		AverageConfidence: s.AverageConfidence,
		RecentDiscoveries: s.RecentDiscoveries,
	}
	for status, count := range s.ByStatus {
		resp.ByStatus[string(status)] = count
	}
	for class, count := range s.ByClassification {
		resp.ByClassification[string(class)] = count
	}
	for sens, count := range s.BySensitivity {
		resp.BySensitivity[string(sens)] = count
	}
	return resp
}
