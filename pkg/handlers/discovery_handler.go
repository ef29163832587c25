package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/models"
	"github.com/veridata-labs/veridata-engine/pkg/services"
)

// StartDiscoveryRequest is the body for POST /api/discovery/sessions.
type StartDiscoveryRequest struct {
	DataSourceID  string   `json:"data_source_id"`
	TargetSchemas []string `json:"target_schemas,omitempty"`
	TargetTables  []string `json:"target_tables,omitempty"`
}

// SessionResponse is the API shape of a discovery session.
type SessionResponse struct {
	SessionID        string   `json:"session_id"`
	DataSourceID     string   `json:"data_source_id"`
	TargetSchemas    []string `json:"target_schemas,omitempty"`
	TargetTables     []string `json:"target_tables,omitempty"`
	Status           string   `json:"status"`
	Progress         int      `json:"progress"`
	FieldsDiscovered int      `json:"fields_discovered"`
	FieldsClassified int      `json:"fields_classified"`
	PIIFieldsFound   int      `json:"pii_fields_found"`
	ErrorMessage     string   `json:"error_message,omitempty"`
	StartedAt        string   `json:"started_at"`
	CompletedAt      string   `json:"completed_at,omitempty"`
}

// ListSessionsResponse wraps the session list.
type ListSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// DiscoveryHandler handles discovery session HTTP requests.
type DiscoveryHandler struct {
	discovery *services.DiscoveryService
	logger    *zap.Logger
}

// NewDiscoveryHandler creates a new discovery handler.
func NewDiscoveryHandler(discovery *services.DiscoveryService, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discovery: discovery,
		logger:    logger,
	}
}

// RegisterRoutes registers the discovery handler's routes on the given mux.
func (h *DiscoveryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/discovery/sessions", h.Start)
	mux.HandleFunc("GET /api/discovery/sessions", h.List)
	mux.HandleFunc("GET /api/discovery/sessions/{sid}", h.Get)
	mux.HandleFunc("DELETE /api/discovery/sessions/{sid}", h.Delete)
}

// Start handles POST /api/discovery/sessions
// Creates a session and schedules the discovery run. Responds immediately
// with the pending session; callers poll Get for progress.
func (h *DiscoveryHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartDiscoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.DataSourceID == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_data_source", "data_source_id is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	session, err := h.discovery.StartDiscovery(r.Context(), services.StartDiscoveryRequest{
		DataSourceID:  req.DataSourceID,
		TargetSchemas: req.TargetSchemas,
		TargetTables:  req.TargetTables,
	})
	if err != nil {
		h.logger.Error("Failed to start discovery", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to start discovery"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: sessionResponse(session)}
	if err := WriteJSON(w, http.StatusAccepted, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/discovery/sessions/{sid}
func (h *DiscoveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	session, err := h.discovery.GetSession(r.Context(), sessionID)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to get session", zap.Error(err))
		}
		if err := ErrorResponse(w, status, codeForStatus(status), "Failed to get session"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: sessionResponse(session)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/discovery/sessions
// Accepts an optional dataSourceId query parameter.
func (h *DiscoveryHandler) List(w http.ResponseWriter, r *http.Request) {
	dataSourceID := r.URL.Query().Get("dataSourceId")

	sessions, err := h.discovery.ListSessions(r.Context(), dataSourceID)
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list sessions"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	data := ListSessionsResponse{Sessions: make([]SessionResponse, len(sessions))}
	for i, session := range sessions {
		data.Sessions[i] = sessionResponse(session)
	}

	response := ApiResponse{Success: true, Data: data}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/discovery/sessions/{sid}
// Only terminal sessions may be deleted.
func (h *DiscoveryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.discovery.DeleteSession(r.Context(), sessionID); err != nil {
		status := statusForError(err)
		message := "Failed to delete session"
		if status == http.StatusConflict {
			message = "Session is still running; only completed or failed sessions can be deleted"
		} else if status == http.StatusInternalServerError {
			h.logger.Error("Failed to delete session", zap.Error(err))
		}
		if err := ErrorResponse(w, status, codeForStatus(status), message); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Message: "Session deleted"}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// sessionResponse converts a session model to its API shape.
func sessionResponse(s *models.DiscoverySession) SessionResponse {
	resp := SessionResponse{
		SessionID:        s.ID.String(),
		DataSourceID:     s.DataSourceID,
		TargetSchemas:    s.TargetSchemas,
		TargetTables:     s.TargetTables,
		Status:           string(s.Status),
		Progress:         s.Progress,
		FieldsDiscovered: s.FieldsDiscovered,
		FieldsClassified: s.FieldsClassified,
		PIIFieldsFound:   s.PIIFieldsFound,
		StartedAt:        s.StartedAt.Format(time.RFC3339),
	}
	if s.ErrorMessage != nil {
		resp.ErrorMessage = *s.ErrorMessage
	}
	if s.CompletedAt != nil {
		resp.CompletedAt = s.CompletedAt.Format(time.RFC3339)
	}
	return resp
}
