package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/models"
	"github.com/veridata-labs/veridata-engine/pkg/services"
)

// FieldResponse is the API shape of a discovered field.
type FieldResponse struct {
	FieldID         string   `json:"field_id"`
	DataSourceID    string   `json:"data_source_id"`
	AssetID         string   `json:"asset_id"`
	Schema          string   `json:"schema"`
	TableName       string   `json:"table_name"`
	FieldName       string   `json:"field_name"`
	DataType        string   `json:"data_type"`
	Classification  string   `json:"classification"`
	Sensitivity     string   `json:"sensitivity"`
	Description     string   `json:"description,omitempty"`
	SuggestedTags   []string `json:"suggested_tags,omitempty"`
	SuggestedRules  []string `json:"suggested_rules,omitempty"`
	DataPatterns    []string `json:"data_patterns,omitempty"`
	BusinessContext string   `json:"business_context,omitempty"`
	Confidence      float64  `json:"confidence"`
	Status          string   `json:"status"`
	IsAIGenerated   bool     `json:"is_ai_generated"`
	DetectedAt      string   `json:"detected_at"`
	ReviewedAt      string   `json:"reviewed_at,omitempty"`
	ReviewedBy      string   `json:"reviewed_by,omitempty"`
}

// ListFieldsResponse wraps the field list.
type ListFieldsResponse struct {
	Fields []FieldResponse `json:"fields"`
}

// UpdateFieldStatusRequest is the body for PATCH /api/fields/{fid}/status.
type UpdateFieldStatusRequest struct {
	Status     string `json:"status"`
	ReviewedBy string `json:"reviewed_by"`
}

// BulkUpdateStatusRequest is the body for POST /api/fields/bulk-status.
type BulkUpdateStatusRequest struct {
	FieldIDs   []string `json:"field_ids"`
	Status     string   `json:"status"`
	ReviewedBy string   `json:"reviewed_by"`
}

// HistoryEntryResponse is the API shape of one audit entry.
type HistoryEntryResponse struct {
	ID                 string `json:"id"`
	SessionID          string `json:"session_id,omitempty"`
	PrevClassification string `json:"prev_classification,omitempty"`
	NewClassification  string `json:"new_classification"`
	PrevSensitivity    string `json:"prev_sensitivity,omitempty"`
	NewSensitivity     string `json:"new_sensitivity"`
	PrevStatus         string `json:"prev_status,omitempty"`
	NewStatus          string `json:"new_status"`
	ChangedBy          string `json:"changed_by"`
	CreatedAt          string `json:"created_at"`
}

// FieldHistoryResponse wraps a field's audit trail.
type FieldHistoryResponse struct {
	Entries []HistoryEntryResponse `json:"entries"`
}

// FieldsHandler handles discovered-field HTTP requests.
type FieldsHandler struct {
	review *services.ReviewService
	logger *zap.Logger
}

// NewFieldsHandler creates a new fields handler.
func NewFieldsHandler(review *services.ReviewService, logger *zap.Logger) *FieldsHandler {
	return &FieldsHandler{
		review: review,
		logger: logger,
	}
}

// RegisterRoutes registers the fields handler's routes on the given mux.
func (h *FieldsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/fields", h.List)
	mux.HandleFunc("GET /api/fields/{fid}", h.Get)
	mux.HandleFunc("GET /api/fields/{fid}/history", h.History)
	mux.HandleFunc("PATCH /api/fields/{fid}/status", h.UpdateStatus)
	mux.HandleFunc("POST /api/fields/bulk-status", h.BulkUpdateStatus)
}

// List handles GET /api/fields
// Accepts an optional dataSourceId query parameter.
func (h *FieldsHandler) List(w http.ResponseWriter, r *http.Request) {
	dataSourceID := r.URL.Query().Get("dataSourceId")

	fields, err := h.review.ListFields(r.Context(), dataSourceID)
	if err != nil {
		h.logger.Error("Failed to list fields", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list fields"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	data := ListFieldsResponse{Fields: make([]FieldResponse, len(fields))}
	for i, field := range fields {
		data.Fields[i] = fieldResponse(field)
	}

	response := ApiResponse{Success: true, Data: data}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/fields/{fid}
func (h *FieldsHandler) Get(w http.ResponseWriter, r *http.Request) {
	fieldID, ok := ParseFieldID(w, r, h.logger)
	if !ok {
		return
	}

	field, err := h.review.GetField(r.Context(), fieldID)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to get field", zap.Error(err))
		}
		if err := ErrorResponse(w, status, codeForStatus(status), "Failed to get field"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: fieldResponse(field)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// History handles GET /api/fields/{fid}/history
func (h *FieldsHandler) History(w http.ResponseWriter, r *http.Request) {
	fieldID, ok := ParseFieldID(w, r, h.logger)
	if !ok {
		return
	}

	entries, err := h.review.GetFieldHistory(r.Context(), fieldID)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to get field history", zap.Error(err))
		}
		if err := ErrorResponse(w, status, codeForStatus(status), "Failed to get field history"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	data := FieldHistoryResponse{Entries: make([]HistoryEntryResponse, len(entries))}
	for i, entry := range entries {
		data.Entries[i] = historyResponse(entry)
	}

	response := ApiResponse{Success: true, Data: data}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdateStatus handles PATCH /api/fields/{fid}/status
// Applies one review decision to a field.
func (h *FieldsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	fieldID, ok := ParseFieldID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateFieldStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.ReviewedBy == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_reviewer", "reviewed_by is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	field, err := h.review.UpdateFieldStatus(r.Context(), fieldID, models.FieldStatus(req.Status), req.ReviewedBy)
	if err != nil {
		status := statusForError(err)
		message := "Failed to update field status"
		if status == http.StatusBadRequest {
			message = "Unknown field status"
		} else if status == http.StatusInternalServerError {
			h.logger.Error("Failed to update field status", zap.Error(err))
		}
		if err := ErrorResponse(w, status, codeForStatus(status), message); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: fieldResponse(field)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// BulkUpdateStatus handles POST /api/fields/bulk-status
// Applies one review decision to many fields; items fail independently.
func (h *FieldsHandler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req BulkUpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.ReviewedBy == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_reviewer", "reviewed_by is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	fieldIDs := make([]uuid.UUID, 0, len(req.FieldIDs))
	for _, raw := range req.FieldIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_field_id", "Invalid field ID format: "+raw); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		fieldIDs = append(fieldIDs, id)
	}

	result, err := h.review.BulkUpdateStatus(r.Context(), fieldIDs, models.FieldStatus(req.Status), req.ReviewedBy)
	if err != nil {
		status := statusForError(err)
		message := "Failed to update field statuses"
		if status == http.StatusBadRequest {
			message = err.Error()
		} else if status == http.StatusInternalServerError {
			h.logger.Error("Failed to bulk update field statuses", zap.Error(err))
		}
		if err := ErrorResponse(w, status, codeForStatus(status), message); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: result}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// fieldResponse converts a field model to its API shape.
func fieldResponse(f *models.DiscoveredField) FieldResponse {
	resp := FieldResponse{
		FieldID:         f.ID.String(),
		DataSourceID:    f.DataSourceID,
		AssetID:         f.AssetID,
		Schema:          f.Schema,
		TableName:       f.TableName,
		FieldName:       f.FieldName,
		DataType:        f.DataType,
		Classification:  string(f.Classification),
		Sensitivity:     string(f.Sensitivity),
		Description:     f.Description,
		SuggestedTags:   f.SuggestedTags,
		SuggestedRules:  f.SuggestedRules,
		DataPatterns:    f.DataPatterns,
		BusinessContext: f.BusinessContext,
		Confidence:      f.Confidence,
		Status:          string(f.Status),
		IsAIGenerated:   f.IsAIGenerated,
		DetectedAt:      f.DetectedAt.Format(time.RFC3339),
	}
	if f.ReviewedAt != nil {
		resp.ReviewedAt = f.ReviewedAt.Format(time.RFC3339)
	}
	if f.ReviewedBy != nil {
		resp.ReviewedBy = *f.ReviewedBy
	}
	return resp
}

// historyResponse converts an audit entry to its API shape.
func historyResponse(e *models.FieldClassificationHistory) HistoryEntryResponse {
	resp := HistoryEntryResponse{
		ID:                e.ID.String(),
		NewClassification: string(e.NewClassification),
		NewSensitivity:    string(e.NewSensitivity),
		NewStatus:         string(e.NewStatus),
		ChangedBy:         e.ChangedBy,
		CreatedAt:         e.CreatedAt.Format(time.RFC3339),
	}
	if e.SessionID != uuid.Nil {
		resp.SessionID = e.SessionID.String()
	}
	if e.PrevClassification != nil {
		resp.PrevClassification = string(*e.PrevClassification)
	}
	if e.PrevSensitivity != nil {
		resp.PrevSensitivity = string(*e.PrevSensitivity)
	}
	if e.PrevStatus != nil {
		resp.PrevStatus = string(*e.PrevStatus)
	}
	return resp
}
