package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/models"
	"github.com/veridata-labs/veridata-engine/pkg/services"
)

// PolicyRequest is the body for policy create/update.
type PolicyRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Sensitivity string `json:"sensitivity"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// ListPoliciesResponse wraps the policy list.
type ListPoliciesResponse struct {
	Policies []*services.ClassificationPolicy `json:"policies"`
}

// PolicyHandler handles classification policy HTTP requests.
type PolicyHandler struct {
	policies *services.PolicyService
	logger   *zap.Logger
}

// NewPolicyHandler creates a new policy handler.
func NewPolicyHandler(policies *services.PolicyService, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{
		policies: policies,
		logger:   logger,
	}
}

// RegisterRoutes registers the policy handler's routes on the given mux.
func (h *PolicyHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/policies", h.Create)
	mux.HandleFunc("GET /api/policies", h.List)
	mux.HandleFunc("GET /api/policies/{pid}", h.Get)
	mux.HandleFunc("PUT /api/policies/{pid}", h.Update)
	mux.HandleFunc("DELETE /api/policies/{pid}", h.Delete)
}

// Create handles POST /api/policies
func (h *PolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodePolicy(w, r)
	if !ok {
		return
	}

	policy, err := h.policies.CreatePolicy(r.Context(), req)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_policy", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: policy}
	if err := WriteJSON(w, http.StatusCreated, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/policies
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	policies, err := h.policies.ListPolicies(r.Context())
	if err != nil {
		h.logger.Error("Failed to list policies", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list policies"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: ListPoliciesResponse{Policies: policies}}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/policies/{pid}
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	policyID, ok := ParsePolicyID(w, r, h.logger)
	if !ok {
		return
	}

	policy, err := h.policies.GetPolicy(r.Context(), policyID)
	if err != nil {
		status := statusForError(err)
		if err := ErrorResponse(w, status, codeForStatus(status), "Failed to get policy"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: policy}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/policies/{pid}
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	policyID, ok := ParsePolicyID(w, r, h.logger)
	if !ok {
		return
	}

	req, ok := h.decodePolicy(w, r)
	if !ok {
		return
	}

	policy, err := h.policies.UpdatePolicy(r.Context(), policyID, req)
	if err != nil {
		status := statusForError(err)
		message := "Failed to update policy"
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
			message = err.Error()
		}
		if err := ErrorResponse(w, status, codeForStatus(status), message); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: policy}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/policies/{pid}
func (h *PolicyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	policyID, ok := ParsePolicyID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.policies.DeletePolicy(r.Context(), policyID); err != nil {
		status := statusForError(err)
		if err := ErrorResponse(w, status, codeForStatus(status), "Failed to delete policy"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Message: "Policy deleted"}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// decodePolicy parses and converts the request body, writing a 400 on failure.
func (h *PolicyHandler) decodePolicy(w http.ResponseWriter, r *http.Request) (*services.ClassificationPolicy, bool) {
	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}

	return &services.ClassificationPolicy{
		Name:        req.Name,
		Category:    req.Category,
		Sensitivity: models.Sensitivity(req.Sensitivity),
		Description: req.Description,
		Enabled:     req.Enabled,
	}, true
}
