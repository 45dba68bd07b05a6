// -----------------------------------------------------------------------
// Hunt Handler - Execution lifecycle API
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
)

// HuntHandler exposes hunt execution operations over HTTP.
type HuntHandler struct {
	hunts  interfaces.HuntService
	logger arbor.ILogger
}

// NewHuntHandler creates a hunt handler.
func NewHuntHandler(hunts interfaces.HuntService, logger arbor.ILogger) *HuntHandler {
	return &HuntHandler{hunts: hunts, logger: logger}
}

type startExecutionRequest struct {
	DefinitionID  string                 `json:"definition_id"`
	CaseID        string                 `json:"case_id"`
	UserID        string                 `json:"user_id"`
	InitialParams map[string]interface{} `json:"initial_params"`
}

// StartExecutionHandler starts a hunt execution.
// POST /api/executions
func (h *HuntHandler) StartExecutionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req startExecutionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.DefinitionID == "" {
		WriteError(w, http.StatusBadRequest, "definition_id is required")
		return
	}
	if req.CaseID == "" {
		WriteError(w, http.StatusBadRequest, "case_id is required")
		return
	}

	executionID, err := h.hunts.StartExecution(r.Context(), req.DefinitionID, req.CaseID, req.UserID, req.InitialParams)
	if err != nil {
		h.logger.Warn().Err(err).Str("definition_id", req.DefinitionID).Msg("Failed to start execution")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":       "started",
		"execution_id": executionID,
	})
}

// ListExecutionsHandler lists executions, optionally filtered by status and
// case.
// GET /api/executions?status=running&case_id=case-1&limit=50&offset=0
func (h *HuntHandler) ListExecutionsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit, offset := GetLimitOffset(r)
	opts := &interfaces.ExecutionListOptions{
		Status: r.URL.Query().Get("status"),
		CaseID: r.URL.Query().Get("case_id"),
		Limit:  limit,
		Offset: offset,
	}

	executions, err := h.hunts.ListExecutions(r.Context(), opts)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list executions")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"executions": executions,
		"count":      len(executions),
	})
}

// ExecutionRoutesHandler dispatches /api/executions/{id} and
// /api/executions/{id}/cancel.
func (h *HuntHandler) ExecutionRoutesHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/executions/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if len(parts) == 0 || parts[0] == "" {
		WriteError(w, http.StatusBadRequest, "Execution ID is required")
		return
	}
	executionID := parts[0]

	switch {
	case len(parts) == 1:
		h.getExecution(w, r, executionID)
	case len(parts) == 2 && parts[1] == "cancel":
		h.cancelExecution(w, r, executionID)
	default:
		WriteError(w, http.StatusNotFound, "Unknown execution route")
	}
}

func (h *HuntHandler) getExecution(w http.ResponseWriter, r *http.Request, executionID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	execution, err := h.hunts.GetExecution(r.Context(), executionID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Execution not found: "+executionID)
		return
	}
	WriteJSON(w, http.StatusOK, execution)
}

func (h *HuntHandler) cancelExecution(w http.ResponseWriter, r *http.Request, executionID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.hunts.RequestCancel(r.Context(), executionID); err != nil {
		WriteError(w, http.StatusNotFound, "Execution not found: "+executionID)
		return
	}

	h.logger.Info().Str("execution_id", executionID).Msg("Cancellation requested via API")
	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":       "cancel_requested",
		"execution_id": executionID,
	})
}
