// -----------------------------------------------------------------------
// Definition Handler - Hunt definition API
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// DefinitionHandler exposes hunt definition CRUD over HTTP.
type DefinitionHandler struct {
	definitions interfaces.DefinitionStorage
	logger      arbor.ILogger
}

// NewDefinitionHandler creates a definition handler.
func NewDefinitionHandler(definitions interfaces.DefinitionStorage, logger arbor.ILogger) *DefinitionHandler {
	return &DefinitionHandler{definitions: definitions, logger: logger}
}

// DefinitionsHandler handles GET (list) and POST (create/update) on
// /api/definitions.
func (h *DefinitionHandler) DefinitionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listDefinitions(w, r)
	case http.MethodPost:
		h.saveDefinition(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// DefinitionRoutesHandler dispatches /api/definitions/{id}.
func (h *DefinitionHandler) DefinitionRoutesHandler(w http.ResponseWriter, r *http.Request) {
	definitionID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/definitions/"), "/")
	if definitionID == "" {
		WriteError(w, http.StatusBadRequest, "Definition ID is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		def, err := h.definitions.GetDefinition(r.Context(), definitionID)
		if err != nil {
			WriteError(w, http.StatusNotFound, "Definition not found: "+definitionID)
			return
		}
		WriteJSON(w, http.StatusOK, def)
	case http.MethodDelete:
		if err := h.definitions.DeleteDefinition(r.Context(), definitionID); err != nil {
			WriteError(w, http.StatusNotFound, "Definition not found: "+definitionID)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": definitionID})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *DefinitionHandler) listDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := h.definitions.ListDefinitions(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list definitions")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"definitions": defs,
		"count":       len(defs),
	})
}

func (h *DefinitionHandler) saveDefinition(w http.ResponseWriter, r *http.Request) {
	var def models.HuntDefinition
	if err := decodeJSONBody(r, &def); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.definitions.SaveDefinition(r.Context(), &def); err != nil {
		if errors.Is(err, models.ErrDefinitionCycle) {
			WriteError(w, http.StatusBadRequest, "Definition rejected: dependency cycle")
			return
		}
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info().Str("definition_id", def.ID).Msg("Hunt definition saved")
	WriteJSON(w, http.StatusOK, map[string]string{"status": "saved", "id": def.ID})
}

func decodeJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
