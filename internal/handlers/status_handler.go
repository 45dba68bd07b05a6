package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/venator/internal/common"
)

// StatusHandler serves application status and version endpoints.
type StatusHandler struct {
	registryNames func() []string
	startTime     time.Time
}

// NewStatusHandler creates a status handler. registryNames reports the
// currently registered plugin names.
func NewStatusHandler(registryNames func() []string) *StatusHandler {
	return &StatusHandler{
		registryNames: registryNames,
		startTime:     time.Now(),
	}
}

// HealthHandler responds to health probes.
// GET /api/health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// VersionHandler reports version and build information.
// GET /api/version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version": common.GetVersion(),
		"uptime":  time.Since(h.startTime).String(),
		"plugins": h.registryNames(),
	})
}
