package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route - live execution updates for observers
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Hunt executions
	mux.HandleFunc("/api/executions", s.handleExecutionsRoute)
	mux.HandleFunc("/api/executions/", s.app.HuntHandler.ExecutionRoutesHandler) // GET /{id}, POST /{id}/cancel

	// API routes - Hunt definitions
	mux.HandleFunc("/api/definitions", s.app.DefinitionHandler.DefinitionsHandler)
	mux.HandleFunc("/api/definitions/", s.app.DefinitionHandler.DefinitionRoutesHandler) // GET/DELETE /{id}

	// API routes - System
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)

	return mux
}

// handleExecutionsRoute dispatches /api/executions by method: GET lists,
// POST starts.
func (s *Server) handleExecutionsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.app.HuntHandler.ListExecutionsHandler(w, r)
	case http.MethodPost:
		s.app.HuntHandler.StartExecutionHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
