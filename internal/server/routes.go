package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health and version
	mux.HandleFunc("/health", s.app.HealthHandler.Health)
	mux.HandleFunc("/api/health", s.app.HealthHandler.Health)
	mux.HandleFunc("/api/version", s.app.HealthHandler.Version)

	// Analysis pipeline
	mux.HandleFunc("/api/analyze", s.app.AnalyzeHandler.SubmitHandler) // POST - submit a document
	mux.HandleFunc("/api/status/", s.app.JobHandler.StatusHandler)     // GET /api/status/{job_id}
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)                    // POST /api/jobs/{job_id}/cancel

	// Chat over completed analyses
	mux.HandleFunc("/api/chat", s.app.ChatHandler.Handle) // POST

	return mux
}

// handleJobRoutes dispatches /api/jobs/{id}/... subroutes
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/cancel") {
		s.app.JobHandler.CancelHandler(w, r)
		return
	}
	http.NotFound(w, r)
}
