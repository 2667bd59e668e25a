package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/router"
)

// JobHandler handles job status polls and cancellation.
type JobHandler struct {
	router *router.Router
	logger arbor.ILogger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(r *router.Router, logger arbor.ILogger) *JobHandler {
	return &JobHandler{router: r, logger: logger}
}

// StatusHandler handles GET /api/status/{job_id}.
func (h *JobHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/status/")
	if jobID == "" || strings.Contains(jobID, "/") {
		WriteError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	view, err := h.router.Poll(r.Context(), jobID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, view)
}

// CancelHandler handles POST /api/jobs/{job_id}/cancel.
func (h *JobHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	jobID := strings.TrimSuffix(path, "/cancel")
	if jobID == "" || jobID == path || strings.Contains(jobID, "/") {
		WriteError(w, http.StatusBadRequest, "expected /api/jobs/{job_id}/cancel")
		return
	}

	if err := h.router.Cancel(r.Context(), jobID); err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": "cancelled",
	})
}
