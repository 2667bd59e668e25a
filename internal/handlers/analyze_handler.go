package handlers

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/router"
)

// maxDocumentBytes caps submissions at 20 MB of raw document.
const maxDocumentBytes = 20 << 20

// AnalyzeHandler handles document submissions.
type AnalyzeHandler struct {
	router *router.Router
	logger arbor.ILogger
}

// NewAnalyzeHandler creates a new AnalyzeHandler.
func NewAnalyzeHandler(r *router.Router, logger arbor.ILogger) *AnalyzeHandler {
	return &AnalyzeHandler{router: r, logger: logger}
}

// analyzeRequest is the JSON submission body. Document bytes travel
// base64-encoded; Format is optional and sniffed when absent.
type analyzeRequest struct {
	Document string `json:"document"`
	Format   string `json:"format,omitempty"`
}

// SubmitHandler handles POST /api/analyze. The body is either the JSON
// envelope above or the raw document itself, selected by Content-Type.
func (h *AnalyzeHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes+1))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxDocumentBytes {
		WriteError(w, http.StatusRequestEntityTooLarge, "document exceeds size limit")
		return
	}

	blob := body
	format := ""
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req analyzeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "malformed JSON body")
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(req.Document)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "document must be base64 encoded")
			return
		}
		blob = decoded
		format = req.Format
	}

	jobID, err := h.router.Submit(r.Context(), blob, format)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Submission rejected")
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": "submitted",
	})
}
