package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/models"
	"github.com/ternarybob/censeo/internal/router"
)

// ChatHandler handles chat requests over completed analyses.
type ChatHandler struct {
	router *router.Router
	logger arbor.ILogger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(r *router.Router, logger arbor.ILogger) *ChatHandler {
	return &ChatHandler{router: r, logger: logger}
}

// Handle handles POST /api/chat.
func (h *ChatHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	resp, err := h.router.Chat(r.Context(), &req)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}
