package interfaces

import (
	"context"

	"github.com/ternarybob/censeo/internal/models"
)

// ChatService manages grounded Q&A sessions over completed analyses.
type ChatService interface {
	// Chat processes a chat request. When the request carries a job ID and
	// no session exists yet, a session is created grounded on that job's
	// analysis result. Returns models.ErrJobNotReady when the job has not
	// reached a terminal stage.
	Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error)

	// GetSession returns a session by ID.
	GetSession(sessionID string) (*models.ChatSession, error)
}
