package models

import "time"

// SessionState tracks the chat session lifecycle.
type SessionState string

const (
	SessionCreated SessionState = "created"
	SessionActive  SessionState = "active"
	SessionExpired SessionState = "expired"
)

// Turn roles. RoleSummary marks the single spliced summary-of-older-turns
// turn; it appears at most once per session.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSummary   = "summary"
)

// ChatTurn is one entry in a session's ordered turn log.
type ChatTurn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession is a token-budgeted conversation referencing a completed job's
// decision set. Expiry is enforced by the session store's sweeper, not by
// the session manager.
type ChatSession struct {
	ID    string       `json:"id" badgerhold:"key"`
	JobID string       `json:"job_id"`
	State SessionState `json:"state"`

	Turns []ChatTurn `json:"turns"`

	// TokenEstimate is the running footprint estimate of job context,
	// summary, and turns.
	TokenEstimate int `json:"token_estimate"`

	// Sequence counts user messages over the session's lifetime. Unlike
	// the turn count it never shrinks, so it can key idempotent replies.
	Sequence int `json:"sequence"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SummaryTurn returns the spliced summary turn, if present.
func (s *ChatSession) SummaryTurn() (ChatTurn, bool) {
	for _, t := range s.Turns {
		if t.Role == RoleSummary {
			return t, true
		}
	}
	return ChatTurn{}, false
}

// ChatRequest is the public chat payload. Either SessionID or JobID must be
// set; a session is created on the first request against a completed job.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	JobID     string `json:"job_id,omitempty"`
	Message   string `json:"message" validate:"required"`
	Mode      string `json:"mode,omitempty"`
	Language  string `json:"language,omitempty"`
}

// ChatResponse is the public chat reply.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}
