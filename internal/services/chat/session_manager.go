package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/common"
	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/models"
)

// SessionManager implements grounded chat over completed analyses. Sessions
// carry a running token estimate; when a session outgrows its budget the
// older turns are condensed into a single summary turn and spliced out.
type SessionManager struct {
	jobs        interfaces.JobStorage
	sessions    interfaces.SessionStorage
	synthesizer interfaces.Synthesizer
	config      *common.Config
	logger      arbor.ILogger
}

// NewSessionManager wires the chat service.
func NewSessionManager(jobs interfaces.JobStorage, sessions interfaces.SessionStorage, synthesizer interfaces.Synthesizer, cfg *common.Config, logger arbor.ILogger) *SessionManager {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &SessionManager{
		jobs:        jobs,
		sessions:    sessions,
		synthesizer: synthesizer,
		config:      cfg,
		logger:      logger,
	}
}

// Chat handles one conversational turn. A request carrying only a job ID
// creates or resumes the session grounded on that job's analysis.
func (m *SessionManager) Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	if req == nil || strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: chat message is required", models.ErrInvalidInput)
	}

	session, result, err := m.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}

	session.Turns = append(session.Turns, models.ChatTurn{
		Role:      models.RoleUser,
		Text:      req.Message,
		Timestamp: time.Now(),
	})
	session.Sequence++

	jobContext := buildJobContext(session.JobID, result)
	session.TokenEstimate = m.estimateSession(session, jobContext)

	if session.TokenEstimate > m.config.Chat.TokenBudget {
		if err := m.splice(ctx, session); err != nil {
			return nil, err
		}
		session.TokenEstimate = m.estimateSession(session, jobContext)
	}

	reply, err := m.generateReply(ctx, session, jobContext, req)
	if err != nil {
		return nil, err
	}

	session.Turns = append(session.Turns, models.ChatTurn{
		Role:      models.RoleAssistant,
		Text:      reply,
		Timestamp: time.Now(),
	})
	session.State = models.SessionActive
	session.TokenEstimate = m.estimateSession(session, jobContext)

	if err := m.sessions.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	return &models.ChatResponse{SessionID: session.ID, Reply: reply}, nil
}

// GetSession returns a session by ID.
func (m *SessionManager) GetSession(sessionID string) (*models.ChatSession, error) {
	return m.sessions.GetSession(context.Background(), sessionID)
}

// resolveSession finds or creates the session for a request and loads the
// analysis result it is grounded on.
func (m *SessionManager) resolveSession(ctx context.Context, req *models.ChatRequest) (*models.ChatSession, *models.AnalysisResult, error) {
	var session *models.ChatSession

	if req.SessionID != "" {
		found, err := m.sessions.GetSession(ctx, req.SessionID)
		if err != nil {
			return nil, nil, err
		}
		session = found
	} else if req.JobID != "" {
		found, err := m.sessions.GetSessionByJob(ctx, req.JobID)
		if err == nil {
			session = found
		} else if !errors.Is(err, models.ErrNotFound) {
			return nil, nil, err
		}
	} else {
		return nil, nil, fmt.Errorf("%w: session_id or job_id is required", models.ErrInvalidInput)
	}

	jobID := req.JobID
	if session != nil {
		jobID = session.JobID
	}

	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if job.Stage != models.StageComplete {
		return nil, nil, fmt.Errorf("%w: job %s is at stage %s", models.ErrJobNotReady, jobID, job.Stage)
	}

	raw, ok := job.Result(models.StageDeciding)
	if !ok {
		return nil, nil, fmt.Errorf("completed job %s has no analysis result", jobID)
	}
	var result models.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, nil, fmt.Errorf("corrupt analysis result for job %s: %w", jobID, err)
	}

	if session == nil {
		now := time.Now()
		session = &models.ChatSession{
			ID:        common.NewSessionID(),
			JobID:     jobID,
			State:     models.SessionCreated,
			CreatedAt: now,
			ExpiresAt: now.Add(m.config.RetentionWindowDuration()),
		}
		m.logger.Info().Str("session_id", session.ID).Str("job_id", jobID).Msg("Chat session created")
	}

	return session, &result, nil
}

// splice condenses everything but the most recent turns into one summary
// turn. An existing summary turn is folded into the new one, so the session
// never carries more than one.
func (m *SessionManager) splice(ctx context.Context, session *models.ChatSession) error {
	retained := m.config.Chat.RetainedTurns
	if retained <= 0 {
		retained = 4
	}
	if len(session.Turns) <= retained+1 {
		return nil
	}

	older := session.Turns[:len(session.Turns)-retained]
	recent := session.Turns[len(session.Turns)-retained:]

	var sb strings.Builder
	for _, turn := range older {
		fmt.Fprintf(&sb, "[%s] %s\n", turn.Role, turn.Text)
	}

	summary, err := m.synthesizer.Synthesize(ctx, &interfaces.SynthesisRequest{
		System: condenseSystem,
		Messages: []interfaces.Message{
			{Role: "user", Content: sb.String()},
		},
	})
	if err != nil {
		return err
	}

	spliced := make([]models.ChatTurn, 0, retained+1)
	spliced = append(spliced, models.ChatTurn{
		Role:      models.RoleSummary,
		Text:      summary,
		Timestamp: time.Now(),
	})
	spliced = append(spliced, recent...)

	m.logger.Info().
		Str("session_id", session.ID).
		Int("before", len(session.Turns)).
		Int("after", len(spliced)).
		Msg("Session turns condensed into summary")

	session.Turns = spliced
	return nil
}

func (m *SessionManager) generateReply(ctx context.Context, session *models.ChatSession, jobContext string, req *models.ChatRequest) (string, error) {
	system := analystSystem + "\n\n" + jobContext

	var messages []interfaces.Message
	for _, turn := range session.Turns {
		switch turn.Role {
		case models.RoleSummary:
			system += "\n\nEarlier conversation summary:\n" + turn.Text
		case models.RoleAssistant:
			messages = append(messages, interfaces.Message{Role: "assistant", Content: turn.Text})
		default:
			messages = append(messages, interfaces.Message{Role: "user", Content: turn.Text})
		}
	}

	return m.synthesizer.Synthesize(ctx, &interfaces.SynthesisRequest{
		System:         system,
		Messages:       messages,
		Mode:           req.Mode,
		Language:       req.Language,
		IdempotencyKey: session.ID + ":" + fmt.Sprint(session.Sequence),
	})
}

// estimateSession approximates the token footprint of the grounded context
// plus every retained turn. Four characters per token is close enough for
// budget enforcement.
func (m *SessionManager) estimateSession(session *models.ChatSession, jobContext string) int {
	chars := len(analystSystem) + len(jobContext)
	for _, turn := range session.Turns {
		chars += len(turn.Text)
	}
	return chars / 4
}
