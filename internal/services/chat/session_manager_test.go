package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/censeo/internal/common"
	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/models"
)

type stubJobs struct {
	jobs map[string]*models.Job
}

func (s *stubJobs) CreateJob(context.Context, *models.Job) error { return nil }

func (s *stubJobs) GetJob(_ context.Context, jobID string) (*models.Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return job, nil
}

func (s *stubJobs) ListJobs(context.Context, int) ([]*models.Job, error) { return nil, nil }
func (s *stubJobs) AdvanceStage(context.Context, string, models.Stage, models.Stage, string, json.RawMessage) error {
	return nil
}
func (s *stubJobs) FailJob(context.Context, string, models.JobError) error { return nil }
func (s *stubJobs) CancelJob(context.Context, string) error                { return nil }
func (s *stubJobs) IncrementAttempt(context.Context, string, models.Stage) (int, error) {
	return 0, nil
}

type stubSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.ChatSession
}

func (s *stubSessions) SaveSession(_ context.Context, session *models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *session
	s.sessions[session.ID] = &c
	return nil
}

func (s *stubSessions) GetSession(_ context.Context, id string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := *session
	return &c, nil
}

func (s *stubSessions) GetSessionByJob(_ context.Context, jobID string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.JobID == jobID {
			c := *session
			return &c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *stubSessions) DeleteExpired(context.Context, time.Time) (int, error) { return 0, nil }

type scriptedSynth struct {
	replies   []string
	condensed int
	replyKeys []string
}

func (s *scriptedSynth) Synthesize(_ context.Context, req *interfaces.SynthesisRequest) (string, error) {
	if req.System == condenseSystem {
		s.condensed++
		return "Condensed earlier discussion.", nil
	}
	s.replyKeys = append(s.replyKeys, req.IdempotencyKey)
	if len(s.replies) == 0 {
		return "I can only speak to the analysis provided.", nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func (s *scriptedSynth) HealthCheck(context.Context) error { return nil }
func (s *scriptedSynth) Close() error                      { return nil }

func completedJob(id string) *models.Job {
	job := models.NewJob(id, "doc_x", models.FormatText)
	result, _ := json.Marshal(models.AnalysisResult{
		Tickers: map[string]models.TickerOutcome{
			"XOM": {Sector: "Energy", FinalScore: 0.57, Decision: models.ActionStrongBuy, Confidence: 0.8},
		},
		Summary: "Energy names benefit.",
	})
	job.StageResults[string(models.StageDeciding)] = result
	job.Stage = models.StageComplete
	return job
}

func newTestManager(t *testing.T, synth *scriptedSynth) (*SessionManager, *stubSessions) {
	t.Helper()
	cfg := common.NewDefaultConfig()
	jobs := &stubJobs{jobs: map[string]*models.Job{"job_done": completedJob("job_done")}}

	pending := models.NewJob("job_pending", "doc_y", models.FormatText)
	pending.Stage = models.StageEnriching
	jobs.jobs["job_pending"] = pending

	sessions := &stubSessions{sessions: make(map[string]*models.ChatSession)}
	return NewSessionManager(jobs, sessions, synth, cfg, common.GetLogger()), sessions
}

func TestChatCreatesSessionOnFirstRequest(t *testing.T) {
	m, store := newTestManager(t, &scriptedSynth{replies: []string{"XOM is a strong buy in this analysis."}})

	resp, err := m.Chat(context.Background(), &models.ChatRequest{
		JobID:   "job_done",
		Message: "What should I know about XOM?",
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatal("expected a session ID")
	}
	if !strings.Contains(resp.Reply, "strong buy") {
		t.Errorf("reply = %q", resp.Reply)
	}

	session := store.sessions[resp.SessionID]
	if session == nil {
		t.Fatal("session was not persisted")
	}
	if session.State != models.SessionActive {
		t.Errorf("state = %s, want active", session.State)
	}
	if len(session.Turns) != 2 {
		t.Errorf("turns = %d, want user+assistant", len(session.Turns))
	}
	if session.ExpiresAt.Before(time.Now()) {
		t.Error("session expiry should be in the future")
	}
}

func TestChatReusesSessionForSameJob(t *testing.T) {
	m, store := newTestManager(t, &scriptedSynth{})

	first, err := m.Chat(context.Background(), &models.ChatRequest{JobID: "job_done", Message: "first"})
	if err != nil {
		t.Fatalf("first chat failed: %v", err)
	}
	second, err := m.Chat(context.Background(), &models.ChatRequest{JobID: "job_done", Message: "second"})
	if err != nil {
		t.Fatalf("second chat failed: %v", err)
	}
	if first.SessionID != second.SessionID {
		t.Errorf("job chats split across sessions %s and %s", first.SessionID, second.SessionID)
	}
	if got := len(store.sessions[first.SessionID].Turns); got != 4 {
		t.Errorf("turns = %d, want 4", got)
	}
}

func TestChatRejectsIncompleteJob(t *testing.T) {
	m, _ := newTestManager(t, &scriptedSynth{})

	_, err := m.Chat(context.Background(), &models.ChatRequest{JobID: "job_pending", Message: "ready yet?"})
	if !errors.Is(err, models.ErrJobNotReady) {
		t.Fatalf("err = %v, want ErrJobNotReady", err)
	}
}

func TestChatRejectsUnknownJobAndEmptyMessage(t *testing.T) {
	m, _ := newTestManager(t, &scriptedSynth{})

	if _, err := m.Chat(context.Background(), &models.ChatRequest{JobID: "job_missing", Message: "hi"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown job err = %v, want ErrNotFound", err)
	}
	if _, err := m.Chat(context.Background(), &models.ChatRequest{JobID: "job_done", Message: "  "}); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("empty message err = %v, want ErrInvalidInput", err)
	}
	if _, err := m.Chat(context.Background(), &models.ChatRequest{Message: "hi"}); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("missing ids err = %v, want ErrInvalidInput", err)
	}
}

func TestBudgetOverflowSplicesOlderTurns(t *testing.T) {
	synth := &scriptedSynth{}
	m, store := newTestManager(t, synth)
	m.config.Chat.TokenBudget = 400
	m.config.Chat.RetainedTurns = 4

	long := strings.Repeat("position sizing and sector rotation details ", 10)
	ctx := context.Background()

	var sessionID string
	for i := 0; i < 6; i++ {
		resp, err := m.Chat(ctx, &models.ChatRequest{
			JobID:   "job_done",
			Message: fmt.Sprintf("question %d: %s", i, long),
		})
		if err != nil {
			t.Fatalf("chat %d failed: %v", i, err)
		}
		sessionID = resp.SessionID
	}

	session := store.sessions[sessionID]
	if synth.condensed == 0 {
		t.Fatal("expected at least one condensation")
	}

	summaries := 0
	for _, turn := range session.Turns {
		if turn.Role == models.RoleSummary {
			summaries++
		}
	}
	if summaries != 1 {
		t.Errorf("summary turns = %d, want exactly 1", summaries)
	}
	if len(session.Turns) >= 12 {
		t.Errorf("turns = %d, want fewer than the 12 raw turns", len(session.Turns))
	}
	if _, ok := session.SummaryTurn(); !ok {
		t.Error("SummaryTurn should find the spliced turn")
	}

	// The splice shrinks the turn list, but reply keys must never repeat:
	// a repeated key would let a memoizing synthesizer serve a stale reply.
	seen := make(map[string]bool)
	for _, key := range synth.replyKeys {
		if seen[key] {
			t.Errorf("idempotency key %q issued twice", key)
		}
		seen[key] = true
	}
	if session.Sequence != 6 {
		t.Errorf("sequence = %d, want 6", session.Sequence)
	}
}

func TestGetSession(t *testing.T) {
	m, _ := newTestManager(t, &scriptedSynth{})

	resp, err := m.Chat(context.Background(), &models.ChatRequest{JobID: "job_done", Message: "hello"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	session, err := m.GetSession(resp.SessionID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session.JobID != "job_done" {
		t.Errorf("job_id = %s", session.JobID)
	}

	if _, err := m.GetSession("chat_missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing session err = %v, want ErrNotFound", err)
	}
}
