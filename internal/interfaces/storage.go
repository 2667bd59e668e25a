package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ternarybob/censeo/internal/models"
)

// JobStorage is the durable record of job identity, stage, and results.
// A job's stage only ever advances forward or transitions to a terminal
// failure state; AdvanceStage enforces this with a compare-and-advance.
type JobStorage interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, limit int) ([]*models.Job, error)

	// AdvanceStage atomically verifies the job is still at expected, persists
	// output under the result key (when non-nil), and moves the stage to
	// next. Returns models.ErrStagePrecondition when the job has moved on.
	AdvanceStage(ctx context.Context, jobID string, expected, next models.Stage, resultKey string, output json.RawMessage) error

	// FailJob marks the job failed with a normalized error. No-op when the
	// job is already terminal.
	FailJob(ctx context.Context, jobID string, jobErr models.JobError) error

	// CancelJob marks the job cancelled unless it is already terminal.
	CancelJob(ctx context.Context, jobID string) error

	// IncrementAttempt bumps and returns the attempt counter for a stage.
	IncrementAttempt(ctx context.Context, jobID string, stage models.Stage) (int, error)
}

// DocumentStorage stores submitted raw document blobs keyed by reference.
type DocumentStorage interface {
	SaveDocument(ctx context.Context, ref string, blob []byte) error
	GetDocument(ctx context.Context, ref string) ([]byte, error)
	DeleteDocument(ctx context.Context, ref string) error
}

// SessionStorage persists chat sessions. Expiry is enforced by
// DeleteExpired, driven by the retention sweeper.
type SessionStorage interface {
	SaveSession(ctx context.Context, session *models.ChatSession) error
	GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error)
	GetSessionByJob(ctx context.Context, jobID string) (*models.ChatSession, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// StorageManager provides access to all storage interfaces.
type StorageManager interface {
	JobStorage() JobStorage
	DocumentStorage() DocumentStorage
	SessionStorage() SessionStorage
	Close() error
}
