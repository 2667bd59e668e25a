package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobStorage implements the JobStorage interface for Badger.
//
// Badgerhold offers no cross-read transactions, so compare-and-advance is
// implemented as a mutex-guarded read-modify-write. The store is embedded
// and single-process, so process-local exclusion is sufficient.
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) CreateJob(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required: %w", models.ErrInvalidInput)
	}
	if err := s.db.Store().Insert(job.ID, job); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("job already exists: %s: %w", job.ID, models.ErrInvalidInput)
		}
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job %s: %w", jobID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) ListJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// AdvanceStage performs a compare-and-advance: the job must still be at
// expected, the transition expected -> next must be a legal forward step,
// and both the stage result and new stage value land in one upsert so a
// concurrent status poll never observes a half-written transition.
func (s *JobStorage) AdvanceStage(ctx context.Context, jobID string, expected, next models.Stage, resultKey string, output json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("job %s: %w", jobID, models.ErrNotFound)
		}
		return fmt.Errorf("failed to get job: %w", err)
	}

	if job.Stage != expected {
		return fmt.Errorf("job %s is at %s, expected %s: %w", jobID, job.Stage, expected, models.ErrStagePrecondition)
	}
	if !models.CanAdvance(expected, next) {
		return fmt.Errorf("illegal transition %s -> %s for job %s: %w", expected, next, jobID, models.ErrStagePrecondition)
	}

	if output != nil && resultKey != "" {
		if job.StageResults == nil {
			job.StageResults = make(map[string]json.RawMessage)
		}
		job.StageResults[resultKey] = output
	}
	job.Stage = next
	job.StatusAt = time.Now()

	if err := s.db.Store().Upsert(job.ID, &job); err != nil {
		return fmt.Errorf("failed to advance job: %w", err)
	}
	return nil
}

func (s *JobStorage) FailJob(ctx context.Context, jobID string, jobErr models.JobError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("job %s: %w", jobID, models.ErrNotFound)
		}
		return fmt.Errorf("failed to get job: %w", err)
	}

	// A terminal job keeps its original outcome.
	if job.IsTerminal() {
		return nil
	}

	job.Stage = models.StageFailed
	job.Error = &jobErr
	job.StatusAt = time.Now()

	if err := s.db.Store().Upsert(job.ID, &job); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	s.logger.Warn().Str("job_id", jobID).Str("kind", jobErr.Kind).Msg("Job failed")
	return nil
}

func (s *JobStorage) CancelJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("job %s: %w", jobID, models.ErrNotFound)
		}
		return fmt.Errorf("failed to get job: %w", err)
	}

	if job.IsTerminal() {
		return fmt.Errorf("job %s is already %s: %w", jobID, job.Stage, models.ErrStagePrecondition)
	}

	job.Stage = models.StageCancelled
	job.StatusAt = time.Now()

	if err := s.db.Store().Upsert(job.ID, &job); err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	return nil
}

func (s *JobStorage) IncrementAttempt(ctx context.Context, jobID string, stage models.Stage) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return 0, fmt.Errorf("job %s: %w", jobID, models.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to get job: %w", err)
	}

	if job.Attempts == nil {
		job.Attempts = make(map[string]int)
	}
	job.Attempts[string(stage)]++
	attempt := job.Attempts[string(stage)]

	if err := s.db.Store().Upsert(job.ID, &job); err != nil {
		return 0, fmt.Errorf("failed to record attempt: %w", err)
	}
	return attempt, nil
}
