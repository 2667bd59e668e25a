package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/common"
	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/models"
)

// stageWork executes one stage's logic for a job and returns the output to
// persist. It must be idempotent: a redelivered message may run it again.
type stageWork func(ctx context.Context, job *models.Job) (json.RawMessage, error)

// Runner is the shared stage execution harness. Each stage handler wraps
// its work function with Run, which owns the claim/execute/persist walk:
//
//  1. claim the stage with a compare-and-advance from the prior stage
//  2. execute the work with bounded retries for transient capability faults
//  3. re-check the job was not cancelled mid-flight
//  4. persist the output and advance in one atomic write
//  5. enqueue the next stage
//
// A nil return tells the worker to delete the message; an error leaves it
// for queue redelivery.
type Runner struct {
	jobs   interfaces.JobStorage
	queue  interfaces.QueueManager
	config *common.Config
	logger arbor.ILogger
}

// NewRunner creates the stage harness.
func NewRunner(jobs interfaces.JobStorage, queue interfaces.QueueManager, cfg *common.Config, logger arbor.ILogger) *Runner {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Runner{
		jobs:   jobs,
		queue:  queue,
		config: cfg,
		logger: logger,
	}
}

// Run drives one stage of one job. workStage is the stage this handler
// executes; the job must currently sit at the stage preceding it, or at
// workStage itself when resuming a crashed delivery.
func (r *Runner) Run(ctx context.Context, msg *models.StageMessage, workStage models.Stage, work stageWork) error {
	log := r.logger.WithCorrelationId(msg.JobID)

	job, err := r.jobs.GetJob(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Warn().Msg("Stage message for unknown job, dropping")
			return nil
		}
		return err
	}

	if job.IsTerminal() {
		log.Debug().Str("job_stage", string(job.Stage)).Msg("Job already terminal, dropping stage message")
		return nil
	}

	prior, next, ok := neighbors(workStage)
	if !ok {
		log.Error().Msg("Message names a stage outside the pipeline walk, dropping")
		return nil
	}

	switch job.Stage {
	case prior:
		if err := r.jobs.AdvanceStage(ctx, msg.JobID, prior, workStage, "", nil); err != nil {
			if errors.Is(err, models.ErrStagePrecondition) {
				log.Warn().Str("stage", string(workStage)).Msg("Lost the claim race, dropping duplicate delivery")
				return nil
			}
			return err
		}
	case workStage:
		// A previous delivery claimed the stage but died before completing.
		log.Info().Str("stage", string(workStage)).Msg("Resuming stage claimed by an earlier delivery")
	default:
		log.Warn().Str("job_stage", string(job.Stage)).Msg("Out-of-order stage message, dropping")
		return nil
	}

	output, err := r.executeWithRetry(ctx, msg, job, workStage, work, log)
	if err != nil {
		jobErr := models.NormalizeError(err)
		log.Error().Err(err).Str("stage", string(workStage)).Str("kind", jobErr.Kind).Msg("Stage failed, marking job failed")
		if failErr := r.jobs.FailJob(ctx, msg.JobID, jobErr); failErr != nil {
			return failErr
		}
		return nil
	}

	// Cancellation may have landed while the work ran. The terminal state
	// wins; discard the output.
	current, err := r.jobs.GetJob(ctx, msg.JobID)
	if err == nil && current.IsTerminal() {
		log.Info().Str("job_stage", string(current.Stage)).Msg("Job terminated mid-stage, discarding output")
		return nil
	}

	if err := r.jobs.AdvanceStage(ctx, msg.JobID, workStage, next, string(workStage), output); err != nil {
		if errors.Is(err, models.ErrStagePrecondition) {
			log.Warn().Msg("Job moved during stage execution, discarding output")
			return nil
		}
		return err
	}

	if next != models.StageComplete {
		if err := r.queue.Enqueue(ctx, models.StageMessage{
			JobID:      msg.JobID,
			Stage:      next,
			EnqueuedAt: time.Now(),
		}); err != nil {
			// The stage advanced but the successor message is lost; leave
			// this delivery in the queue so a redelivery re-enqueues it.
			return err
		}
	}

	log.Info().Str("stage", string(workStage)).Str("next", string(next)).Msg("Stage complete")
	return nil
}

// executeWithRetry runs the work function with bounded retries for
// transient capability errors. Permanent failures and exhausted budgets
// surface to the caller, which fails the job.
func (r *Runner) executeWithRetry(ctx context.Context, msg *models.StageMessage, job *models.Job, workStage models.Stage, work stageWork, log arbor.ILogger) (json.RawMessage, error) {
	maxAttempts := r.config.Pipeline.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoffBase := r.config.RetryBackoffBaseDuration()
	stageTimeout := r.config.StageTimeoutDuration()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if _, err := r.jobs.IncrementAttempt(ctx, msg.JobID, workStage); err != nil {
			return nil, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, stageTimeout)
		output, err := work(attemptCtx, job)
		cancel()
		if err == nil {
			return output, nil
		}
		lastErr = err

		// An expired attempt deadline is a recoverable wall-clock overrun,
		// not a verdict on the work. Only the parent context going away
		// makes it final.
		timedOut := errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
		if !timedOut && !models.IsRetryable(err) {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}

		backoff := backoffBase << (attempt - 1)
		log.Warn().Err(err).Int("attempt", attempt).Str("backoff", backoff.String()).Msg("Transient stage failure, retrying")

		// Long stages plus backoff can outlive the queue visibility
		// timeout; extend so a second worker does not pick this up.
		if msg.ReceiptID != "" {
			if extErr := r.queue.Extend(ctx, msg.ReceiptID, backoff+stageTimeout); extErr != nil {
				log.Warn().Err(extErr).Msg("Failed to extend message visibility")
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

// neighbors returns the stages immediately before and after workStage in
// the forward walk.
func neighbors(workStage models.Stage) (prior, next models.Stage, ok bool) {
	switch workStage {
	case models.StageExtracting:
		prior = models.StageSubmitted
	case models.StageEnriching:
		prior = models.StageExtracting
	case models.StageLookingUp:
		prior = models.StageEnriching
	case models.StageDeciding:
		prior = models.StageLookingUp
	default:
		return "", "", false
	}
	next, ok = models.NextStage(workStage)
	return prior, next, ok
}
