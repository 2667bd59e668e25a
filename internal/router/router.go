package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/common"
	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/models"
)

// Router is the public operation surface: submit a document, poll a job,
// cancel a job, chat over a finished analysis. Everything downstream of
// Submit runs asynchronously on the stage queue.
type Router struct {
	jobs      interfaces.JobStorage
	documents interfaces.DocumentStorage
	queue     interfaces.QueueManager
	extractor interfaces.TextExtractor
	chat      interfaces.ChatService
	validate  *validator.Validate
	logger    arbor.ILogger
}

// New wires the router.
func New(jobs interfaces.JobStorage, documents interfaces.DocumentStorage, queue interfaces.QueueManager, extractor interfaces.TextExtractor, chat interfaces.ChatService, logger arbor.ILogger) *Router {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Router{
		jobs:      jobs,
		documents: documents,
		queue:     queue,
		extractor: extractor,
		chat:      chat,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Submit validates and stores a document, creates its job, and enqueues the
// first pipeline stage. Returns the new job ID.
func (r *Router) Submit(ctx context.Context, blob []byte, declaredFormat string) (string, error) {
	if len(blob) == 0 {
		return "", fmt.Errorf("%w: document is empty", models.ErrInvalidInput)
	}

	format, err := r.resolveFormat(blob, declaredFormat)
	if err != nil {
		return "", err
	}

	docRef := common.NewDocumentRef()
	if err := r.documents.SaveDocument(ctx, docRef, blob); err != nil {
		return "", err
	}

	job := models.NewJob(common.NewJobID(), docRef, format)
	if err := r.jobs.CreateJob(ctx, job); err != nil {
		return "", err
	}

	if err := r.queue.Enqueue(ctx, models.StageMessage{
		JobID:      job.ID,
		Stage:      models.StageExtracting,
		EnqueuedAt: time.Now(),
	}); err != nil {
		// The job exists but will never run; fail it so polls see a
		// terminal state instead of a stuck submission.
		_ = r.jobs.FailJob(ctx, job.ID, models.JobError{Kind: "internal_error", Message: "failed to schedule pipeline"})
		return "", err
	}

	r.logger.Info().Str("job_id", job.ID).Str("format", string(format)).Int("bytes", len(blob)).Msg("Document submitted")
	return job.ID, nil
}

// Poll returns the status snapshot for a job, including the analysis result
// once complete and the normalized error when failed.
func (r *Router) Poll(ctx context.Context, jobID string) (*models.JobStatusView, error) {
	job, err := r.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	view := &models.JobStatusView{
		JobID:  job.ID,
		Stage:  job.Stage,
		Status: statusFor(job.Stage),
		Error:  job.Error,
	}

	if job.Stage == models.StageComplete {
		raw, ok := job.Result(models.StageDeciding)
		if ok {
			var result models.AnalysisResult
			if err := json.Unmarshal(raw, &result); err != nil {
				return nil, fmt.Errorf("corrupt analysis result for job %s: %w", job.ID, err)
			}
			view.Result = &result
		}
	}

	return view, nil
}

// Cancel terminates a job that has not finished. Stage handlers observe the
// cancelled state and discard any in-flight output.
func (r *Router) Cancel(ctx context.Context, jobID string) error {
	if err := r.jobs.CancelJob(ctx, jobID); err != nil {
		return err
	}
	r.logger.Info().Str("job_id", jobID).Msg("Job cancelled")
	return nil
}

// Chat validates and delegates a chat request to the session manager.
func (r *Router) Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request body is required", models.ErrInvalidInput)
	}
	if err := r.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	return r.chat.Chat(ctx, req)
}

// resolveFormat honors a declared format when given, otherwise sniffs it.
func (r *Router) resolveFormat(blob []byte, declared string) (models.DocumentFormat, error) {
	switch declared {
	case "":
		format, err := r.extractor.DetectFormat(blob)
		if err != nil {
			return "", fmt.Errorf("%w: unsupported document format", models.ErrInvalidInput)
		}
		return format, nil
	case string(models.FormatPDF):
		return models.FormatPDF, nil
	case string(models.FormatHTML):
		return models.FormatHTML, nil
	case string(models.FormatXML):
		return models.FormatXML, nil
	case string(models.FormatText):
		return models.FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", models.ErrInvalidInput, declared)
	}
}

func statusFor(stage models.Stage) string {
	switch stage {
	case models.StageComplete:
		return "complete"
	case models.StageFailed:
		return "failed"
	case models.StageCancelled:
		return "cancelled"
	default:
		return "processing"
	}
}
