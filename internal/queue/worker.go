package queue

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/models"
)

// WorkerPool manages a pool of workers polling the stage queue
type WorkerPool struct {
	queueMgr     interfaces.QueueManager
	handlers     map[models.Stage]interfaces.StageHandler
	concurrency  int
	pollInterval time.Duration
	logger       arbor.ILogger
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(queueMgr interfaces.QueueManager, concurrency int, pollInterval time.Duration, logger arbor.ILogger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if concurrency <= 0 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &WorkerPool{
		queueMgr:     queueMgr,
		handlers:     make(map[models.Stage]interfaces.StageHandler),
		concurrency:  concurrency,
		pollInterval: pollInterval,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// RegisterHandler registers a stage handler
func (wp *WorkerPool) RegisterHandler(handler interfaces.StageHandler) {
	wp.handlers[handler.Stage()] = handler
	wp.logger.Debug().
		Str("stage", string(handler.Stage())).
		Msg("Stage handler registered")
}

// Start starts the worker pool
func (wp *WorkerPool) Start() error {
	wp.logger.Info().
		Int("concurrency", wp.concurrency).
		Msg("Starting worker pool")

	for i := 0; i < wp.concurrency; i++ {
		go wp.worker(i)
	}

	return nil
}

// Stop gracefully stops the worker pool
func (wp *WorkerPool) Stop() error {
	wp.logger.Info().Msg("Stopping worker pool")
	wp.cancel()
	return nil
}

// worker is the main worker loop that processes messages
func (wp *WorkerPool) worker(workerID int) {
	// Stagger worker starts to reduce database lock contention
	staggerDelay := (wp.pollInterval / time.Duration(wp.concurrency)) * time.Duration(workerID)
	if staggerDelay > 0 {
		time.Sleep(staggerDelay)
	}

	wp.logger.Debug().
		Int("worker_id", workerID).
		Dur("stagger_delay", staggerDelay).
		Msg("Worker started")

	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopped")
			return

		case <-ticker.C:
			if err := wp.processMessage(workerID); err != nil {
				if !errors.Is(err, models.ErrNoMessage) {
					wp.logger.Warn().
						Err(err).
						Int("worker_id", workerID).
						Msg("Error processing message")
				}
			}
		}
	}
}

// processMessage receives and processes a single message
func (wp *WorkerPool) processMessage(workerID int) error {
	msg, deleteFn, err := wp.queueMgr.Receive(wp.ctx)
	if err != nil {
		return err
	}

	wp.logger.Debug().
		Str("job_id", msg.JobID).
		Str("stage", string(msg.Stage)).
		Int("attempt", msg.Attempt).
		Int("worker_id", workerID).
		Msg("Processing stage message")

	handler, exists := wp.handlers[msg.Stage]
	if !exists {
		wp.logger.Error().
			Str("stage", string(msg.Stage)).
			Str("job_id", msg.JobID).
			Msg("No handler registered for stage")
		// Undeliverable message, drop it
		if delErr := deleteFn(); delErr != nil {
			wp.logger.Warn().Err(delErr).Msg("Failed to delete unroutable message")
		}
		return nil
	}

	startTime := time.Now()
	handlerErr := handler.Handle(wp.ctx, msg)
	duration := time.Since(startTime)

	if handlerErr != nil {
		// The message stays on the queue and comes back after the
		// visibility timeout. Retries of capability failures happen
		// inside the handler; an error here means the handler could
		// not reach a decision about the job at all.
		wp.logger.Error().
			Err(handlerErr).
			Str("job_id", msg.JobID).
			Str("stage", string(msg.Stage)).
			Dur("duration", duration).
			Int("worker_id", workerID).
			Msg("Stage handler failed, leaving message for redelivery")
		return handlerErr
	}

	wp.logger.Info().
		Str("job_id", msg.JobID).
		Str("stage", string(msg.Stage)).
		Dur("duration", duration).
		Int("worker_id", workerID).
		Msg("Stage message processed")

	if err := deleteFn(); err != nil {
		wp.logger.Warn().
			Err(err).
			Str("job_id", msg.JobID).
			Msg("Failed to delete message after processing")
		return err
	}

	return nil
}
