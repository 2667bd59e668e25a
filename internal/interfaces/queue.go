package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/censeo/internal/models"
)

// QueueManager is the at-least-once delivery channel carrying stage
// transition messages. It provides no ordering guarantee across jobs;
// ordering across stages of the same job is enforced by the stage
// precondition check, not by the queue.
type QueueManager interface {
	// Enqueue adds a stage message to the queue.
	Enqueue(ctx context.Context, msg models.StageMessage) error

	// Receive pulls the next visible message. Returns the message and a
	// delete function to call after processing, or models.ErrNoMessage.
	// An undeleted message becomes visible again after the visibility
	// timeout - that redelivery is the retry trigger for stalled handlers.
	Receive(ctx context.Context) (*models.StageMessage, func() error, error)

	// Extend pushes out the visibility timeout for a long-running handler.
	Extend(ctx context.Context, messageID string, d time.Duration) error

	Close() error
}

// StageHandler executes one pipeline stage for a delivered message.
type StageHandler interface {
	// Stage names the stage this handler executes.
	Stage() models.Stage

	// Handle runs the stage. A nil return means the message can be deleted;
	// an error leaves the message for redelivery.
	Handle(ctx context.Context, msg *models.StageMessage) error
}
