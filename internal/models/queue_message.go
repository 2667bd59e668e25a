package models

import "time"

// StageMessage is the structure carried by the work queue.
// Keep it simple - just enough to route the stage execution.
type StageMessage struct {
	JobID string `json:"job_id"`
	Stage Stage  `json:"stage"`
	// Attempt counts deliveries for this stage, for idempotency keys.
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`

	// ReceiptID identifies the delivery, set by the queue on receive.
	// Used to extend visibility while a long stage runs.
	ReceiptID string `json:"-"`
}

// IdempotencyKey derives the dedup key handlers pass to capability calls.
func (m *StageMessage) IdempotencyKey() string {
	return m.JobID + ":" + string(m.Stage)
}
