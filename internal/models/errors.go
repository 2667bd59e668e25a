package models

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy surfaced by the public API. Capability failures are
// normalized into one of these kinds before they reach a caller.
var (
	// ErrInvalidInput indicates a malformed submission. The job is never created.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates an unknown job or session ID.
	ErrNotFound = errors.New("not found")

	// ErrJobNotReady indicates a chat request against a job that has not completed.
	ErrJobNotReady = errors.New("job not ready")

	// ErrInvalidWeights indicates a scoring misconfiguration. Fatal for the decide stage.
	ErrInvalidWeights = errors.New("invalid scoring weights")

	// ErrStagePrecondition indicates an out-of-order or duplicate stage message.
	// Logged and dropped, no state change.
	ErrStagePrecondition = errors.New("stage precondition violation")

	// ErrNoMessage is returned when the queue is empty.
	ErrNoMessage = errors.New("no messages in queue")
)

// CapabilityError wraps a failure from an external capability (text extraction,
// translation, entity extraction, company lookup, language synthesis).
// Transient failures are retried with backoff; permanent ones fail the job.
type CapabilityError struct {
	Capability string
	Retryable  bool
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s failed: %v", e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// NewCapabilityError creates a retryable capability error.
func NewCapabilityError(capability string, err error) *CapabilityError {
	return &CapabilityError{Capability: capability, Retryable: true, Err: err}
}

// NewPermanentCapabilityError creates a non-retryable capability error.
func NewPermanentCapabilityError(capability string, err error) *CapabilityError {
	return &CapabilityError{Capability: capability, Retryable: false, Err: err}
}

// IsRetryable reports whether err is a capability error worth retrying.
func IsRetryable(err error) bool {
	var capErr *CapabilityError
	if errors.As(err, &capErr) {
		return capErr.Retryable
	}
	return false
}

// JobError is the normalized error detail persisted on a failed job and
// surfaced through Poll. It never carries raw capability error text.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NormalizeError maps an internal error onto the public taxonomy.
func NormalizeError(err error) JobError {
	var capErr *CapabilityError
	switch {
	case errors.As(err, &capErr):
		return JobError{
			Kind:    "capability_error",
			Message: fmt.Sprintf("external capability %s failed after retries", capErr.Capability),
		}
	case errors.Is(err, ErrInvalidWeights):
		return JobError{Kind: "invalid_weights", Message: "scoring weights are misconfigured"}
	case errors.Is(err, ErrStagePrecondition):
		return JobError{Kind: "stage_precondition", Message: "stage message delivered out of order"}
	case errors.Is(err, ErrInvalidInput):
		return JobError{Kind: "invalid_input", Message: "submitted document is empty or unsupported"}
	case errors.Is(err, context.DeadlineExceeded):
		return JobError{Kind: "stage_timeout", Message: "pipeline stage exceeded its time budget after retries"}
	default:
		return JobError{Kind: "internal_error", Message: "pipeline stage failed"}
	}
}
