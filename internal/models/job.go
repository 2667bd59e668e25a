// -----------------------------------------------------------------------
// Job - pipeline state machine record for one submitted document
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"time"
)

// Stage identifies the pipeline position of a job. Stages only ever advance
// forward through the sequence below, or terminate at failed/cancelled.
type Stage string

const (
	StageSubmitted  Stage = "submitted"
	StageExtracting Stage = "extracting"
	StageEnriching  Stage = "enriching"
	StageLookingUp  Stage = "looking_up"
	StageDeciding   Stage = "deciding"
	StageComplete   Stage = "complete"
	StageFailed     Stage = "failed"
	StageCancelled  Stage = "cancelled"
)

// stageOrder defines the forward walk. Terminal failure states are not part
// of the ordered walk; any non-terminal stage may transition to them.
var stageOrder = []Stage{
	StageSubmitted,
	StageExtracting,
	StageEnriching,
	StageLookingUp,
	StageDeciding,
	StageComplete,
}

// DocumentFormat identifies the declared or detected submission format.
type DocumentFormat string

const (
	FormatPDF  DocumentFormat = "pdf"
	FormatHTML DocumentFormat = "html"
	FormatXML  DocumentFormat = "xml"
	FormatText DocumentFormat = "txt"
)

// Job tracks one submitted document through all pipeline stages.
// Owned exclusively by the job store; mutated only by the stage handler
// currently responsible for it and by the router on creation/cancellation.
type Job struct {
	ID     string         `json:"id" badgerhold:"key"`
	Stage  Stage          `json:"stage"`
	Format DocumentFormat `json:"format"`

	// InputRef points at the raw document blob in document storage.
	InputRef string `json:"input_ref"`

	// StageResults holds each completed stage's output keyed by stage name.
	StageResults map[string]json.RawMessage `json:"stage_results"`

	// Attempts counts handler attempts per stage, for retry bookkeeping.
	Attempts map[string]int `json:"attempts"`

	// Error is present only when the job is failed.
	Error *JobError `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	StatusAt  time.Time `json:"status_at"`
}

// NewJob creates a job in the submitted stage.
func NewJob(id, inputRef string, format DocumentFormat) *Job {
	now := time.Now()
	return &Job{
		ID:           id,
		Stage:        StageSubmitted,
		Format:       format,
		InputRef:     inputRef,
		StageResults: make(map[string]json.RawMessage),
		Attempts:     make(map[string]int),
		CreatedAt:    now,
		StatusAt:     now,
	}
}

// IsTerminal reports whether the job can no longer advance.
func (j *Job) IsTerminal() bool {
	return j.Stage == StageComplete || j.Stage == StageFailed || j.Stage == StageCancelled
}

// StageIndex returns the position of s in the forward walk, or -1 for
// terminal failure states.
func StageIndex(s Stage) int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// NextStage returns the stage that follows s in the forward walk.
// The second return value is false when s has no successor.
func NextStage(s Stage) (Stage, bool) {
	idx := StageIndex(s)
	if idx < 0 || idx+1 >= len(stageOrder) {
		return "", false
	}
	return stageOrder[idx+1], true
}

// CanAdvance reports whether a transition from -> to is a legal single
// forward step. Stages never regress and never skip.
func CanAdvance(from, to Stage) bool {
	next, ok := NextStage(from)
	return ok && next == to
}

// HasResult reports whether the named stage has persisted its output.
func (j *Job) HasResult(stage Stage) bool {
	_, ok := j.StageResults[string(stage)]
	return ok
}

// Result returns the persisted output for the named stage.
func (j *Job) Result(stage Stage) (json.RawMessage, bool) {
	raw, ok := j.StageResults[string(stage)]
	return raw, ok
}
