package models

import (
	"fmt"
	"time"
)

// JobExecution is one append-only audit record of a single attempt to run a
// Schedule. It is created with status running before any remote call and
// finalized exactly once by the same execution.
type JobExecution struct {
	id           string
	scheduleID   string
	startedAt    time.Time
	completedAt  *time.Time
	status       RunStatus
	tracksAdded  int
	tracksTotal  int
	errorMessage string
}

// NewJobExecution creates a running execution record for the given schedule.
func NewJobExecution(scheduleID string) *JobExecution {
	return &JobExecution{
		scheduleID: scheduleID,
		startedAt:  time.Now(),
		status:     StatusRunning,
	}
}

func (e *JobExecution) ID() string              { return e.id }
func (e *JobExecution) ScheduleID() string      { return e.scheduleID }
func (e *JobExecution) StartedAt() time.Time    { return e.startedAt }
func (e *JobExecution) CompletedAt() *time.Time { return e.completedAt }
func (e *JobExecution) Status() RunStatus       { return e.status }
func (e *JobExecution) TracksAdded() int        { return e.tracksAdded }
func (e *JobExecution) TracksTotal() int        { return e.tracksTotal }
func (e *JobExecution) ErrorMessage() string    { return e.errorMessage }

// CreatedAt implements [Model]; an execution is created when it starts.
func (e *JobExecution) CreatedAt() time.Time { return e.startedAt }

// UpdatedAt implements [Model]; finalization is the only mutation.
func (e *JobExecution) UpdatedAt() time.Time {
	if e.completedAt != nil {
		return *e.completedAt
	}
	return e.startedAt
}

func (e *JobExecution) SetID(id string)           { e.id = id }
func (e *JobExecution) SetStartedAt(t time.Time)  { e.startedAt = t }

// Finalize transitions the execution out of the running state.
func (e *JobExecution) Finalize(at time.Time, status RunStatus, added, total int, errMsg string) {
	t := at
	e.completedAt = &t
	e.status = status
	e.tracksAdded = added
	e.tracksTotal = total
	e.errorMessage = errMsg
}

// Restore rehydrates completion fields when scanning a row.
func (e *JobExecution) Restore(completedAt *time.Time, status RunStatus, added, total int, errMsg string) {
	e.completedAt = completedAt
	e.status = status
	e.tracksAdded = added
	e.tracksTotal = total
	e.errorMessage = errMsg
}

// Validate enforces the completed-iff-not-running invariant.
func (e *JobExecution) Validate() error {
	if e.scheduleID == "" {
		return fmt.Errorf("execution requires a schedule id")
	}
	switch e.status {
	case StatusRunning:
		if e.completedAt != nil {
			return fmt.Errorf("running execution must not have completed_at")
		}
	case StatusSuccess, StatusFailed, StatusSkipped:
		if e.completedAt == nil {
			return fmt.Errorf("finished execution requires completed_at")
		}
	default:
		return fmt.Errorf("unknown execution status %q", e.status)
	}
	if e.tracksAdded < 0 || e.tracksTotal < 0 {
		return fmt.Errorf("track counts must be non-negative")
	}
	return nil
}
