package models

import (
	"fmt"
	"time"
)

// ScheduleSpec is the plain data used to create or update a Schedule.
// The CLI layer fills one of these from flags; the schedule store validates it.
type ScheduleSpec struct {
	JobType            JobType
	TargetPlaylistID   string
	TargetPlaylistName string
	SourcePlaylistIDs  []string
	AlgorithmName      string
	AlgorithmParams    map[string]any
	TriggerType        TriggerType
	TriggerValue       string
}

// Schedule is the persisted configuration of one recurring automated operation.
//
// Last-run fields are written only by the job executor; configuration fields
// only by the schedule store.
type Schedule struct {
	id              string
	userID          string
	jobType         JobType
	targetID        string
	targetName      string
	sourceIDs       []string
	algorithmName   string
	algorithmParams map[string]any
	triggerType     TriggerType
	triggerValue    string
	enabled         bool
	lastRunAt       *time.Time
	lastStatus      RunStatus
	lastError       string
	createdAt       time.Time
	updatedAt       time.Time
}

// NewSchedule creates a Schedule owned by userID from a spec. The schedule
// starts enabled; validation is the caller's responsibility.
func NewSchedule(userID string, spec ScheduleSpec) *Schedule {
	now := time.Now()
	params := spec.AlgorithmParams
	if params == nil {
		params = map[string]any{}
	}
	return &Schedule{
		userID:          userID,
		jobType:         spec.JobType,
		targetID:        spec.TargetPlaylistID,
		targetName:      spec.TargetPlaylistName,
		sourceIDs:       spec.SourcePlaylistIDs,
		algorithmName:   spec.AlgorithmName,
		algorithmParams: params,
		triggerType:     spec.TriggerType,
		triggerValue:    spec.TriggerValue,
		enabled:         true,
		createdAt:       now,
		updatedAt:       now,
	}
}

func (s *Schedule) ID() string                  { return s.id }
func (s *Schedule) UserID() string              { return s.userID }
func (s *Schedule) JobType() JobType            { return s.jobType }
func (s *Schedule) TargetPlaylistID() string    { return s.targetID }
func (s *Schedule) TargetPlaylistName() string  { return s.targetName }
func (s *Schedule) SourcePlaylistIDs() []string { return s.sourceIDs }
func (s *Schedule) AlgorithmName() string       { return s.algorithmName }
func (s *Schedule) AlgorithmParams() map[string]any { return s.algorithmParams }
func (s *Schedule) TriggerType() TriggerType    { return s.triggerType }
func (s *Schedule) TriggerValue() string        { return s.triggerValue }
func (s *Schedule) Enabled() bool               { return s.enabled }
func (s *Schedule) LastRunAt() *time.Time       { return s.lastRunAt }
func (s *Schedule) LastStatus() RunStatus       { return s.lastStatus }
func (s *Schedule) LastError() string           { return s.lastError }
func (s *Schedule) CreatedAt() time.Time        { return s.createdAt }
func (s *Schedule) UpdatedAt() time.Time        { return s.updatedAt }

func (s *Schedule) SetID(id string)          { s.id = id }
func (s *Schedule) SetUserID(id string)      { s.userID = id }
func (s *Schedule) SetUpdatedAt(t time.Time) { s.updatedAt = t }
func (s *Schedule) SetEnabled(v bool)        { s.enabled = v }
func (s *Schedule) SetCreatedAt(t time.Time) { s.createdAt = t }

// SetTarget changes the target playlist and its cached display name.
func (s *Schedule) SetTarget(id, name string) {
	s.targetID = id
	s.targetName = name
}

func (s *Schedule) SetTargetPlaylistName(name string) { s.targetName = name }

func (s *Schedule) SetJobType(j JobType) { s.jobType = j }

func (s *Schedule) SetSourcePlaylistIDs(ids []string) { s.sourceIDs = ids }

// SetAlgorithm changes the reorder algorithm and its parameters.
func (s *Schedule) SetAlgorithm(name string, params map[string]any) {
	s.algorithmName = name
	if params == nil {
		params = map[string]any{}
	}
	s.algorithmParams = params
}

// SetTrigger changes the firing rule.
func (s *Schedule) SetTrigger(t TriggerType, value string) {
	s.triggerType = t
	s.triggerValue = value
}

// SetLastRun records the outcome of the most recent execution.
// Status and error are the only schedule fields the executor may write.
func (s *Schedule) SetLastRun(at time.Time, status RunStatus, lastError string) {
	t := at
	s.lastRunAt = &t
	s.lastStatus = status
	s.lastError = lastError
}

// RestoreLastRun rehydrates last-run fields when scanning a row.
func (s *Schedule) RestoreLastRun(at *time.Time, status RunStatus, lastError string) {
	s.lastRunAt = at
	s.lastStatus = status
	s.lastError = lastError
}

// Validate checks structural and job-type-specific requirements.
func (s *Schedule) Validate() error {
	if s.userID == "" {
		return fmt.Errorf("schedule requires an owning user")
	}
	if s.targetID == "" {
		return fmt.Errorf("schedule requires a target playlist")
	}
	if !s.jobType.Valid() {
		return fmt.Errorf("unknown job type %q", s.jobType)
	}
	if s.jobType.IncludesRaid() && len(s.sourceIDs) == 0 {
		return fmt.Errorf("job type %q requires at least one source playlist", s.jobType)
	}
	if s.jobType.IncludesReorder() && s.algorithmName == "" {
		return fmt.Errorf("job type %q requires an algorithm", s.jobType)
	}
	if s.triggerType != TriggerInterval && s.triggerType != TriggerCron {
		return fmt.Errorf("unknown trigger type %q", s.triggerType)
	}
	if s.triggerValue == "" {
		return fmt.Errorf("schedule requires a trigger value")
	}
	return nil
}
