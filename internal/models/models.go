// package models defines the data model for the playlist automation service
package models

import (
	"time"
)

// Model defines the base interface for all persistent models.
// Implementations include User, Schedule and JobExecution.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// JobType identifies which operation a schedule performs against its target playlist.
type JobType string

const (
	JobTypeRaid           JobType = "raid"             // pull new tracks from sources into the target
	JobTypeReorder        JobType = "reorder"          // reorder the target with an algorithm
	JobTypeRaidAndReorder JobType = "raid_and_reorder" // raid, then reorder the grown target
)

// Valid reports whether the job type is a member of the closed set.
func (j JobType) Valid() bool {
	switch j {
	case JobTypeRaid, JobTypeReorder, JobTypeRaidAndReorder:
		return true
	}
	return false
}

// IncludesRaid reports whether the job type performs the raid step.
func (j JobType) IncludesRaid() bool {
	return j == JobTypeRaid || j == JobTypeRaidAndReorder
}

// IncludesReorder reports whether the job type performs the reorder step.
func (j JobType) IncludesReorder() bool {
	return j == JobTypeReorder || j == JobTypeRaidAndReorder
}

// TriggerType identifies how a schedule's firing rule is expressed.
type TriggerType string

const (
	TriggerInterval TriggerType = "interval" // token from the fixed interval vocabulary
	TriggerCron     TriggerType = "cron"     // five-field cron expression
)

// RunStatus is the lifecycle status of a job execution.
type RunStatus string

const (
	StatusRunning RunStatus = "running"
	StatusSuccess RunStatus = "success"
	StatusFailed  RunStatus = "failed"
	StatusSkipped RunStatus = "skipped"
)
