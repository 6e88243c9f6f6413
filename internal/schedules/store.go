// package schedules implements the schedule configuration store: the CRUD
// service the interactive layer talks to.
//
// Every operation is ownership-scoped. A schedule belonging to another user
// is reported as not found, never as forbidden, so the existence of other
// users' records cannot be probed.
package schedules

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/chrisrogers37/shuffify-sub000/internal/algorithms"
	"github.com/chrisrogers37/shuffify-sub000/internal/models"
	"github.com/chrisrogers37/shuffify-sub000/internal/repositories"
	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
)

// DefaultMaxPerUser is the schedule quota applied when none is configured.
const DefaultMaxPerUser = 5

// TimerRegistrar is the callback surface the store uses to keep live timers
// in sync with configuration changes. The scheduler lifecycle manager
// implements it; tests and setup paths may leave it nil.
//
// The store never holds a reference to the scheduler itself, which keeps
// persistence and timer registration independently testable.
type TimerRegistrar interface {
	AddOrReplace(schedule *models.Schedule) error
	Remove(scheduleID string)
}

// Store provides CRUD operations over schedule configuration records,
// enforcing per-user quotas and trigger validation.
type Store struct {
	schedules  *repositories.ScheduleRepository
	executions *repositories.ExecutionRepository
	state      *repositories.StateRepository
	registrar  TimerRegistrar
	algorithms *algorithms.Registry
	maxPerUser int
	logger     *log.Logger
}

// StoreOpts contains dependencies for creating a Store.
type StoreOpts struct {
	Schedules  *repositories.ScheduleRepository
	Executions *repositories.ExecutionRepository
	State      *repositories.StateRepository
	Registrar  TimerRegistrar
	Algorithms *algorithms.Registry
	MaxPerUser int
	Logger     *log.Logger
}

// NewStore creates a Store with the provided dependencies.
func NewStore(opts StoreOpts) *Store {
	if opts.MaxPerUser <= 0 {
		opts.MaxPerUser = DefaultMaxPerUser
	}
	if opts.Algorithms == nil {
		opts.Algorithms = algorithms.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Store{
		schedules:  opts.Schedules,
		executions: opts.Executions,
		state:      opts.State,
		registrar:  opts.Registrar,
		algorithms: opts.Algorithms,
		maxPerUser: opts.MaxPerUser,
		logger:     opts.Logger,
	}
}

// Create validates a spec, enforces the per-user quota, persists the new
// schedule and registers its timer.
func (s *Store) Create(userID string, spec models.ScheduleSpec) (*models.Schedule, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", shared.ErrValidation)
	}

	schedule := models.NewSchedule(userID, spec)
	if err := schedule.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if err := ValidateTrigger(spec.TriggerType, spec.TriggerValue); err != nil {
		return nil, err
	}
	if err := s.validateAlgorithm(schedule); err != nil {
		return nil, err
	}

	count, err := s.schedules.CountByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	if count >= s.maxPerUser {
		return nil, fmt.Errorf("%w: at most %d schedules per user", shared.ErrLimitExceeded, s.maxPerUser)
	}

	if err := s.schedules.Create(schedule); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	s.register(schedule)
	return schedule, nil
}

// Get retrieves a schedule owned by userID.
func (s *Store) Get(id, userID string) (*models.Schedule, error) {
	return s.schedules.GetOwned(id, userID)
}

// List retrieves all of a user's schedules, most recently created first.
func (s *Store) List(userID string) ([]*models.Schedule, error) {
	return s.schedules.ListByUser(userID)
}

// Update applies whitelisted fields to an owned schedule. Unknown keys are
// ignored rather than rejected so callers can pass a superset safely.
func (s *Store) Update(id, userID string, fields map[string]any) (*models.Schedule, error) {
	schedule, err := s.schedules.GetOwned(id, userID)
	if err != nil {
		return nil, err
	}

	if err := applyFields(schedule, fields); err != nil {
		return nil, err
	}

	if err := schedule.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if err := ValidateTrigger(schedule.TriggerType(), schedule.TriggerValue()); err != nil {
		return nil, err
	}
	if err := s.validateAlgorithm(schedule); err != nil {
		return nil, err
	}

	if err := s.schedules.Update(schedule); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	if schedule.Enabled() {
		s.register(schedule)
	}
	return schedule, nil
}

// Delete removes an owned schedule, cascading its execution history and
// timer bookkeeping, and deregisters the live timer.
func (s *Store) Delete(id, userID string) error {
	schedule, err := s.schedules.GetOwned(id, userID)
	if err != nil {
		return err
	}

	if s.registrar != nil {
		s.registrar.Remove(schedule.ID())
	}

	if err := s.executions.DeleteBySchedule(schedule.ID()); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	if err := s.state.Delete(schedule.ID()); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	if err := s.schedules.Delete(schedule.ID()); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	return nil
}

// Toggle flips an owned schedule's enabled flag, registering or removing
// the live timer to keep the enabled-iff-registered invariant.
func (s *Store) Toggle(id, userID string) (*models.Schedule, error) {
	schedule, err := s.schedules.GetOwned(id, userID)
	if err != nil {
		return nil, err
	}

	schedule.SetEnabled(!schedule.Enabled())
	if err := s.schedules.Update(schedule); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	if schedule.Enabled() {
		s.register(schedule)
	} else if s.registrar != nil {
		s.registrar.Remove(schedule.ID())
	}

	return schedule, nil
}

// ExecutionHistory lists an owned schedule's executions, most recent first.
func (s *Store) ExecutionHistory(id, userID string, limit int) ([]*models.JobExecution, error) {
	schedule, err := s.schedules.GetOwned(id, userID)
	if err != nil {
		return nil, err
	}
	return s.executions.ListBySchedule(schedule.ID(), limit)
}

// register notifies the registrar, logging registration failures without
// failing the store operation that triggered them.
func (s *Store) register(schedule *models.Schedule) {
	if s.registrar == nil {
		return
	}
	if err := s.registrar.AddOrReplace(schedule); err != nil {
		s.logger.Warn("timer registration failed", "schedule", schedule.ID(), "err", err)
	}
}

// validateAlgorithm rejects reorder specs naming an algorithm the registry
// does not know. Raid-only schedules carry no algorithm and pass through.
func (s *Store) validateAlgorithm(schedule *models.Schedule) error {
	if !schedule.JobType().IncludesReorder() {
		return nil
	}
	if _, err := s.algorithms.Get(schedule.AlgorithmName()); err != nil {
		return err
	}
	return nil
}

// applyFields copies whitelisted update keys onto a schedule.
func applyFields(schedule *models.Schedule, fields map[string]any) error {
	for key, raw := range fields {
		switch key {
		case "job_type":
			v, err := stringField(key, raw)
			if err != nil {
				return err
			}
			schedule.SetJobType(models.JobType(v))
		case "target_playlist_id":
			v, err := stringField(key, raw)
			if err != nil {
				return err
			}
			schedule.SetTarget(v, schedule.TargetPlaylistName())
		case "target_playlist_name":
			v, err := stringField(key, raw)
			if err != nil {
				return err
			}
			schedule.SetTargetPlaylistName(v)
		case "source_playlist_ids":
			ids, err := stringsField(key, raw)
			if err != nil {
				return err
			}
			schedule.SetSourcePlaylistIDs(ids)
		case "algorithm_name":
			v, err := stringField(key, raw)
			if err != nil {
				return err
			}
			schedule.SetAlgorithm(v, schedule.AlgorithmParams())
		case "algorithm_params":
			params, ok := raw.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: %s must be an object", shared.ErrValidation, key)
			}
			schedule.SetAlgorithm(schedule.AlgorithmName(), params)
		case "trigger_type":
			v, err := stringField(key, raw)
			if err != nil {
				return err
			}
			schedule.SetTrigger(models.TriggerType(v), schedule.TriggerValue())
		case "trigger_value":
			v, err := stringField(key, raw)
			if err != nil {
				return err
			}
			schedule.SetTrigger(schedule.TriggerType(), v)
		default:
			// unknown keys are ignored, not errors
		}
	}
	return nil
}

func stringField(key string, raw any) (string, error) {
	v, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", shared.ErrValidation, key)
	}
	return v, nil
}

func stringsField(key string, raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a list of strings", shared.ErrValidation, key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list of strings", shared.ErrValidation, key)
	}
}
