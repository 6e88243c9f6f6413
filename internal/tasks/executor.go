// package tasks implements the job executor that runs scheduled playlist
// operations.
//
// The automatic path (Execute) records every outcome and never propagates
// errors outward: one schedule's failure must not disturb the scheduler or
// any other schedule. The manual path (ExecuteNow) re-raises the recorded
// failure as a typed error for the interactive layer.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/chrisrogers37/shuffify-sub000/internal/algorithms"
	"github.com/chrisrogers37/shuffify-sub000/internal/models"
	"github.com/chrisrogers37/shuffify-sub000/internal/repositories"
	"github.com/chrisrogers37/shuffify-sub000/internal/services"
	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
	"github.com/chrisrogers37/shuffify-sub000/internal/vault"
)

// maxErrorLen bounds the error message persisted on executions and schedules.
const maxErrorLen = 500

// Result summarizes one finished execution for the interactive layer.
type Result struct {
	ExecutionID string
	ScheduleID  string
	Status      models.RunStatus
	TracksAdded int
	TracksTotal int
	Error       string
}

// Executor runs schedules against the remote service.
type Executor struct {
	schedules  *repositories.ScheduleRepository
	executions *repositories.ExecutionRepository
	users      *repositories.UserRepository
	cipher     *vault.Cipher
	refresher  services.TokenRefresher
	registry   *algorithms.Registry
	logger     *log.Logger
}

// ExecutorOpts contains dependencies for creating an Executor.
type ExecutorOpts struct {
	Schedules  *repositories.ScheduleRepository
	Executions *repositories.ExecutionRepository
	Users      *repositories.UserRepository
	Cipher     *vault.Cipher
	Refresher  services.TokenRefresher
	Registry   *algorithms.Registry
	Logger     *log.Logger
}

// NewExecutor creates an Executor with the provided dependencies.
func NewExecutor(opts ExecutorOpts) *Executor {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Registry == nil {
		opts.Registry = algorithms.NewRegistry()
	}
	return &Executor{
		schedules:  opts.Schedules,
		executions: opts.Executions,
		users:      opts.Users,
		cipher:     opts.Cipher,
		refresher:  opts.Refresher,
		registry:   opts.Registry,
		logger:     opts.Logger,
	}
}

// Execute runs a schedule by id. It returns nil when the schedule is missing
// or disabled (no execution record is created for those cases) and a Result
// otherwise; it never returns an error.
func (e *Executor) Execute(ctx context.Context, scheduleID string) *Result {
	logger := e.logger.With("schedule", scheduleID)

	schedule, err := e.schedules.Get(scheduleID)
	if err != nil {
		logger.Debug("schedule not found, skipping fire", "err", err)
		return nil
	}
	if !schedule.Enabled() {
		logger.Debug("schedule disabled, skipping fire")
		return nil
	}

	// The running row goes in before any remote call so a crash leaves a
	// visible record for diagnosis.
	execution := models.NewJobExecution(schedule.ID())
	if err := e.executions.Create(execution); err != nil {
		logger.Error("failed to record execution start", "err", err)
		return nil
	}

	added, total, runErr := e.run(ctx, schedule, logger)

	result := &Result{
		ExecutionID: execution.ID(),
		ScheduleID:  schedule.ID(),
		TracksAdded: added,
		TracksTotal: total,
	}

	now := time.Now()
	if runErr != nil {
		result.Status = models.StatusFailed
		result.Error = shared.Truncate(runErr.Error(), maxErrorLen)
		execution.Finalize(now, models.StatusFailed, added, total, result.Error)
		logger.Warn("execution failed", "err", runErr)
	} else {
		result.Status = models.StatusSuccess
		execution.Finalize(now, models.StatusSuccess, added, total, "")
		logger.Info("execution succeeded", "added", added, "total", total)
	}

	// recording failures are logged, never raised: the scheduler must not
	// crash because bookkeeping did
	if err := e.executions.Finalize(execution); err != nil {
		logger.Error("failed to finalize execution", "err", err)
	}
	if err := e.schedules.UpdateLastRun(schedule.ID(), now, result.Status, result.Error); err != nil {
		logger.Error("failed to update schedule last run", "err", err)
	}

	return result
}

// ExecuteNow is the manual path: it verifies ownership, delegates to
// Execute, and re-raises a typed error when the run failed.
func (e *Executor) ExecuteNow(ctx context.Context, scheduleID, userID string) (*Result, error) {
	schedule, err := e.schedules.GetOwned(scheduleID, userID)
	if err != nil {
		return nil, err
	}
	if !schedule.Enabled() {
		return nil, fmt.Errorf("%w: schedule is disabled", shared.ErrValidation)
	}

	result := e.Execute(ctx, scheduleID)
	if result == nil {
		return nil, fmt.Errorf("schedule %s: %w", scheduleID, shared.ErrNotFound)
	}
	if result.Status == models.StatusFailed {
		return result, fmt.Errorf("%w: %s", shared.ErrJobFailed, result.Error)
	}
	return result, nil
}

// run resolves credentials, obtains an API session and dispatches on the
// job type. Returned metrics are (tracks added, post-operation total).
func (e *Executor) run(ctx context.Context, schedule *models.Schedule, logger *log.Logger) (int, int, error) {
	client, err := e.session(ctx, schedule.UserID(), logger)
	if err != nil {
		return 0, 0, err
	}

	switch schedule.JobType() {
	case models.JobTypeRaid:
		return e.raid(ctx, client, schedule, logger)
	case models.JobTypeReorder:
		total, err := e.reorder(ctx, client, schedule)
		return 0, total, err
	case models.JobTypeRaidAndReorder:
		added, _, err := e.raid(ctx, client, schedule, logger)
		if err != nil {
			return added, 0, err
		}
		total, err := e.reorder(ctx, client, schedule)
		return added, total, err
	default:
		return 0, 0, fmt.Errorf("%w: job type %q", shared.ErrInvalidInput, schedule.JobType())
	}
}

// session decrypts the owner's refresh token, exchanges it for an access
// session and persists a rotated refresh token when the remote service
// issues one. The rotation write happens at most once per execution and
// only when the value actually changed.
func (e *Executor) session(ctx context.Context, userID string, logger *log.Logger) (services.Client, error) {
	user, err := e.users.Get(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	encrypted := user.EncryptedRefreshToken()
	if encrypted == "" {
		return nil, fmt.Errorf("%w: user has never completed a login", shared.ErrMissingCredential)
	}

	refreshToken, err := e.cipher.Decrypt(encrypted)
	if err != nil {
		// no secret material in the message: the ciphertext is as sensitive
		// as the plaintext once the key leaks elsewhere
		return nil, fmt.Errorf("%w: stored credential cannot be decrypted", shared.ErrCredential)
	}

	client, rotated, err := e.refresher.RefreshAccess(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCredential, err)
	}

	if rotated != refreshToken {
		sealed, err := e.cipher.Encrypt(rotated)
		if err != nil {
			logger.Error("failed to encrypt rotated refresh token", "err", err)
		} else if err := e.users.UpdateRefreshToken(user.ID(), sealed); err != nil {
			logger.Error("failed to persist rotated refresh token", "err", err)
		} else {
			logger.Info("stored rotated refresh token")
		}
	}

	return client, nil
}

// raid pulls tracks from the configured sources into the target playlist,
// deduplicated against the target's current contents and across sources
// within this run. A missing source is skipped; a missing target is fatal.
func (e *Executor) raid(ctx context.Context, client services.Client, schedule *models.Schedule, logger *log.Logger) (int, int, error) {
	targetID := schedule.TargetPlaylistID()

	current, err := client.PlaylistTracks(ctx, targetID)
	if err != nil {
		if errors.Is(err, shared.ErrPlaylistNotFound) {
			return 0, 0, fmt.Errorf("%w: %s", shared.ErrTargetNotFound, targetID)
		}
		return 0, 0, err
	}

	seen := make(map[string]struct{}, len(current))
	for _, track := range current {
		seen[track.URI] = struct{}{}
	}

	var fresh []string
	for _, sourceID := range schedule.SourcePlaylistIDs() {
		tracks, err := client.PlaylistTracks(ctx, sourceID)
		if err != nil {
			if errors.Is(err, shared.ErrPlaylistNotFound) {
				logger.Warn("skipping source", "err", fmt.Errorf("%w: %s", shared.ErrSourceNotFound, sourceID))
				continue
			}
			return 0, 0, err
		}

		for _, track := range tracks {
			if _, dup := seen[track.URI]; dup {
				continue
			}
			seen[track.URI] = struct{}{}
			fresh = append(fresh, track.URI)
		}
	}

	if len(fresh) > 0 {
		if err := client.AddTracks(ctx, targetID, fresh); err != nil {
			if errors.Is(err, shared.ErrPlaylistNotFound) {
				return 0, 0, fmt.Errorf("%w: %s", shared.ErrTargetNotFound, targetID)
			}
			return 0, 0, err
		}
	}

	return len(fresh), len(current) + len(fresh), nil
}

// reorder applies the schedule's algorithm to the target playlist and
// replaces its ordering. An empty target reports zero-track success without
// invoking the algorithm.
func (e *Executor) reorder(ctx context.Context, client services.Client, schedule *models.Schedule) (int, error) {
	targetID := schedule.TargetPlaylistID()

	tracks, err := client.PlaylistTracks(ctx, targetID)
	if err != nil {
		if errors.Is(err, shared.ErrPlaylistNotFound) {
			return 0, fmt.Errorf("%w: %s", shared.ErrTargetNotFound, targetID)
		}
		return 0, err
	}

	if len(tracks) == 0 {
		return 0, nil
	}

	algo, err := e.registry.Get(schedule.AlgorithmName())
	if err != nil {
		return 0, err
	}

	ordering, err := algo(tracks, schedule.AlgorithmParams())
	if err != nil {
		return 0, err
	}

	if err := client.ReplaceTracks(ctx, targetID, ordering); err != nil {
		if errors.Is(err, shared.ErrPlaylistNotFound) {
			return 0, fmt.Errorf("%w: %s", shared.ErrTargetNotFound, targetID)
		}
		return 0, err
	}

	return len(ordering), nil
}
