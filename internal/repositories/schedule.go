package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/chrisrogers37/shuffify-sub000/internal/models"
	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
)

const scheduleColumns = `id, user_id, job_type, target_playlist_id, target_playlist_name,
	source_playlist_ids, algorithm_name, algorithm_params, trigger_type, trigger_value,
	is_enabled, last_run_at, last_status, last_error, created_at, updated_at`

// ScheduleRepository persists [models.Schedule] records.
//
// Ownership-scoped reads go through GetOwned/ListByUser; the executor and the
// scheduler use the unscoped Get/ListEnabled.
type ScheduleRepository struct {
	db *sql.DB
}

// NewScheduleRepository creates a new [ScheduleRepository] with the given database connection
func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create inserts a new schedule into the database with a generated ID
func (r *ScheduleRepository) Create(schedule *models.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()
	schedule.SetID(id)

	sources, err := marshalJSON(schedule.SourcePlaylistIDs())
	if err != nil {
		return err
	}
	params, err := marshalJSON(schedule.AlgorithmParams())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO schedules (id, user_id, job_type, target_playlist_id, target_playlist_name,
			source_playlist_ids, algorithm_name, algorithm_params, trigger_type, trigger_value,
			is_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		schedule.UserID(),
		string(schedule.JobType()),
		schedule.TargetPlaylistID(),
		schedule.TargetPlaylistName(),
		sources,
		schedule.AlgorithmName(),
		params,
		string(schedule.TriggerType()),
		schedule.TriggerValue(),
		schedule.Enabled(),
		schedule.CreatedAt(),
		schedule.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}

	return nil
}

// Get retrieves a schedule by ID regardless of owner.
func (r *ScheduleRepository) Get(id string) (*models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE id = ?", scheduleColumns)
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetOwned retrieves a schedule by ID only when it belongs to userID.
// A schedule owned by someone else is indistinguishable from a missing one.
func (r *ScheduleRepository) GetOwned(id, userID string) (*models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE id = ? AND user_id = ?", scheduleColumns)
	return r.scanOne(r.db.QueryRow(query, id, userID))
}

// ListByUser retrieves all schedules for a user, most recently created first.
func (r *ScheduleRepository) ListByUser(userID string) ([]*models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE user_id = ? ORDER BY created_at DESC", scheduleColumns)
	return r.queryMany(query, userID)
}

// ListEnabled retrieves every enabled schedule across all users.
// The scheduler calls this once at startup to register timers.
func (r *ScheduleRepository) ListEnabled() ([]*models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE is_enabled = 1 ORDER BY created_at ASC", scheduleColumns)
	return r.queryMany(query)
}

// CountByUser returns the number of schedules a user currently has.
func (r *ScheduleRepository) CountByUser(userID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM schedules WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count schedules: %w", err)
	}
	return count, nil
}

// Update persists configuration fields and the enabled flag.
func (r *ScheduleRepository) Update(schedule *models.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	schedule.SetUpdatedAt(now)

	sources, err := marshalJSON(schedule.SourcePlaylistIDs())
	if err != nil {
		return err
	}
	params, err := marshalJSON(schedule.AlgorithmParams())
	if err != nil {
		return err
	}

	query := `
		UPDATE schedules
		SET job_type = ?, target_playlist_id = ?, target_playlist_name = ?,
			source_playlist_ids = ?, algorithm_name = ?, algorithm_params = ?,
			trigger_type = ?, trigger_value = ?, is_enabled = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		string(schedule.JobType()),
		schedule.TargetPlaylistID(),
		schedule.TargetPlaylistName(),
		sources,
		schedule.AlgorithmName(),
		params,
		string(schedule.TriggerType()),
		schedule.TriggerValue(),
		schedule.Enabled(),
		now,
		schedule.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("schedule %s: %w", schedule.ID(), shared.ErrNotFound)
	}

	return nil
}

// UpdateLastRun records the outcome of an execution on the schedule row.
// This is the only schedule write the executor performs.
func (r *ScheduleRepository) UpdateLastRun(id string, at time.Time, status models.RunStatus, lastError string) error {
	query := `
		UPDATE schedules
		SET last_run_at = ?, last_status = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`

	errCol := sql.NullString{String: lastError, Valid: lastError != ""}
	result, err := r.db.Exec(query, at, string(status), errCol, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update last run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("schedule %s: %w", id, shared.ErrNotFound)
	}

	return nil
}

// Delete removes a schedule row.
// Execution history and scheduler state cascades are the store's concern.
func (r *ScheduleRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("schedule %s: %w", id, shared.ErrNotFound)
	}

	return nil
}

func (r *ScheduleRepository) queryMany(query string, args ...any) ([]*models.Schedule, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*models.Schedule
	for rows.Next() {
		schedule, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return schedules, nil
}

type scheduleRow struct {
	id           string
	userID       string
	jobType      string
	targetID     string
	targetName   string
	sources      string
	algorithm    string
	params       string
	triggerType  string
	triggerValue string
	enabled      bool
	lastRunAt    sql.NullTime
	lastStatus   sql.NullString
	lastError    sql.NullString
	createdAt    time.Time
	updatedAt    time.Time
}

func (r *ScheduleRepository) scanOne(row *sql.Row) (*models.Schedule, error) {
	var sr scheduleRow
	err := row.Scan(&sr.id, &sr.userID, &sr.jobType, &sr.targetID, &sr.targetName,
		&sr.sources, &sr.algorithm, &sr.params, &sr.triggerType, &sr.triggerValue,
		&sr.enabled, &sr.lastRunAt, &sr.lastStatus, &sr.lastError, &sr.createdAt, &sr.updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("schedule: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}
	return r.hydrate(sr)
}

func (r *ScheduleRepository) scanRow(rows *sql.Rows) (*models.Schedule, error) {
	var sr scheduleRow
	err := rows.Scan(&sr.id, &sr.userID, &sr.jobType, &sr.targetID, &sr.targetName,
		&sr.sources, &sr.algorithm, &sr.params, &sr.triggerType, &sr.triggerValue,
		&sr.enabled, &sr.lastRunAt, &sr.lastStatus, &sr.lastError, &sr.createdAt, &sr.updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}
	return r.hydrate(sr)
}

func (r *ScheduleRepository) hydrate(sr scheduleRow) (*models.Schedule, error) {
	sources, err := unmarshalStrings(sr.sources)
	if err != nil {
		return nil, err
	}
	params, err := unmarshalParams(sr.params)
	if err != nil {
		return nil, err
	}

	schedule := models.NewSchedule(sr.userID, models.ScheduleSpec{
		JobType:            models.JobType(sr.jobType),
		TargetPlaylistID:   sr.targetID,
		TargetPlaylistName: sr.targetName,
		SourcePlaylistIDs:  sources,
		AlgorithmName:      sr.algorithm,
		AlgorithmParams:    params,
		TriggerType:        models.TriggerType(sr.triggerType),
		TriggerValue:       sr.triggerValue,
	})
	schedule.SetID(sr.id)
	schedule.SetEnabled(sr.enabled)
	schedule.SetCreatedAt(sr.createdAt)
	schedule.SetUpdatedAt(sr.updatedAt)

	var lastRunAt *time.Time
	if sr.lastRunAt.Valid {
		t := sr.lastRunAt.Time
		lastRunAt = &t
	}
	schedule.RestoreLastRun(lastRunAt, models.RunStatus(sr.lastStatus.String), sr.lastError.String)

	return schedule, nil
}
