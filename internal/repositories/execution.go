package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/chrisrogers37/shuffify-sub000/internal/models"
	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
)

// ExecutionRepository persists the append-only [models.JobExecution] audit trail.
type ExecutionRepository struct {
	db *sql.DB
}

// NewExecutionRepository creates a new [ExecutionRepository] with the given database connection
func NewExecutionRepository(db *sql.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Create inserts a running execution record with a generated ID.
// The row exists before any remote call so a crash mid-execution leaves a
// visible running record for diagnosis.
func (r *ExecutionRepository) Create(execution *models.JobExecution) error {
	if err := execution.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()
	execution.SetID(id)

	query := `
		INSERT INTO job_executions (id, schedule_id, started_at, status, tracks_added, tracks_total)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, id, execution.ScheduleID(), execution.StartedAt(),
		string(execution.Status()), execution.TracksAdded(), execution.TracksTotal())
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}

	return nil
}

// Finalize writes the completion fields of an execution exactly once.
// A row that has already left the running state is not touched again.
func (r *ExecutionRepository) Finalize(execution *models.JobExecution) error {
	if err := execution.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE job_executions
		SET completed_at = ?, status = ?, tracks_added = ?, tracks_total = ?, error_message = ?
		WHERE id = ? AND status = 'running'
	`

	errCol := sql.NullString{String: execution.ErrorMessage(), Valid: execution.ErrorMessage() != ""}
	result, err := r.db.Exec(query, execution.CompletedAt(), string(execution.Status()),
		execution.TracksAdded(), execution.TracksTotal(), errCol, execution.ID())
	if err != nil {
		return fmt.Errorf("failed to finalize execution: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("running execution %s: %w", execution.ID(), shared.ErrNotFound)
	}

	return nil
}

// Get retrieves an execution by ID.
func (r *ExecutionRepository) Get(id string) (*models.JobExecution, error) {
	query := `
		SELECT id, schedule_id, started_at, completed_at, status, tracks_added, tracks_total, error_message
		FROM job_executions
		WHERE id = ?
	`
	return r.scanOne(r.db.QueryRow(query, id))
}

// ListBySchedule retrieves a schedule's executions, most recent first,
// bounded by limit.
func (r *ExecutionRepository) ListBySchedule(scheduleID string, limit int) ([]*models.JobExecution, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, schedule_id, started_at, completed_at, status, tracks_added, tracks_total, error_message
		FROM job_executions
		WHERE schedule_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, scheduleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var executions []*models.JobExecution
	for rows.Next() {
		execution, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return executions, nil
}

// DeleteBySchedule removes all execution history for a schedule.
// Called only as a cascade of schedule deletion.
func (r *ExecutionRepository) DeleteBySchedule(scheduleID string) error {
	if _, err := r.db.Exec("DELETE FROM job_executions WHERE schedule_id = ?", scheduleID); err != nil {
		return fmt.Errorf("failed to delete executions: %w", err)
	}
	return nil
}

func (r *ExecutionRepository) scanOne(row *sql.Row) (*models.JobExecution, error) {
	var (
		id          string
		scheduleID  string
		startedAt   time.Time
		completedAt sql.NullTime
		status      string
		added       int
		total       int
		errMsg      sql.NullString
	)

	err := row.Scan(&id, &scheduleID, &startedAt, &completedAt, &status, &added, &total, &errMsg)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("execution: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return hydrateExecution(id, scheduleID, startedAt, completedAt, status, added, total, errMsg), nil
}

func (r *ExecutionRepository) scanRow(rows *sql.Rows) (*models.JobExecution, error) {
	var (
		id          string
		scheduleID  string
		startedAt   time.Time
		completedAt sql.NullTime
		status      string
		added       int
		total       int
		errMsg      sql.NullString
	)

	err := rows.Scan(&id, &scheduleID, &startedAt, &completedAt, &status, &added, &total, &errMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return hydrateExecution(id, scheduleID, startedAt, completedAt, status, added, total, errMsg), nil
}

func hydrateExecution(id, scheduleID string, startedAt time.Time, completedAt sql.NullTime, status string, added, total int, errMsg sql.NullString) *models.JobExecution {
	execution := models.NewJobExecution(scheduleID)
	execution.SetID(id)
	execution.SetStartedAt(startedAt)

	var done *time.Time
	if completedAt.Valid {
		t := completedAt.Time
		done = &t
	}
	execution.Restore(done, models.RunStatus(status), added, total, errMsg.String)

	return execution
}
