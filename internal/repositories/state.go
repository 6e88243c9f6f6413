package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
)

// StateRepository persists the scheduler's own timer bookkeeping, kept apart
// from business rows so a restart recovers the next fire time without
// re-deriving it from schedule fields.
type StateRepository struct {
	db *sql.DB
}

// NewStateRepository creates a new [StateRepository] with the given database connection
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// SetNextFire upserts the next planned fire time for a schedule's timer.
func (r *StateRepository) SetNextFire(scheduleID string, nextFireAt time.Time) error {
	query := `
		INSERT INTO scheduler_state (schedule_id, next_fire_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(schedule_id) DO UPDATE SET next_fire_at = excluded.next_fire_at, updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, scheduleID, nextFireAt, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert scheduler state: %w", err)
	}
	return nil
}

// NextFire returns the persisted next fire time for a schedule.
func (r *StateRepository) NextFire(scheduleID string) (time.Time, error) {
	var next sql.NullTime
	err := r.db.QueryRow("SELECT next_fire_at FROM scheduler_state WHERE schedule_id = ?", scheduleID).Scan(&next)
	if err == sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("scheduler state: %w", shared.ErrNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query scheduler state: %w", err)
	}
	if !next.Valid {
		return time.Time{}, nil
	}
	return next.Time, nil
}

// Delete removes a schedule's timer bookkeeping. Missing rows are a no-op.
func (r *StateRepository) Delete(scheduleID string) error {
	if _, err := r.db.Exec("DELETE FROM scheduler_state WHERE schedule_id = ?", scheduleID); err != nil {
		return fmt.Errorf("failed to delete scheduler state: %w", err)
	}
	return nil
}
