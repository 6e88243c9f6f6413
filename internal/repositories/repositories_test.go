package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/chrisrogers37/shuffify-sub000/internal/models"
	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// seedSchedule persists a user and one schedule, returning the schedule id
// so execution and timer-state rows have a valid parent.
func seedSchedule(t *testing.T, db *sql.DB) string {
	t.Helper()

	user := models.NewUser("spotify-seed", "Seed")
	if err := NewUserRepository(db).Create(user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	schedule := models.NewSchedule(user.ID(), models.ScheduleSpec{
		JobType:           models.JobTypeRaid,
		TargetPlaylistID:  "target",
		SourcePlaylistIDs: []string{"src"},
		TriggerType:       models.TriggerInterval,
		TriggerValue:      "daily",
	})
	if err := NewScheduleRepository(db).Create(schedule); err != nil {
		t.Fatalf("failed to create schedule: %v", err)
	}
	return schedule.ID()
}

func TestUserRepository(t *testing.T) {
	t.Run("round trip with credential", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))

		user := models.NewUser("spotify-1", "Alice")
		user.SetEncryptedRefreshToken("ciphertext-blob")
		created := time.Now().Add(-48 * time.Hour).UTC().Truncate(time.Second)
		user.SetCreatedAt(created)
		if err := repo.Create(user); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		got, err := repo.Get(user.ID())
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.SpotifyID() != "spotify-1" || got.DisplayName() != "Alice" {
			t.Errorf("unexpected user %s %s", got.SpotifyID(), got.DisplayName())
		}
		if got.EncryptedRefreshToken() != "ciphertext-blob" {
			t.Errorf("credential not preserved, got %q", got.EncryptedRefreshToken())
		}
		if !got.CreatedAt().Equal(created) {
			t.Errorf("created_at not restored: expected %v, got %v", created, got.CreatedAt())
		}

		bySpotify, err := repo.GetBySpotifyID("spotify-1")
		if err != nil {
			t.Fatalf("get by spotify id failed: %v", err)
		}
		if bySpotify.ID() != user.ID() {
			t.Error("expected same user by spotify id")
		}
	})

	t.Run("missing user", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))

		if _, err := repo.Get("nope"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateRefreshToken", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))

		user := models.NewUser("spotify-1", "Alice")
		if err := repo.Create(user); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		if err := repo.UpdateRefreshToken(user.ID(), "new-blob"); err != nil {
			t.Fatalf("update failed: %v", err)
		}
		got, _ := repo.Get(user.ID())
		if got.EncryptedRefreshToken() != "new-blob" {
			t.Errorf("credential not updated, got %q", got.EncryptedRefreshToken())
		}

		if err := repo.UpdateRefreshToken("nope", "blob"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown user, got %v", err)
		}
	})

	t.Run("List orders by recency", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))

		first := models.NewUser("spotify-1", "Alice")
		second := models.NewUser("spotify-2", "Bob")
		for _, user := range []*models.User{first, second} {
			if err := repo.Create(user); err != nil {
				t.Fatalf("create failed: %v", err)
			}
		}

		// touching a credential bumps updated_at
		if err := repo.UpdateRefreshToken(first.ID(), "blob"); err != nil {
			t.Fatalf("update failed: %v", err)
		}

		users, err := repo.List()
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(users) != 2 {
			t.Fatalf("expected 2 users, got %d", len(users))
		}
		if users[0].ID() != first.ID() {
			t.Error("expected the most recently updated user first")
		}
	})
}

func TestExecutionRepository(t *testing.T) {
	t.Run("finalize writes exactly once", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewExecutionRepository(db)
		scheduleID := seedSchedule(t, db)

		execution := models.NewJobExecution(scheduleID)
		if err := repo.Create(execution); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		execution.Finalize(time.Now(), models.StatusSuccess, 3, 10, "")
		if err := repo.Finalize(execution); err != nil {
			t.Fatalf("finalize failed: %v", err)
		}

		// the row has left the running state, a second write must not land
		execution.Finalize(time.Now(), models.StatusFailed, 0, 0, "late failure")
		if err := repo.Finalize(execution); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound on double finalize, got %v", err)
		}

		got, err := repo.Get(execution.ID())
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Status() != models.StatusSuccess || got.TracksAdded() != 3 {
			t.Errorf("first finalize overwritten: %s %d", got.Status(), got.TracksAdded())
		}
	})

	t.Run("ListBySchedule most recent first", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewExecutionRepository(db)
		scheduleID := seedSchedule(t, db)

		base := time.Now().Add(-time.Hour)
		var last string
		for i := 0; i < 3; i++ {
			execution := models.NewJobExecution(scheduleID)
			execution.SetStartedAt(base.Add(time.Duration(i) * time.Minute))
			if err := repo.Create(execution); err != nil {
				t.Fatalf("create failed: %v", err)
			}
			last = execution.ID()
		}

		history, err := repo.ListBySchedule(scheduleID, 2)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("expected limit of 2, got %d", len(history))
		}
		if history[0].ID() != last {
			t.Error("expected the newest execution first")
		}
	})

	t.Run("DeleteBySchedule", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewExecutionRepository(db)
		scheduleID := seedSchedule(t, db)

		execution := models.NewJobExecution(scheduleID)
		if err := repo.Create(execution); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		if err := repo.DeleteBySchedule(scheduleID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		history, err := repo.ListBySchedule(scheduleID, 10)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(history) != 0 {
			t.Errorf("expected no executions, got %d", len(history))
		}
	})
}

func TestStateRepository(t *testing.T) {
	t.Run("SetNextFire upserts", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewStateRepository(db)
		scheduleID := seedSchedule(t, db)

		first := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		if err := repo.SetNextFire(scheduleID, first); err != nil {
			t.Fatalf("set failed: %v", err)
		}

		second := first.Add(time.Hour)
		if err := repo.SetNextFire(scheduleID, second); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		got, err := repo.NextFire(scheduleID)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if !got.Equal(second) {
			t.Errorf("expected %v, got %v", second, got)
		}
	})

	t.Run("missing state", func(t *testing.T) {
		repo := NewStateRepository(setupTestDB(t))

		if _, err := repo.NextFire("nope"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete is a no-op when absent", func(t *testing.T) {
		repo := NewStateRepository(setupTestDB(t))

		if err := repo.Delete("never-stored"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
