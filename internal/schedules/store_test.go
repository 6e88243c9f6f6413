package schedules

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/chrisrogers37/shuffify-sub000/internal/models"
	"github.com/chrisrogers37/shuffify-sub000/internal/repositories"
	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
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

// fakeRegistrar records registrar calls for assertions.
type fakeRegistrar struct {
	added   []string
	removed []string
	fail    bool
}

func (f *fakeRegistrar) AddOrReplace(schedule *models.Schedule) error {
	if f.fail {
		return fmt.Errorf("registration refused")
	}
	f.added = append(f.added, schedule.ID())
	return nil
}

func (f *fakeRegistrar) Remove(scheduleID string) {
	f.removed = append(f.removed, scheduleID)
}

func newTestStore(t *testing.T, db *sql.DB, registrar TimerRegistrar) *Store {
	t.Helper()

	return NewStore(StoreOpts{
		Schedules:  repositories.NewScheduleRepository(db),
		Executions: repositories.NewExecutionRepository(db),
		State:      repositories.NewStateRepository(db),
		Registrar:  registrar,
		MaxPerUser: 5,
	})
}

func createTestUser(t *testing.T, db *sql.DB, spotifyID string) *models.User {
	t.Helper()

	user := models.NewUser(spotifyID, "Test User")
	if err := repositories.NewUserRepository(db).Create(user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func raidSpec() models.ScheduleSpec {
	return models.ScheduleSpec{
		JobType:           models.JobTypeRaid,
		TargetPlaylistID:  "target",
		SourcePlaylistIDs: []string{"src1", "src2"},
		TriggerType:       models.TriggerInterval,
		TriggerValue:      "daily",
	}
}

func TestStore_Create(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		db := setupTestDB(t)
		user := createTestUser(t, db, "alice")
		registrar := &fakeRegistrar{}
		store := newTestStore(t, db, registrar)

		schedule, err := store.Create(user.ID(), raidSpec())
		if err != nil {
			t.Fatalf("failed to create schedule: %v", err)
		}
		if schedule.ID() == "" {
			t.Error("schedule ID should be set after creation")
		}
		if !schedule.Enabled() {
			t.Error("new schedules should be enabled")
		}
		if len(registrar.added) != 1 || registrar.added[0] != schedule.ID() {
			t.Errorf("expected registrar notification, got %v", registrar.added)
		}
	})

	t.Run("RaidWithoutSources", func(t *testing.T) {
		db := setupTestDB(t)
		user := createTestUser(t, db, "alice")
		store := newTestStore(t, db, nil)

		spec := raidSpec()
		spec.SourcePlaylistIDs = nil
		if _, err := store.Create(user.ID(), spec); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("ReorderWithoutAlgorithm", func(t *testing.T) {
		db := setupTestDB(t)
		user := createTestUser(t, db, "alice")
		store := newTestStore(t, db, nil)

		spec := raidSpec()
		spec.JobType = models.JobTypeReorder
		spec.SourcePlaylistIDs = nil
		if _, err := store.Create(user.ID(), spec); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("ReorderUnknownAlgorithm", func(t *testing.T) {
		db := setupTestDB(t)
		user := createTestUser(t, db, "alice")
		store := newTestStore(t, db, nil)

		spec := raidSpec()
		spec.JobType = models.JobTypeReorder
		spec.SourcePlaylistIDs = nil
		spec.AlgorithmName = "definitely-not-registered"
		if _, err := store.Create(user.ID(), spec); !errors.Is(err, shared.ErrInvalidAlgorithm) {
			t.Errorf("expected ErrInvalidAlgorithm, got %v", err)
		}

		schedules, err := store.List(user.ID())
		if err != nil {
			t.Fatalf("failed to list schedules: %v", err)
		}
		if len(schedules) != 0 {
			t.Error("a rejected spec must not be persisted")
		}
	})

	t.Run("BadTriggerToken", func(t *testing.T) {
		db := setupTestDB(t)
		user := createTestUser(t, db, "alice")
		store := newTestStore(t, db, nil)

		spec := raidSpec()
		spec.TriggerValue = "fortnightly"
		if _, err := store.Create(user.ID(), spec); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("RegistrarFailureDoesNotFailCreate", func(t *testing.T) {
		db := setupTestDB(t)
		user := createTestUser(t, db, "alice")
		store := newTestStore(t, db, &fakeRegistrar{fail: true})

		if _, err := store.Create(user.ID(), raidSpec()); err != nil {
			t.Errorf("create should survive registrar failure: %v", err)
		}
	})
}

func TestStore_Quota(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	store := newTestStore(t, db, nil)

	for i := 0; i < 5; i++ {
		if _, err := store.Create(alice.ID(), raidSpec()); err != nil {
			t.Fatalf("failed to create schedule %d: %v", i, err)
		}
	}

	_, err := store.Create(alice.ID(), raidSpec())
	if !errors.Is(err, shared.ErrLimitExceeded) {
		t.Errorf("expected ErrLimitExceeded for sixth schedule, got %v", err)
	}

	// a different user is unaffected by alice's quota
	if _, err := store.Create(bob.ID(), raidSpec()); err != nil {
		t.Errorf("bob's first schedule should succeed: %v", err)
	}
}

func TestStore_Ownership(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	store := newTestStore(t, db, nil)

	schedule, err := store.Create(alice.ID(), raidSpec())
	if err != nil {
		t.Fatalf("failed to create schedule: %v", err)
	}

	// every read/update/delete path must treat foreign records as missing
	if _, err := store.Get(schedule.ID(), bob.ID()); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign get, got %v", err)
	}
	if _, err := store.Update(schedule.ID(), bob.ID(), map[string]any{"trigger_value": "weekly"}); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign update, got %v", err)
	}
	if err := store.Delete(schedule.ID(), bob.ID()); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign delete, got %v", err)
	}
	if _, err := store.Toggle(schedule.ID(), bob.ID()); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign toggle, got %v", err)
	}
	if _, err := store.ExecutionHistory(schedule.ID(), bob.ID(), 10); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign history, got %v", err)
	}

	if _, err := store.Get(schedule.ID(), alice.ID()); err != nil {
		t.Errorf("owner get should succeed: %v", err)
	}
}

func TestStore_Update(t *testing.T) {
	t.Run("WhitelistedFields", func(t *testing.T) {
		db := setupTestDB(t)
		user := createTestUser(t, db, "alice")
		store := newTestStore(t, db, nil)

		schedule, err := store.Create(user.ID(), raidSpec())
		if err != nil {
			t.Fatalf("failed to create schedule: %v", err)
		}

		updated, err := store.Update(schedule.ID(), user.ID(), map[string]any{
			"trigger_value":       "weekly",
			"source_playlist_ids": []any{"src9"},
			"an_unknown_key":      "ignored",
		})
		if err != nil {
			t.Fatalf("failed to update schedule: %v", err)
		}

		if updated.TriggerValue() != "weekly" {
			t.Errorf("expected weekly trigger, got %q", updated.TriggerValue())
		}
		if len(updated.SourcePlaylistIDs()) != 1 || updated.SourcePlaylistIDs()[0] != "src9" {
			t.Errorf("unexpected sources %v", updated.SourcePlaylistIDs())
		}

		// persisted
		got, err := store.Get(schedule.ID(), user.ID())
		if err != nil {
			t.Fatalf("failed to get schedule: %v", err)
		}
		if got.TriggerValue() != "weekly" {
			t.Errorf("update not persisted, got %q", got.TriggerValue())
		}
	})

	t.Run("InvalidResult", func(t *testing.T) {
		db := setupTestDB(t)
		user := createTestUser(t, db, "alice")
		store := newTestStore(t, db, nil)

		schedule, err := store.Create(user.ID(), raidSpec())
		if err != nil {
			t.Fatalf("failed to create schedule: %v", err)
		}

		// stripping all sources from a raid schedule is rejected
		_, err = store.Update(schedule.ID(), user.ID(), map[string]any{"source_playlist_ids": []any{}})
		if !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("UnknownAlgorithm", func(t *testing.T) {
		db := setupTestDB(t)
		user := createTestUser(t, db, "alice")
		store := newTestStore(t, db, nil)

		spec := raidSpec()
		spec.JobType = models.JobTypeRaidAndReorder
		spec.AlgorithmName = "basic"
		schedule, err := store.Create(user.ID(), spec)
		if err != nil {
			t.Fatalf("failed to create schedule: %v", err)
		}

		_, err = store.Update(schedule.ID(), user.ID(), map[string]any{"algorithm_name": "nonsense"})
		if !errors.Is(err, shared.ErrInvalidAlgorithm) {
			t.Errorf("expected ErrInvalidAlgorithm, got %v", err)
		}

		got, err := store.Get(schedule.ID(), user.ID())
		if err != nil {
			t.Fatalf("failed to get schedule: %v", err)
		}
		if got.AlgorithmName() != "basic" {
			t.Errorf("rejected update must not land, got %q", got.AlgorithmName())
		}
	})
}

func TestStore_Toggle(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice")
	registrar := &fakeRegistrar{}
	store := newTestStore(t, db, registrar)

	schedule, err := store.Create(user.ID(), raidSpec())
	if err != nil {
		t.Fatalf("failed to create schedule: %v", err)
	}

	disabled, err := store.Toggle(schedule.ID(), user.ID())
	if err != nil {
		t.Fatalf("failed to toggle: %v", err)
	}
	if disabled.Enabled() {
		t.Error("expected schedule to be disabled")
	}
	if len(registrar.removed) != 1 {
		t.Errorf("disabling must deregister the timer, got %v", registrar.removed)
	}

	enabled, err := store.Toggle(schedule.ID(), user.ID())
	if err != nil {
		t.Fatalf("failed to toggle: %v", err)
	}
	if !enabled.Enabled() {
		t.Error("expected schedule to be enabled")
	}
	if len(registrar.added) != 2 {
		t.Errorf("re-enabling must re-register the timer, got %v", registrar.added)
	}
}

func TestStore_DeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice")
	registrar := &fakeRegistrar{}
	store := newTestStore(t, db, registrar)
	executions := repositories.NewExecutionRepository(db)

	schedule, err := store.Create(user.ID(), raidSpec())
	if err != nil {
		t.Fatalf("failed to create schedule: %v", err)
	}

	execution := models.NewJobExecution(schedule.ID())
	if err := executions.Create(execution); err != nil {
		t.Fatalf("failed to create execution: %v", err)
	}

	if err := store.Delete(schedule.ID(), user.ID()); err != nil {
		t.Fatalf("failed to delete schedule: %v", err)
	}

	if _, err := store.Get(schedule.ID(), user.ID()); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected schedule to be gone, got %v", err)
	}

	history, err := executions.ListBySchedule(schedule.ID(), 10)
	if err != nil {
		t.Fatalf("failed to list executions: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected execution history to cascade, got %d rows", len(history))
	}

	if len(registrar.removed) != 1 {
		t.Errorf("deletion must deregister the timer, got %v", registrar.removed)
	}
}
