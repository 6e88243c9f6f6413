package schedules

import (
	"errors"
	"testing"

	"github.com/chrisrogers37/shuffify-sub000/internal/models"
	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
)

func TestValidateTrigger(t *testing.T) {
	t.Run("IntervalVocabulary", func(t *testing.T) {
		for _, token := range []string{"every_hour", "every_6h", "every_12h", "daily", "weekly"} {
			if err := ValidateTrigger(models.TriggerInterval, token); err != nil {
				t.Errorf("token %q should validate: %v", token, err)
			}
		}

		if err := ValidateTrigger(models.TriggerInterval, "fortnightly"); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation for unknown token, got %v", err)
		}
	})

	t.Run("Cron", func(t *testing.T) {
		if err := ValidateTrigger(models.TriggerCron, "30 4 * * 1"); err != nil {
			t.Errorf("valid cron should pass: %v", err)
		}
		if err := ValidateTrigger(models.TriggerCron, "not a cron"); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation for bad cron, got %v", err)
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		if err := ValidateTrigger(models.TriggerType("hourly"), "x"); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})
}

func TestCronSpec(t *testing.T) {
	t.Run("IntervalMapping", func(t *testing.T) {
		spec, fellBack := CronSpec(models.TriggerInterval, "every_6h")
		if fellBack {
			t.Error("known token should not fall back")
		}
		if spec != "@every 6h" {
			t.Errorf("unexpected spec %q", spec)
		}
	})

	t.Run("CronPassthrough", func(t *testing.T) {
		spec, fellBack := CronSpec(models.TriggerCron, "15 2 * * *")
		if fellBack || spec != "15 2 * * *" {
			t.Errorf("expected passthrough, got %q (fallback=%v)", spec, fellBack)
		}
	})

	t.Run("BadCronFallsBackToDaily", func(t *testing.T) {
		spec, fellBack := CronSpec(models.TriggerCron, "61 25 * * *")
		if !fellBack {
			t.Error("expected fallback for unparseable cron")
		}
		if spec != FallbackCronSpec {
			t.Errorf("expected %q, got %q", FallbackCronSpec, spec)
		}
	})

	t.Run("FallbackSpecParses", func(t *testing.T) {
		if _, err := ParseSpec(FallbackCronSpec); err != nil {
			t.Fatalf("fallback spec must parse: %v", err)
		}
	})
}
