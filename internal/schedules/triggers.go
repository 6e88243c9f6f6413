package schedules

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/chrisrogers37/shuffify-sub000/internal/models"
	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
)

// intervalVocabulary maps the fixed interval tokens users may pick to the
// cron spec the timer engine understands.
var intervalVocabulary = map[string]string{
	"every_hour": "@every 1h",
	"every_6h":   "@every 6h",
	"every_12h":  "@every 12h",
	"daily":      "0 0 * * *",
	"weekly":     "0 0 * * 0",
}

// FallbackCronSpec is used when a stored cron expression no longer parses:
// daily at midnight, rather than failing registration.
const FallbackCronSpec = "0 0 * * *"

// cronParser accepts standard five-field expressions plus @every descriptors.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// IntervalTokens returns the accepted interval vocabulary.
func IntervalTokens() []string {
	tokens := make([]string, 0, len(intervalVocabulary))
	for token := range intervalVocabulary {
		tokens = append(tokens, token)
	}
	return tokens
}

// ValidateTrigger checks a trigger value against its type's format:
// interval values must be vocabulary members, cron values must parse as
// five-field expressions.
func ValidateTrigger(triggerType models.TriggerType, value string) error {
	switch triggerType {
	case models.TriggerInterval:
		if _, ok := intervalVocabulary[value]; !ok {
			return fmt.Errorf("%w: unknown interval %q", shared.ErrValidation, value)
		}
		return nil
	case models.TriggerCron:
		if _, err := cronParser.Parse(value); err != nil {
			return fmt.Errorf("%w: bad cron expression %q: %v", shared.ErrValidation, value, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown trigger type %q", shared.ErrValidation, triggerType)
	}
}

// CronSpec resolves a trigger into a concrete cron spec for registration.
// An unparseable cron value falls back to daily-at-midnight; the bool
// reports whether the fallback was taken.
func CronSpec(triggerType models.TriggerType, value string) (string, bool) {
	if triggerType == models.TriggerInterval {
		if spec, ok := intervalVocabulary[value]; ok {
			return spec, false
		}
		return FallbackCronSpec, true
	}

	if _, err := cronParser.Parse(value); err != nil {
		return FallbackCronSpec, true
	}
	return value, false
}

// ParseSpec exposes the shared parser so the scheduler computes fire times
// from the exact grammar the store validated against.
func ParseSpec(spec string) (cron.Schedule, error) {
	return cronParser.Parse(spec)
}

// Parser returns the shared cron parser for timer engines to install, so
// registration accepts exactly what validation accepted.
func Parser() cron.Parser {
	return cronParser
}
