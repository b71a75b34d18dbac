package triggers

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate checks a trigger configuration for admissibility and returns all
// problems found as messages. An empty slice means the config is valid.
// Validation is pure: it performs no I/O and never panics on bad input.
//
// A missing or unknown type short-circuits with a single error; per-kind
// field checks only run for known kinds.
func Validate(cfg *Config) []string {
	var errors []string

	if cfg == nil || cfg.Type == "" {
		return []string{"Trigger type is required"}
	}

	if !cfg.Type.Known() {
		return []string{fmt.Sprintf("Invalid trigger type: %s", cfg.Type)}
	}

	switch cfg.Type {
	case KindScheduled:
		if cfg.RunAt == "" {
			errors = append(errors, "run_at is required for scheduled triggers")
		} else if _, err := cfg.RunAtTime(); err != nil {
			errors = append(errors, "Invalid run_at format")
		}

	case KindRecurring:
		switch cfg.IntervalType {
		case "":
			errors = append(errors, "interval_type is required for recurring triggers")
		case IntervalMinutes, IntervalHours, IntervalDays, IntervalWeeks:
			if cfg.IntervalValue <= 0 {
				errors = append(errors, "interval_value must be a positive integer")
			}
		case IntervalCron:
			if cfg.CronExpression == "" {
				errors = append(errors, "cron_expression is required for cron triggers")
			} else if err := ValidateCronExpression(cfg.CronExpression); err != nil {
				errors = append(errors, fmt.Sprintf("Invalid cron expression: %v", err))
			}
		default:
			errors = append(errors, fmt.Sprintf("Invalid interval_type: %s", cfg.IntervalType))
		}

		if cfg.StartDate != "" {
			if _, err := cfg.StartDateTime(); err != nil {
				errors = append(errors, "Invalid start_date format")
			}
		}
		if cfg.EndDate != "" {
			if _, err := cfg.EndDateTime(); err != nil {
				errors = append(errors, "Invalid end_date format")
			}
		}

	case KindEvent:
		if cfg.EventName == "" {
			errors = append(errors, "event_name is required for event triggers")
		}

	case KindCondition:
		if len(cfg.Conditions) == 0 {
			errors = append(errors, "At least one condition is required for conditional triggers")
		}
		for i, condition := range cfg.Conditions {
			if condition.Type == "" {
				errors = append(errors, fmt.Sprintf("Condition %d: type is required", i))
			}
		}
	}

	return errors
}

// ValidateCronExpression checks that expr parses as a standard 5-field cron
// expression.
func ValidateCronExpression(expr string) error {
	_, err := cron.ParseStandard(expr)
	return err
}
