package triggers

import (
	"time"
)

// Builder constructors produce canonical trigger configurations from typed
// inputs. They never touch I/O; admission checks happen in Validate and the
// conflict checker.

// NewManual creates a manual trigger configuration
func NewManual() *Config {
	return &Config{
		Type:      KindManual,
		CreatedAt: stamp(),
	}
}

// NewScheduled creates a one-time scheduled trigger
func NewScheduled(runAt time.Time) *Config {
	return &Config{
		Type:      KindScheduled,
		RunAt:     runAt.UTC().Format(time.RFC3339),
		CreatedAt: stamp(),
	}
}

// NewRecurring creates an interval-based recurring trigger. start and end
// optionally bound the schedule.
func NewRecurring(intervalType string, intervalValue int, start, end *time.Time) *Config {
	cfg := &Config{
		Type:          KindRecurring,
		IntervalType:  intervalType,
		IntervalValue: intervalValue,
		CreatedAt:     stamp(),
	}

	if start != nil {
		cfg.StartDate = start.UTC().Format(time.RFC3339)
	}
	if end != nil {
		cfg.EndDate = end.UTC().Format(time.RFC3339)
	}

	return cfg
}

// NewCron creates a cron-based recurring trigger
func NewCron(expression string) *Config {
	return &Config{
		Type:           KindRecurring,
		IntervalType:   IntervalCron,
		CronExpression: expression,
		CreatedAt:      stamp(),
	}
}

// NewEvent creates an event-based trigger, fired externally by name
func NewEvent(eventName, webhookURL string) *Config {
	return &Config{
		Type:       KindEvent,
		EventName:  eventName,
		WebhookURL: webhookURL,
		CreatedAt:  stamp(),
	}
}

// NewConditional creates a condition-based trigger evaluated on a polling
// cadence before each execution.
func NewConditional(conditions []Condition) *Config {
	return &Config{
		Type:               KindCondition,
		Conditions:         conditions,
		EvaluationInterval: 5,
		CreatedAt:          stamp(),
	}
}

func stamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
