// Package triggers defines trigger configurations for campaigns: the
// declarative rules that determine when and whether a campaign executes.
// A Config is a tagged union over trigger kinds; the Type field selects the
// variant and the validator checks the fields that variant requires.
package triggers

import (
	"fmt"
	"time"
)

// Kind identifies a trigger variant
type Kind string

const (
	KindManual    Kind = "manual"
	KindScheduled Kind = "scheduled"
	KindRecurring Kind = "recurring"
	KindWebhook   Kind = "webhook"
	KindEvent     Kind = "event"
	KindCondition Kind = "condition"
)

// Known reports whether k is a recognized trigger kind
func (k Kind) Known() bool {
	switch k {
	case KindManual, KindScheduled, KindRecurring, KindWebhook, KindEvent, KindCondition:
		return true
	}
	return false
}

// Interval units accepted by recurring triggers. "cron" selects a cron
// expression instead of a fixed interval.
const (
	IntervalMinutes = "minutes"
	IntervalHours   = "hours"
	IntervalDays    = "days"
	IntervalWeeks   = "weeks"
	IntervalCron    = "cron"
)

// Condition clause types for condition triggers
const (
	ConditionMetricThreshold = "metric_threshold"
	ConditionTimeWindow      = "time_window"
	ConditionExternalEvent   = "external_event"
)

// Comparison operators for metric_threshold clauses
const (
	OperatorGTE = "gte"
	OperatorLTE = "lte"
	OperatorEQ  = "eq"
)

// Condition is one clause of a condition trigger. All clauses of a trigger
// must pass (logical AND) for an execution to proceed.
type Condition struct {
	Type string `json:"type"`

	// metric_threshold fields
	Metric    string  `json:"metric,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Operator  string  `json:"operator,omitempty"`

	// time_window fields: hour-of-day bounds, start inclusive, end exclusive
	StartHour int `json:"start_time,omitempty"`
	EndHour   int `json:"end_time,omitempty"`

	// external_event fields
	EventName string `json:"event_name,omitempty"`
}

// Config is a trigger configuration document. Timestamps are carried as
// RFC 3339 strings so malformed client input reaches the validator instead
// of failing JSON decoding.
type Config struct {
	Type      Kind   `json:"type"`
	CreatedAt string `json:"created_at,omitempty"`

	// scheduled: one-shot fire time
	RunAt string `json:"run_at,omitempty"`

	// recurring
	IntervalType   string `json:"interval_type,omitempty"`
	IntervalValue  int    `json:"interval_value,omitempty"`
	CronExpression string `json:"cron_expression,omitempty"`
	StartDate      string `json:"start_date,omitempty"`
	EndDate        string `json:"end_date,omitempty"`

	// event / webhook
	EventName  string `json:"event_name,omitempty"`
	WebhookURL string `json:"webhook_url,omitempty"`

	// condition
	Conditions []Condition `json:"conditions,omitempty"`

	// EvaluationInterval is the condition polling cadence in minutes
	EvaluationInterval int `json:"evaluation_interval,omitempty"`
}

// RunAtTime parses the scheduled fire time
func (c *Config) RunAtTime() (time.Time, error) {
	return parseTimestamp(c.RunAt)
}

// StartDateTime parses the recurring start bound; the zero time means unbounded
func (c *Config) StartDateTime() (time.Time, error) {
	if c.StartDate == "" {
		return time.Time{}, nil
	}
	return parseTimestamp(c.StartDate)
}

// EndDateTime parses the recurring end bound; the zero time means unbounded
func (c *Config) EndDateTime() (time.Time, error) {
	if c.EndDate == "" {
		return time.Time{}, nil
	}
	return parseTimestamp(c.EndDate)
}

// Interval returns the duration of one recurring interval for unit-based
// recurring triggers.
func (c *Config) Interval() (time.Duration, error) {
	switch c.IntervalType {
	case IntervalMinutes:
		return time.Duration(c.IntervalValue) * time.Minute, nil
	case IntervalHours:
		return time.Duration(c.IntervalValue) * time.Hour, nil
	case IntervalDays:
		return time.Duration(c.IntervalValue) * 24 * time.Hour, nil
	case IntervalWeeks:
		return time.Duration(c.IntervalValue) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("interval type %q has no fixed duration", c.IntervalType)
	}
}

// Describe returns a short human-readable description of the trigger,
// shown in scheduled-campaign listings.
func (c *Config) Describe() string {
	switch c.Type {
	case KindScheduled:
		return fmt.Sprintf("once at %s", c.RunAt)
	case KindRecurring:
		if c.IntervalType == IntervalCron {
			return fmt.Sprintf("cron[%s]", c.CronExpression)
		}
		return fmt.Sprintf("every %d %s", c.IntervalValue, c.IntervalType)
	case KindCondition:
		return fmt.Sprintf("conditional (%d clauses)", len(c.Conditions))
	default:
		return string(c.Type)
	}
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return t, nil
}
