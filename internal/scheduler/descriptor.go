package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/triggers"
)

// dateSchedule fires exactly once at a fixed instant. A zero Next
// result means the schedule is exhausted.
type dateSchedule struct {
	at time.Time
}

func (d dateSchedule) Next(t time.Time) time.Time {
	if d.at.After(t) {
		return d.at
	}
	return time.Time{}
}

// boundedSchedule clamps an inner schedule to an optional start and
// end date. Before the start, the first fire is the start bound
// itself; after the end, the schedule is exhausted.
type boundedSchedule struct {
	inner cron.Schedule
	start time.Time
	end   time.Time
}

func (b boundedSchedule) Next(t time.Time) time.Time {
	if !b.start.IsZero() && t.Before(b.start) {
		return b.start
	}
	next := b.inner.Next(t)
	if next.IsZero() {
		return next
	}
	if !b.end.IsZero() && next.After(b.end) {
		return time.Time{}
	}
	return next
}

// buildSchedule translates a trigger config into a cron.Schedule. The
// second result reports whether the schedule is one-shot. Trigger
// kinds with no time component (manual, webhook, event) return a nil
// schedule and no error.
func buildSchedule(cfg *triggers.Config, conditionPoll time.Duration) (cron.Schedule, bool, error) {
	switch cfg.Type {
	case triggers.KindManual, triggers.KindWebhook, triggers.KindEvent:
		return nil, false, nil

	case triggers.KindScheduled:
		runAt, err := cfg.RunAtTime()
		if err != nil {
			return nil, false, errors.SchedulingError("invalid run_at in trigger config", err)
		}
		return dateSchedule{at: runAt}, true, nil

	case triggers.KindRecurring:
		var inner cron.Schedule
		if cfg.IntervalType == triggers.IntervalCron {
			sched, err := cron.ParseStandard(cfg.CronExpression)
			if err != nil {
				return nil, false, errors.SchedulingError(
					fmt.Sprintf("invalid cron expression %q", cfg.CronExpression), err)
			}
			inner = sched
		} else {
			d, err := cfg.Interval()
			if err != nil {
				return nil, false, errors.SchedulingError(
					fmt.Sprintf("invalid interval %d %s", cfg.IntervalValue, cfg.IntervalType), err)
			}
			inner = cron.Every(d)
		}

		start, err := cfg.StartDateTime()
		if err != nil {
			return nil, false, errors.SchedulingError("invalid start_date in trigger config", err)
		}
		end, err := cfg.EndDateTime()
		if err != nil {
			return nil, false, errors.SchedulingError("invalid end_date in trigger config", err)
		}
		if start.IsZero() && end.IsZero() {
			return inner, false, nil
		}
		return boundedSchedule{inner: inner, start: start, end: end}, false, nil

	case triggers.KindCondition:
		poll := conditionPoll
		if cfg.EvaluationInterval > 0 {
			poll = time.Duration(cfg.EvaluationInterval) * time.Minute
		}
		return cron.Every(poll), false, nil

	default:
		return nil, false, errors.SchedulingError(
			fmt.Sprintf("unschedulable trigger type %q", cfg.Type), nil)
	}
}
