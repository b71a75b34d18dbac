package triggers_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-engine/internal/triggers"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *triggers.Config
		wantErrs []string
	}{
		{
			name:     "nil config",
			cfg:      nil,
			wantErrs: []string{"Trigger type is required"},
		},
		{
			name:     "missing type",
			cfg:      &triggers.Config{},
			wantErrs: []string{"Trigger type is required"},
		},
		{
			name:     "unknown type",
			cfg:      &triggers.Config{Type: "hourly"},
			wantErrs: []string{"Invalid trigger type: hourly"},
		},
		{
			name: "manual needs nothing",
			cfg:  &triggers.Config{Type: triggers.KindManual},
		},
		{
			name: "scheduled valid",
			cfg:  &triggers.Config{Type: triggers.KindScheduled, RunAt: "2030-01-01T09:00:00Z"},
		},
		{
			name:     "scheduled missing run_at",
			cfg:      &triggers.Config{Type: triggers.KindScheduled},
			wantErrs: []string{"run_at is required for scheduled triggers"},
		},
		{
			name:     "scheduled malformed run_at",
			cfg:      &triggers.Config{Type: triggers.KindScheduled, RunAt: "tomorrow"},
			wantErrs: []string{"Invalid run_at format"},
		},
		{
			name: "recurring valid",
			cfg:  &triggers.Config{Type: triggers.KindRecurring, IntervalType: "hours", IntervalValue: 6},
		},
		{
			name:     "recurring missing interval_type",
			cfg:      &triggers.Config{Type: triggers.KindRecurring},
			wantErrs: []string{"interval_type is required for recurring triggers"},
		},
		{
			name:     "recurring zero interval",
			cfg:      &triggers.Config{Type: triggers.KindRecurring, IntervalType: "days"},
			wantErrs: []string{"interval_value must be a positive integer"},
		},
		{
			name:     "recurring negative interval",
			cfg:      &triggers.Config{Type: triggers.KindRecurring, IntervalType: "minutes", IntervalValue: -5},
			wantErrs: []string{"interval_value must be a positive integer"},
		},
		{
			name:     "recurring bad unit",
			cfg:      &triggers.Config{Type: triggers.KindRecurring, IntervalType: "fortnights", IntervalValue: 1},
			wantErrs: []string{"Invalid interval_type: fortnights"},
		},
		{
			name: "cron valid",
			cfg:  &triggers.Config{Type: triggers.KindRecurring, IntervalType: "cron", CronExpression: "0 9 * * 1-5"},
		},
		{
			name:     "cron missing expression",
			cfg:      &triggers.Config{Type: triggers.KindRecurring, IntervalType: "cron"},
			wantErrs: []string{"cron_expression is required for cron triggers"},
		},
		{
			name: "recurring malformed bounds reported together",
			cfg: &triggers.Config{
				Type: triggers.KindRecurring, IntervalType: "hours", IntervalValue: 1,
				StartDate: "next monday", EndDate: "31/12/2030",
			},
			wantErrs: []string{"Invalid start_date format", "Invalid end_date format"},
		},
		{
			name:     "event missing name",
			cfg:      &triggers.Config{Type: triggers.KindEvent},
			wantErrs: []string{"event_name is required for event triggers"},
		},
		{
			name:     "condition needs clauses",
			cfg:      &triggers.Config{Type: triggers.KindCondition},
			wantErrs: []string{"At least one condition is required for conditional triggers"},
		},
		{
			name: "condition clause missing type",
			cfg: &triggers.Config{Type: triggers.KindCondition, Conditions: []triggers.Condition{
				{Metric: "opens", Threshold: 10, Operator: "gte"},
			}},
			wantErrs: []string{"Condition 0: type is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := triggers.Validate(tt.cfg)
			if len(tt.wantErrs) == 0 {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.wantErrs, errs)
		})
	}
}

func TestValidateCronRejectsSecondsField(t *testing.T) {
	assert.Error(t, triggers.ValidateCronExpression("0 0 9 * * 1"))
	assert.NoError(t, triggers.ValidateCronExpression("0 9 * * 1"))
	assert.NoError(t, triggers.ValidateCronExpression("@daily"))
}

func TestBuildersProduceValidConfigs(t *testing.T) {
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, 0)

	configs := []*triggers.Config{
		triggers.NewManual(),
		triggers.NewScheduled(start),
		triggers.NewRecurring(triggers.IntervalDays, 2, &start, &end),
		triggers.NewCron("30 8 * * *"),
		triggers.NewEvent("signup", "https://example.com/hook"),
		triggers.NewConditional([]triggers.Condition{
			{Type: triggers.ConditionTimeWindow, StartHour: 9, EndHour: 17},
		}),
	}
	for _, cfg := range configs {
		assert.Empty(t, triggers.Validate(cfg), "builder for %s produced an invalid config", cfg.Type)
		assert.NotEmpty(t, cfg.CreatedAt)
	}
}

func TestInterval(t *testing.T) {
	cfg := triggers.NewRecurring(triggers.IntervalWeeks, 2, nil, nil)
	d, err := cfg.Interval()
	require.NoError(t, err)
	assert.Equal(t, 14*24*time.Hour, d)

	_, err = triggers.NewCron("@daily").Interval()
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "every 6 hours", triggers.NewRecurring(triggers.IntervalHours, 6, nil, nil).Describe())
	assert.Equal(t, "cron[@daily]", triggers.NewCron("@daily").Describe())
	assert.Equal(t, "manual", triggers.NewManual().Describe())
}
