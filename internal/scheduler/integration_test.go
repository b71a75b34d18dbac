package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/invoker"
	"campaign-engine/internal/runner"
	"campaign-engine/internal/scheduler"
	"campaign-engine/internal/storage"
	"campaign-engine/internal/testutil"
	"campaign-engine/internal/triggers"
)

// Wires the scheduler to the real runner over shared storage: a recurring
// fire must leave a completed execution record behind.
func TestRecurringFireProducesCompletedExecution(t *testing.T) {
	logger := logging.NewDefaultLogger()
	store := testutil.NewMockStorage()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	campaign := testutil.Campaign("camp-1", "owner-1")
	campaign.TriggerKind = triggers.KindRecurring
	campaign.Trigger = triggers.NewRecurring(triggers.IntervalMinutes, 1, nil, nil)
	require.NoError(t, store.CreateCampaign(campaign))

	evaluator := runner.NewConditionEvaluator(nil, nil, nil, logger)
	run := runner.New(store, invoker.NewNoop(logger), evaluator, nil, clockwork.NewRealClock(), logger, runner.Options{})

	s := scheduler.New(store, run, clock, logger, scheduler.Options{Workers: 2})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	_, err := s.Schedule(campaign, campaign.Trigger)
	require.NoError(t, err)

	clock.BlockUntil(1)
	clock.Advance(time.Minute)

	require.Eventually(t, func() bool {
		executions, lerr := store.ListExecutions("camp-1", 10)
		if lerr != nil || len(executions) == 0 {
			return false
		}
		return executions[0].Status == storage.ExecutionCompleted
	}, time.Second, 10*time.Millisecond)

	executions, err := store.ListExecutions("camp-1", 10)
	require.NoError(t, err)
	assert.Equal(t, "recurring", executions[0].TriggeredBy)

	got, err := store.GetCampaign("camp-1")
	require.NoError(t, err)
	assert.NotNil(t, got.LastExecutedAt)
}
