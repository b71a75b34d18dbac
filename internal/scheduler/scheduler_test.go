package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/scheduler"
	"campaign-engine/internal/storage"
	"campaign-engine/internal/triggers"
)

type memJobStore struct {
	mu   sync.Mutex
	rows map[string]*storage.Job
}

func newMemJobStore() *memJobStore {
	return &memJobStore{rows: make(map[string]*storage.Job)}
}

func (m *memJobStore) UpsertJob(job *storage.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.rows[job.ID] = &copied
	return nil
}

func (m *memJobStore) UpdateJobNextFire(jobID string, nextFire time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[jobID]
	if !ok {
		return errors.NotFoundError("job")
	}
	row.NextFire = nextFire
	return nil
}

func (m *memJobStore) DeleteJob(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[jobID]; !ok {
		return errors.NotFoundError("job")
	}
	delete(m.rows, jobID)
	return nil
}

func (m *memJobStore) ListJobs() ([]*storage.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*storage.Job, 0, len(m.rows))
	for _, row := range m.rows {
		copied := *row
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memJobStore) get(jobID string) *storage.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[jobID]
}

type recordingRunner struct {
	mu    sync.Mutex
	runs  []string
	gate  chan struct{}
	gated bool
}

func (r *recordingRunner) Execute(_ context.Context, campaignID, triggeredBy string) {
	if r.gated {
		<-r.gate
	}
	r.mu.Lock()
	r.runs = append(r.runs, campaignID+"/"+triggeredBy)
	r.mu.Unlock()
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func newTestScheduler(t *testing.T, store scheduler.JobStore, runner scheduler.Runner) (*scheduler.Scheduler, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	sched := scheduler.New(store, runner, clock, logging.NewDefaultLogger(), scheduler.Options{
		Workers:      2,
		MisfireGrace: 30 * time.Second,
	})
	return sched, clock
}

func campaignFixture(id string) *storage.Campaign {
	return &storage.Campaign{
		ID:      id,
		OwnerID: "owner-1",
		Name:    "Welcome series",
		Status:  storage.StatusActive,
	}
}

func TestScheduleRecurringFiresEachInterval(t *testing.T) {
	store := newMemJobStore()
	runner := &recordingRunner{}
	sched, clock := newTestScheduler(t, store, runner)

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	cfg := triggers.NewRecurring(triggers.IntervalMinutes, 1, nil, nil)
	jobID, err := sched.Schedule(campaignFixture("camp-1"), cfg)
	require.NoError(t, err)
	assert.Equal(t, "campaign_camp-1", jobID)

	for i := 1; i <= 3; i++ {
		clock.BlockUntil(1)
		clock.Advance(time.Minute)
		want := i
		require.Eventually(t, func() bool {
			return runner.count() == want
		}, 2*time.Second, 10*time.Millisecond)
	}

	runner.mu.Lock()
	assert.Equal(t, []string{"camp-1/recurring", "camp-1/recurring", "camp-1/recurring"}, runner.runs)
	runner.mu.Unlock()

	row := store.get(jobID)
	require.NotNil(t, row, "recurring job should stay persisted")
	assert.True(t, row.NextFire.After(clock.Now()))
}

func TestScheduleReplacesExistingJob(t *testing.T) {
	store := newMemJobStore()
	sched, _ := newTestScheduler(t, store, &recordingRunner{})

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	campaign := campaignFixture("camp-1")
	_, err := sched.Schedule(campaign, triggers.NewRecurring(triggers.IntervalHours, 1, nil, nil))
	require.NoError(t, err)
	_, err = sched.Schedule(campaign, triggers.NewRecurring(triggers.IntervalMinutes, 5, nil, nil))
	require.NoError(t, err)

	jobs := sched.ListScheduled()
	require.Len(t, jobs, 1)
	assert.Equal(t, "campaign_camp-1", jobs[0].ID)
	assert.Contains(t, jobs[0].Trigger, "5 minutes")
}

func TestUnscheduleRemovesJob(t *testing.T) {
	store := newMemJobStore()
	sched, _ := newTestScheduler(t, store, &recordingRunner{})

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	jobID, err := sched.Schedule(campaignFixture("camp-1"), triggers.NewRecurring(triggers.IntervalDays, 1, nil, nil))
	require.NoError(t, err)

	require.NoError(t, sched.Unschedule("camp-1"))
	assert.Empty(t, sched.ListScheduled())
	assert.Nil(t, store.get(jobID))

	// unscheduling again is a no-op
	require.NoError(t, sched.Unschedule("camp-1"))
}

func TestOneShotJobRemovedAfterFiring(t *testing.T) {
	store := newMemJobStore()
	runner := &recordingRunner{}
	sched, clock := newTestScheduler(t, store, runner)

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	runAt := clock.Now().Add(10 * time.Minute)
	jobID, err := sched.Schedule(campaignFixture("camp-1"), triggers.NewScheduled(runAt))
	require.NoError(t, err)

	clock.BlockUntil(1)
	clock.Advance(10 * time.Minute)

	require.Eventually(t, func() bool {
		return runner.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Empty(t, sched.ListScheduled())
	assert.Nil(t, store.get(jobID))
}

func TestScheduleManualTriggerReturnsNoJob(t *testing.T) {
	store := newMemJobStore()
	sched, _ := newTestScheduler(t, store, &recordingRunner{})

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	jobID, err := sched.Schedule(campaignFixture("camp-1"), triggers.NewManual())
	require.NoError(t, err)
	assert.Empty(t, jobID)
	assert.Empty(t, sched.ListScheduled())
}

func TestSchedulePastRunAtRejected(t *testing.T) {
	store := newMemJobStore()
	sched, clock := newTestScheduler(t, store, &recordingRunner{})

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	_, err := sched.Schedule(campaignFixture("camp-1"), triggers.NewScheduled(clock.Now().Add(-time.Hour)))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeScheduling))
	assert.Empty(t, sched.ListScheduled())
}

func TestScheduleInvalidTriggerRejected(t *testing.T) {
	store := newMemJobStore()
	sched, _ := newTestScheduler(t, store, &recordingRunner{})

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	cfg := &triggers.Config{Type: triggers.KindScheduled, RunAt: "not-a-time"}
	_, err := sched.Schedule(campaignFixture("camp-1"), cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeScheduling))
}

func TestOverlappingFireIsDropped(t *testing.T) {
	store := newMemJobStore()
	runner := &recordingRunner{gate: make(chan struct{}), gated: true}
	sched, clock := newTestScheduler(t, store, runner)

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	_, err := sched.Schedule(campaignFixture("camp-1"), triggers.NewRecurring(triggers.IntervalMinutes, 1, nil, nil))
	require.NoError(t, err)

	// first fire blocks inside the runner
	clock.BlockUntil(1)
	clock.Advance(time.Minute)

	// second fire arrives while the first is still running and is dropped
	clock.BlockUntil(1)
	clock.Advance(time.Minute)

	runner.gate <- struct{}{}
	require.Eventually(t, func() bool {
		return runner.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// with the first run finished the next fire executes normally
	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	runner.gate <- struct{}{}
	require.Eventually(t, func() bool {
		return runner.count() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartReloadsPersistedJobs(t *testing.T) {
	store := newMemJobStore()
	clock := clockwork.NewFakeClock()
	cfg := triggers.NewRecurring(triggers.IntervalHours, 1, nil, nil)

	// a row left behind by a previous process, with its fire time in the past
	require.NoError(t, store.UpsertJob(&storage.Job{
		ID:         "campaign_camp-1",
		CampaignID: "camp-1",
		Trigger:    cfg,
		NextFire:   clock.Now().Add(-2 * time.Hour),
		UpdatedAt:  clock.Now().Add(-3 * time.Hour),
	}))

	runner := &recordingRunner{}
	sched := scheduler.New(store, runner, clock, logging.NewDefaultLogger(), scheduler.Options{Workers: 1})
	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	jobs := sched.ListScheduled()
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].NextFire.After(clock.Now()), "stale fire time should be recomputed, not fired late")
	assert.Zero(t, runner.count())

	row := store.get("campaign_camp-1")
	require.NotNil(t, row)
	assert.True(t, row.NextFire.After(clock.Now()))
}

func TestStartDropsExhaustedJobs(t *testing.T) {
	store := newMemJobStore()
	clock := clockwork.NewFakeClock()

	runAt := clock.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	require.NoError(t, store.UpsertJob(&storage.Job{
		ID:         "campaign_camp-1",
		CampaignID: "camp-1",
		Trigger:    &triggers.Config{Type: triggers.KindScheduled, RunAt: runAt},
		NextFire:   clock.Now().Add(-time.Hour),
	}))

	sched := scheduler.New(store, &recordingRunner{}, clock, logging.NewDefaultLogger(), scheduler.Options{Workers: 1})
	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	assert.Empty(t, sched.ListScheduled())
	assert.Nil(t, store.get("campaign_camp-1"))
}
