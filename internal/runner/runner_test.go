package runner_test

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
	"campaign-engine/internal/invoker"
	"campaign-engine/internal/runner"
	"campaign-engine/internal/storage"
	"campaign-engine/internal/triggers"
)

type memStore struct {
	mu         sync.Mutex
	campaigns  map[string]*storage.Campaign
	executions map[string]*storage.Execution
	order      []string
	executedAt map[string]time.Time
}

func newMemStore() *memStore {
	return &memStore{
		campaigns:  make(map[string]*storage.Campaign),
		executions: make(map[string]*storage.Execution),
		executedAt: make(map[string]time.Time),
	}
}

func (m *memStore) GetCampaign(id string) (*storage.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	campaign, ok := m.campaigns[id]
	if !ok {
		return nil, errors.NotFoundError("campaign")
	}
	copied := *campaign
	return &copied, nil
}

func (m *memStore) CreateExecution(execution *storage.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *execution
	m.executions[execution.ID] = &copied
	m.order = append(m.order, execution.ID)
	return nil
}

func (m *memStore) UpdateExecution(execution *storage.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.executions[execution.ID]; !ok {
		return errors.NotFoundError("execution")
	}
	copied := *execution
	m.executions[execution.ID] = &copied
	return nil
}

func (m *memStore) SetCampaignExecutedAt(id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executedAt[id] = at
	return nil
}

func (m *memStore) allExecutions() []*storage.Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*storage.Execution, 0, len(m.order))
	for _, id := range m.order {
		copied := *m.executions[id]
		out = append(out, &copied)
	}
	return out
}

type stubInvoker struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (s *stubInvoker) Name() string { return "stub" }

func (s *stubInvoker) Run(_ context.Context, _ *storage.Campaign, _ *storage.Execution) (invoker.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.calls < len(s.errs) {
		err = s.errs[s.calls]
	}
	s.calls++
	if err != nil {
		return nil, err
	}
	return invoker.Summary{"invoker": "stub"}, nil
}

func (s *stubInvoker) Health() error { return nil }
func (s *stubInvoker) Close() error  { return nil }

func (s *stubInvoker) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingTracker struct {
	mu      sync.Mutex
	tracked []string
}

func (r *recordingTracker) Track(_ context.Context, category, _, _ string, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked = append(r.tracked, category)
}

func activeCampaign(id string) *storage.Campaign {
	return &storage.Campaign{
		ID:          id,
		OwnerID:     "owner-1",
		Name:        "Welcome series",
		Status:      storage.StatusActive,
		TriggerKind: triggers.KindScheduled,
		Trigger:     triggers.NewScheduled(time.Now().Add(time.Hour)),
		WorkflowID:  "wf-1",
	}
}

func newRunner(store runner.Store, inv invoker.Invoker, tracker runner.Tracker, opts runner.Options) *runner.Runner {
	logger := logging.NewDefaultLogger()
	evaluator := runner.NewConditionEvaluator(nil, nil, nil, logger)
	return runner.New(store, inv, evaluator, tracker, clockwork.NewRealClock(), logger, opts)
}

func TestExecuteCompletesActiveCampaign(t *testing.T) {
	store := newMemStore()
	store.campaigns["camp-1"] = activeCampaign("camp-1")
	inv := &stubInvoker{}

	r := newRunner(store, inv, nil, runner.Options{})
	r.Execute(context.Background(), "camp-1", "scheduled")

	execs := store.allExecutions()
	require.Len(t, execs, 1)
	exec := execs[0]
	assert.Equal(t, storage.ExecutionCompleted, exec.Status)
	assert.Equal(t, "scheduled", exec.TriggeredBy)
	assert.NotNil(t, exec.StartedAt)
	assert.NotNil(t, exec.CompletedAt)
	assert.Equal(t, "stub", exec.ResultSummary["invoker"])
	assert.Empty(t, exec.ErrorMessage)

	_, stamped := store.executedAt["camp-1"]
	assert.True(t, stamped, "campaign executed_at should be stamped")
}

func TestExecuteInactiveCampaignStaysPending(t *testing.T) {
	store := newMemStore()
	campaign := activeCampaign("camp-1")
	campaign.Status = storage.StatusPaused
	store.campaigns["camp-1"] = campaign
	inv := &stubInvoker{}

	r := newRunner(store, inv, nil, runner.Options{})
	r.Execute(context.Background(), "camp-1", "scheduled")

	execs := store.allExecutions()
	require.Len(t, execs, 1)
	assert.Equal(t, storage.ExecutionPending, execs[0].Status)
	assert.Zero(t, inv.callCount(), "inactive campaign must not reach the invoker")
}

func TestExecuteUnknownCampaignCreatesNothing(t *testing.T) {
	store := newMemStore()
	tracker := &recordingTracker{}

	r := newRunner(store, &stubInvoker{}, tracker, runner.Options{})
	r.Execute(context.Background(), "ghost", "manual")

	assert.Empty(t, store.allExecutions())
	assert.Contains(t, tracker.tracked, "STORAGE_ERROR")
}

func TestExecuteInvokerFailureMarksFailed(t *testing.T) {
	store := newMemStore()
	store.campaigns["camp-1"] = activeCampaign("camp-1")
	inv := &stubInvoker{errs: []error{errors.ExecutionError("workflow API returned 500", nil)}}
	tracker := &recordingTracker{}

	r := newRunner(store, inv, tracker, runner.Options{})
	r.Execute(context.Background(), "camp-1", "scheduled")

	execs := store.allExecutions()
	require.Len(t, execs, 1)
	exec := execs[0]
	assert.Equal(t, storage.ExecutionFailed, exec.Status)
	assert.Contains(t, exec.ErrorMessage, "500")
	assert.NotNil(t, exec.CompletedAt)

	assert.Contains(t, tracker.tracked, "CAMPAIGN_EXECUTION_ERROR")

	_, stamped := store.executedAt["camp-1"]
	assert.False(t, stamped, "failed execution must not stamp executed_at")
}

func TestExecuteRetriesAfterFailure(t *testing.T) {
	store := newMemStore()
	store.campaigns["camp-1"] = activeCampaign("camp-1")
	inv := &stubInvoker{errs: []error{errors.ExecutionError("transient", nil)}}

	r := newRunner(store, inv, nil, runner.Options{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
	r.Execute(context.Background(), "camp-1", "scheduled")

	execs := store.allExecutions()
	require.Len(t, execs, 2, "one failed attempt plus one successful retry")
	assert.Equal(t, storage.ExecutionFailed, execs[0].Status)
	assert.Equal(t, "scheduled", execs[0].TriggeredBy)
	assert.Equal(t, storage.ExecutionCompleted, execs[1].Status)
	assert.Equal(t, runner.TriggeredByRetry, execs[1].TriggeredBy)
	assert.Equal(t, 2, inv.callCount())
}

func TestExecuteNoRetriesByDefault(t *testing.T) {
	store := newMemStore()
	store.campaigns["camp-1"] = activeCampaign("camp-1")
	inv := &stubInvoker{errs: []error{errors.ExecutionError("boom", nil)}}

	r := newRunner(store, inv, nil, runner.Options{})
	r.Execute(context.Background(), "camp-1", "scheduled")

	assert.Equal(t, 1, inv.callCount())
	execs := store.allExecutions()
	require.Len(t, execs, 1)
	assert.Equal(t, storage.ExecutionFailed, execs[0].Status)
}

func TestBeginReturnsExecutionIDImmediately(t *testing.T) {
	store := newMemStore()
	store.campaigns["camp-1"] = activeCampaign("camp-1")
	inv := &stubInvoker{}

	r := newRunner(store, inv, nil, runner.Options{})
	id, err := r.Begin(context.Background(), "camp-1", "manual")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		for _, exec := range store.allExecutions() {
			if exec.ID == id && exec.Status == storage.ExecutionCompleted {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestBeginUnknownCampaignReturnsNotFound(t *testing.T) {
	store := newMemStore()

	r := newRunner(store, &stubInvoker{}, nil, runner.Options{})
	_, err := r.Begin(context.Background(), "ghost", "manual")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}
