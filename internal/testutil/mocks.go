// Package testutil provides shared test doubles and fixtures.
package testutil

import (
	"sort"
	"sync"
	"time"

	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/storage"
)

// MockStorage implements storage.Storage for testing. Inject failures per
// method through ErrorOnMethod.
type MockStorage struct {
	mu            sync.RWMutex
	campaigns     map[string]*storage.Campaign
	executions    map[string]*storage.Execution
	executionSeq  []string
	jobs          map[string]*storage.Job
	subscriptions map[string]*storage.Subscription

	// ErrorOnMethod maps a method name to the error it should return.
	ErrorOnMethod map[string]error
}

func NewMockStorage() *MockStorage {
	return &MockStorage{
		campaigns:     make(map[string]*storage.Campaign),
		executions:    make(map[string]*storage.Execution),
		jobs:          make(map[string]*storage.Job),
		subscriptions: make(map[string]*storage.Subscription),
		ErrorOnMethod: make(map[string]error),
	}
}

func (m *MockStorage) fail(method string) error {
	return m.ErrorOnMethod[method]
}

func (m *MockStorage) Close() error  { return m.fail("Close") }
func (m *MockStorage) Health() error { return m.fail("Health") }

func (m *MockStorage) CreateCampaign(campaign *storage.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateCampaign"); err != nil {
		return err
	}
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now().UTC()
	}
	campaign.UpdatedAt = campaign.CreatedAt
	copied := *campaign
	m.campaigns[campaign.ID] = &copied
	return nil
}

func (m *MockStorage) GetCampaign(id string) (*storage.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("GetCampaign"); err != nil {
		return nil, err
	}
	campaign, ok := m.campaigns[id]
	if !ok {
		return nil, errors.NotFoundError("campaign")
	}
	copied := *campaign
	return &copied, nil
}

func (m *MockStorage) ListCampaigns(ownerID string) ([]*storage.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("ListCampaigns"); err != nil {
		return nil, err
	}
	out := make([]*storage.Campaign, 0)
	for _, campaign := range m.campaigns {
		if campaign.OwnerID == ownerID {
			copied := *campaign
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockStorage) ListActiveCampaigns(ownerID string) ([]*storage.Campaign, error) {
	if err := m.fail("ListActiveCampaigns"); err != nil {
		return nil, err
	}
	all, err := m.ListCampaigns(ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]*storage.Campaign, 0)
	for _, campaign := range all {
		if campaign.Status == storage.StatusActive {
			out = append(out, campaign)
		}
	}
	return out, nil
}

func (m *MockStorage) CountActiveCampaigns(ownerID string) (int, error) {
	if err := m.fail("CountActiveCampaigns"); err != nil {
		return 0, err
	}
	active, err := m.ListActiveCampaigns(ownerID)
	if err != nil {
		return 0, err
	}
	return len(active), nil
}

func (m *MockStorage) UpdateCampaignStatus(id string, status storage.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateCampaignStatus"); err != nil {
		return err
	}
	campaign, ok := m.campaigns[id]
	if !ok {
		return errors.NotFoundError("campaign")
	}
	campaign.Status = status
	campaign.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockStorage) UpdateCampaignTrigger(campaign *storage.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateCampaignTrigger"); err != nil {
		return err
	}
	existing, ok := m.campaigns[campaign.ID]
	if !ok {
		return errors.NotFoundError("campaign")
	}
	existing.TriggerKind = campaign.TriggerKind
	existing.Trigger = campaign.Trigger
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockStorage) SetCampaignExecutedAt(id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SetCampaignExecutedAt"); err != nil {
		return err
	}
	campaign, ok := m.campaigns[id]
	if !ok {
		return errors.NotFoundError("campaign")
	}
	campaign.LastExecutedAt = &at
	return nil
}

func (m *MockStorage) CreateExecution(execution *storage.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateExecution"); err != nil {
		return err
	}
	copied := *execution
	m.executions[execution.ID] = &copied
	m.executionSeq = append(m.executionSeq, execution.ID)
	return nil
}

func (m *MockStorage) GetExecution(id string) (*storage.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("GetExecution"); err != nil {
		return nil, err
	}
	execution, ok := m.executions[id]
	if !ok {
		return nil, errors.NotFoundError("execution")
	}
	copied := *execution
	return &copied, nil
}

func (m *MockStorage) UpdateExecution(execution *storage.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateExecution"); err != nil {
		return err
	}
	if _, ok := m.executions[execution.ID]; !ok {
		return errors.NotFoundError("execution")
	}
	copied := *execution
	m.executions[execution.ID] = &copied
	return nil
}

func (m *MockStorage) ListExecutions(campaignID string, limit int) ([]*storage.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("ListExecutions"); err != nil {
		return nil, err
	}
	out := make([]*storage.Execution, 0)
	for i := len(m.executionSeq) - 1; i >= 0 && len(out) < limit; i-- {
		execution := m.executions[m.executionSeq[i]]
		if execution.CampaignID == campaignID {
			copied := *execution
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *MockStorage) UpsertJob(job *storage.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpsertJob"); err != nil {
		return err
	}
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *MockStorage) UpdateJobNextFire(jobID string, nextFire time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateJobNextFire"); err != nil {
		return err
	}
	job, ok := m.jobs[jobID]
	if !ok {
		return errors.NotFoundError("job")
	}
	job.NextFire = nextFire
	return nil
}

func (m *MockStorage) DeleteJob(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteJob"); err != nil {
		return err
	}
	delete(m.jobs, jobID)
	return nil
}

func (m *MockStorage) ListJobs() ([]*storage.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("ListJobs"); err != nil {
		return nil, err
	}
	out := make([]*storage.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		copied := *job
		out = append(out, &copied)
	}
	return out, nil
}

func (m *MockStorage) CreateSubscription(subscription *storage.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateSubscription"); err != nil {
		return err
	}
	copied := *subscription
	m.subscriptions[subscription.ID] = &copied
	return nil
}

func (m *MockStorage) GetActiveTier(ownerID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("GetActiveTier"); err != nil {
		return "", err
	}
	for _, sub := range m.subscriptions {
		if sub.OwnerID == ownerID && sub.Status == "active" {
			return sub.Tier, nil
		}
	}
	return "", nil
}
