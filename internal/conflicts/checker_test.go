package conflicts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/conflicts"
	"campaign-engine/internal/storage"
	"campaign-engine/internal/triggers"
)

type fakeStore struct {
	campaigns map[string]*storage.Campaign
	tiers     map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		campaigns: make(map[string]*storage.Campaign),
		tiers:     make(map[string]string),
	}
}

func (f *fakeStore) GetCampaign(id string) (*storage.Campaign, error) {
	campaign, ok := f.campaigns[id]
	if !ok {
		return nil, errors.NotFoundError("campaign")
	}
	return campaign, nil
}

func (f *fakeStore) ListActiveCampaigns(ownerID string) ([]*storage.Campaign, error) {
	var out []*storage.Campaign
	for _, campaign := range f.campaigns {
		if campaign.OwnerID == ownerID && campaign.Status == storage.StatusActive {
			out = append(out, campaign)
		}
	}
	return out, nil
}

func (f *fakeStore) CountActiveCampaigns(ownerID string) (int, error) {
	active, err := f.ListActiveCampaigns(ownerID)
	return len(active), err
}

func (f *fakeStore) GetActiveTier(ownerID string) (string, error) {
	return f.tiers[ownerID], nil
}

func (f *fakeStore) addCampaign(id string, status storage.CampaignStatus, trigger *triggers.Config) {
	f.campaigns[id] = &storage.Campaign{
		ID:      id,
		OwnerID: "owner-1",
		Name:    "Campaign " + id,
		Status:  status,
		Trigger: trigger,
	}
	if trigger != nil {
		f.campaigns[id].TriggerKind = trigger.Type
	}
}

var tierLimits = map[string]int{
	"free":         1,
	"starter":      5,
	"professional": 20,
	"enterprise":   -1,
}

func newChecker(store conflicts.Store) *conflicts.Checker {
	return conflicts.New(store, tierLimits, logging.NewDefaultLogger())
}

func TestCheckUnknownCampaign(t *testing.T) {
	checker := newChecker(newFakeStore())

	found, err := checker.Check("ghost", triggers.NewManual())
	require.NoError(t, err)
	assert.Equal(t, []string{"Campaign not found"}, found)
}

func TestQuotaEnforcement(t *testing.T) {
	t.Run("at the limit", func(t *testing.T) {
		store := newFakeStore()
		store.tiers["owner-1"] = "free"
		store.addCampaign("active-1", storage.StatusActive, triggers.NewManual())
		store.addCampaign("draft-1", storage.StatusDraft, triggers.NewManual())
		checker := newChecker(store)

		found, err := checker.Check("draft-1", triggers.NewManual())
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Contains(t, found[0], "free")
		assert.Contains(t, found[0], "limit 1")
	})

	t.Run("under the limit", func(t *testing.T) {
		store := newFakeStore()
		store.tiers["owner-1"] = "starter"
		store.addCampaign("active-1", storage.StatusActive, triggers.NewManual())
		store.addCampaign("draft-1", storage.StatusDraft, triggers.NewManual())
		checker := newChecker(store)

		found, err := checker.Check("draft-1", triggers.NewManual())
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("rescheduling an active campaign does not count itself", func(t *testing.T) {
		store := newFakeStore()
		store.tiers["owner-1"] = "free"
		store.addCampaign("active-1", storage.StatusActive, triggers.NewManual())
		checker := newChecker(store)

		found, err := checker.Check("active-1", triggers.NewManual())
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("unlimited tier", func(t *testing.T) {
		store := newFakeStore()
		store.tiers["owner-1"] = "enterprise"
		for _, id := range []string{"a", "b", "c", "d", "e"} {
			store.addCampaign(id, storage.StatusActive, triggers.NewManual())
		}
		store.addCampaign("draft-1", storage.StatusDraft, triggers.NewManual())
		checker := newChecker(store)

		found, err := checker.Check("draft-1", triggers.NewManual())
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("no subscription means no quota", func(t *testing.T) {
		store := newFakeStore()
		store.addCampaign("active-1", storage.StatusActive, triggers.NewManual())
		store.addCampaign("active-2", storage.StatusActive, triggers.NewManual())
		store.addCampaign("draft-1", storage.StatusDraft, triggers.NewManual())
		checker := newChecker(store)

		found, err := checker.Check("draft-1", triggers.NewManual())
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}

func TestRecurringOverlap(t *testing.T) {
	t.Run("identical interval conflicts", func(t *testing.T) {
		store := newFakeStore()
		store.addCampaign("existing", storage.StatusActive, triggers.NewRecurring(triggers.IntervalDays, 1, nil, nil))
		store.addCampaign("new", storage.StatusDraft, nil)
		checker := newChecker(store)

		found, err := checker.Check("new", triggers.NewRecurring(triggers.IntervalDays, 1, nil, nil))
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Contains(t, found[0], "Campaign existing")
	})

	t.Run("different interval passes", func(t *testing.T) {
		store := newFakeStore()
		store.addCampaign("existing", storage.StatusActive, triggers.NewRecurring(triggers.IntervalDays, 1, nil, nil))
		store.addCampaign("new", storage.StatusDraft, nil)
		checker := newChecker(store)

		found, err := checker.Check("new", triggers.NewRecurring(triggers.IntervalHours, 6, nil, nil))
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("own trigger does not conflict with itself", func(t *testing.T) {
		store := newFakeStore()
		cfg := triggers.NewRecurring(triggers.IntervalDays, 1, nil, nil)
		store.addCampaign("existing", storage.StatusActive, cfg)
		checker := newChecker(store)

		found, err := checker.Check("existing", cfg)
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("two cron schedules conflict regardless of expression", func(t *testing.T) {
		store := newFakeStore()
		store.addCampaign("existing", storage.StatusActive, triggers.NewCron("0 9 * * *"))
		store.addCampaign("new", storage.StatusDraft, nil)
		checker := newChecker(store)

		found, err := checker.Check("new", triggers.NewCron("0 12 * * *"))
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Contains(t, found[0], "Schedule overlaps with campaign 'Campaign existing'")
	})

	t.Run("cron against interval passes", func(t *testing.T) {
		store := newFakeStore()
		store.addCampaign("existing", storage.StatusActive, triggers.NewRecurring(triggers.IntervalDays, 1, nil, nil))
		store.addCampaign("new", storage.StatusDraft, nil)
		checker := newChecker(store)

		found, err := checker.Check("new", triggers.NewCron("0 9 * * *"))
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}
