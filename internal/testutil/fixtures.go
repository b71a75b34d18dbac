package testutil

import (
	"time"

	"campaign-engine/internal/storage"
	"campaign-engine/internal/triggers"
)

// Campaign returns an active campaign with a fixed one-shot trigger,
// suitable as a baseline for handler and scheduler tests.
func Campaign(id, ownerID string) *storage.Campaign {
	return &storage.Campaign{
		ID:          id,
		OwnerID:     ownerID,
		Name:        "Test campaign " + id,
		Status:      storage.StatusActive,
		TriggerKind: triggers.KindScheduled,
		Trigger:     triggers.NewScheduled(time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)),
		WorkflowID:  "wf-" + id,
		CreatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// DraftCampaign returns a draft campaign with no trigger configured.
func DraftCampaign(id, ownerID string) *storage.Campaign {
	campaign := Campaign(id, ownerID)
	campaign.Status = storage.StatusDraft
	campaign.TriggerKind = ""
	campaign.Trigger = nil
	return campaign
}

// Subscription returns an active subscription on the given tier.
func Subscription(ownerID, tier string) *storage.Subscription {
	return &storage.Subscription{
		ID:        "sub-" + ownerID,
		OwnerID:   ownerID,
		Tier:      tier,
		Status:    "active",
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
