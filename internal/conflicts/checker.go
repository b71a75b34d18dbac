// Package conflicts performs admission checks before a campaign is scheduled:
// tier quota enforcement and naive schedule-overlap detection.
package conflicts

import (
	"fmt"

	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/storage"
	"campaign-engine/internal/triggers"
)

// Store is the slice of storage the checker needs.
type Store interface {
	GetCampaign(id string) (*storage.Campaign, error)
	ListActiveCampaigns(ownerID string) ([]*storage.Campaign, error)
	CountActiveCampaigns(ownerID string) (int, error)
	GetActiveTier(ownerID string) (string, error)
}

// Checker reports scheduling conflicts as human-readable messages. An empty
// slice means the campaign may be scheduled.
type Checker struct {
	store      Store
	tierLimits map[string]int
	logger     logging.Logger
}

func New(store Store, tierLimits map[string]int, logger logging.Logger) *Checker {
	return &Checker{
		store:      store,
		tierLimits: tierLimits,
		logger:     logger.WithFields(logging.String("component", "conflict_checker")),
	}
}

// Check runs all admission checks for scheduling the given campaign with the
// given trigger. Storage failures return an error; findings return messages.
func (c *Checker) Check(campaignID string, cfg *triggers.Config) ([]string, error) {
	campaign, err := c.store.GetCampaign(campaignID)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeNotFound) {
			return []string{"Campaign not found"}, nil
		}
		return nil, err
	}

	var conflicts []string

	quota, err := c.checkQuota(campaign)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, quota...)

	if cfg != nil && cfg.Type == triggers.KindRecurring {
		overlaps, err := c.checkRecurringOverlap(campaign, cfg)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, overlaps...)
	}

	if len(conflicts) > 0 {
		c.logger.Info("scheduling conflicts found",
			logging.String("campaign_id", campaignID),
			logging.Int("count", len(conflicts)))
	}
	return conflicts, nil
}

// checkQuota enforces the owner's tier campaign limit. Owners without an
// active subscription are not limited; a limit of -1 means unlimited.
func (c *Checker) checkQuota(campaign *storage.Campaign) ([]string, error) {
	tier, err := c.store.GetActiveTier(campaign.OwnerID)
	if err != nil {
		return nil, err
	}
	if tier == "" {
		return nil, nil
	}

	limit, ok := c.tierLimits[tier]
	if !ok || limit == -1 {
		return nil, nil
	}

	count, err := c.store.CountActiveCampaigns(campaign.OwnerID)
	if err != nil {
		return nil, err
	}
	// an already-active campaign being rescheduled counts itself
	if campaign.Status == storage.StatusActive {
		count--
	}

	if count >= limit {
		return []string{fmt.Sprintf(
			"Active campaign limit reached for tier '%s' (limit %d)", tier, limit)}, nil
	}
	return nil, nil
}

// checkRecurringOverlap flags other active campaigns of the same owner that
// recur on an identical interval. The comparison is deliberately naive:
// identical interval_type and interval_value counts as an overlap.
func (c *Checker) checkRecurringOverlap(campaign *storage.Campaign, cfg *triggers.Config) ([]string, error) {
	others, err := c.store.ListActiveCampaigns(campaign.OwnerID)
	if err != nil {
		return nil, err
	}

	var conflicts []string
	for _, other := range others {
		if other.ID == campaign.ID || other.Trigger == nil {
			continue
		}
		if other.Trigger.Type != triggers.KindRecurring {
			continue
		}
		if other.Trigger.IntervalType == cfg.IntervalType && other.Trigger.IntervalValue == cfg.IntervalValue {
			conflicts = append(conflicts, fmt.Sprintf("Schedule overlaps with campaign '%s'", other.Name))
		}
	}
	return conflicts, nil
}
