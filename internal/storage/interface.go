package storage

import (
	"time"
)

// Storage is the persistence boundary for the campaign engine. Implementations
// must be safe for concurrent use by the scheduler goroutine and execution
// workers; writes are transactional per record.
type Storage interface {
	// Connection management
	Close() error
	Health() error

	// Campaigns
	CreateCampaign(campaign *Campaign) error
	GetCampaign(id string) (*Campaign, error)
	ListCampaigns(ownerID string) ([]*Campaign, error)

	// ListActiveCampaigns returns the owner's campaigns with status "active"
	ListActiveCampaigns(ownerID string) ([]*Campaign, error)

	// CountActiveCampaigns returns how many campaigns the owner has active
	CountActiveCampaigns(ownerID string) (int, error)

	UpdateCampaignStatus(id string, status CampaignStatus) error
	UpdateCampaignTrigger(campaign *Campaign) error
	SetCampaignExecutedAt(id string, at time.Time) error

	// Executions
	CreateExecution(execution *Execution) error
	GetExecution(id string) (*Execution, error)
	UpdateExecution(execution *Execution) error

	// ListExecutions returns up to limit executions for a campaign, newest first
	ListExecutions(campaignID string, limit int) ([]*Execution, error)

	// Scheduled jobs (survive process restarts)
	UpsertJob(job *Job) error
	UpdateJobNextFire(jobID string, nextFire time.Time) error
	DeleteJob(jobID string) error
	ListJobs() ([]*Job, error)

	// Subscriptions
	CreateSubscription(subscription *Subscription) error

	// GetActiveTier returns the owner's active subscription tier name, or the
	// empty string when the owner has no active subscription.
	GetActiveTier(ownerID string) (string, error)
}

// StorageConfig is implemented by backend-specific configuration types
type StorageConfig interface {
	Validate() error
}
