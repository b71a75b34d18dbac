package storage

import (
	"time"

	"campaign-engine/internal/triggers"
)

// CampaignStatus represents the lifecycle state of a campaign
type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusScheduled CampaignStatus = "scheduled"
	StatusActive    CampaignStatus = "active"
	StatusPaused    CampaignStatus = "paused"
	StatusCompleted CampaignStatus = "completed"
	StatusFailed    CampaignStatus = "failed"
)

// ExecutionStatus represents the lifecycle state of a single campaign run
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// Campaign is a user-defined marketing action the engine schedules and runs.
// The engine owns its trigger configuration and execution history; content,
// templates and social accounts live in external systems referenced by id.
type Campaign struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Status      CampaignStatus  `json:"status"`
	TriggerKind triggers.Kind   `json:"trigger_type"`
	Trigger     *triggers.Config `json:"trigger_config,omitempty"`

	// WorkflowID identifies the external workflow invoked when the campaign runs
	WorkflowID string `json:"workflow_id,omitempty"`

	LastExecutedAt *time.Time `json:"executed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Execution is one concrete run of a campaign's action. Created in pending
// state when a trigger fires, mutated by the runner as the run proceeds, and
// immutable once completed or failed.
type Execution struct {
	ID          string          `json:"id"`
	CampaignID  string          `json:"campaign_id"`
	Status      ExecutionStatus `json:"status"`
	TriggeredBy string          `json:"triggered_by"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ResultSummary map[string]interface{} `json:"result_summary,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Job is a persisted scheduler registration for one campaign. Job rows let
// the scheduler re-arm campaigns after a process restart instead of requiring
// every campaign to be re-scheduled by hand.
type Job struct {
	ID         string           `json:"id"`
	CampaignID string           `json:"campaign_id"`
	Trigger    *triggers.Config `json:"trigger_config"`
	NextFire   time.Time        `json:"next_fire_time"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Subscription links an owner to a pricing tier. Billing itself is handled by
// an external payment system; the engine only reads the active tier to
// enforce campaign quotas.
type Subscription struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Tier      string    `json:"tier"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
