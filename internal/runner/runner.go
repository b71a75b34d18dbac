// Package runner drives the execution state machine for one campaign
// occurrence: pending, running, then completed or failed. Failures are
// recorded and tracked but never propagate back to the scheduler.
package runner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/invoker"
	"campaign-engine/internal/monitoring"
	"campaign-engine/internal/storage"
	"campaign-engine/internal/triggers"
)

// TriggeredByRetry marks executions created by the retry policy.
const TriggeredByRetry = "retry"

// Store is the slice of storage the runner needs.
type Store interface {
	GetCampaign(id string) (*storage.Campaign, error)
	CreateExecution(execution *storage.Execution) error
	UpdateExecution(execution *storage.Execution) error
	SetCampaignExecutedAt(id string, at time.Time) error
}

// Tracker records execution errors for burst alerting.
type Tracker interface {
	Track(ctx context.Context, category, service, message string, errCtx map[string]interface{})
}

// Options tune runner behavior.
type Options struct {
	// ActionTimeout bounds one delivery attempt.
	ActionTimeout time.Duration

	// MaxRetries is the number of extra delivery attempts after a
	// failure. Zero disables retries; each retry gets its own
	// execution record.
	MaxRetries int

	// RetryDelay is the pause before each retry attempt.
	RetryDelay time.Duration
}

type Runner struct {
	store     Store
	invoker   invoker.Invoker
	evaluator *ConditionEvaluator
	tracker   Tracker
	clock     clockwork.Clock
	logger    logging.Logger
	opts      Options
}

func New(store Store, inv invoker.Invoker, evaluator *ConditionEvaluator, tracker Tracker, clock clockwork.Clock, logger logging.Logger, opts Options) *Runner {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 2 * time.Minute
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Runner{
		store:     store,
		invoker:   inv,
		evaluator: evaluator,
		tracker:   tracker,
		clock:     clock,
		logger:    logger.WithFields(logging.String("component", "runner")),
		opts:      opts,
	}
}

// Execute runs one campaign occurrence synchronously, including the opt-in
// retry policy. Used by the scheduler's workers; errors never escape.
func (r *Runner) Execute(ctx context.Context, campaignID, triggeredBy string) {
	attempts := 1 + r.opts.MaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		by := triggeredBy
		if attempt > 0 {
			by = TriggeredByRetry
			select {
			case <-ctx.Done():
				return
			case <-r.clock.After(r.opts.RetryDelay):
			}
		}

		campaign, execution, err := r.prepare(campaignID, by, attempt)
		if err != nil {
			r.logger.Error("failed to prepare execution", err,
				logging.String("campaign_id", campaignID))
			r.track(ctx, monitoring.ErrorStorage, err.Error(), campaignID, nil)
			return
		}

		if r.run(ctx, campaign, execution) != outcomeFailed {
			return
		}
	}
}

// Begin creates the execution record synchronously and finishes the run on a
// background goroutine, so callers get an execution id to poll immediately.
// Retries do not apply to explicitly invoked runs.
func (r *Runner) Begin(ctx context.Context, campaignID, triggeredBy string) (string, error) {
	campaign, execution, err := r.prepare(campaignID, triggeredBy, 0)
	if err != nil {
		return "", err
	}

	go r.run(context.Background(), campaign, execution)
	return execution.ID, nil
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeSkipped
	outcomeFailed
)

// prepare loads the campaign and inserts the pending execution record. Even
// runs that get skipped later leave this record behind as an audit trail of
// the fire.
func (r *Runner) prepare(campaignID, triggeredBy string, attempt int) (*storage.Campaign, *storage.Execution, error) {
	campaign, err := r.store.GetCampaign(campaignID)
	if err != nil {
		return nil, nil, err
	}

	execution := &storage.Execution{
		ID:          uuid.NewString(),
		CampaignID:  campaign.ID,
		Status:      storage.ExecutionPending,
		TriggeredBy: triggeredBy,
		CreatedAt:   r.clock.Now().UTC(),
		Metadata: map[string]interface{}{
			"trigger_type": string(campaign.TriggerKind),
			"attempt":      attempt,
		},
	}
	if err := r.store.CreateExecution(execution); err != nil {
		return nil, nil, err
	}
	return campaign, execution, nil
}

func (r *Runner) run(ctx context.Context, campaign *storage.Campaign, execution *storage.Execution) outcome {
	logger := r.logger.WithFields(
		logging.String("campaign_id", campaign.ID),
		logging.String("execution_id", execution.ID),
		logging.String("triggered_by", execution.TriggeredBy),
	)

	if campaign.Status != storage.StatusActive {
		logger.Info("campaign not active, skipping execution",
			logging.String("status", string(campaign.Status)))
		return outcomeSkipped
	}

	if campaign.TriggerKind == triggers.KindCondition {
		met, err := r.evaluator.Evaluate(ctx, campaign)
		if err != nil {
			r.fail(ctx, execution, campaign, err, logger)
			return outcomeFailed
		}
		if !met {
			logger.Debug("conditions not met, skipping execution")
			return outcomeSkipped
		}
	}

	started := r.clock.Now().UTC()
	execution.Status = storage.ExecutionRunning
	execution.StartedAt = &started
	if err := r.store.UpdateExecution(execution); err != nil {
		logger.Error("failed to mark execution running", err)
		r.track(ctx, monitoring.ErrorStorage, "failed to mark execution running", campaign.ID, nil)
		return outcomeSkipped
	}

	runCtx, cancel := context.WithTimeout(ctx, r.opts.ActionTimeout)
	summary, err := r.invoker.Run(runCtx, campaign, execution)
	cancel()

	if err != nil {
		r.fail(ctx, execution, campaign, err, logger)
		return outcomeFailed
	}

	completed := r.clock.Now().UTC()
	execution.Status = storage.ExecutionCompleted
	execution.CompletedAt = &completed
	execution.ResultSummary = summary
	if err := r.store.UpdateExecution(execution); err != nil {
		logger.Error("failed to mark execution completed", err)
	}
	if err := r.store.SetCampaignExecutedAt(campaign.ID, completed); err != nil {
		logger.Error("failed to stamp campaign execution time", err)
	}

	logger.Info("campaign executed",
		logging.String("invoker", r.invoker.Name()),
		logging.Duration("duration", completed.Sub(started)))
	return outcomeCompleted
}

func (r *Runner) fail(ctx context.Context, execution *storage.Execution, campaign *storage.Campaign, cause error, logger logging.Logger) {
	completed := r.clock.Now().UTC()
	execution.Status = storage.ExecutionFailed
	execution.CompletedAt = &completed
	execution.ErrorMessage = cause.Error()
	if err := r.store.UpdateExecution(execution); err != nil {
		logger.Error("failed to mark execution failed", err)
	}

	logger.Error("campaign execution failed", cause)
	r.track(ctx, monitoring.ErrorCampaignExecution, cause.Error(), campaign.ID, campaign.Trigger)
}

func (r *Runner) track(ctx context.Context, category, message, campaignID string, trigger *triggers.Config) {
	if r.tracker == nil {
		return
	}
	errCtx := map[string]interface{}{"campaign_id": campaignID}
	if trigger != nil {
		errCtx["trigger_type"] = string(trigger.Type)
	}
	r.tracker.Track(ctx, category, "runner", message, errCtx)
}
