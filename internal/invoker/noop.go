package invoker

import (
	"context"
	"time"

	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/storage"
)

// NoopInvoker logs the action and delivers nowhere. Used in local
// development and scheduler tests.
type NoopInvoker struct {
	logger logging.Logger
}

func NewNoop(logger logging.Logger) *NoopInvoker {
	return &NoopInvoker{logger: logger.WithFields(logging.String("invoker", "noop"))}
}

func (n *NoopInvoker) Name() string { return "noop" }

func (n *NoopInvoker) Run(_ context.Context, campaign *storage.Campaign, execution *storage.Execution) (Summary, error) {
	n.logger.Info("campaign action dropped",
		logging.String("campaign_id", campaign.ID),
		logging.String("execution_id", execution.ID),
		logging.String("triggered_by", execution.TriggeredBy),
	)
	return Summary{
		"invoker":      "noop",
		"delivered_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (n *NoopInvoker) Health() error { return nil }
func (n *NoopInvoker) Close() error  { return nil }
