// Package invoker delivers campaign actions to external targets. Targets are
// either an HTTP workflow API or an AMQP queue consumed by downstream action
// workers.
package invoker

import (
	"context"
	"fmt"

	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/config"
	"campaign-engine/internal/storage"
)

// Summary carries target-specific details about a completed delivery,
// persisted on the execution record.
type Summary map[string]interface{}

// Invoker delivers one campaign occurrence to its action target.
type Invoker interface {
	// Name identifies the invoker kind in logs and execution records.
	Name() string

	// Run delivers the action for one execution. The returned summary is
	// stored on the execution; a non-nil error marks it failed.
	Run(ctx context.Context, campaign *storage.Campaign, execution *storage.Execution) (Summary, error)

	Health() error
	Close() error
}

// New builds the invoker selected by ACTION_INVOKER.
func New(cfg *config.Config, logger logging.Logger) (Invoker, error) {
	switch cfg.ActionInvoker {
	case "workflow":
		return NewWorkflow(WorkflowConfig{
			BaseURL: cfg.WorkflowBaseURL,
			APIKey:  cfg.WorkflowAPIKey,
			Timeout: cfg.ActionTimeout,
		}, logger)
	case "queue":
		return NewQueue(QueueConfig{
			URL:   cfg.AMQPURL,
			Queue: cfg.ActionQueue,
		}, logger)
	case "noop":
		return NewNoop(logger), nil
	default:
		return nil, fmt.Errorf("unknown action invoker %q", cfg.ActionInvoker)
	}
}
