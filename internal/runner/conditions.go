package runner

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/storage"
	"campaign-engine/internal/triggers"
)

// MetricsProvider reads campaign metrics written by analytics ingestion.
type MetricsProvider interface {
	Metric(ctx context.Context, campaignID, metric string) (float64, bool, error)
}

// EventFlags reads and consumes event flags set by external systems.
type EventFlags interface {
	CheckEventFlag(ctx context.Context, campaignID, eventName string) (bool, error)
	ClearEventFlag(ctx context.Context, campaignID, eventName string) error
}

// ConditionEvaluator decides whether a condition-triggered campaign may run.
// All clauses must hold; a missing metric or unset flag makes its clause
// false rather than an error.
type ConditionEvaluator struct {
	metrics MetricsProvider
	events  EventFlags
	clock   clockwork.Clock
	logger  logging.Logger
}

func NewConditionEvaluator(metrics MetricsProvider, events EventFlags, clock clockwork.Clock, logger logging.Logger) *ConditionEvaluator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ConditionEvaluator{
		metrics: metrics,
		events:  events,
		clock:   clock,
		logger:  logger.WithFields(logging.String("component", "condition_evaluator")),
	}
}

func (e *ConditionEvaluator) Evaluate(ctx context.Context, campaign *storage.Campaign) (bool, error) {
	if campaign.Trigger == nil || len(campaign.Trigger.Conditions) == 0 {
		return false, errors.ExecutionError("condition campaign has no conditions", nil)
	}

	for i, cond := range campaign.Trigger.Conditions {
		ok, err := e.evaluateClause(ctx, campaign.ID, cond)
		if err != nil {
			return false, err
		}
		if !ok {
			e.logger.Debug("condition not met",
				logging.String("campaign_id", campaign.ID),
				logging.Int("clause", i),
				logging.String("type", cond.Type),
			)
			return false, nil
		}
	}
	return true, nil
}

func (e *ConditionEvaluator) evaluateClause(ctx context.Context, campaignID string, cond triggers.Condition) (bool, error) {
	switch cond.Type {
	case triggers.ConditionMetricThreshold:
		return e.evaluateMetric(ctx, campaignID, cond)
	case triggers.ConditionTimeWindow:
		return e.evaluateTimeWindow(cond), nil
	case triggers.ConditionExternalEvent:
		return e.evaluateEvent(ctx, campaignID, cond)
	default:
		return false, errors.ExecutionError(fmt.Sprintf("unknown condition type %q", cond.Type), nil)
	}
}

func (e *ConditionEvaluator) evaluateMetric(ctx context.Context, campaignID string, cond triggers.Condition) (bool, error) {
	if e.metrics == nil {
		return false, errors.ConfigError("metric conditions require a metrics provider")
	}

	value, found, err := e.metrics.Metric(ctx, campaignID, cond.Metric)
	if err != nil {
		return false, errors.ExecutionError("failed to read campaign metric", err)
	}
	if !found {
		return false, nil
	}

	switch cond.Operator {
	case triggers.OperatorGTE:
		return value >= cond.Threshold, nil
	case triggers.OperatorLTE:
		return value <= cond.Threshold, nil
	case triggers.OperatorEQ:
		return value == cond.Threshold, nil
	default:
		return false, errors.ExecutionError(fmt.Sprintf("unknown operator %q", cond.Operator), nil)
	}
}

// evaluateTimeWindow checks the current UTC hour against [start, end).
// A start hour greater than the end hour means an overnight window.
func (e *ConditionEvaluator) evaluateTimeWindow(cond triggers.Condition) bool {
	hour := e.clock.Now().UTC().Hour()
	if cond.StartHour == cond.EndHour {
		return true
	}
	if cond.StartHour < cond.EndHour {
		return hour >= cond.StartHour && hour < cond.EndHour
	}
	return hour >= cond.StartHour || hour < cond.EndHour
}

// evaluateEvent consumes the flag on a hit so one external event releases
// exactly one run.
func (e *ConditionEvaluator) evaluateEvent(ctx context.Context, campaignID string, cond triggers.Condition) (bool, error) {
	if e.events == nil {
		return false, errors.ConfigError("event conditions require an event flag store")
	}

	set, err := e.events.CheckEventFlag(ctx, campaignID, cond.EventName)
	if err != nil {
		return false, errors.ExecutionError("failed to check event flag", err)
	}
	if !set {
		return false, nil
	}

	if err := e.events.ClearEventFlag(ctx, campaignID, cond.EventName); err != nil {
		e.logger.Warn("failed to clear consumed event flag",
			logging.String("campaign_id", campaignID),
			logging.String("event", cond.EventName),
			logging.Err(err))
	}
	return true, nil
}
