// Package monitoring tracks engine errors in Redis minute buckets and raises
// webhook alerts when a (category, service) pair crosses its burst threshold.
package monitoring

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"campaign-engine/internal/common/logging"
)

// Error categories tracked by the engine.
const (
	ErrorCampaignExecution = "CAMPAIGN_EXECUTION_ERROR"
	ErrorScheduler         = "SCHEDULER_ERROR"
	ErrorTrigger           = "TRIGGER_ERROR"
	ErrorStorage           = "STORAGE_ERROR"
	ErrorDelivery          = "DELIVERY_ERROR"
)

const counterTTL = time.Hour

// CounterStore is the slice of the Redis client the tracker needs.
type CounterStore interface {
	IncrErrorCount(ctx context.Context, category, service string, minute time.Time, ttl time.Duration) (int64, error)
	ErrorCounts(ctx context.Context) (map[string]int64, error)
}

// Alert describes one threshold crossing sent to the alerter.
type Alert struct {
	Category   string                 `json:"category"`
	Service    string                 `json:"service"`
	Message    string                 `json:"message"`
	Count      int64                  `json:"count"`
	Threshold  int                    `json:"threshold"`
	Context    map[string]interface{} `json:"context,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Alerter delivers threshold alerts to an external channel.
type Alerter interface {
	Alert(ctx context.Context, alert Alert) error
}

// ErrorTracker counts errors per (category, service) pair and minute. When
// the count inside one minute reaches the threshold an alert fires, once per
// bucket. Tracking is fire-and-forget: it never returns an error and never
// blocks scheduling or execution on alert delivery.
type ErrorTracker struct {
	counters  CounterStore
	alerter   Alerter
	threshold int
	clock     clockwork.Clock
	logger    logging.Logger
}

func NewErrorTracker(counters CounterStore, alerter Alerter, threshold int, clock clockwork.Clock, logger logging.Logger) *ErrorTracker {
	if threshold <= 0 {
		threshold = 10
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if alerter == nil {
		alerter = NoopAlerter{}
	}
	return &ErrorTracker{
		counters:  counters,
		alerter:   alerter,
		threshold: threshold,
		clock:     clock,
		logger:    logger.WithFields(logging.String("component", "error_tracker")),
	}
}

// Track records one error occurrence. Counter failures degrade to logging
// only.
func (t *ErrorTracker) Track(ctx context.Context, category, service, message string, errCtx map[string]interface{}) {
	fields := []logging.Field{
		logging.String("category", category),
		logging.String("service", service),
		logging.String("message", message),
	}
	for k, v := range errCtx {
		fields = append(fields, logging.Field{Key: k, Value: v})
	}
	t.logger.Error("error tracked", nil, fields...)

	if t.counters == nil {
		return
	}

	now := t.clock.Now()
	count, err := t.counters.IncrErrorCount(ctx, category, service, now, counterTTL)
	if err != nil {
		t.logger.Warn("failed to increment error counter",
			logging.String("category", category),
			logging.Err(err))
		return
	}

	if count == int64(t.threshold) {
		alert := Alert{
			Category:   category,
			Service:    service,
			Message:    message,
			Count:      count,
			Threshold:  t.threshold,
			Context:    errCtx,
			OccurredAt: now.UTC(),
		}
		if err := t.alerter.Alert(ctx, alert); err != nil {
			t.logger.Error("failed to deliver error alert", err,
				logging.String("category", category),
				logging.String("service", service))
		}
	}
}

// Stats reports trailing-hour error totals keyed "category:service". The
// window follows from the counter TTL.
func (t *ErrorTracker) Stats(ctx context.Context) (map[string]int64, error) {
	if t.counters == nil {
		return map[string]int64{}, nil
	}
	return t.counters.ErrorCounts(ctx)
}

// Threshold reports the configured alert threshold.
func (t *ErrorTracker) Threshold() int { return t.threshold }

// NoopAlerter drops alerts. Used when no alert webhook is configured.
type NoopAlerter struct{}

func (NoopAlerter) Alert(context.Context, Alert) error { return nil }
