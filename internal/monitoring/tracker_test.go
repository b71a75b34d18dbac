package monitoring_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/monitoring"
	"campaign-engine/internal/redis"
)

type capturingAlerter struct {
	mu     sync.Mutex
	alerts []monitoring.Alert
}

func (c *capturingAlerter) Alert(_ context.Context, alert monitoring.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, alert)
	return nil
}

func (c *capturingAlerter) all() []monitoring.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]monitoring.Alert(nil), c.alerts...)
}

func setupTracker(t *testing.T, threshold int, alerter monitoring.Alerter) (*monitoring.ErrorTracker, clockwork.FakeClock, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return monitoring.NewErrorTracker(client, alerter, threshold, clock, logging.NewDefaultLogger()), clock, mr
}

func TestTrackCountsPerPair(t *testing.T) {
	tracker, _, _ := setupTracker(t, 100, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tracker.Track(ctx, monitoring.ErrorCampaignExecution, "runner", "workflow call failed", map[string]interface{}{
			"campaign_id": "camp-1",
		})
	}
	tracker.Track(ctx, monitoring.ErrorScheduler, "scheduler", "job table unreachable", nil)
	tracker.Track(ctx, monitoring.ErrorCampaignExecution, "handlers", "manual run failed", nil)

	stats, err := tracker.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats["CAMPAIGN_EXECUTION_ERROR:runner"])
	assert.Equal(t, int64(1), stats["CAMPAIGN_EXECUTION_ERROR:handlers"])
	assert.Equal(t, int64(1), stats["SCHEDULER_ERROR:scheduler"])
}

func TestAlertFiresOnceAtThreshold(t *testing.T) {
	alerter := &capturingAlerter{}
	tracker, _, _ := setupTracker(t, 3, alerter)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		tracker.Track(ctx, monitoring.ErrorCampaignExecution, "runner", "workflow call failed", nil)
	}

	alerts := alerter.all()
	require.Len(t, alerts, 1, "alert should fire exactly once per minute bucket")
	assert.Equal(t, monitoring.ErrorCampaignExecution, alerts[0].Category)
	assert.Equal(t, "runner", alerts[0].Service)
	assert.Equal(t, int64(3), alerts[0].Count)
	assert.Equal(t, 3, alerts[0].Threshold)
}

func TestAlertFiresAgainInNewMinute(t *testing.T) {
	alerter := &capturingAlerter{}
	tracker, clock, _ := setupTracker(t, 2, alerter)
	ctx := context.Background()

	tracker.Track(ctx, monitoring.ErrorScheduler, "scheduler", "tick failed", nil)
	tracker.Track(ctx, monitoring.ErrorScheduler, "scheduler", "tick failed", nil)

	clock.Advance(time.Minute)

	tracker.Track(ctx, monitoring.ErrorScheduler, "scheduler", "tick failed", nil)
	tracker.Track(ctx, monitoring.ErrorScheduler, "scheduler", "tick failed", nil)

	assert.Len(t, alerter.all(), 2)
}

func TestStatsExcludesExpiredBuckets(t *testing.T) {
	tracker, _, mr := setupTracker(t, 100, nil)
	ctx := context.Background()

	tracker.Track(ctx, monitoring.ErrorStorage, "storage", "write failed", nil)
	mr.FastForward(2 * time.Hour)
	tracker.Track(ctx, monitoring.ErrorStorage, "storage", "write failed", nil)

	stats, err := tracker.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["STORAGE_ERROR:storage"])
}

func TestTrackWithoutCountersDegradesToLogging(t *testing.T) {
	tracker := monitoring.NewErrorTracker(nil, nil, 5, nil, logging.NewDefaultLogger())

	tracker.Track(context.Background(), monitoring.ErrorTrigger, "triggers", "bad cron expression", nil)

	stats, err := tracker.Stats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestWebhookAlerter(t *testing.T) {
	var got monitoring.Alert
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	alerter := monitoring.NewWebhookAlerter(server.URL, logging.NewDefaultLogger())
	err := alerter.Alert(context.Background(), monitoring.Alert{
		Category:  monitoring.ErrorCampaignExecution,
		Service:   "runner",
		Message:   "workflow call failed",
		Count:     10,
		Threshold: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, monitoring.ErrorCampaignExecution, got.Category)
	assert.Equal(t, int64(10), got.Count)
}

func TestWebhookAlerterServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	alerter := monitoring.NewWebhookAlerter(server.URL, logging.NewDefaultLogger())
	err := alerter.Alert(context.Background(), monitoring.Alert{Category: monitoring.ErrorScheduler})
	assert.Error(t, err)
}
