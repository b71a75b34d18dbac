package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/common/logging"
)

// WebhookAlerter posts alerts as JSON to a configured webhook URL.
type WebhookAlerter struct {
	url    string
	client *http.Client
	logger logging.Logger
}

func NewWebhookAlerter(url string, logger logging.Logger) *WebhookAlerter {
	return &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.WithFields(logging.String("component", "webhook_alerter")),
	}
}

func (a *WebhookAlerter) Alert(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return errors.InternalError("failed to marshal alert", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return errors.InternalError("failed to build alert request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.ConnectionError("alert webhook request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.ConnectionError(fmt.Sprintf("alert webhook returned %d", resp.StatusCode), nil)
	}

	a.logger.Info("error alert delivered",
		logging.String("category", alert.Category),
		logging.String("service", alert.Service),
		logging.Int("count", int(alert.Count)),
	)
	return nil
}
