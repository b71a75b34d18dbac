package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"campaign-engine/internal/circuitbreaker"
	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/storage"
)

// WorkflowConfig configures the HTTP workflow invoker.
type WorkflowConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// WorkflowInvoker triggers campaign workflows over the workflow service's
// HTTP API. Calls run behind a circuit breaker so a struggling workflow
// service sheds load quickly instead of tying up execution workers.
type WorkflowInvoker struct {
	config  WorkflowConfig
	client  *http.Client
	breaker *circuitbreaker.Breaker
	logger  logging.Logger
}

type workflowRequest struct {
	CampaignID  string `json:"campaign_id"`
	OwnerID     string `json:"owner_id"`
	ExecutionID string `json:"execution_id"`
	TriggeredBy string `json:"triggered_by"`
}

func NewWorkflow(config WorkflowConfig, logger logging.Logger) (*WorkflowInvoker, error) {
	if config.BaseURL == "" {
		return nil, errors.ConfigError("workflow invoker requires a base URL")
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}

	return &WorkflowInvoker{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		breaker: circuitbreaker.New("workflow-api", circuitbreaker.WorkflowConfig, logger),
		logger:  logger.WithFields(logging.String("invoker", "workflow")),
	}, nil
}

func (w *WorkflowInvoker) Name() string { return "workflow" }

func (w *WorkflowInvoker) Run(ctx context.Context, campaign *storage.Campaign, execution *storage.Execution) (Summary, error) {
	if campaign.WorkflowID == "" {
		return nil, errors.ExecutionError("campaign has no workflow attached", nil)
	}

	var summary Summary
	err := w.breaker.Execute(ctx, func() error {
		result, callErr := w.trigger(ctx, campaign, execution)
		summary = result
		return callErr
	})
	return summary, err
}

func (w *WorkflowInvoker) trigger(ctx context.Context, campaign *storage.Campaign, execution *storage.Execution) (Summary, error) {
	body, err := json.Marshal(workflowRequest{
		CampaignID:  campaign.ID,
		OwnerID:     campaign.OwnerID,
		ExecutionID: execution.ID,
		TriggeredBy: execution.TriggeredBy,
	})
	if err != nil {
		return nil, errors.InternalError("failed to marshal workflow request", err)
	}

	url := fmt.Sprintf("%s/workflows/%s/trigger", strings.TrimRight(w.config.BaseURL, "/"), campaign.WorkflowID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.InternalError("failed to build workflow request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.config.APIKey)
	}

	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, errors.ConnectionError("workflow API request failed", err)
	}
	defer resp.Body.Close()

	// Drain a little of the body for error context; responses are small.
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.logger.Warn("workflow trigger rejected",
			logging.String("workflow_id", campaign.WorkflowID),
			logging.Int("status_code", resp.StatusCode),
		)
		return nil, errors.ExecutionError(
			fmt.Sprintf("workflow API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}

	summary := Summary{
		"invoker":     "workflow",
		"workflow_id": campaign.WorkflowID,
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}

	var parsed map[string]interface{}
	if json.Unmarshal(respBody, &parsed) == nil {
		if runID, ok := parsed["run_id"].(string); ok {
			summary["run_id"] = runID
		}
	}

	return summary, nil
}

func (w *WorkflowInvoker) Health() error {
	if w.breaker.IsOpen() {
		return errors.ConnectionError("workflow API circuit breaker is open", nil)
	}
	return nil
}

func (w *WorkflowInvoker) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
