package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"campaign-engine/internal/auth"
	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/scheduler"
	"campaign-engine/internal/storage"
	"campaign-engine/internal/triggers"
)

type scheduleRequest struct {
	Trigger *triggers.Config `json:"trigger_config"`
	Force   bool             `json:"force"`
}

// ScheduleCampaign handles POST /api/scheduling/campaigns/{id}/schedule.
// It validates the trigger, checks conflicts unless force is set, persists
// the trigger on the campaign, activates it and registers the job.
func (h *Handlers) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := mux.Vars(r)["id"]
	ownerID := auth.OwnerID(r.Context())

	campaign, err := h.ownedCampaign(campaignID, ownerID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	var req scheduleRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			h.respondError(w, err)
			return
		}
	}

	cfg := req.Trigger
	if cfg == nil {
		cfg = campaign.Trigger
	}
	if cfg == nil {
		h.respondError(w, errors.ValidationError("campaign has no trigger configuration"))
		return
	}

	if errs := triggers.Validate(cfg); len(errs) > 0 {
		h.respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "invalid trigger configuration",
			"errors": errs,
		})
		return
	}

	if !req.Force {
		found, err := h.checker.Check(campaignID, cfg)
		if err != nil {
			h.respondError(w, err)
			return
		}
		if len(found) > 0 {
			h.respondJSON(w, http.StatusConflict, map[string]interface{}{
				"has_conflicts": true,
				"conflicts":     found,
			})
			return
		}
	}

	previous := campaign.Status
	campaign.TriggerKind = cfg.Type
	campaign.Trigger = cfg
	if err := h.storage.UpdateCampaignTrigger(campaign); err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.storage.UpdateCampaignStatus(campaignID, storage.StatusActive); err != nil {
		h.respondError(w, err)
		return
	}
	campaign.Status = storage.StatusActive

	jobID, err := h.scheduler.Schedule(campaign, cfg)
	if err != nil {
		if revertErr := h.storage.UpdateCampaignStatus(campaignID, previous); revertErr != nil {
			h.logger.Error("failed to revert campaign status", revertErr,
				logging.String("campaign_id", campaignID))
		}
		h.respondError(w, err)
		return
	}

	resp := map[string]interface{}{
		"campaign_id": campaignID,
		"status":      string(storage.StatusActive),
		"trigger":     cfg.Describe(),
	}
	if jobID != "" {
		resp["job_id"] = jobID
		if next, ok := h.scheduler.NextFire(campaignID); ok {
			resp["next_run_time"] = next.UTC().Format(time.RFC3339)
		}
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// UnscheduleCampaign handles DELETE /api/scheduling/campaigns/{id}/schedule.
// Active campaigns are paused so a fire cannot slip through between the job
// removal and the status change being observed.
func (h *Handlers) UnscheduleCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := mux.Vars(r)["id"]
	ownerID := auth.OwnerID(r.Context())

	campaign, err := h.ownedCampaign(campaignID, ownerID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.scheduler.Unschedule(campaignID); err != nil {
		h.respondError(w, err)
		return
	}

	status := campaign.Status
	if campaign.Status == storage.StatusActive && campaign.TriggerKind != triggers.KindManual {
		if err := h.storage.UpdateCampaignStatus(campaignID, storage.StatusPaused); err != nil {
			h.respondError(w, err)
			return
		}
		status = storage.StatusPaused
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"campaign_id": campaignID,
		"status":      string(status),
	})
}

// ListScheduled handles GET /api/scheduling/campaigns/scheduled, returning
// the requester's registered jobs ordered by next fire time.
func (h *Handlers) ListScheduled(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	owned := make([]scheduler.ScheduledJob, 0)
	for _, j := range h.scheduler.ListScheduled() {
		campaign, err := h.storage.GetCampaign(j.CampaignID)
		if err != nil {
			if errors.IsType(err, errors.ErrTypeNotFound) {
				continue
			}
			h.respondError(w, err)
			return
		}
		if campaign.OwnerID == ownerID {
			owned = append(owned, j)
		}
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  owned,
		"count": len(owned),
	})
}

// ValidateTrigger handles POST /api/scheduling/triggers/validate.
func (h *Handlers) ValidateTrigger(w http.ResponseWriter, r *http.Request) {
	var cfg triggers.Config
	if err := decodeBody(r, &cfg); err != nil {
		h.respondError(w, err)
		return
	}

	errs := triggers.Validate(&cfg)
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":  len(errs) == 0,
		"errors": errs,
	})
}

type buildTriggerRequest struct {
	RunAt          string               `json:"run_at"`
	IntervalType   string               `json:"interval_type"`
	IntervalValue  int                  `json:"interval_value"`
	CronExpression string               `json:"cron_expression"`
	StartDate      string               `json:"start_date"`
	EndDate        string               `json:"end_date"`
	EventName      string               `json:"event_name"`
	WebhookURL     string               `json:"webhook_url"`
	Conditions     []triggers.Condition `json:"conditions"`
}

// BuildTrigger handles POST /api/scheduling/triggers/{kind}: builder helpers
// that produce a validated trigger configuration from plain parameters.
func (h *Handlers) BuildTrigger(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]

	var req buildTriggerRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			h.respondError(w, err)
			return
		}
	}

	cfg, err := buildTrigger(kind, &req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if errs := triggers.Validate(cfg); len(errs) > 0 {
		h.respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "invalid trigger parameters",
			"errors": errs,
		})
		return
	}

	h.respondJSON(w, http.StatusCreated, cfg)
}

func buildTrigger(kind string, req *buildTriggerRequest) (*triggers.Config, error) {
	switch kind {
	case "manual":
		return triggers.NewManual(), nil
	case "scheduled":
		runAt, err := time.Parse(time.RFC3339, req.RunAt)
		if err != nil {
			return nil, errors.ValidationError("run_at must be an RFC 3339 timestamp")
		}
		return triggers.NewScheduled(runAt), nil
	case "recurring":
		start, end, err := parseBounds(req.StartDate, req.EndDate)
		if err != nil {
			return nil, err
		}
		return triggers.NewRecurring(req.IntervalType, req.IntervalValue, start, end), nil
	case "cron":
		return triggers.NewCron(req.CronExpression), nil
	case "event":
		return triggers.NewEvent(req.EventName, req.WebhookURL), nil
	case "conditional":
		return triggers.NewConditional(req.Conditions), nil
	default:
		return nil, errors.ValidationError("unknown trigger kind: " + kind)
	}
}

func parseBounds(startDate, endDate string) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if startDate != "" {
		t, err := time.Parse(time.RFC3339, startDate)
		if err != nil {
			return nil, nil, errors.ValidationError("start_date must be an RFC 3339 timestamp")
		}
		start = &t
	}
	if endDate != "" {
		t, err := time.Parse(time.RFC3339, endDate)
		if err != nil {
			return nil, nil, errors.ValidationError("end_date must be an RFC 3339 timestamp")
		}
		end = &t
	}
	return start, end, nil
}

type conflictRequest struct {
	Trigger *triggers.Config `json:"trigger_config"`
}

// CheckConflicts handles POST /api/scheduling/campaigns/{id}/conflicts.
func (h *Handlers) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	campaignID := mux.Vars(r)["id"]
	ownerID := auth.OwnerID(r.Context())

	campaign, err := h.ownedCampaign(campaignID, ownerID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	var req conflictRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			h.respondError(w, err)
			return
		}
	}
	cfg := req.Trigger
	if cfg == nil {
		cfg = campaign.Trigger
	}

	found, err := h.checker.Check(campaignID, cfg)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"has_conflicts": len(found) > 0,
		"conflicts":     found,
	})
}

const defaultExecutionLimit = 50

// ListExecutions handles GET /api/scheduling/campaigns/{id}/executions.
func (h *Handlers) ListExecutions(w http.ResponseWriter, r *http.Request) {
	campaignID := mux.Vars(r)["id"]
	ownerID := auth.OwnerID(r.Context())

	if _, err := h.ownedCampaign(campaignID, ownerID); err != nil {
		h.respondError(w, err)
		return
	}

	limit := defaultExecutionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.respondError(w, errors.ValidationError("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	executions, err := h.storage.ListExecutions(campaignID, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"executions": executions,
		"count":      len(executions),
	})
}

// ExecuteCampaign handles POST /api/scheduling/campaigns/{id}/execute. The
// execution record is created before responding; the run itself finishes in
// the background and is observable through the executions endpoint.
func (h *Handlers) ExecuteCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := mux.Vars(r)["id"]
	ownerID := auth.OwnerID(r.Context())

	if _, err := h.ownedCampaign(campaignID, ownerID); err != nil {
		h.respondError(w, err)
		return
	}

	executionID, err := h.runner.Begin(r.Context(), campaignID, "manual")
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.logger.Info("manual execution started",
		logging.String("campaign_id", campaignID),
		logging.String("execution_id", executionID))

	h.respondJSON(w, http.StatusCreated, map[string]string{
		"execution_id": executionID,
		"campaign_id":  campaignID,
		"status":       string(storage.ExecutionPending),
	})
}
