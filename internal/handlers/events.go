package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"campaign-engine/internal/auth"
	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/storage"
	"campaign-engine/internal/triggers"
)

// eventFlagTTL bounds how long an unconsumed event flag stays pending.
const eventFlagTTL = 24 * time.Hour

type recordEventRequest struct {
	CampaignID string `json:"campaign_id"`
}

// RecordEvent handles POST /api/events/{name}. The flag is stored for
// external_event conditions to consume on their next evaluation. If the
// campaign itself is event-triggered on this event name, the run starts
// immediately instead of waiting for a poll.
func (h *Handlers) RecordEvent(w http.ResponseWriter, r *http.Request) {
	eventName := mux.Vars(r)["name"]
	ownerID := auth.OwnerID(r.Context())

	var req recordEventRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if req.CampaignID == "" {
		h.respondError(w, errors.ValidationError("campaign_id is required"))
		return
	}

	campaign, err := h.ownedCampaign(req.CampaignID, ownerID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.redis.SetEventFlag(r.Context(), campaign.ID, eventName, eventFlagTTL); err != nil {
		h.respondError(w, err)
		return
	}

	resp := map[string]interface{}{
		"event":       eventName,
		"campaign_id": campaign.ID,
		"recorded":    true,
	}

	if campaign.Status == storage.StatusActive &&
		campaign.TriggerKind == triggers.KindEvent &&
		campaign.Trigger != nil && campaign.Trigger.EventName == eventName {
		executionID, err := h.runner.Begin(r.Context(), campaign.ID, "event")
		if err != nil {
			h.respondError(w, err)
			return
		}
		resp["execution_id"] = executionID
		h.logger.Info("event execution started",
			logging.String("campaign_id", campaign.ID),
			logging.String("event", eventName),
			logging.String("execution_id", executionID))
	}

	h.respondJSON(w, http.StatusOK, resp)
}
