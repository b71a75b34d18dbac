package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"campaign-engine/internal/auth"
	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/storage"
	"campaign-engine/internal/triggers"
)

type createCampaignRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	TriggerKind triggers.Kind    `json:"trigger_type"`
	Trigger     *triggers.Config `json:"trigger_config"`
	WorkflowID  string           `json:"workflow_id"`
}

// CreateCampaign handles POST /api/campaigns. Campaigns start as drafts;
// scheduling them is a separate, explicit step.
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	var req createCampaignRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		h.respondError(w, errors.ValidationError("name is required"))
		return
	}
	if req.TriggerKind == "" && req.Trigger != nil {
		req.TriggerKind = req.Trigger.Type
	}
	if req.TriggerKind != "" && !req.TriggerKind.Known() {
		h.respondError(w, errors.ValidationError("unknown trigger type: "+string(req.TriggerKind)))
		return
	}
	if req.Trigger != nil {
		if errs := triggers.Validate(req.Trigger); len(errs) > 0 {
			h.respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":  "invalid trigger configuration",
				"errors": errs,
			})
			return
		}
	}

	campaign := &storage.Campaign{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		Status:      storage.StatusDraft,
		TriggerKind: req.TriggerKind,
		Trigger:     req.Trigger,
		WorkflowID:  req.WorkflowID,
	}
	if err := h.storage.CreateCampaign(campaign); err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, campaign)
}

// ListCampaigns handles GET /api/campaigns.
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	campaigns, err := h.storage.ListCampaigns(ownerID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaigns": campaigns,
		"count":     len(campaigns),
	})
}

// GetCampaign handles GET /api/campaigns/{id}.
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := mux.Vars(r)["id"]
	ownerID := auth.OwnerID(r.Context())

	campaign, err := h.ownedCampaign(campaignID, ownerID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, campaign)
}
