// Package handlers implements the HTTP API: campaign scheduling, trigger
// validation and builders, conflict checks, execution history, manual runs,
// event flags and monitoring.
package handlers

import (
	"encoding/json"
	"net/http"

	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/config"
	"campaign-engine/internal/conflicts"
	"campaign-engine/internal/monitoring"
	"campaign-engine/internal/redis"
	"campaign-engine/internal/runner"
	"campaign-engine/internal/scheduler"
	"campaign-engine/internal/storage"
)

// Handlers holds the dependencies shared by all HTTP endpoints.
type Handlers struct {
	storage   storage.Storage
	scheduler *scheduler.Scheduler
	runner    *runner.Runner
	checker   *conflicts.Checker
	tracker   *monitoring.ErrorTracker
	redis     *redis.Client
	config    *config.Config
	logger    logging.Logger
}

func New(
	store storage.Storage,
	sched *scheduler.Scheduler,
	run *runner.Runner,
	checker *conflicts.Checker,
	tracker *monitoring.ErrorTracker,
	redisClient *redis.Client,
	cfg *config.Config,
	logger logging.Logger,
) *Handlers {
	return &Handlers{
		storage:   store,
		scheduler: sched,
		runner:    run,
		checker:   checker,
		tracker:   tracker,
		redis:     redisClient,
		config:    cfg,
		logger:    logger.WithFields(logging.String("component", "handlers")),
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			h.logger.Error("failed to encode response", err)
		}
	}
}

// respondError maps application errors onto HTTP statuses and a JSON error
// body. Unknown error types become 500s with a generic message so internal
// details never leak to clients.
func (h *Handlers) respondError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if e, ok := err.(*errors.AppError); ok {
		appErr = e
	} else {
		appErr = errors.InternalError("internal server error", err)
	}

	status := appErr.HTTPStatus()
	msg := appErr.Message
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", err)
		msg = "internal server error"
	}
	h.respondJSON(w, status, map[string]string{"error": msg})
}

// ownedCampaign loads a campaign and verifies the requester owns it. A
// mismatch is indistinguishable from a missing campaign on purpose.
func (h *Handlers) ownedCampaign(id, ownerID string) (*storage.Campaign, error) {
	campaign, err := h.storage.GetCampaign(id)
	if err != nil {
		return nil, err
	}
	if campaign.OwnerID != ownerID {
		return nil, errors.NotFoundError("campaign")
	}
	return campaign, nil
}

func decodeBody(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return errors.ValidationError("invalid request body: " + err.Error())
	}
	return nil
}
