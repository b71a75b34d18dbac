package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterAPI attaches the authenticated API endpoints to the given router.
// Auth and logging middleware are applied by the caller.
func (h *Handlers) RegisterAPI(r *mux.Router) {
	s := r.PathPrefix("/scheduling").Subrouter()
	s.HandleFunc("/campaigns/{id}/schedule", h.ScheduleCampaign).Methods(http.MethodPost)
	s.HandleFunc("/campaigns/{id}/schedule", h.UnscheduleCampaign).Methods(http.MethodDelete)
	s.HandleFunc("/campaigns/scheduled", h.ListScheduled).Methods(http.MethodGet)
	s.HandleFunc("/campaigns/{id}/conflicts", h.CheckConflicts).Methods(http.MethodPost)
	s.HandleFunc("/campaigns/{id}/executions", h.ListExecutions).Methods(http.MethodGet)
	s.HandleFunc("/campaigns/{id}/execute", h.ExecuteCampaign).Methods(http.MethodPost)
	s.HandleFunc("/triggers/validate", h.ValidateTrigger).Methods(http.MethodPost)
	s.HandleFunc("/triggers/{kind}", h.BuildTrigger).Methods(http.MethodPost)

	r.HandleFunc("/campaigns", h.CreateCampaign).Methods(http.MethodPost)
	r.HandleFunc("/campaigns", h.ListCampaigns).Methods(http.MethodGet)
	r.HandleFunc("/campaigns/{id}", h.GetCampaign).Methods(http.MethodGet)

	r.HandleFunc("/events/{name}", h.RecordEvent).Methods(http.MethodPost)
	r.HandleFunc("/monitoring/errors", h.ErrorStats).Methods(http.MethodGet)
}
