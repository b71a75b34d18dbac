package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"campaign-engine/internal/handlers"
	"campaign-engine/internal/middleware"
)

// SetupRoutes builds the HTTP routing table. Request id and logging
// middleware wrap everything; JWT auth guards the /api subtree only, so
// health probes stay unauthenticated.
func SetupRoutes(router *mux.Router, h *handlers.Handlers, requireAuth func(http.Handler) http.Handler) {
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware)

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(requireAuth)
	h.RegisterAPI(api)
}
