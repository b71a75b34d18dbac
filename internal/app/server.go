package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"campaign-engine/internal/handlers"
	"campaign-engine/internal/server"
)

// RunServer builds the handler set and the HTTP server around it.
func (app *App) RunServer() (*server.Server, http.Handler) {
	h := handlers.New(
		app.Storage,
		app.Scheduler,
		app.Runner,
		app.Checker,
		app.Tracker,
		app.Redis,
		app.Config,
		app.Logger,
	)

	router := mux.NewRouter()
	SetupRoutes(router, h, app.Auth.RequireAuth)

	return server.New(router, app.Config.Port), router
}
