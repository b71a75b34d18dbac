package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/config"
)

// Run is the main entry point for the engine.
func Run() error {
	_ = godotenv.Load()

	runtime.GOMAXPROCS(runtime.NumCPU())

	logging.InitGlobalLogger()
	defer logging.MustSync()

	logging.Info("Starting campaign engine",
		logging.Int("cpus", runtime.NumCPU()))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	app, err := New(cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}

	schedCtx, cancelSched := context.WithCancel(context.Background())
	defer cancelSched()
	if err := app.Scheduler.Start(schedCtx); err != nil {
		logging.Error("Failed to start scheduler", err)
		_ = app.Close()
		return err
	}

	srv, _ := app.RunServer()
	srvErr := srv.Start()

	logging.Info("Campaign engine started",
		logging.String("port", cfg.Port),
		logging.String("database", cfg.DatabaseType),
		logging.String("invoker", cfg.ActionInvoker))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
		logging.Info("Shutting down...")
	case err := <-srvErr:
		logging.Error("HTTP server failed", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", err)
	}

	cancelSched()
	app.Scheduler.Stop()

	if err := app.Close(); err != nil {
		logging.Warn("Error during cleanup", logging.Err(err))
		return err
	}

	logging.Info("Campaign engine stopped")
	return nil
}
