// Package app wires the engine together: configuration, storage, Redis,
// monitoring, the action invoker, the runner and the scheduler.
package app

import (
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"

	"campaign-engine/internal/auth"
	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/config"
	"campaign-engine/internal/conflicts"
	"campaign-engine/internal/invoker"
	"campaign-engine/internal/monitoring"
	"campaign-engine/internal/redis"
	"campaign-engine/internal/runner"
	"campaign-engine/internal/scheduler"
	"campaign-engine/internal/storage"

	// Storage backends register themselves with the factory.
	_ "campaign-engine/internal/storage/postgres"
	_ "campaign-engine/internal/storage/sqlite"
)

// App holds all the application dependencies.
type App struct {
	Config    *config.Config
	Storage   storage.Storage
	Redis     *redis.Client
	Auth      *auth.Auth
	Tracker   *monitoring.ErrorTracker
	Invoker   invoker.Invoker
	Runner    *runner.Runner
	Scheduler *scheduler.Scheduler
	Checker   *conflicts.Checker
	Logger    logging.Logger
}

// New creates the application with all dependencies wired in dependency
// order. Redis is required: event flags, campaign metrics and error counters
// all live there.
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
	}

	store, err := storage.New(cfg)
	if err != nil {
		return nil, err
	}
	app.Storage = store

	redisClient, err := redis.NewClient(redisConfig(cfg))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	app.Redis = redisClient

	app.Auth = auth.New(cfg.JWTSecret, app.Logger)

	var alerter monitoring.Alerter = monitoring.NoopAlerter{}
	if cfg.AlertWebhookURL != "" {
		alerter = monitoring.NewWebhookAlerter(cfg.AlertWebhookURL, app.Logger)
	}
	app.Tracker = monitoring.NewErrorTracker(
		redisClient, alerter, cfg.CriticalErrorThreshold, clockwork.NewRealClock(), app.Logger)

	inv, err := invoker.New(cfg, app.Logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Invoker = inv

	evaluator := runner.NewConditionEvaluator(redisClient, redisClient, nil, app.Logger)
	app.Runner = runner.New(store, inv, evaluator, app.Tracker, clockwork.NewRealClock(), app.Logger, runner.Options{
		ActionTimeout: cfg.ActionTimeout,
		MaxRetries:    cfg.ExecutionMaxRetries,
		RetryDelay:    cfg.ExecutionRetryDelay,
	})

	app.Scheduler = scheduler.New(store, app.Runner, clockwork.NewRealClock(), app.Logger, scheduler.Options{
		Workers:               cfg.SchedulerWorkers,
		MisfireGrace:          cfg.MisfireGrace,
		ConditionPollInterval: cfg.ConditionPollInterval,
	})

	app.Checker = conflicts.New(store, cfg.TierLimits, app.Logger)

	return app, nil
}

func redisConfig(cfg *config.Config) *redis.Config {
	db, _ := strconv.Atoi(cfg.RedisDB)
	poolSize, _ := strconv.Atoi(cfg.RedisPoolSize)
	return &redis.Config{
		Address:  cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       db,
		PoolSize: poolSize,
	}
}

// Close releases all resources, collecting every failure.
func (app *App) Close() error {
	var result *multierror.Error

	if app.Invoker != nil {
		if err := app.Invoker.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if app.Storage != nil {
		if err := app.Storage.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
