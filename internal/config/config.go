// Package config provides configuration management for the campaign engine.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration so the process starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Database Configuration:
//   - DATABASE_TYPE: "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./campaign_engine.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER,
//     POSTGRES_PASSWORD, POSTGRES_SSL_MODE
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD, REDIS_DB, REDIS_POOL_SIZE
//
// Security:
//   - JWT_SECRET: JWT signing secret (required, minimum 32 characters)
//
// Scheduler:
//   - SCHEDULER_WORKERS: execution worker pool size (default: 4)
//   - MISFIRE_GRACE: max allowed fire delay before a run is skipped (default: 30s)
//   - CONDITION_POLL_INTERVAL: polling cadence for condition triggers (default: 5m)
//
// Execution:
//   - ACTION_INVOKER: "workflow", "queue" or "noop" (default: workflow)
//   - WORKFLOW_BASE_URL, WORKFLOW_API_KEY: workflow engine the campaigns call
//   - AMQP_URL, ACTION_QUEUE: queue invoker settings (default queue: campaign-actions)
//   - ACTION_TIMEOUT: per-run timeout for campaign actions (default: 2m)
//   - EXECUTION_MAX_RETRIES, EXECUTION_RETRY_DELAY: retry policy for failed
//     runs (default: 0 retries, i.e. disabled)
//
// Monitoring:
//   - CRITICAL_ERROR_THRESHOLD: per-minute error count that triggers an alert (default: 10)
//   - ALERT_WEBHOOK_URL: webhook that receives alert payloads
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"os"
)

// Config holds all configuration values for the campaign engine.
// Load it with Load() and check it with Validate() before use.
type Config struct {
	// Application settings
	Port     string
	LogLevel string

	// Database configuration
	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis configuration
	RedisAddress  string
	RedisPassword string
	RedisDB       string
	RedisPoolSize string

	// JWT authentication
	JWTSecret string

	// Scheduler settings
	SchedulerWorkers      int
	MisfireGrace          time.Duration
	ConditionPollInterval time.Duration

	// Execution settings
	ActionInvoker       string
	WorkflowBaseURL     string
	WorkflowAPIKey      string
	AMQPURL             string
	ActionQueue         string
	ActionTimeout       time.Duration
	ExecutionMaxRetries int
	ExecutionRetryDelay time.Duration

	// Monitoring settings
	CriticalErrorThreshold int
	AlertWebhookURL        string

	// TierLimits maps subscription tier names to the number of campaigns a
	// subscriber may keep active at once. -1 means unlimited.
	TierLimits map[string]int
}

// Load creates a new Config instance with values loaded from environment
// variables, falling back to defaults where unset. Call Validate() before use.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./campaign_engine.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "campaign_engine"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		SchedulerWorkers:      getIntEnv("SCHEDULER_WORKERS", 4),
		MisfireGrace:          getDurationEnv("MISFIRE_GRACE", 30*time.Second),
		ConditionPollInterval: getDurationEnv("CONDITION_POLL_INTERVAL", 5*time.Minute),

		ActionInvoker:       getEnv("ACTION_INVOKER", "workflow"),
		WorkflowBaseURL:     getEnv("WORKFLOW_BASE_URL", ""),
		WorkflowAPIKey:      getEnv("WORKFLOW_API_KEY", ""),
		AMQPURL:             getEnv("AMQP_URL", ""),
		ActionQueue:         getEnv("ACTION_QUEUE", "campaign-actions"),
		ActionTimeout:       getDurationEnv("ACTION_TIMEOUT", 2*time.Minute),
		ExecutionMaxRetries: getIntEnv("EXECUTION_MAX_RETRIES", 0),
		ExecutionRetryDelay: getDurationEnv("EXECUTION_RETRY_DELAY", time.Minute),

		CriticalErrorThreshold: getIntEnv("CRITICAL_ERROR_THRESHOLD", 10),
		AlertWebhookURL:        getEnv("ALERT_WEBHOOK_URL", ""),

		TierLimits: loadTierLimits(),
	}
}

// loadTierLimits parses PRICING_TIER_LIMITS ("free=1,starter=5,...") or
// returns the default tier table.
func loadTierLimits() map[string]int {
	limits := map[string]int{
		"free":         1,
		"starter":      5,
		"professional": 20,
		"enterprise":   -1,
	}

	raw := os.Getenv("PRICING_TIER_LIMITS")
	if raw == "" {
		return limits
	}

	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if limit, err := strconv.Atoi(parts[1]); err == nil {
			limits[parts[0]] = limit
		}
	}

	return limits
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate performs validation on the configuration to ensure all required
// fields are present and all values are valid. The application should call
// this after loading configuration and before starting.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch c.DatabaseType {
	case "sqlite", "postgres", "postgresql":
		// Valid database types
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	if c.DatabaseType == "postgres" || c.DatabaseType == "postgresql" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if c.SchedulerWorkers < 1 {
		return fmt.Errorf("SCHEDULER_WORKERS must be a positive number")
	}

	if c.MisfireGrace <= 0 {
		return fmt.Errorf("MISFIRE_GRACE must be a positive duration")
	}

	if c.ConditionPollInterval <= 0 {
		return fmt.Errorf("CONDITION_POLL_INTERVAL must be a positive duration")
	}

	switch c.ActionInvoker {
	case "workflow", "queue", "noop":
		// Valid invoker types
	default:
		return fmt.Errorf("ACTION_INVOKER must be 'workflow', 'queue' or 'noop'")
	}

	if c.ActionInvoker == "workflow" && c.WorkflowBaseURL == "" {
		return fmt.Errorf("WORKFLOW_BASE_URL is required when using the workflow invoker")
	}

	if c.ActionInvoker == "queue" && c.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL is required when using the queue invoker")
	}

	if c.ExecutionMaxRetries < 0 {
		return fmt.Errorf("EXECUTION_MAX_RETRIES must not be negative")
	}

	if c.CriticalErrorThreshold < 1 {
		return fmt.Errorf("CRITICAL_ERROR_THRESHOLD must be a positive number")
	}

	for tier, limit := range c.TierLimits {
		if limit < -1 {
			return fmt.Errorf("tier %q has invalid campaign limit %d", tier, limit)
		}
	}

	return nil
}
