package app

import (
	"time"

	"github.com/newsforge/newsforge-backend/internal/platform/envutil"
)

// Config is read once at boot and treated as immutable afterwards.
type Config struct {
	Port    string
	LogMode string

	DefaultMaxOutputTokens int
	StepTimeout            time.Duration
	RunTimeout             time.Duration

	WorkerEnabled bool

	ResponseLogRetentionDays int
}

func ConfigFromEnv() Config {
	return Config{
		Port:    envutil.String("PORT", "8080"),
		LogMode: envutil.String("LOG_MODE", "development"),

		DefaultMaxOutputTokens: envutil.Int("DEFAULT_MAX_OUTPUT_TOKENS", 2048),
		StepTimeout:            envutil.Seconds("STEP_TIMEOUT_SECONDS", 120*time.Second),
		RunTimeout:             envutil.Seconds("RUN_TIMEOUT_SECONDS", 600*time.Second),

		WorkerEnabled: envutil.Bool("WORKER_ENABLED", true),

		ResponseLogRetentionDays: envutil.Int("RESPONSE_LOG_RETENTION_DAYS", 0),
	}
}
