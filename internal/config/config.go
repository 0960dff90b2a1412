package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the task coordinator.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	OwnerID     int64
	DatabaseURL string

	BotToken        string
	TelegramAPIBase string

	SweepInterval   time.Duration
	OverdueGrace    time.Duration
	IntakeIdleLimit time.Duration
	JanitorInterval time.Duration

	// Validation policy choices the observed deployments disagree on.
	IncludeCreator              bool
	RequireRegisteredRecipients bool
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                    envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:            envOrDefault("APP_METRICS_NAMESPACE", "taskrelay"),
		AllowAnyOrigin:              false,
		DatabaseURL:                 stringsTrimSpace("DATABASE_URL"),
		BotToken:                    stringsTrimSpace("BOT_TOKEN"),
		TelegramAPIBase:             envOrDefault("TELEGRAM_API_BASE", "https://api.telegram.org"),
		ShutdownTimeout:             15 * time.Second,
		SweepInterval:               5 * time.Minute,
		OverdueGrace:                48 * time.Hour,
		IntakeIdleLimit:             30 * time.Minute,
		JanitorInterval:             time.Minute,
		IncludeCreator:              false,
		RequireRegisteredRecipients: true,
	}

	var err error
	cfg.OwnerID, err = int64FromEnv("OWNER_ID", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SweepInterval, err = durationFromEnv("SWEEP_INTERVAL", cfg.SweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.OverdueGrace, err = durationFromEnv("OVERDUE_GRACE", cfg.OverdueGrace)
	if err != nil {
		return Config{}, err
	}
	cfg.IntakeIdleLimit, err = durationFromEnv("INTAKE_IDLE_TIMEOUT", cfg.IntakeIdleLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.IncludeCreator, err = boolFromEnv("INCLUDE_CREATOR", cfg.IncludeCreator)
	if err != nil {
		return Config{}, err
	}
	cfg.RequireRegisteredRecipients, err = boolFromEnv("REQUIRE_REGISTERED_RECIPIENTS", cfg.RequireRegisteredRecipients)
	if err != nil {
		return Config{}, err
	}

	if cfg.OwnerID == 0 {
		return Config{}, fmt.Errorf("OWNER_ID is required")
	}
	if cfg.SweepInterval < 10*time.Second {
		return Config{}, fmt.Errorf("SWEEP_INTERVAL must be at least 10s")
	}
	if cfg.IntakeIdleLimit < time.Minute {
		return Config{}, fmt.Errorf("INTAKE_IDLE_TIMEOUT must be at least 1m")
	}
	if cfg.OverdueGrace <= 0 {
		return Config{}, fmt.Errorf("OVERDUE_GRACE must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func int64FromEnv(key string, fallback int64) (int64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
