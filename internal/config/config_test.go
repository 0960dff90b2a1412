package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("OWNER_ID", "1234")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OwnerID != 1234 {
		t.Fatalf("OwnerID = %d, want 1234", cfg.OwnerID)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Fatalf("SweepInterval = %v, want 5m", cfg.SweepInterval)
	}
	if cfg.IncludeCreator {
		t.Fatalf("IncludeCreator default = true, want false")
	}
	if !cfg.RequireRegisteredRecipients {
		t.Fatalf("RequireRegisteredRecipients default = false, want true")
	}
}

func TestLoadRequiresOwnerID(t *testing.T) {
	setCoreEnvEmpty(t)

	if _, err := Load(); err == nil {
		t.Fatalf("Load() without OWNER_ID succeeded, want error")
	}
}

func TestLoadRejectsTightSweepInterval(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("OWNER_ID", "1234")
	t.Setenv("SWEEP_INTERVAL", "1s")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() with 1s sweep interval succeeded, want error")
	}
}

func TestLoadParsesExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("OWNER_ID", "1234")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("INCLUDE_CREATOR", "true")
	t.Setenv("INTAKE_IDLE_TIMEOUT", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Fatalf("SweepInterval = %v, want 30s", cfg.SweepInterval)
	}
	if !cfg.IncludeCreator {
		t.Fatalf("IncludeCreator = false, want true")
	}
	if cfg.IntakeIdleLimit != 5*time.Minute {
		t.Fatalf("IntakeIdleLimit = %v, want 5m", cfg.IntakeIdleLimit)
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("OWNER_ID", "1234")
	t.Setenv("SWEEP_INTERVAL", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() with malformed duration succeeded, want error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"OWNER_ID",
		"DATABASE_URL",
		"BOT_TOKEN",
		"TELEGRAM_API_BASE",
		"SWEEP_INTERVAL",
		"OVERDUE_GRACE",
		"INTAKE_IDLE_TIMEOUT",
		"INCLUDE_CREATOR",
		"REQUIRE_REGISTERED_RECIPIENTS",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
