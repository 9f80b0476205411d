package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("INTERVIEW_BACKEND_URL", "")
	t.Setenv("DEV_MODE", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8087" {
		t.Fatalf("expected default port 8087, got %s", cfg.Port)
	}
	if cfg.PruneMaxAge != 2*time.Hour {
		t.Fatalf("expected default prune age, got %v", cfg.PruneMaxAge)
	}
}

func TestLoadConfigDurations(t *testing.T) {
	t.Setenv("SESSION_PRUNE_MAX_AGE", "45m")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PruneMaxAge != 45*time.Minute {
		t.Fatalf("expected 45m, got %v", cfg.PruneMaxAge)
	}

	t.Setenv("SESSION_PRUNE_MAX_AGE", "not-a-duration")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PruneMaxAge != 2*time.Hour {
		t.Fatalf("bad duration must fall back to default, got %v", cfg.PruneMaxAge)
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("UNIT_TEST_ENV", "value")
	if got := getEnvOrDefault("UNIT_TEST_ENV", "fallback"); got != "value" {
		t.Fatalf("expected env value, got %s", got)
	}

	t.Setenv("UNIT_TEST_ENV", "")
	if got := getEnvOrDefault("UNIT_TEST_ENV", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback value, got %s", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("UNIT_TEST_BOOL", "true")
	if !getEnvBool("UNIT_TEST_BOOL", false) {
		t.Fatalf("expected true")
	}
	t.Setenv("UNIT_TEST_BOOL", "garbage")
	if getEnvBool("UNIT_TEST_BOOL", false) {
		t.Fatalf("garbage must fall back to default")
	}
}
