package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"LISTEN_ADDR", "STATE_BACKEND", "LOCKOUT_COOLDOWN", "COMMAND_RATE", "WATCH_CONTENT", "IDLE_TIMEOUT", "S3_PREFIX"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":4000" || cfg.StateBackend != "file" || cfg.LockoutCooldown != 5*time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.WatchContent || cfg.CommandRate != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.IdleTimeout != 30*time.Minute || cfg.S3Prefix != "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STATE_BACKEND", " S3 ")
	t.Setenv("S3_BUCKET", "saves")
	t.Setenv("LOCKOUT_COOLDOWN", "90s")
	t.Setenv("COMMAND_RATE", "not-a-number")
	t.Setenv("WATCH_CONTENT", "false")
	t.Setenv("S3_PREFIX", "saves/prod/")
	t.Setenv("IDLE_TIMEOUT", "10m")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StateBackend != "s3" || cfg.LockoutCooldown != 90*time.Second {
		t.Fatalf("environment ignored: %+v", cfg)
	}
	if cfg.CommandRate != 5 || cfg.WatchContent {
		t.Fatalf("unexpected fallback handling: %+v", cfg)
	}
	if cfg.S3Prefix != "saves/prod/" || cfg.IdleTimeout != 10*time.Minute {
		t.Fatalf("environment ignored: %+v", cfg)
	}
}

func TestLoadRejectsNegativeIdleTimeout(t *testing.T) {
	t.Setenv("STATE_BACKEND", "")
	t.Setenv("IDLE_TIMEOUT", "-1m")
	if _, err := Load(); err == nil {
		t.Fatalf("Load accepted a negative idle timeout")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("STATE_BACKEND", "floppy")
	if _, err := Load(); err == nil {
		t.Fatalf("Load accepted an unknown backend")
	}
}
