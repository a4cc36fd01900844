// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Content
	ContentPath  string
	WatchContent bool

	// Desktop state storage ("file" or "s3")
	StateBackend string
	StatePath    string

	// S3 storage
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3Prefix    string

	// Gameplay
	LockoutCooldown time.Duration
	CommandRate     int
	// IdleTimeout drops terminals silent for this long; 0 never does.
	IdleTimeout time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:      envOr("LISTEN_ADDR", ":4000"),
		MetricsAddr:     envOr("METRICS_ADDR", ":9090"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "json"),
		ContentPath:     envOr("CONTENT_PATH", "data/content"),
		WatchContent:    envBool("WATCH_CONTENT", true),
		StateBackend:    envOr("STATE_BACKEND", "file"),
		StatePath:       envOr("STATE_PATH", "data/state"),
		S3Endpoint:      envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:        envOr("S3_BUCKET", "terminality"),
		S3AccessKey:     envOr("S3_ACCESS_KEY", ""),
		S3SecretKey:     envOr("S3_SECRET_KEY", ""),
		S3Region:        envOr("S3_REGION", "us-east-1"),
		S3Prefix:        envOr("S3_PREFIX", ""),
		LockoutCooldown: envDuration("LOCKOUT_COOLDOWN", 5*time.Minute),
		CommandRate:     envInt("COMMAND_RATE", 5),
		IdleTimeout:     envDuration("IDLE_TIMEOUT", 30*time.Minute),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that flags may have overridden.
func (c *Config) Validate() error {
	c.StateBackend = strings.ToLower(strings.TrimSpace(c.StateBackend))
	switch c.StateBackend {
	case "file", "s3":
	default:
		return fmt.Errorf("STATE_BACKEND must be file or s3, got %q", c.StateBackend)
	}
	if c.StateBackend == "s3" && c.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required for the s3 state backend")
	}
	if c.CommandRate <= 0 {
		return fmt.Errorf("COMMAND_RATE must be positive, got %d", c.CommandRate)
	}
	if c.LockoutCooldown < 0 {
		return fmt.Errorf("LOCKOUT_COOLDOWN must not be negative")
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("IDLE_TIMEOUT must not be negative")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
