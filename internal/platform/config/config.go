// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Cache          CacheConfig
	Planner        PlannerConfig
	Log            LogConfig
	CurriculumPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings.
// An empty URL disables event persistence.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings.
// An empty URL keeps estimate updates in-process.
type CacheConfig struct {
	URL string
}

// PlannerConfig holds planning session settings.
type PlannerConfig struct {
	SessionTTL      int // minutes
	SweepInterval   int // seconds
	EstimateChannel string
	RecordEvents    bool
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with LEARN_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("LEARN_SERVER_PORT", 8080),
			Host: envStr("LEARN_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("LEARN_DATABASE_URL", ""),
			MaxConns: envInt("LEARN_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("LEARN_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			URL: envStr("LEARN_CACHE_URL", ""),
		},
		Planner: PlannerConfig{
			SessionTTL:      envInt("LEARN_PLANNER_SESSION_TTL", 120),
			SweepInterval:   envInt("LEARN_PLANNER_SWEEP_INTERVAL", 60),
			EstimateChannel: envStr("LEARN_PLANNER_ESTIMATE_CHANNEL", "planner:estimates"),
			RecordEvents:    envBool("LEARN_PLANNER_RECORD_EVENTS", true),
		},
		Log: LogConfig{
			Level:  envStr("LEARN_LOG_LEVEL", "info"),
			Format: envStr("LEARN_LOG_FORMAT", "json"),
		},
		CurriculumPath: envStr("LEARN_CURRICULUM_PATH", "./curricula"),
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("LEARN_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.MaxConns <= 0 || c.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("LEARN_DATABASE_MAX_CONNS must be between 1 and %d, got %d", math.MaxInt32, c.Database.MaxConns)
	}

	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("LEARN_DATABASE_MIN_CONNS must be between 0 and LEARN_DATABASE_MAX_CONNS, got %d", c.Database.MinConns)
	}

	if c.CurriculumPath == "" {
		return fmt.Errorf("LEARN_CURRICULUM_PATH is required")
	}

	if c.Planner.SessionTTL <= 0 {
		return fmt.Errorf("LEARN_PLANNER_SESSION_TTL must be positive, got %d", c.Planner.SessionTTL)
	}

	if c.Planner.SweepInterval <= 0 {
		return fmt.Errorf("LEARN_PLANNER_SWEEP_INTERVAL must be positive, got %d", c.Planner.SweepInterval)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LEARN_LOG_LEVEL must be debug, info, warn or error, got %q", c.Log.Level)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LEARN_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// HasDatabase returns true if a database URL is configured.
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasCache returns true if a cache URL is configured.
func (c *Config) HasCache() bool {
	return c.Cache.URL != ""
}

// SessionTTLDuration returns the planner session TTL as a duration.
func (p PlannerConfig) SessionTTLDuration() time.Duration {
	return time.Duration(p.SessionTTL) * time.Minute
}

// SweepEvery returns the sweep interval as a duration.
func (p PlannerConfig) SweepEvery() time.Duration {
	return time.Duration(p.SweepInterval) * time.Second
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
