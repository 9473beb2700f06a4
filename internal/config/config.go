// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package config loads and validates Fleetwatch configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Fleetwatch server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the DuckDB database file. Empty string means in-memory.
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads is the DuckDB thread count. 0 means use runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// SchedulerConfig holds the reconciliation sweep settings.
type SchedulerConfig struct {
	// OfflineSweepInterval is how often terminals are checked for staleness.
	OfflineSweepInterval time.Duration `koanf:"offline_sweep_interval"`
	// OfflineThreshold is how long a terminal may go without a heartbeat
	// before it is marked offline.
	OfflineThreshold time.Duration `koanf:"offline_threshold"`
	// UptimeSweepInterval is how often 24h uptime percentages are recomputed
	// and persisted.
	UptimeSweepInterval time.Duration `koanf:"uptime_sweep_interval"`
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.Scheduler.OfflineSweepInterval <= 0 {
		return fmt.Errorf("scheduler.offline_sweep_interval must be positive, got %s",
			c.Scheduler.OfflineSweepInterval)
	}
	if c.Scheduler.OfflineThreshold <= 0 {
		return fmt.Errorf("scheduler.offline_threshold must be positive, got %s",
			c.Scheduler.OfflineThreshold)
	}
	if c.Scheduler.UptimeSweepInterval <= 0 {
		return fmt.Errorf("scheduler.uptime_sweep_interval must be positive, got %s",
			c.Scheduler.UptimeSweepInterval)
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs <= 0 {
			return fmt.Errorf("security.rate_limit_reqs must be positive, got %d",
				c.Security.RateLimitReqs)
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("security.rate_limit_window must be positive, got %s",
				c.Security.RateLimitWindow)
		}
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
