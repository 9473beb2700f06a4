// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Scheduler.OfflineSweepInterval != 2*time.Minute {
		t.Errorf("expected offline sweep interval 2m, got %s", cfg.Scheduler.OfflineSweepInterval)
	}
	if cfg.Scheduler.OfflineThreshold != 10*time.Minute {
		t.Errorf("expected offline threshold 10m, got %s", cfg.Scheduler.OfflineThreshold)
	}
	if cfg.Scheduler.UptimeSweepInterval != 5*time.Minute {
		t.Errorf("expected uptime sweep interval 5m, got %s", cfg.Scheduler.UptimeSweepInterval)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
	if len(cfg.Security.CORSOrigins) != 1 || cfg.Security.CORSOrigins[0] != "*" {
		t.Errorf("expected default CORS origins [*], got %v", cfg.Security.CORSOrigins)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OFFLINE_THRESHOLD", "15m")
	t.Setenv("CORS_ORIGINS", "https://ops.example.com, https://dash.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090 from env, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug from env, got %s", cfg.Logging.Level)
	}
	if cfg.Scheduler.OfflineThreshold != 15*time.Minute {
		t.Errorf("expected offline threshold 15m from env, got %s", cfg.Scheduler.OfflineThreshold)
	}
	if len(cfg.Security.CORSOrigins) != 2 {
		t.Fatalf("expected 2 CORS origins, got %v", cfg.Security.CORSOrigins)
	}
	if cfg.Security.CORSOrigins[0] != "https://ops.example.com" {
		t.Errorf("unexpected first CORS origin: %s", cfg.Security.CORSOrigins[0])
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 3000\nlogging:\n  level: warn\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("expected port 3000 from file, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn from file, got %s", cfg.Logging.Level)
	}
	// Unset values keep defaults
	if cfg.Scheduler.OfflineThreshold != 10*time.Minute {
		t.Errorf("expected default offline threshold, got %s", cfg.Scheduler.OfflineThreshold)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 3000\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "4000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("expected env to override file, got port %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"negative timeout", func(c *Config) { c.Server.Timeout = -1 }, true},
		{"zero offline sweep", func(c *Config) { c.Scheduler.OfflineSweepInterval = 0 }, true},
		{"zero offline threshold", func(c *Config) { c.Scheduler.OfflineThreshold = 0 }, true},
		{"zero uptime sweep", func(c *Config) { c.Scheduler.UptimeSweepInterval = 0 }, true},
		{"zero rate limit reqs", func(c *Config) { c.Security.RateLimitReqs = 0 }, true},
		{"rate limit disabled skips check", func(c *Config) {
			c.Security.RateLimitDisabled = true
			c.Security.RateLimitReqs = 0
		}, false},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFuncUnmappedKeysSkipped(t *testing.T) {
	t.Parallel()

	if got := envTransformFunc("PATH"); got != "" {
		t.Errorf("expected PATH to be skipped, got %q", got)
	}
	if got := envTransformFunc("HTTP_PORT"); got != "server.port" {
		t.Errorf("expected HTTP_PORT -> server.port, got %q", got)
	}
}
