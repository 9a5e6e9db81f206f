// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "/nonexistent")
	t.Setenv("CUSTODIAN_AUTH_DISABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8480 {
		t.Errorf("default port = %d", cfg.Server.Port)
	}
	if cfg.Store.Backend != "badger" || !cfg.Store.SyncWrites {
		t.Errorf("store defaults: %+v", cfg.Store)
	}
	if !cfg.Detection.Enabled || !cfg.Detection.RepeatedFailedLogin.Enabled {
		t.Errorf("detection defaults: %+v", cfg.Detection)
	}
	if cfg.NATS.Enabled {
		t.Error("NATS enabled by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "/nonexistent")
	t.Setenv("CUSTODIAN_AUTH_DISABLED", "true")
	t.Setenv("CUSTODIAN_SERVER_PORT", "9000")
	t.Setenv("CUSTODIAN_STORE_BACKEND", "memory")
	t.Setenv("CUSTODIAN_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 7100
auth:
  jwt_secret: file-secret
store:
  backend: memory
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7100 {
		t.Errorf("port = %d, want 7100", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "file-secret" {
		t.Errorf("jwt secret = %q", cfg.Auth.JWTSecret)
	}
	// Unset fields keep defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %q", cfg.Server.Host)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Auth.JWTSecret = "secret"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "sqlite" }},
		{"badger without path", func(c *Config) { c.Store.Path = "" }},
		{"nats without url", func(c *Config) { c.NATS.Enabled = true; c.NATS.URL = "" }},
		{"webhook without url", func(c *Config) { c.Alerts.Webhook.Enabled = true }},
		{"auth without secret", func(c *Config) { c.Auth.JWTSecret = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CUSTODIAN_SERVER_PORT", "server.port"},
		{"CUSTODIAN_STORE_SYNC_WRITES", "store.sync_writes"},
		{"CUSTODIAN_AUTH_JWT_SECRET", "auth.jwt_secret"},
		{"CUSTODIAN_ALERTS_WEBHOOK_URL", "alerts.webhook.url"},
		{"CUSTODIAN_DETECTION_OFF_HOURS_ACCESS_ENABLED", "detection.off_hours_access.enabled"},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
