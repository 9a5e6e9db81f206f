// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

// Package config loads service configuration from layered sources:
// built-in defaults, an optional YAML file, and CUSTODIAN_-prefixed
// environment variables, in ascending precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, first
// match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/custodian/config.yaml",
	"/etc/custodian/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CUSTODIAN_CONFIG_PATH"

// envPrefix is stripped from environment variables before mapping them to
// koanf paths: CUSTODIAN_SERVER_PORT -> server.port.
const envPrefix = "CUSTODIAN_"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Store     StoreConfig     `koanf:"store"`
	NATS      NATSConfig      `koanf:"nats"`
	Alerts    AlertsConfig    `koanf:"alerts"`
	Detection DetectionConfig `koanf:"detection"`
	Auth      AuthConfig      `koanf:"auth"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig configures the event store.
type StoreConfig struct {
	// Backend selects the store implementation: "badger" or "memory".
	Backend string `koanf:"backend"`

	// Path is the BadgerDB directory.
	Path string `koanf:"path"`

	// SyncWrites forces fsync per write. Leave on outside tests.
	SyncWrites bool `koanf:"sync_writes"`
}

// NATSConfig configures the NATS alert channel.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

// AlertsConfig configures alert delivery and restriction.
type AlertsConfig struct {
	Webhook    WebhookConfig    `koanf:"webhook"`
	Restrictor RestrictorConfig `koanf:"restrictor"`
}

// WebhookConfig configures the webhook alert channel.
type WebhookConfig struct {
	Enabled    bool              `koanf:"enabled"`
	URL        string            `koanf:"url"`
	Headers    map[string]string `koanf:"headers"`
	TimeoutSec int               `koanf:"timeout_sec"`
}

// RestrictorConfig configures the access restriction callout for
// CRITICAL findings. With no endpoint, restriction requests are logged.
type RestrictorConfig struct {
	Endpoint   string `koanf:"endpoint"`
	Token      string `koanf:"token"`
	TimeoutSec int    `koanf:"timeout_sec"`
}

// DetectionConfig configures the detection engine and its rules.
type DetectionConfig struct {
	Enabled bool `koanf:"enabled"`

	RepeatedFailedLogin    RuleConfig `koanf:"repeated_failed_login"`
	DistributedFailedLogin RuleConfig `koanf:"distributed_failed_login"`
	ExcessiveAccess        RuleConfig `koanf:"excessive_access"`
	OffHoursAccess         RuleConfig `koanf:"off_hours_access"`
}

// RuleConfig enables a detection rule and carries its raw JSON settings,
// applied through the rule's Configure method. Empty config keeps the
// rule defaults.
type RuleConfig struct {
	Enabled bool   `koanf:"enabled"`
	Config  string `koanf:"config"`
}

// AuthConfig configures API authentication.
type AuthConfig struct {
	// JWTSecret signs and verifies API tokens. Required outside
	// development.
	JWTSecret string `koanf:"jwt_secret"`

	// Disabled turns authentication off entirely (development only).
	Disabled bool `koanf:"disabled"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8480,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Store: StoreConfig{
			Backend:    "badger",
			Path:       "/data/custodian",
			SyncWrites: true,
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Subject: "custodian.alerts",
		},
		Alerts: AlertsConfig{
			Webhook: WebhookConfig{
				Enabled:    false,
				TimeoutSec: 10,
			},
			Restrictor: RestrictorConfig{
				TimeoutSec: 5,
			},
		},
		Detection: DetectionConfig{
			Enabled:                true,
			RepeatedFailedLogin:    RuleConfig{Enabled: true},
			DistributedFailedLogin: RuleConfig{Enabled: true},
			ExcessiveAccess:        RuleConfig{Enabled: true},
			OffHoursAccess:         RuleConfig{Enabled: true},
		},
		Auth: AuthConfig{
			Disabled: false,
		},
	}
}

// Load reads configuration with precedence ENV > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// nestedSections maps environment key prefixes to their koanf paths for
// the doubly nested config sections, where a plain single-split transform
// cannot tell section boundaries from multi-word field names.
var nestedSections = map[string]string{
	"alerts_webhook_":                     "alerts.webhook.",
	"alerts_restrictor_":                  "alerts.restrictor.",
	"detection_repeated_failed_login_":    "detection.repeated_failed_login.",
	"detection_distributed_failed_login_": "detection.distributed_failed_login.",
	"detection_excessive_access_":         "detection.excessive_access.",
	"detection_off_hours_access_":         "detection.off_hours_access.",
}

// envTransform maps CUSTODIAN_SERVER_PORT to server.port. Only the first
// underscore becomes a separator; the rest of the key keeps its
// underscores so multi-word fields (read_timeout) resolve. Nested
// sections are matched explicitly.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for prefix, path := range nestedSections {
		if strings.HasPrefix(s, prefix) {
			return path + strings.TrimPrefix(s, prefix)
		}
	}
	return strings.Replace(s, "_", ".", 1)
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks the configuration for inconsistencies that would only
// surface at runtime otherwise.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Store.Backend {
	case "badger":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the badger backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend must be badger or memory, got %q", c.Store.Backend)
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats.enabled is true")
	}

	if c.Alerts.Webhook.Enabled && c.Alerts.Webhook.URL == "" {
		return fmt.Errorf("alerts.webhook.url is required when the webhook channel is enabled")
	}

	if !c.Auth.Disabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required unless auth.disabled is true")
	}

	return nil
}
