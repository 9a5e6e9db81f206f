// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

// Package main is the entry point for the Custodian server.
//
// Custodian records security-relevant events (authentication, data access,
// data modification) in an append-only partitioned store, serves bounded
// queries over the trail, and runs suspicious-activity detection inline on
// the write path.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, YAML file, CUSTODIAN_ env vars (Koanf v2)
//  2. Event store: BadgerDB (or in-memory for tests and demos)
//  3. Audit services: writer, query service, version history
//  4. Detection engine: four rules, each individually configurable
//  5. Alert dispatch: SECURITY record persistence, NATS/webhook delivery,
//     restriction callout for CRITICAL findings
//  6. HTTP server: REST API with JWT auth and Prometheus metrics
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (CUSTODIAN_ prefix, e.g. CUSTODIAN_SERVER_PORT)
//   - Config file (config.yaml, or CUSTODIAN_CONFIG_PATH)
//   - Built-in defaults
//
// For JWT authentication (default):
//   - CUSTODIAN_AUTH_JWT_SECRET: secret for token verification
//   - CUSTODIAN_AUTH_DISABLED=true disables auth (development only)
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting new connections, waits for in-flight requests to complete
// (configurable timeout), then closes the event store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/tomtom215/custodian/internal/alert"
	"github.com/tomtom215/custodian/internal/api"
	"github.com/tomtom215/custodian/internal/audit"
	"github.com/tomtom215/custodian/internal/config"
	"github.com/tomtom215/custodian/internal/detection"
	"github.com/tomtom215/custodian/internal/logging"
	"github.com/tomtom215/custodian/internal/recorder"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("backend", cfg.Store.Backend).
		Bool("detection", cfg.Detection.Enabled).
		Bool("nats", cfg.NATS.Enabled).
		Bool("auth", !cfg.Auth.Disabled).
		Msg("Starting Custodian")

	store, err := openStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open event store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event store")
		}
	}()
	logging.Info().Str("backend", cfg.Store.Backend).Msg("Event store initialized")

	writer := audit.NewWriter(store)
	queries := audit.NewQueryService(store)
	history := audit.NewHistoryService(store)

	engine, err := buildEngine(cfg, store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to configure detection engine")
	}

	dispatcher, natsConn, err := buildDispatcher(cfg, writer)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to configure alert dispatch")
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	rec := recorder.New(writer, engine, dispatcher)

	auth := api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Disabled)
	if cfg.Auth.Disabled {
		logging.Warn().Msg("API authentication disabled")
	}
	apiServer := api.NewServer(rec, queries, history, engine, auth)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("HTTP server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logging.Info().Msg("Custodian stopped")
}

// openStore selects the event store backend.
func openStore(cfg *config.Config) (audit.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return audit.NewMemoryStore(), nil
	default:
		return audit.OpenBadger(audit.BadgerOptions{
			Path:       cfg.Store.Path,
			SyncWrites: cfg.Store.SyncWrites,
		})
	}
}

// buildEngine assembles the detection engine with the four rules, applying
// per-rule enablement and configuration overrides. A disabled detection
// section returns nil, which skips detection entirely on the write path.
func buildEngine(cfg *config.Config, store audit.Store) (*detection.Engine, error) {
	if !cfg.Detection.Enabled {
		logging.Info().Msg("Detection engine disabled")
		return nil, nil
	}

	lookback := detection.NewStoreHistory(store)

	engine := detection.NewEngine()
	engine.RegisterDetector(detection.NewRepeatedFailedLoginDetector(lookback))
	engine.RegisterDetector(detection.NewDistributedFailedLoginDetector(lookback))
	engine.RegisterDetector(detection.NewExcessiveSensitiveAccessDetector(lookback))
	engine.RegisterDetector(detection.NewOffHoursAccessDetector())

	rules := map[detection.PatternKind]config.RuleConfig{
		detection.PatternRepeatedFailedLogin:      cfg.Detection.RepeatedFailedLogin,
		detection.PatternDistributedFailedLogin:   cfg.Detection.DistributedFailedLogin,
		detection.PatternExcessiveSensitiveAccess: cfg.Detection.ExcessiveAccess,
		detection.PatternOffHoursRestrictedAccess: cfg.Detection.OffHoursAccess,
	}
	for pattern, rule := range rules {
		if !rule.Enabled {
			if err := engine.SetDetectorEnabled(pattern, false); err != nil {
				return nil, err
			}
			logging.Info().Str("pattern", string(pattern)).Msg("Detection rule disabled")
		}
		if rule.Config != "" {
			if err := engine.ConfigureDetector(pattern, json.RawMessage(rule.Config)); err != nil {
				return nil, fmt.Errorf("configure %s: %w", pattern, err)
			}
		}
	}

	logging.Info().Int("detectors", len(engine.ListDetectors())).Msg("Detection engine initialized")
	return engine, nil
}

// buildDispatcher assembles alert delivery: the SECURITY record writer, the
// optional NATS and webhook channels, and the restriction callout used for
// CRITICAL findings.
func buildDispatcher(cfg *config.Config, writer *audit.Writer) (*alert.Dispatcher, *nats.Conn, error) {
	var restrictor alert.Restrictor
	if cfg.Alerts.Restrictor.Endpoint != "" {
		restrictor = alert.NewHTTPRestrictor(alert.RestrictorConfig{
			Endpoint:   cfg.Alerts.Restrictor.Endpoint,
			Token:      cfg.Alerts.Restrictor.Token,
			TimeoutSec: cfg.Alerts.Restrictor.TimeoutSec,
		})
		logging.Info().Str("endpoint", cfg.Alerts.Restrictor.Endpoint).Msg("Restriction endpoint configured")
	} else {
		restrictor = alert.NewLogRestrictor()
	}

	dispatcher := alert.NewDispatcher(writer, restrictor)

	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		conn, err := nats.Connect(cfg.NATS.URL,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to NATS: %w", err)
		}
		natsConn = conn
		dispatcher.RegisterNotifier(alert.NewNATSNotifier(conn, alert.NATSConfig{
			Subject: cfg.NATS.Subject,
			Enabled: true,
		}))
		logging.Info().Str("url", cfg.NATS.URL).Str("subject", cfg.NATS.Subject).Msg("NATS alert channel enabled")
	}

	if cfg.Alerts.Webhook.Enabled {
		dispatcher.RegisterNotifier(alert.NewWebhookNotifier(alert.WebhookConfig{
			WebhookURL: cfg.Alerts.Webhook.URL,
			Headers:    cfg.Alerts.Webhook.Headers,
			Enabled:    true,
			TimeoutSec: cfg.Alerts.Webhook.TimeoutSec,
		}))
		logging.Info().Msg("Webhook alert channel enabled")
	}

	return dispatcher, natsConn, nil
}
