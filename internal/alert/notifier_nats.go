// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/tomtom215/custodian/internal/detection"
)

// NATSNotifier publishes findings to a NATS subject so downstream systems
// (SIEM, paging, case management) can subscribe without coupling to this
// service.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	enabled bool
	mu      sync.RWMutex
}

// NATSConfig configures the NATS notifier.
type NATSConfig struct {
	Subject string `json:"subject"`
	Enabled bool   `json:"enabled"`
}

// NATSPayload is the JSON message published per finding.
type NATSPayload struct {
	Finding   *detection.Finding `json:"finding"`
	EventType string             `json:"event_type"`
	Timestamp time.Time          `json:"timestamp"`
	Source    string             `json:"source"`
}

// NewNATSNotifier creates a NATS notifier on an established connection.
func NewNATSNotifier(conn *nats.Conn, config NATSConfig) *NATSNotifier {
	subject := config.Subject
	if subject == "" {
		subject = "custodian.alerts"
	}

	return &NATSNotifier{
		conn:    conn,
		subject: subject,
		enabled: config.Enabled,
	}
}

// Name returns the notifier name.
func (n *NATSNotifier) Name() string {
	return "nats"
}

// Enabled returns whether this notifier is enabled.
func (n *NATSNotifier) Enabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled && n.conn != nil
}

// SetEnabled enables or disables the notifier.
func (n *NATSNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// Send publishes a finding to the configured subject.
func (n *NATSNotifier) Send(ctx context.Context, finding *detection.Finding) error {
	n.mu.RLock()
	conn := n.conn
	subject := n.subject
	enabled := n.enabled
	n.mu.RUnlock()

	if !enabled || conn == nil {
		return nil
	}

	payload := NATSPayload{
		Finding:   finding,
		EventType: "suspicious_activity",
		Timestamp: time.Now().UTC(),
		Source:    "custodian",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}

	if err := conn.Publish(subject, body); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	return nil
}
