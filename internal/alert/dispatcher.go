// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package alert

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/custodian/internal/audit"
	"github.com/tomtom215/custodian/internal/detection"
	"github.com/tomtom215/custodian/internal/logging"
	"github.com/tomtom215/custodian/internal/metrics"
)

// Notifier delivers findings to an external channel.
type Notifier interface {
	// Send delivers a finding to the notification channel.
	Send(ctx context.Context, finding *detection.Finding) error

	// Name returns the notifier name (e.g., "nats", "webhook").
	Name() string

	// Enabled returns whether this notifier is enabled.
	Enabled() bool
}

// Restrictor requests access restriction for an actor. Restriction is
// enforced elsewhere; the dispatcher only requests it.
type Restrictor interface {
	// Restrict asks the access control plane to restrict an actor.
	Restrict(ctx context.Context, finding *detection.Finding) error
}

// Dispatcher turns detection findings into alerts. For each finding it
// first persists a SECURITY_EVENT record, making the detection itself part
// of the audit trail, then notifies the configured channels. Persistence
// failure is the only fatal outcome; delivery is best effort, logged and
// counted but never blocking. CRITICAL findings additionally request an
// access restriction for the actor.
type Dispatcher struct {
	writer     *audit.Writer
	restrictor Restrictor

	mu        sync.RWMutex
	notifiers []Notifier
}

// NewDispatcher creates a Dispatcher. The restrictor may be nil when
// automatic restriction is disabled.
func NewDispatcher(writer *audit.Writer, restrictor Restrictor) *Dispatcher {
	return &Dispatcher{
		writer:     writer,
		restrictor: restrictor,
	}
}

// RegisterNotifier adds a delivery channel.
func (d *Dispatcher) RegisterNotifier(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers = append(d.notifiers, n)
	logging.Info().Str("notifier", n.Name()).Msg("registered notifier")
}

// Raise processes one finding: persist, notify, and for CRITICAL findings
// request restriction. The returned record is the persisted SECURITY_EVENT.
func (d *Dispatcher) Raise(ctx context.Context, finding *detection.Finding) (*audit.Record, error) {
	rec, err := d.persist(ctx, finding)
	if err != nil {
		return nil, fmt.Errorf("persist finding %s: %w", finding.Pattern, err)
	}

	d.notify(ctx, finding)

	if finding.Severity == detection.SeverityCritical {
		d.restrict(ctx, finding)
	}

	return rec, nil
}

func (d *Dispatcher) persist(ctx context.Context, finding *detection.Finding) (*audit.Record, error) {
	attrs := map[string]audit.Value{
		"finding_id": audit.String(finding.ID),
		"pattern":    audit.String(string(finding.Pattern)),
		"severity":   audit.String(string(finding.Severity)),
	}
	if n := len(finding.TriggeringRecords); n > 0 {
		attrs["triggering_records"] = audit.Int(int64(n))
	}

	return d.writer.RecordSecurityEvent(ctx, audit.SecurityEntry{
		ActorID:       finding.ActorID,
		Action:        string(finding.Pattern),
		Description:   finding.Description,
		SourceAddress: finding.SourceAddress,
		Attributes:    attrs,
	})
}

// notify delivers the finding to every enabled channel synchronously, so
// a caller returning from Raise knows delivery was at least attempted.
func (d *Dispatcher) notify(ctx context.Context, finding *detection.Finding) {
	d.mu.RLock()
	notifiers := make([]Notifier, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		if n.Enabled() {
			notifiers = append(notifiers, n)
		}
	}
	d.mu.RUnlock()

	for _, n := range notifiers {
		if err := n.Send(ctx, finding); err != nil {
			metrics.AlertNotifications.WithLabelValues(n.Name(), "failed").Inc()
			logging.Error().
				Err(err).
				Str("notifier", n.Name()).
				Str("pattern", string(finding.Pattern)).
				Str("actor_id", finding.ActorID).
				Msg("failed to deliver alert")
			continue
		}
		metrics.AlertNotifications.WithLabelValues(n.Name(), "delivered").Inc()
	}
}

// restrict asks the access control plane to restrict the actor. Failure is
// logged at error level; the finding is already durable at this point.
func (d *Dispatcher) restrict(ctx context.Context, finding *detection.Finding) {
	if d.restrictor == nil {
		return
	}

	if err := d.restrictor.Restrict(ctx, finding); err != nil {
		metrics.RestrictionRequests.WithLabelValues("failed").Inc()
		logging.Error().
			Err(err).
			Str("actor_id", finding.ActorID).
			Str("pattern", string(finding.Pattern)).
			Msg("failed to request access restriction")
		return
	}

	metrics.RestrictionRequests.WithLabelValues("requested").Inc()
	logging.Warn().
		Str("actor_id", finding.ActorID).
		Str("pattern", string(finding.Pattern)).
		Msg("access restriction requested for critical finding")
}
