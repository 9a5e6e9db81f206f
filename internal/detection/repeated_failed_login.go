// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package detection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/custodian/internal/audit"
)

// RepeatedFailedLoginDetector flags actors with a burst of failed login
// attempts, the signature of credential guessing against one account.
type RepeatedFailedLoginDetector struct {
	config  RepeatedFailedLoginConfig
	history EventHistory
	enabled bool
	mu      sync.RWMutex
}

// NewRepeatedFailedLoginDetector creates the detector with default config.
func NewRepeatedFailedLoginDetector(history EventHistory) *RepeatedFailedLoginDetector {
	return &RepeatedFailedLoginDetector{
		config:  DefaultRepeatedFailedLoginConfig(),
		history: history,
		enabled: true,
	}
}

// Pattern returns the pattern kind.
func (d *RepeatedFailedLoginDetector) Pattern() PatternKind {
	return PatternRepeatedFailedLogin
}

// Check evaluates a record against the repeated failed login rule.
func (d *RepeatedFailedLoginDetector) Check(ctx context.Context, rec *audit.Record) (*Finding, error) {
	d.mu.RLock()
	if !d.enabled {
		d.mu.RUnlock()
		return nil, nil
	}
	config := d.config
	d.mu.RUnlock()

	// Only failed authentication attempts feed this rule.
	if rec.EventType != audit.EventTypeAuthentication || rec.Success {
		return nil, nil
	}

	window := time.Duration(config.WindowMinutes) * time.Minute
	failures, err := d.history.RecentAuthFailures(ctx, rec.ActorID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent auth failures: %w", err)
	}

	// The triggering record is already persisted, so it is in the window.
	if len(failures) < config.Threshold {
		return nil, nil
	}

	refs := make([]RecordRef, 0, len(failures))
	for i := range failures {
		refs = append(refs, RecordRef{
			PartitionKey: failures[i].PartitionKey,
			SortKey:      failures[i].SortKey,
		})
	}

	return &Finding{
		ID:            uuid.New().String(),
		ActorID:       rec.ActorID,
		Pattern:       PatternRepeatedFailedLogin,
		Severity:      config.Severity,
		SourceAddress: rec.SourceAddress,
		Description: fmt.Sprintf(
			"%d failed login attempts for actor %s within %dm",
			len(failures),
			rec.ActorID,
			config.WindowMinutes,
		),
		TriggeringRecords: refs,
		DetectedAt:        time.Now().UTC(),
	}, nil
}

// Configure updates the detector configuration.
func (d *RepeatedFailedLoginDetector) Configure(config json.RawMessage) error {
	var newConfig RepeatedFailedLoginConfig
	if err := json.Unmarshal(config, &newConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if newConfig.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive")
	}
	if newConfig.WindowMinutes <= 0 {
		return fmt.Errorf("window_minutes must be positive")
	}

	d.mu.Lock()
	d.config = newConfig
	d.mu.Unlock()

	return nil
}

// Enabled returns whether this detector is enabled.
func (d *RepeatedFailedLoginDetector) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// SetEnabled enables or disables the detector.
func (d *RepeatedFailedLoginDetector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

// Config returns the current configuration.
func (d *RepeatedFailedLoginDetector) Config() RepeatedFailedLoginConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}
