// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package detection

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/custodian/internal/audit"
)

// DistributedFailedLoginDetector flags failed logins for one actor arriving
// from several source addresses. A single attacker rotating addresses can
// stay under the per-address burst threshold; this rule catches the spread.
type DistributedFailedLoginDetector struct {
	config  DistributedFailedLoginConfig
	history EventHistory
	enabled bool
	mu      sync.RWMutex
}

// NewDistributedFailedLoginDetector creates the detector with default config.
func NewDistributedFailedLoginDetector(history EventHistory) *DistributedFailedLoginDetector {
	return &DistributedFailedLoginDetector{
		config:  DefaultDistributedFailedLoginConfig(),
		history: history,
		enabled: true,
	}
}

// Pattern returns the pattern kind.
func (d *DistributedFailedLoginDetector) Pattern() PatternKind {
	return PatternDistributedFailedLogin
}

// Check evaluates a record against the distributed failed login rule.
func (d *DistributedFailedLoginDetector) Check(ctx context.Context, rec *audit.Record) (*Finding, error) {
	d.mu.RLock()
	if !d.enabled {
		d.mu.RUnlock()
		return nil, nil
	}
	config := d.config
	d.mu.RUnlock()

	if rec.EventType != audit.EventTypeAuthentication || rec.Success {
		return nil, nil
	}

	window := time.Duration(config.WindowMinutes) * time.Minute
	failures, err := d.history.RecentAuthFailures(ctx, rec.ActorID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent auth failures: %w", err)
	}

	// Count distinct source addresses; records with no address recorded
	// cannot prove distribution and are skipped.
	addresses := make(map[string]struct{})
	refs := make([]RecordRef, 0, len(failures))
	for i := range failures {
		if failures[i].SourceAddress == "" {
			continue
		}
		addresses[failures[i].SourceAddress] = struct{}{}
		refs = append(refs, RecordRef{
			PartitionKey: failures[i].PartitionKey,
			SortKey:      failures[i].SortKey,
		})
	}

	if len(addresses) < config.MinSourceAddresses {
		return nil, nil
	}

	list := make([]string, 0, len(addresses))
	for addr := range addresses {
		list = append(list, addr)
	}
	sort.Strings(list)

	return &Finding{
		ID:            uuid.New().String(),
		ActorID:       rec.ActorID,
		Pattern:       PatternDistributedFailedLogin,
		Severity:      config.Severity,
		SourceAddress: rec.SourceAddress,
		Description: fmt.Sprintf(
			"failed logins for actor %s from %d distinct addresses within %dm: %s",
			rec.ActorID,
			len(addresses),
			config.WindowMinutes,
			strings.Join(list, ", "),
		),
		TriggeringRecords: refs,
		DetectedAt:        time.Now().UTC(),
	}, nil
}

// Configure updates the detector configuration.
func (d *DistributedFailedLoginDetector) Configure(config json.RawMessage) error {
	var newConfig DistributedFailedLoginConfig
	if err := json.Unmarshal(config, &newConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if newConfig.MinSourceAddresses <= 1 {
		return fmt.Errorf("min_source_addresses must be greater than 1")
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
func (d *DistributedFailedLoginDetector) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// SetEnabled enables or disables the detector.
func (d *DistributedFailedLoginDetector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

// Config returns the current configuration.
func (d *DistributedFailedLoginDetector) Config() DistributedFailedLoginConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}
