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

// ExcessiveSensitiveAccessDetector flags actors reading large volumes of
// CONFIDENTIAL or RESTRICTED data in a short period, the signature of data
// exfiltration or scraping.
type ExcessiveSensitiveAccessDetector struct {
	config  ExcessiveSensitiveAccessConfig
	history EventHistory
	enabled bool
	mu      sync.RWMutex
}

// NewExcessiveSensitiveAccessDetector creates the detector with default config.
func NewExcessiveSensitiveAccessDetector(history EventHistory) *ExcessiveSensitiveAccessDetector {
	return &ExcessiveSensitiveAccessDetector{
		config:  DefaultExcessiveSensitiveAccessConfig(),
		history: history,
		enabled: true,
	}
}

// Pattern returns the pattern kind.
func (d *ExcessiveSensitiveAccessDetector) Pattern() PatternKind {
	return PatternExcessiveSensitiveAccess
}

// Check evaluates a record against the excessive sensitive access rule.
func (d *ExcessiveSensitiveAccessDetector) Check(ctx context.Context, rec *audit.Record) (*Finding, error) {
	d.mu.RLock()
	if !d.enabled {
		d.mu.RUnlock()
		return nil, nil
	}
	config := d.config
	d.mu.RUnlock()

	// Only sensitive-tier reads feed this rule.
	if rec.EventType != audit.EventTypeDataAccess || !rec.DataClassification.Sensitive() {
		return nil, nil
	}

	window := time.Duration(config.WindowMinutes) * time.Minute
	accesses, err := d.history.RecentSensitiveAccess(ctx, rec.ActorID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent sensitive accesses: %w", err)
	}

	if len(accesses) < config.Threshold {
		return nil, nil
	}

	// Distinct resources touched, for the finding description.
	resources := make(map[string]struct{})
	refs := make([]RecordRef, 0, len(accesses))
	for i := range accesses {
		resources[accesses[i].ResourceType+":"+accesses[i].ResourceID] = struct{}{}
		refs = append(refs, RecordRef{
			PartitionKey: accesses[i].PartitionKey,
			SortKey:      accesses[i].SortKey,
		})
	}

	return &Finding{
		ID:            uuid.New().String(),
		ActorID:       rec.ActorID,
		Pattern:       PatternExcessiveSensitiveAccess,
		Severity:      config.Severity,
		SourceAddress: rec.SourceAddress,
		Description: fmt.Sprintf(
			"actor %s accessed sensitive data %d times (%d distinct resources) within %dm",
			rec.ActorID,
			len(accesses),
			len(resources),
			config.WindowMinutes,
		),
		TriggeringRecords: refs,
		DetectedAt:        time.Now().UTC(),
	}, nil
}

// Configure updates the detector configuration.
func (d *ExcessiveSensitiveAccessDetector) Configure(config json.RawMessage) error {
	var newConfig ExcessiveSensitiveAccessConfig
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
func (d *ExcessiveSensitiveAccessDetector) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// SetEnabled enables or disables the detector.
func (d *ExcessiveSensitiveAccessDetector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

// Config returns the current configuration.
func (d *ExcessiveSensitiveAccessDetector) Config() ExcessiveSensitiveAccessConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}
