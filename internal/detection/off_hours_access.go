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

// OffHoursAccessDetector flags reads of RESTRICTED data outside business
// hours. It needs no history lookup: a single off-hours read of the highest
// sensitivity tier is a finding on its own.
type OffHoursAccessDetector struct {
	config  OffHoursAccessConfig
	enabled bool
	mu      sync.RWMutex
}

// NewOffHoursAccessDetector creates the detector with default config.
func NewOffHoursAccessDetector() *OffHoursAccessDetector {
	return &OffHoursAccessDetector{
		config:  DefaultOffHoursAccessConfig(),
		enabled: true,
	}
}

// Pattern returns the pattern kind.
func (d *OffHoursAccessDetector) Pattern() PatternKind {
	return PatternOffHoursRestrictedAccess
}

// Check evaluates a record against the off-hours access rule.
func (d *OffHoursAccessDetector) Check(ctx context.Context, rec *audit.Record) (*Finding, error) {
	d.mu.RLock()
	if !d.enabled {
		d.mu.RUnlock()
		return nil, nil
	}
	config := d.config
	d.mu.RUnlock()

	if rec.EventType != audit.EventTypeDataAccess || rec.DataClassification != audit.ClassificationRestricted {
		return nil, nil
	}

	// Business hours compare on the record's own timestamp in UTC, not on
	// detection time; a delayed check must not change the outcome.
	hour := rec.Timestamp.UTC().Hour()
	if hour >= config.StartHour && hour < config.EndHour {
		return nil, nil
	}

	return &Finding{
		ID:            uuid.New().String(),
		ActorID:       rec.ActorID,
		Pattern:       PatternOffHoursRestrictedAccess,
		Severity:      config.Severity,
		SourceAddress: rec.SourceAddress,
		Description: fmt.Sprintf(
			"actor %s accessed RESTRICTED resource %s:%s at %s UTC, outside %02d:00-%02d:00",
			rec.ActorID,
			rec.ResourceType,
			rec.ResourceID,
			rec.Timestamp.UTC().Format("15:04"),
			config.StartHour,
			config.EndHour,
		),
		TriggeringRecords: []RecordRef{{
			PartitionKey: rec.PartitionKey,
			SortKey:      rec.SortKey,
		}},
		DetectedAt: time.Now().UTC(),
	}, nil
}

// Configure updates the detector configuration.
func (d *OffHoursAccessDetector) Configure(config json.RawMessage) error {
	var newConfig OffHoursAccessConfig
	if err := json.Unmarshal(config, &newConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if newConfig.StartHour < 0 || newConfig.StartHour > 23 {
		return fmt.Errorf("start_hour must be between 0 and 23")
	}
	if newConfig.EndHour < 1 || newConfig.EndHour > 24 {
		return fmt.Errorf("end_hour must be between 1 and 24")
	}
	if newConfig.EndHour <= newConfig.StartHour {
		return fmt.Errorf("end_hour must be after start_hour")
	}

	d.mu.Lock()
	d.config = newConfig
	d.mu.Unlock()

	return nil
}

// Enabled returns whether this detector is enabled.
func (d *OffHoursAccessDetector) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// SetEnabled enables or disables the detector.
func (d *OffHoursAccessDetector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

// Config returns the current configuration.
func (d *OffHoursAccessDetector) Config() OffHoursAccessConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}
