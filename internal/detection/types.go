// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package detection

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/custodian/internal/audit"
)

// PatternKind identifies the suspicious activity pattern a detector watches.
type PatternKind string

const (
	// PatternRepeatedFailedLogin flags a burst of failed logins by one actor.
	PatternRepeatedFailedLogin PatternKind = "REPEATED_FAILED_LOGIN"

	// PatternDistributedFailedLogin flags failed logins for one actor from
	// several source addresses, the signature of a distributed guessing attack.
	PatternDistributedFailedLogin PatternKind = "DISTRIBUTED_FAILED_LOGIN"

	// PatternExcessiveSensitiveAccess flags heavy reading of CONFIDENTIAL or
	// RESTRICTED data by one actor.
	PatternExcessiveSensitiveAccess PatternKind = "EXCESSIVE_SENSITIVE_ACCESS"

	// PatternOffHoursRestrictedAccess flags RESTRICTED data reads outside
	// business hours.
	PatternOffHoursRestrictedAccess PatternKind = "OFF_HOURS_RESTRICTED_ACCESS"
)

// Severity ranks a finding's urgency.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// RecordRef points at one audit record by its storage coordinates.
type RecordRef struct {
	PartitionKey string `json:"partition_key"`
	SortKey      string `json:"sort_key"`
}

// Finding is one detected instance of a suspicious pattern. Findings are
// persisted as SECURITY_EVENT records by the alert dispatcher, so the trail
// of detections is itself auditable.
type Finding struct {
	ID                string      `json:"id"`
	ActorID           string      `json:"actor_id"`
	Pattern           PatternKind `json:"pattern"`
	Severity          Severity    `json:"severity"`
	Description       string      `json:"description"`
	SourceAddress     string      `json:"source_address,omitempty"`
	TriggeringRecords []RecordRef `json:"triggering_records"`
	DetectedAt        time.Time   `json:"detected_at"`
}

// RepeatedFailedLoginConfig configures the failed login burst detector.
type RepeatedFailedLoginConfig struct {
	// Threshold is the number of failed attempts that triggers a finding.
	Threshold int `json:"threshold"`

	// WindowMinutes is the sliding window the attempts must fall within.
	WindowMinutes int `json:"window_minutes"`

	// Severity for generated findings.
	Severity Severity `json:"severity"`
}

// DefaultRepeatedFailedLoginConfig returns sensible defaults.
func DefaultRepeatedFailedLoginConfig() RepeatedFailedLoginConfig {
	return RepeatedFailedLoginConfig{
		Threshold:     5,
		WindowMinutes: 5,
		Severity:      SeverityHigh,
	}
}

// DistributedFailedLoginConfig configures the distributed attack detector.
type DistributedFailedLoginConfig struct {
	// MinSourceAddresses is the number of distinct source addresses among
	// failed attempts that triggers a finding.
	MinSourceAddresses int `json:"min_source_addresses"`

	// WindowMinutes is the sliding window the attempts must fall within.
	WindowMinutes int `json:"window_minutes"`

	// Severity for generated findings.
	Severity Severity `json:"severity"`
}

// DefaultDistributedFailedLoginConfig returns sensible defaults.
func DefaultDistributedFailedLoginConfig() DistributedFailedLoginConfig {
	return DistributedFailedLoginConfig{
		MinSourceAddresses: 3,
		WindowMinutes:      5,
		Severity:           SeverityCritical,
	}
}

// ExcessiveSensitiveAccessConfig configures the bulk access detector.
type ExcessiveSensitiveAccessConfig struct {
	// Threshold is the number of sensitive-data reads that triggers a finding.
	Threshold int `json:"threshold"`

	// WindowMinutes is the sliding window the reads must fall within.
	WindowMinutes int `json:"window_minutes"`

	// Severity for generated findings.
	Severity Severity `json:"severity"`
}

// DefaultExcessiveSensitiveAccessConfig returns sensible defaults.
func DefaultExcessiveSensitiveAccessConfig() ExcessiveSensitiveAccessConfig {
	return ExcessiveSensitiveAccessConfig{
		Threshold:     20,
		WindowMinutes: 60,
		Severity:      SeverityMedium,
	}
}

// OffHoursAccessConfig configures the off-hours access detector. Hours are
// UTC; an access at exactly StartHour is in hours, one at exactly EndHour
// is not.
type OffHoursAccessConfig struct {
	// StartHour is the first in-hours hour (inclusive).
	StartHour int `json:"start_hour"`

	// EndHour is the first off-hours hour after the workday (exclusive bound).
	EndHour int `json:"end_hour"`

	// Severity for generated findings.
	Severity Severity `json:"severity"`
}

// DefaultOffHoursAccessConfig returns sensible defaults (09:00-18:00 UTC).
func DefaultOffHoursAccessConfig() OffHoursAccessConfig {
	return OffHoursAccessConfig{
		StartHour: 9,
		EndHour:   18,
		Severity:  SeverityHigh,
	}
}

// Detector is the interface all suspicious activity rules implement.
type Detector interface {
	// Pattern returns the pattern kind this detector handles.
	Pattern() PatternKind

	// Check evaluates a freshly written audit record against the rule.
	// The record is already persisted when Check runs, so window lookups
	// include it. Returns a finding if the pattern matched, nil otherwise.
	Check(ctx context.Context, rec *audit.Record) (*Finding, error)

	// Configure updates the detector configuration.
	Configure(config json.RawMessage) error

	// Enabled returns whether this detector is currently enabled.
	Enabled() bool

	// SetEnabled enables or disables the detector.
	SetEnabled(enabled bool)
}

// EventHistory provides the bounded window lookups detection rules need.
// Implementations back onto the audit query layer, so detection cost is
// bounded by the rule windows, not by trail size.
type EventHistory interface {
	// RecentAuthFailures returns an actor's failed authentication records
	// within the window, most-recent-first.
	RecentAuthFailures(ctx context.Context, actorID string, window time.Duration) ([]audit.Record, error)

	// RecentSensitiveAccess returns an actor's CONFIDENTIAL and RESTRICTED
	// access records within the window, most-recent-first.
	RecentSensitiveAccess(ctx context.Context, actorID string, window time.Duration) ([]audit.Record, error)
}
