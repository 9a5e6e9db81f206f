// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/custodian/internal/metrics"
)

// Writer constructs and persists immutable audit records. Every Record*
// method is synchronous: it returns only after the store acknowledges the
// write, and it propagates store failures loudly; audit writes are never
// silently dropped.
//
// The Writer does not invoke detection. Composition of write-then-detect
// lives in the recorder package, keeping both halves independently testable.
type Writer struct {
	store Store
	now   func() time.Time
}

// NewWriter creates a Writer over the given event store.
func NewWriter(store Store) *Writer {
	return &Writer{store: store, now: time.Now}
}

// SetClock overrides the writer's time source (tests).
func (w *Writer) SetClock(now func() time.Time) {
	w.now = now
}

// AuthenticationEntry describes one authentication attempt.
type AuthenticationEntry struct {
	ActorID       string
	SourceAddress string
	Action        string
	Success       bool
	UserAgent     string
	ErrorDetail   string
	Attributes    map[string]Value
}

// AccessEntry describes one read of a classified resource.
type AccessEntry struct {
	ActorID        string
	ResourceType   string
	ResourceID     string
	Classification Classification
	SourceAddress  string
	Action         string
	UserAgent      string
	Attributes     map[string]Value
}

// ModificationEntry describes one versioned, field-level change to a
// resource. The caller owns version assignment; the writer records it.
type ModificationEntry struct {
	ActorID       string
	ResourceType  string
	ResourceID    string
	Changes       []Change
	SourceAddress string
	Action        string
	Version       int64
	UserAgent     string
	Attributes    map[string]Value
}

// SecurityEntry describes a detection finding being persisted as a
// SECURITY_EVENT record.
type SecurityEntry struct {
	ActorID       string
	Action        string
	Description   string
	SourceAddress string
	Attributes    map[string]Value
}

// RecordAuthentication persists an AUTHENTICATION record.
func (w *Writer) RecordAuthentication(ctx context.Context, e AuthenticationEntry) (*Record, error) {
	if e.ActorID == "" {
		return nil, NewValidationError("actor_id", "is required")
	}
	if !validKeyComponent(e.ActorID) {
		return nil, NewValidationError("actor_id", keyReservedReason)
	}
	if e.Action == "" {
		return nil, NewValidationError("action", "is required")
	}

	ts := w.now()
	rec := &Record{
		PartitionKey:  PartitionAuth,
		SortKey:       buildSortKey(ts, e.ActorID, "", 0),
		SecondaryKey:  ActorKey(e.ActorID),
		SecondarySort: FormatSortTime(ts),
		ID:            uuid.New().String(),
		EventType:     EventTypeAuthentication,
		Timestamp:     ts.UTC(),
		ActorID:       e.ActorID,
		SourceAddress: e.SourceAddress,
		UserAgent:     e.UserAgent,
		Success:       e.Success,
		Action:        e.Action,
		ErrorDetail:   e.ErrorDetail,
		Attributes:    e.Attributes,
	}

	return w.append(ctx, rec)
}

// RecordAccess persists a DATA_ACCESS record. The classification is
// mandatory: access records without one are an audit completeness gap.
func (w *Writer) RecordAccess(ctx context.Context, e AccessEntry) (*Record, error) {
	if e.ActorID == "" {
		return nil, NewValidationError("actor_id", "is required")
	}
	if e.ResourceType == "" || e.ResourceID == "" {
		return nil, NewValidationError("resource", "resource_type and resource_id are required")
	}
	if err := validateKeyFields(e.ActorID, e.ResourceType, e.ResourceID); err != nil {
		return nil, err
	}
	if !e.Classification.Valid() {
		return nil, NewValidationError("data_classification", "must be one of PUBLIC, INTERNAL, CONFIDENTIAL, RESTRICTED")
	}
	if e.Action == "" {
		return nil, NewValidationError("action", "is required")
	}

	ts := w.now()
	rec := &Record{
		PartitionKey:       PartitionAccess,
		SortKey:            buildSortKey(ts, e.ActorID, e.ResourceID, 0),
		SecondaryKey:       ActorKey(e.ActorID),
		SecondarySort:      FormatSortTime(ts),
		ID:                 uuid.New().String(),
		EventType:          EventTypeDataAccess,
		Timestamp:          ts.UTC(),
		ActorID:            e.ActorID,
		SourceAddress:      e.SourceAddress,
		UserAgent:          e.UserAgent,
		Success:            true,
		Action:             e.Action,
		ResourceType:       e.ResourceType,
		ResourceID:         e.ResourceID,
		DataClassification: e.Classification,
		Attributes:         e.Attributes,
	}

	return w.append(ctx, rec)
}

// RecordModification persists a DATA_MODIFICATION record into the
// resource's CHANGE partition. Version must be positive and strictly
// increasing per resource; the caller's write path guarantees monotonicity
// (optimistic concurrency), this subsystem records it.
func (w *Writer) RecordModification(ctx context.Context, e ModificationEntry) (*Record, error) {
	if e.ActorID == "" {
		return nil, NewValidationError("actor_id", "is required")
	}
	if e.ResourceType == "" || e.ResourceID == "" {
		return nil, NewValidationError("resource", "resource_type and resource_id are required")
	}
	if err := validateKeyFields(e.ActorID, e.ResourceType, e.ResourceID); err != nil {
		return nil, err
	}
	if e.Version < 1 {
		return nil, NewValidationError("version", "must be a positive integer")
	}
	if len(e.Changes) == 0 {
		return nil, NewValidationError("changes", "at least one field change is required")
	}
	if e.Action == "" {
		return nil, NewValidationError("action", "is required")
	}

	attrs := make(map[string]Value, len(e.Attributes)+1)
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	attrs[AttrVersion] = Int(e.Version)

	ts := w.now()
	changes := make([]Change, len(e.Changes))
	copy(changes, e.Changes)

	rec := &Record{
		PartitionKey:  ChangePartition(e.ResourceType, e.ResourceID),
		SortKey:       buildSortKey(ts, e.ActorID, e.ResourceID, e.Version),
		SecondaryKey:  ActorKey(e.ActorID),
		SecondarySort: FormatSortTime(ts),
		ID:            uuid.New().String(),
		EventType:     EventTypeDataModification,
		Timestamp:     ts.UTC(),
		ActorID:       e.ActorID,
		SourceAddress: e.SourceAddress,
		UserAgent:     e.UserAgent,
		Success:       true,
		Action:        e.Action,
		ResourceType:  e.ResourceType,
		ResourceID:    e.ResourceID,
		Changes:       changes,
		Attributes:    attrs,
	}

	return w.append(ctx, rec)
}

// RecordSecurityEvent persists a SECURITY_EVENT record. Used by the alert
// dispatcher; deliberately does not pass back through detection.
func (w *Writer) RecordSecurityEvent(ctx context.Context, e SecurityEntry) (*Record, error) {
	if e.ActorID == "" {
		return nil, NewValidationError("actor_id", "is required")
	}
	if !validKeyComponent(e.ActorID) {
		return nil, NewValidationError("actor_id", keyReservedReason)
	}
	if e.Action == "" {
		return nil, NewValidationError("action", "is required")
	}

	ts := w.now()
	rec := &Record{
		PartitionKey:  PartitionSecurity,
		SortKey:       buildSortKey(ts, e.ActorID, "", 0),
		SecondaryKey:  ActorKey(e.ActorID),
		SecondarySort: FormatSortTime(ts),
		ID:            uuid.New().String(),
		EventType:     EventTypeSecurityEvent,
		Timestamp:     ts.UTC(),
		ActorID:       e.ActorID,
		Success:       true,
		Action:        e.Action,
		SourceAddress: e.SourceAddress,
		ErrorDetail:   e.Description,
		Attributes:    e.Attributes,
	}

	return w.append(ctx, rec)
}

// validateKeyFields checks every ID that ends up inside a partition, sort
// or index key for reserved separator characters.
func validateKeyFields(actorID, resourceType, resourceID string) *ValidationError {
	if !validKeyComponent(actorID) {
		return NewValidationError("actor_id", keyReservedReason)
	}
	if !validKeyComponent(resourceType) {
		return NewValidationError("resource_type", keyReservedReason)
	}
	if !validKeyComponent(resourceID) {
		return NewValidationError("resource_id", keyReservedReason)
	}
	return nil
}

func (w *Writer) append(ctx context.Context, rec *Record) (*Record, error) {
	if err := w.store.Append(ctx, rec); err != nil {
		metrics.AuditWriteErrors.WithLabelValues(string(rec.EventType)).Inc()
		return nil, fmt.Errorf("append %s record: %w", rec.EventType, err)
	}

	metrics.AuditRecordsWritten.WithLabelValues(string(rec.EventType)).Inc()
	return rec, nil
}
