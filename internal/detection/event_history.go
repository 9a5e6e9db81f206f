// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package detection

import (
	"context"
	"time"

	"github.com/tomtom215/custodian/internal/audit"
)

// StoreHistory implements EventHistory over the audit event store. Lookups
// scan the actor's secondary index bounded by the rule window, so each
// detector check costs one bounded index scan.
type StoreHistory struct {
	store audit.Store
	now   func() time.Time
}

// NewStoreHistory creates an EventHistory backed by the event store.
func NewStoreHistory(store audit.Store) *StoreHistory {
	return &StoreHistory{store: store, now: time.Now}
}

// SetClock overrides the history's time source (tests).
func (h *StoreHistory) SetClock(now func() time.Time) {
	h.now = now
}

// RecentAuthFailures returns an actor's failed authentication records
// within the window, most-recent-first.
func (h *StoreHistory) RecentAuthFailures(ctx context.Context, actorID string, window time.Duration) ([]audit.Record, error) {
	records, err := h.scanWindow(ctx, actorID, window)
	if err != nil {
		return nil, err
	}

	failures := records[:0]
	for _, rec := range records {
		if rec.EventType == audit.EventTypeAuthentication && !rec.Success {
			failures = append(failures, rec)
		}
	}
	return failures, nil
}

// RecentSensitiveAccess returns an actor's CONFIDENTIAL and RESTRICTED
// access records within the window, most-recent-first.
func (h *StoreHistory) RecentSensitiveAccess(ctx context.Context, actorID string, window time.Duration) ([]audit.Record, error) {
	records, err := h.scanWindow(ctx, actorID, window)
	if err != nil {
		return nil, err
	}

	accesses := records[:0]
	for _, rec := range records {
		if rec.EventType == audit.EventTypeDataAccess && rec.DataClassification.Sensitive() {
			accesses = append(accesses, rec)
		}
	}
	return accesses, nil
}

func (h *StoreHistory) scanWindow(ctx context.Context, actorID string, window time.Duration) ([]audit.Record, error) {
	now := h.now()
	return h.store.ScanActor(ctx, actorID, audit.ScanOptions{
		Start: now.Add(-window),
		End:   now,
	})
}
