// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package audit

import (
	"context"
	"time"

	"github.com/tomtom215/custodian/internal/metrics"
)

// HistoryService reconstructs the version history of a resource from its
// CHANGE partition. Because each resource has its own partition and sort
// keys embed the version, a history read is one bounded prefix scan.
type HistoryService struct {
	store Store
}

// NewHistoryService creates a HistoryService over the given event store.
func NewHistoryService(store Store) *HistoryService {
	return &HistoryService{store: store}
}

// VersionEntry is one step in a resource's change history.
type VersionEntry struct {
	Version     int64     `json:"version"`
	ActorID     string    `json:"actor_id"`
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	Changes     []Change  `json:"changes"`
	RecordID    string    `json:"record_id"`
	Description string    `json:"description,omitempty"`
}

// HistoryOptions bounds a history read.
type HistoryOptions struct {
	Start time.Time
	End   time.Time
	Limit int
}

// GetHistory returns the modification history of a resource, newest
// version first. Every returned entry carries the field-level changes
// recorded at write time.
func (h *HistoryService) GetHistory(ctx context.Context, resourceType, resourceID string, opts HistoryOptions) ([]VersionEntry, error) {
	started := time.Now()

	if resourceType == "" || resourceID == "" {
		metrics.QueryRejected.WithLabelValues("invalid").Inc()
		return nil, NewValidationError("resource", "resource_type and resource_id are required")
	}
	if !opts.Start.IsZero() && !opts.End.IsZero() && opts.End.Sub(opts.Start) > MaxQueryWindow {
		metrics.QueryRejected.WithLabelValues("span_too_large").Inc()
		return nil, ErrSpanTooLarge
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	records, err := h.store.ScanPartition(ctx, ChangePartition(resourceType, resourceID), ScanOptions{
		Start: opts.Start,
		End:   opts.End,
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]VersionEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, VersionEntry{
			Version:   rec.Version(),
			ActorID:   rec.ActorID,
			Timestamp: rec.Timestamp,
			Action:    rec.Action,
			Changes:   rec.Changes,
			RecordID:  rec.ID,
		})
	}

	metrics.QueryDuration.WithLabelValues("history").Observe(time.Since(started).Seconds())
	return entries, nil
}
