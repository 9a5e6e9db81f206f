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

const (
	// MaxQueryWindow bounds the date span of any single query. Larger spans
	// fall outside the store's latency contract and must be paginated by
	// the caller in 90-day windows.
	MaxQueryWindow = 90 * 24 * time.Hour

	// DefaultQueryLimit applies when a query does not set an explicit limit.
	DefaultQueryLimit = 100
)

// Filter narrows a query. At least one scoping dimension is required:
// a resource (type and ID together), an actor, or an event type other
// than DATA_MODIFICATION.
type Filter struct {
	ActorID      string
	EventType    EventType
	ResourceType string
	ResourceID   string
	Start        time.Time
	End          time.Time
	Limit        int
}

// QueryService answers bounded queries over the event store. Scoping rules
// keep every query a single-partition (or single-index) scan:
//
//   - resource type + ID  -> that resource's CHANGE partition
//   - actor               -> the actor's secondary index
//   - event type          -> the family partition (AUTH, ACCESS, SECURITY)
//
// When several filters are present the narrowest applies and the rest
// post-filter the already-bounded result set, so such a query can return
// fewer than limit matches; scan cost never grows past the limit. A
// filter with none of the three is rejected: an unscoped query cannot be
// bounded.
type QueryService struct {
	store Store
	now   func() time.Time
}

// NewQueryService creates a QueryService over the given event store.
func NewQueryService(store Store) *QueryService {
	return &QueryService{store: store, now: time.Now}
}

// SetClock overrides the service's time source (tests).
func (q *QueryService) SetClock(now func() time.Time) {
	q.now = now
}

// Query returns records matching the filter, most-recent-first.
func (q *QueryService) Query(ctx context.Context, f Filter) ([]Record, error) {
	started := time.Now()

	if err := q.validateSpan(f); err != nil {
		metrics.QueryRejected.WithLabelValues("span_too_large").Inc()
		return nil, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	scope, records, postFilter, err := q.scan(ctx, f, ScanOptions{Start: f.Start, End: f.End, Limit: limit})
	if err != nil {
		return nil, err
	}

	if postFilter {
		filtered := records[:0]
		for _, rec := range records {
			if rec.EventType == f.EventType {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	metrics.QueryDuration.WithLabelValues(scope).Observe(time.Since(started).Seconds())
	return records, nil
}

// scan picks the narrowest scoping dimension and runs the single scan it
// maps to. The returned bool reports whether an event-type post-filter
// still has to run over the results. The scan limit always stands: the
// post-filter narrows the bounded result set and may leave fewer than
// limit matches, which keeps scan cost independent of total history.
func (q *QueryService) scan(ctx context.Context, f Filter, opts ScanOptions) (string, []Record, bool, error) {
	switch {
	case f.ResourceType != "" && f.ResourceID != "":
		records, err := q.store.ScanPartition(ctx, ChangePartition(f.ResourceType, f.ResourceID), opts)
		return "resource", records, f.EventType != "", err

	case f.ResourceType != "" || f.ResourceID != "":
		metrics.QueryRejected.WithLabelValues("invalid").Inc()
		return "", nil, false, NewValidationError("resource", "resource_type and resource_id must be provided together")

	case f.ActorID != "":
		records, err := q.store.ScanActor(ctx, f.ActorID, opts)
		return "actor", records, f.EventType != "", err

	case f.EventType != "":
		partition, ok := familyPartition(f.EventType)
		if !ok {
			// Modification records live in per-resource partitions; there is
			// no shared partition to scan.
			metrics.QueryRejected.WithLabelValues("unscoped").Inc()
			return "", nil, false, NewValidationError("event_type", "DATA_MODIFICATION queries require a resource or actor filter")
		}
		// A family partition holds exactly one event type, so no
		// post-filter pass is needed.
		records, err := q.store.ScanPartition(ctx, partition, opts)
		return "event_type", records, false, err

	default:
		metrics.QueryRejected.WithLabelValues("unscoped").Inc()
		return "", nil, false, ErrUnscopedQuery
	}
}

// validateSpan enforces the 90-day query window. An open end bound is
// treated as "now" for span purposes.
func (q *QueryService) validateSpan(f Filter) error {
	if f.Start.IsZero() {
		return nil
	}
	end := f.End
	if end.IsZero() {
		end = q.now()
	}
	if end.Sub(f.Start) > MaxQueryWindow {
		return ErrSpanTooLarge
	}
	return nil
}
