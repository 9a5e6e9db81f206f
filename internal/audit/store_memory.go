// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore implements Store using in-memory storage.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	records []Record
	mu      sync.RWMutex
	closed  bool
}

// NewMemoryStore creates a new in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append persists a record. The record is copied; callers cannot mutate
// stored history through the original.
func (s *MemoryStore) Append(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	s.records = append(s.records, cloneRecord(rec))
	return nil
}

// ScanPartition returns records in one partition, most-recent-first.
func (s *MemoryStore) ScanPartition(ctx context.Context, partitionKey string, opts ScanOptions) ([]Record, error) {
	return s.scan(ctx, func(r *Record) bool { return r.PartitionKey == partitionKey }, opts)
}

// ScanActor returns records in an actor's secondary index, most-recent-first.
func (s *MemoryStore) ScanActor(ctx context.Context, actorID string, opts ScanOptions) ([]Record, error) {
	key := ActorKey(actorID)
	return s.scan(ctx, func(r *Record) bool { return r.SecondaryKey == key }, opts)
}

func (s *MemoryStore) scan(ctx context.Context, match func(*Record) bool, opts ScanOptions) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var results []Record
	for i := range s.records {
		rec := &s.records[i]
		if !match(rec) {
			continue
		}
		if !opts.Start.IsZero() && rec.Timestamp.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && rec.Timestamp.After(opts.End) {
			continue
		}
		results = append(results, cloneRecord(rec))
	}

	// Appends arrive in wall-clock order per caller but interleave across
	// callers; sort on the key that defines partition order.
	sort.Slice(results, func(i, j int) bool {
		return results[i].SortKey > results[j].SortKey
	})

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	return results, nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// cloneRecord deep-copies a record so stored history stays immutable.
func cloneRecord(rec *Record) Record {
	out := *rec
	if rec.Changes != nil {
		out.Changes = make([]Change, len(rec.Changes))
		copy(out.Changes, rec.Changes)
	}
	if rec.Attributes != nil {
		out.Attributes = make(map[string]Value, len(rec.Attributes))
		for k, v := range rec.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}
