// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenBadger(BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBadgerStore_AppendAndScanPartition(t *testing.T) {
	store := newTestBadger(t)
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	seedStore(t, store, base)

	records, err := store.ScanPartition(context.Background(), PartitionAuth, ScanOptions{})
	if err != nil {
		t.Fatalf("ScanPartition: %v", err)
	}

	if len(records) != 5 {
		t.Fatalf("got %d records, want 5", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].SortKey > records[i-1].SortKey {
			t.Errorf("records not most-recent-first at index %d", i)
		}
	}
}

func TestBadgerStore_ScanPartitionWindow(t *testing.T) {
	store := newTestBadger(t)
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	seedStore(t, store, base)

	records, err := store.ScanPartition(context.Background(), PartitionAuth, ScanOptions{
		Start: base.Add(1 * time.Minute),
		End:   base.Add(3 * time.Minute),
	})
	if err != nil {
		t.Fatalf("ScanPartition: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("windowed scan got %d records, want 3", len(records))
	}

	records, err = store.ScanPartition(context.Background(), PartitionAuth, ScanOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ScanPartition: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("limited scan got %d records, want 2", len(records))
	}
	if !records[0].Timestamp.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("limited scan newest at %v", records[0].Timestamp)
	}
}

func TestBadgerStore_PartitionIsolation(t *testing.T) {
	store := newTestBadger(t)
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	seedStore(t, store, base)

	records, err := store.ScanPartition(context.Background(), ChangePartition("patient_record", "rec-1"), ScanOptions{})
	if err != nil {
		t.Fatalf("ScanPartition: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for _, rec := range records {
		if rec.EventType != EventTypeDataModification {
			t.Errorf("foreign event type in CHANGE partition: %s", rec.EventType)
		}
	}

	records, err = store.ScanPartition(context.Background(), PartitionSecurity, ScanOptions{})
	if err != nil {
		t.Fatalf("ScanPartition: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("empty partition returned %d records", len(records))
	}
}

func TestBadgerStore_ScanActor(t *testing.T) {
	store := newTestBadger(t)
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	seedStore(t, store, base)

	records, err := store.ScanActor(context.Background(), "alice", ScanOptions{})
	if err != nil {
		t.Fatalf("ScanActor: %v", err)
	}

	// 5 auth + 1 access, resolved through the secondary index across
	// partitions, newest first.
	if len(records) != 6 {
		t.Fatalf("got %d records, want 6", len(records))
	}
	if records[0].EventType != EventTypeDataAccess {
		t.Errorf("newest record type = %s, want DATA_ACCESS", records[0].EventType)
	}
	for _, rec := range records {
		if rec.ActorID != "alice" {
			t.Errorf("foreign actor %q in scan", rec.ActorID)
		}
	}

	records, err = store.ScanActor(context.Background(), "bob", ScanOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ScanActor: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Version() != 3 {
		t.Errorf("newest bob record version = %d, want 3", records[0].Version())
	}
}

// directRecord builds a record without going through the Writer, so key
// isolation holds even for IDs the write boundary would reject.
func directRecord(partition, actor, id string, ts time.Time) *Record {
	return &Record{
		PartitionKey:  partition,
		SortKey:       buildSortKey(ts, actor, "", 0),
		SecondaryKey:  ActorKey(actor),
		SecondarySort: FormatSortTime(ts),
		ID:            id,
		EventType:     EventTypeDataModification,
		Timestamp:     ts,
		ActorID:       actor,
		Action:        "update",
	}
}

func TestBadgerStore_PrefixIsolationWithSeparatorInIDs(t *testing.T) {
	store := newTestBadger(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	// "doc-1!x" must not surface in "doc-1" scans even though its
	// partition name extends doc-1's, and likewise for the actor index.
	writes := []*Record{
		directRecord(ChangePartition("document", "doc-1"), "bob", "r1", base),
		directRecord(ChangePartition("document", "doc-1!x"), "bob!evil", "r2", base.Add(time.Minute)),
		directRecord(PartitionAuth, "bob", "r3", base.Add(2*time.Minute)),
		directRecord(PartitionAuth, "bob!evil", "r4", base.Add(3*time.Minute)),
	}
	for _, rec := range writes {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Append %s: %v", rec.ID, err)
		}
	}

	records, err := store.ScanPartition(ctx, ChangePartition("document", "doc-1"), ScanOptions{})
	if err != nil {
		t.Fatalf("ScanPartition: %v", err)
	}
	if len(records) != 1 || records[0].ID != "r1" {
		t.Fatalf("doc-1 scan returned %d records (%+v), want only r1", len(records), records)
	}

	records, err = store.ScanActor(ctx, "bob", ScanOptions{})
	if err != nil {
		t.Fatalf("ScanActor: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("bob scan returned %d records, want 2", len(records))
	}
	for _, rec := range records {
		if rec.ActorID != "bob" {
			t.Errorf("foreign actor %q in bob scan", rec.ActorID)
		}
	}
}

func TestBadgerStore_RejectsDuplicateSortKey(t *testing.T) {
	store := newTestBadger(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	first := directRecord(PartitionAuth, "alice", "r1", ts)
	if err := store.Append(ctx, first); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Same (partition, sortKey) slot: the append-only contract forbids the
	// overwrite regardless of record contents.
	dup := directRecord(PartitionAuth, "alice", "r2", ts)
	dup.Action = "rewritten"
	if err := store.Append(ctx, dup); !errors.Is(err, ErrDuplicateRecord) {
		t.Fatalf("expected ErrDuplicateRecord, got %v", err)
	}

	records, err := store.ScanPartition(ctx, PartitionAuth, ScanOptions{})
	if err != nil {
		t.Fatalf("ScanPartition: %v", err)
	}
	if len(records) != 1 || records[0].ID != "r1" || records[0].Action != "update" {
		t.Fatalf("original record not intact after rejected duplicate: %+v", records)
	}
}

func TestBadgerStore_RecordRoundTrip(t *testing.T) {
	store := newTestBadger(t)
	writer := NewWriter(store)
	writer.SetClock(fixedClock(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)))

	_, err := writer.RecordModification(context.Background(), ModificationEntry{
		ActorID:      "alice",
		ResourceType: "device",
		ResourceID:   "dev-1",
		Action:       "update",
		Version:      2,
		Changes: []Change{
			{Field: "name", OldValue: String("old"), NewValue: String("new")},
			{Field: "active", OldValue: Bool(false), NewValue: Bool(true)},
			{Field: "port", OldValue: Number(8080), NewValue: Number(9090)},
		},
		Attributes: map[string]Value{"reason": String("maintenance")},
	})
	if err != nil {
		t.Fatalf("RecordModification: %v", err)
	}

	records, err := store.ScanPartition(context.Background(), ChangePartition("device", "dev-1"), ScanOptions{})
	if err != nil {
		t.Fatalf("ScanPartition: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records", len(records))
	}

	rec := records[0]
	if len(rec.Changes) != 3 {
		t.Fatalf("changes lost in round trip: %d", len(rec.Changes))
	}
	if s, ok := rec.Changes[0].NewValue.AsString(); !ok || s != "new" {
		t.Errorf("string change = (%q, %v)", s, ok)
	}
	if b, ok := rec.Changes[1].NewValue.AsBool(); !ok || !b {
		t.Errorf("bool change = (%v, %v)", b, ok)
	}
	if n, ok := rec.Changes[2].NewValue.AsNumber(); !ok || n != 9090 {
		t.Errorf("number change = (%v, %v)", n, ok)
	}
	if rec.Version() != 2 {
		t.Errorf("version = %d, want 2", rec.Version())
	}
	if s, _ := rec.Attributes["reason"].AsString(); s != "maintenance" {
		t.Errorf("attribute lost: %q", s)
	}
}

func TestBadgerStore_Closed(t *testing.T) {
	store := newTestBadger(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err := store.Append(context.Background(), &Record{PartitionKey: PartitionAuth, SortKey: "x", ID: "1"})
	if !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if _, err := store.ScanPartition(context.Background(), PartitionAuth, ScanOptions{}); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}
