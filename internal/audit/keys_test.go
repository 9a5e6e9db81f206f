// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package audit

import (
	"sort"
	"testing"
	"time"
)

func TestBuildSortKey(t *testing.T) {
	ts := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		actorID    string
		resourceID string
		version    int64
		want       string
	}{
		{
			name:    "authentication key",
			actorID: "user-123",
			want:    "2026-03-15T10:30:00.000000000Z#user-123",
		},
		{
			name:       "access key with resource",
			actorID:    "user-123",
			resourceID: "rec-9",
			want:       "2026-03-15T10:30:00.000000000Z#user-123#rec-9",
		},
		{
			name:       "modification key with version",
			actorID:    "user-123",
			resourceID: "rec-9",
			version:    7,
			want:       "2026-03-15T10:30:00.000000000Z#user-123#rec-9#v7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSortKey(ts, tt.actorID, tt.resourceID, tt.version)
			if got != tt.want {
				t.Errorf("buildSortKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSortTimeLexicographicOrder(t *testing.T) {
	// RFC3339Nano trims trailing zeros, which breaks lexicographic order.
	// The fixed-width layout must not.
	times := []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 500000000, time.UTC),
		time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 0, 1, 1, time.UTC),
		time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC),
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	keys := make([]string, len(times))
	for i, ts := range times {
		keys[i] = FormatSortTime(ts)
	}

	if !sort.StringsAreSorted(keys) {
		t.Errorf("sort keys not in lexicographic order: %v", keys)
	}

	for i, key := range keys {
		parsed, err := ParseSortTime(key)
		if err != nil {
			t.Fatalf("ParseSortTime(%q): %v", key, err)
		}
		if !parsed.Equal(times[i]) {
			t.Errorf("round trip mismatch: got %v, want %v", parsed, times[i])
		}
	}
}

func TestChangePartition(t *testing.T) {
	got := ChangePartition("patient_record", "rec-42")
	want := "CHANGE:patient_record:rec-42"
	if got != want {
		t.Errorf("ChangePartition() = %q, want %q", got, want)
	}
}

func TestActorKey(t *testing.T) {
	if got := ActorKey("alice"); got != "USER:alice" {
		t.Errorf("ActorKey() = %q, want USER:alice", got)
	}
}

func TestSortKeyTime(t *testing.T) {
	ts := time.Date(2026, 3, 15, 10, 30, 0, 123456789, time.UTC)
	key := buildSortKey(ts, "user-1", "rec-1", 3)

	got, err := sortKeyTime(key)
	if err != nil {
		t.Fatalf("sortKeyTime: %v", err)
	}
	if !got.Equal(ts) {
		t.Errorf("sortKeyTime() = %v, want %v", got, ts)
	}

	if _, err := sortKeyTime("short"); err == nil {
		t.Error("expected error for truncated sort key")
	}
}

func TestFamilyPartition(t *testing.T) {
	tests := []struct {
		eventType EventType
		partition string
		ok        bool
	}{
		{EventTypeAuthentication, PartitionAuth, true},
		{EventTypeDataAccess, PartitionAccess, true},
		{EventTypeSecurityEvent, PartitionSecurity, true},
		{EventTypeDataModification, "", false},
	}

	for _, tt := range tests {
		partition, ok := familyPartition(tt.eventType)
		if partition != tt.partition || ok != tt.ok {
			t.Errorf("familyPartition(%s) = (%q, %v), want (%q, %v)",
				tt.eventType, partition, ok, tt.partition, tt.ok)
		}
	}
}
