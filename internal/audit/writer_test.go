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

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestWriter_RecordAuthentication(t *testing.T) {
	store := NewMemoryStore()
	writer := NewWriter(store)
	ts := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	writer.SetClock(fixedClock(ts))

	rec, err := writer.RecordAuthentication(context.Background(), AuthenticationEntry{
		ActorID:       "user-1",
		SourceAddress: "203.0.113.9",
		Action:        "login",
		Success:       false,
		ErrorDetail:   "invalid credentials",
	})
	if err != nil {
		t.Fatalf("RecordAuthentication: %v", err)
	}

	if rec.PartitionKey != PartitionAuth {
		t.Errorf("partition = %q, want AUTH", rec.PartitionKey)
	}
	if rec.SortKey != "2026-03-15T10:30:00.000000000Z#user-1" {
		t.Errorf("unexpected sort key %q", rec.SortKey)
	}
	if rec.SecondaryKey != "USER:user-1" {
		t.Errorf("secondary key = %q, want USER:user-1", rec.SecondaryKey)
	}
	if rec.ID == "" {
		t.Error("record ID not assigned")
	}
	if rec.Success {
		t.Error("success flag not preserved")
	}
	if store.Len() != 1 {
		t.Errorf("store holds %d records, want 1", store.Len())
	}
}

func TestWriter_RecordAuthentication_Validation(t *testing.T) {
	writer := NewWriter(NewMemoryStore())

	_, err := writer.RecordAuthentication(context.Background(), AuthenticationEntry{Action: "login"})
	if !IsValidation(err) {
		t.Errorf("expected validation error for missing actor, got %v", err)
	}

	_, err = writer.RecordAuthentication(context.Background(), AuthenticationEntry{ActorID: "u"})
	if !IsValidation(err) {
		t.Errorf("expected validation error for missing action, got %v", err)
	}
}

func TestWriter_RecordAccess(t *testing.T) {
	store := NewMemoryStore()
	writer := NewWriter(store)
	ts := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	writer.SetClock(fixedClock(ts))

	rec, err := writer.RecordAccess(context.Background(), AccessEntry{
		ActorID:        "user-1",
		ResourceType:   "patient_record",
		ResourceID:     "rec-9",
		Classification: ClassificationRestricted,
		Action:         "view",
	})
	if err != nil {
		t.Fatalf("RecordAccess: %v", err)
	}

	if rec.PartitionKey != PartitionAccess {
		t.Errorf("partition = %q, want ACCESS", rec.PartitionKey)
	}
	if rec.SortKey != "2026-03-15T10:30:00.000000000Z#user-1#rec-9" {
		t.Errorf("unexpected sort key %q", rec.SortKey)
	}
	if rec.DataClassification != ClassificationRestricted {
		t.Errorf("classification = %q", rec.DataClassification)
	}
	if !rec.Success {
		t.Error("access records are success events")
	}
}

func TestWriter_RecordAccess_RequiresClassification(t *testing.T) {
	writer := NewWriter(NewMemoryStore())

	_, err := writer.RecordAccess(context.Background(), AccessEntry{
		ActorID:      "user-1",
		ResourceType: "patient_record",
		ResourceID:   "rec-9",
		Action:       "view",
	})
	if !IsValidation(err) {
		t.Errorf("expected validation error for missing classification, got %v", err)
	}

	_, err = writer.RecordAccess(context.Background(), AccessEntry{
		ActorID:        "user-1",
		ResourceType:   "patient_record",
		ResourceID:     "rec-9",
		Classification: Classification("SECRET"),
		Action:         "view",
	})
	if !IsValidation(err) {
		t.Errorf("expected validation error for unknown classification, got %v", err)
	}
}

func TestWriter_RecordModification(t *testing.T) {
	store := NewMemoryStore()
	writer := NewWriter(store)
	ts := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	writer.SetClock(fixedClock(ts))

	rec, err := writer.RecordModification(context.Background(), ModificationEntry{
		ActorID:      "user-1",
		ResourceType: "patient_record",
		ResourceID:   "rec-9",
		Action:       "update",
		Version:      4,
		Changes: []Change{
			{Field: "status", OldValue: String("open"), NewValue: String("closed")},
		},
	})
	if err != nil {
		t.Fatalf("RecordModification: %v", err)
	}

	if rec.PartitionKey != "CHANGE:patient_record:rec-9" {
		t.Errorf("partition = %q", rec.PartitionKey)
	}
	if rec.SortKey != "2026-03-15T10:30:00.000000000Z#user-1#rec-9#v4" {
		t.Errorf("unexpected sort key %q", rec.SortKey)
	}
	if rec.Version() != 4 {
		t.Errorf("Version() = %d, want 4", rec.Version())
	}
	if len(rec.Changes) != 1 || rec.Changes[0].Field != "status" {
		t.Errorf("changes not preserved: %+v", rec.Changes)
	}
}

func TestWriter_RecordModification_Validation(t *testing.T) {
	writer := NewWriter(NewMemoryStore())

	base := ModificationEntry{
		ActorID:      "user-1",
		ResourceType: "patient_record",
		ResourceID:   "rec-9",
		Action:       "update",
		Version:      1,
		Changes:      []Change{{Field: "f", NewValue: String("x")}},
	}

	tests := []struct {
		name   string
		mutate func(*ModificationEntry)
	}{
		{"zero version", func(e *ModificationEntry) { e.Version = 0 }},
		{"negative version", func(e *ModificationEntry) { e.Version = -2 }},
		{"no changes", func(e *ModificationEntry) { e.Changes = nil }},
		{"missing resource id", func(e *ModificationEntry) { e.ResourceID = "" }},
		{"missing actor", func(e *ModificationEntry) { e.ActorID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := base
			tt.mutate(&entry)
			if _, err := writer.RecordModification(context.Background(), entry); !IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestWriter_RejectsReservedKeyCharacters(t *testing.T) {
	writer := NewWriter(NewMemoryStore())
	ctx := context.Background()

	// IDs carrying key separators would let one resource's scan prefix
	// match another resource's records (doc-1 vs doc-1!x).
	tests := []struct {
		name  string
		write func() error
	}{
		{"actor with bang", func() error {
			_, err := writer.RecordAuthentication(ctx, AuthenticationEntry{ActorID: "bob!evil", Action: "login"})
			return err
		}},
		{"actor with hash", func() error {
			_, err := writer.RecordAuthentication(ctx, AuthenticationEntry{ActorID: "bob#1", Action: "login"})
			return err
		}},
		{"actor with NUL", func() error {
			_, err := writer.RecordAuthentication(ctx, AuthenticationEntry{ActorID: "bob\x00", Action: "login"})
			return err
		}},
		{"resource id with bang", func() error {
			_, err := writer.RecordModification(ctx, ModificationEntry{
				ActorID: "bob", ResourceType: "document", ResourceID: "doc-1!x",
				Action: "update", Version: 1,
				Changes: []Change{{Field: "f", NewValue: String("x")}},
			})
			return err
		}},
		{"resource type with colon", func() error {
			_, err := writer.RecordAccess(ctx, AccessEntry{
				ActorID: "bob", ResourceType: "a:b", ResourceID: "doc-1",
				Classification: ClassificationInternal, Action: "view",
			})
			return err
		}},
		{"security actor with bang", func() error {
			_, err := writer.RecordSecurityEvent(ctx, SecurityEntry{ActorID: "bob!evil", Action: "ALERT"})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.write(); !IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestWriter_RecordSecurityEvent(t *testing.T) {
	store := NewMemoryStore()
	writer := NewWriter(store)

	rec, err := writer.RecordSecurityEvent(context.Background(), SecurityEntry{
		ActorID:     "user-1",
		Action:      "REPEATED_FAILED_LOGIN",
		Description: "5 failed login attempts within 5m",
	})
	if err != nil {
		t.Fatalf("RecordSecurityEvent: %v", err)
	}

	if rec.PartitionKey != PartitionSecurity {
		t.Errorf("partition = %q, want SECURITY", rec.PartitionKey)
	}
	if rec.EventType != EventTypeSecurityEvent {
		t.Errorf("event type = %q", rec.EventType)
	}
}

type failingStore struct {
	err error
}

func (f *failingStore) Append(context.Context, *Record) error { return f.err }
func (f *failingStore) ScanPartition(context.Context, string, ScanOptions) ([]Record, error) {
	return nil, f.err
}
func (f *failingStore) ScanActor(context.Context, string, ScanOptions) ([]Record, error) {
	return nil, f.err
}
func (f *failingStore) Close() error { return nil }

func TestWriter_PropagatesStoreFailure(t *testing.T) {
	writer := NewWriter(&failingStore{err: ErrStoreUnavailable})

	_, err := writer.RecordAuthentication(context.Background(), AuthenticationEntry{
		ActorID: "user-1",
		Action:  "login",
		Success: true,
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("store failure not propagated: %v", err)
	}
}
