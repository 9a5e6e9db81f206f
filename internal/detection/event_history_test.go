// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package detection

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/custodian/internal/audit"
)

func TestStoreHistory_RecentAuthFailures(t *testing.T) {
	store := audit.NewMemoryStore()
	writer := audit.NewWriter(store)
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	// Two failures inside the 5m window, one outside, one success inside.
	seeds := []struct {
		offset  time.Duration
		success bool
	}{
		{-1 * time.Minute, false},
		{-3 * time.Minute, false},
		{-10 * time.Minute, false},
		{-2 * time.Minute, true},
	}
	for _, s := range seeds {
		ts := now.Add(s.offset)
		writer.SetClock(func() time.Time { return ts })
		_, err := writer.RecordAuthentication(ctx, audit.AuthenticationEntry{
			ActorID: "alice",
			Action:  "login",
			Success: s.success,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	history := NewStoreHistory(store)
	history.SetClock(func() time.Time { return now })

	failures, err := history.RecentAuthFailures(ctx, "alice", 5*time.Minute)
	if err != nil {
		t.Fatalf("RecentAuthFailures: %v", err)
	}
	if len(failures) != 2 {
		t.Fatalf("got %d failures, want 2", len(failures))
	}
	for _, rec := range failures {
		if rec.Success {
			t.Error("successful login leaked into failures")
		}
		if now.Sub(rec.Timestamp) > 5*time.Minute {
			t.Errorf("record at %v outside window", rec.Timestamp)
		}
	}
}

func TestStoreHistory_RecentSensitiveAccess(t *testing.T) {
	store := audit.NewMemoryStore()
	writer := audit.NewWriter(store)
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	classes := []audit.Classification{
		audit.ClassificationRestricted,
		audit.ClassificationConfidential,
		audit.ClassificationInternal,
		audit.ClassificationPublic,
	}
	for i, c := range classes {
		ts := now.Add(-time.Duration(i+1) * time.Minute)
		writer.SetClock(func() time.Time { return ts })
		_, err := writer.RecordAccess(ctx, audit.AccessEntry{
			ActorID:        "alice",
			ResourceType:   "patient_record",
			ResourceID:     "rec-1",
			Classification: c,
			Action:         "view",
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	history := NewStoreHistory(store)
	history.SetClock(func() time.Time { return now })

	accesses, err := history.RecentSensitiveAccess(ctx, "alice", time.Hour)
	if err != nil {
		t.Fatalf("RecentSensitiveAccess: %v", err)
	}
	if len(accesses) != 2 {
		t.Fatalf("got %d sensitive accesses, want 2", len(accesses))
	}
	for _, rec := range accesses {
		if !rec.DataClassification.Sensitive() {
			t.Errorf("non-sensitive tier %s leaked in", rec.DataClassification)
		}
	}
}
