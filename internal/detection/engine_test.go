// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package detection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/custodian/internal/audit"
)

// stubDetector implements Detector for engine tests
type stubDetector struct {
	pattern PatternKind
	finding *Finding
	err     error
	checked int
	enabled bool
	mu      sync.Mutex
}

func newStubDetector(pattern PatternKind) *stubDetector {
	return &stubDetector{pattern: pattern, enabled: true}
}

func (s *stubDetector) Pattern() PatternKind { return s.pattern }

func (s *stubDetector) Check(ctx context.Context, rec *audit.Record) (*Finding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked++
	return s.finding, s.err
}

func (s *stubDetector) Configure(config json.RawMessage) error { return nil }

func (s *stubDetector) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *stubDetector) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

func testRecord() *audit.Record {
	return &audit.Record{
		PartitionKey: audit.PartitionAuth,
		SortKey:      "2026-03-15T10:00:00.000000000Z#alice",
		EventType:    audit.EventTypeAuthentication,
		Timestamp:    time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
		ActorID:      "alice",
		Action:       "login",
	}
}

func TestEngine_Process(t *testing.T) {
	engine := NewEngine()

	hit := newStubDetector(PatternRepeatedFailedLogin)
	hit.finding = &Finding{
		ID:       "f-1",
		ActorID:  "alice",
		Pattern:  PatternRepeatedFailedLogin,
		Severity: SeverityHigh,
	}
	miss := newStubDetector(PatternOffHoursRestrictedAccess)

	engine.RegisterDetector(hit)
	engine.RegisterDetector(miss)

	findings, err := engine.Process(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	if findings[0].Pattern != PatternRepeatedFailedLogin {
		t.Errorf("pattern = %s", findings[0].Pattern)
	}
	if hit.checked != 1 || miss.checked != 1 {
		t.Errorf("detectors checked %d/%d times, want 1/1", hit.checked, miss.checked)
	}

	m := engine.Metrics()
	if m.RecordsProcessed != 1 || m.FindingsRaised != 1 {
		t.Errorf("metrics: processed=%d findings=%d", m.RecordsProcessed, m.FindingsRaised)
	}
}

func TestEngine_DetectorErrorDoesNotMaskFindings(t *testing.T) {
	engine := NewEngine()

	broken := newStubDetector(PatternDistributedFailedLogin)
	broken.err = errors.New("boom")

	hit := newStubDetector(PatternRepeatedFailedLogin)
	hit.finding = &Finding{ID: "f-1", Pattern: PatternRepeatedFailedLogin, Severity: SeverityHigh}

	engine.RegisterDetector(broken)
	engine.RegisterDetector(hit)

	findings, err := engine.Process(context.Background(), testRecord())
	if err == nil {
		t.Error("expected aggregated detector error")
	}
	if len(findings) != 1 {
		t.Errorf("got %d findings despite one broken detector, want 1", len(findings))
	}

	m := engine.Metrics()
	if m.DetectionErrors != 1 {
		t.Errorf("detection errors = %d, want 1", m.DetectionErrors)
	}
}

func TestEngine_DisabledDetectorSkipped(t *testing.T) {
	engine := NewEngine()

	d := newStubDetector(PatternRepeatedFailedLogin)
	d.finding = &Finding{ID: "f-1", Pattern: PatternRepeatedFailedLogin}
	engine.RegisterDetector(d)

	if err := engine.SetDetectorEnabled(PatternRepeatedFailedLogin, false); err != nil {
		t.Fatalf("SetDetectorEnabled: %v", err)
	}

	findings, err := engine.Process(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(findings) != 0 || d.checked != 0 {
		t.Errorf("disabled detector ran: findings=%d checked=%d", len(findings), d.checked)
	}
}

func TestEngine_Disabled(t *testing.T) {
	engine := NewEngine()

	d := newStubDetector(PatternRepeatedFailedLogin)
	d.finding = &Finding{ID: "f-1", Pattern: PatternRepeatedFailedLogin}
	engine.RegisterDetector(d)
	engine.SetEnabled(false)

	findings, err := engine.Process(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if findings != nil {
		t.Error("disabled engine produced findings")
	}
}

func TestEngine_ConfigureDetector(t *testing.T) {
	engine := NewEngine()
	engine.RegisterDetector(newStubDetector(PatternRepeatedFailedLogin))

	if err := engine.ConfigureDetector(PatternRepeatedFailedLogin, []byte(`{}`)); err != nil {
		t.Errorf("ConfigureDetector: %v", err)
	}
	if err := engine.ConfigureDetector(PatternOffHoursRestrictedAccess, []byte(`{}`)); err == nil {
		t.Error("expected error for unregistered detector")
	}
}
