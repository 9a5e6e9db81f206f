// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package detection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/custodian/internal/audit"
	"github.com/tomtom215/custodian/internal/logging"
	"github.com/tomtom215/custodian/internal/metrics"
)

// Engine coordinates detection rule evaluation. It runs every enabled
// detector against each freshly written audit record and returns the
// findings; raising alerts from findings is the dispatcher's job, so a
// notification outage can never block detection.
type Engine struct {
	detectors map[PatternKind]Detector

	mu           sync.RWMutex
	enabled      bool
	metricsStore *EngineMetrics
}

// EngineMetrics tracks detection engine performance.
type EngineMetrics struct {
	RecordsProcessed int64
	FindingsRaised   int64
	DetectionErrors  int64
	ProcessingTimeMs int64
	LastProcessedAt  time.Time
	DetectorMetrics  map[PatternKind]*DetectorMetrics
	mu               sync.RWMutex
}

// DetectorMetrics tracks individual detector performance.
type DetectorMetrics struct {
	RecordsChecked  int64
	FindingsRaised  int64
	Errors          int64
	LastTriggeredAt *time.Time
}

// NewEngine creates a detection engine with no detectors registered.
func NewEngine() *Engine {
	return &Engine{
		detectors: make(map[PatternKind]Detector),
		enabled:   true,
		metricsStore: &EngineMetrics{
			DetectorMetrics: make(map[PatternKind]*DetectorMetrics),
		},
	}
}

// RegisterDetector adds a detector to the engine.
func (e *Engine) RegisterDetector(detector Detector) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pattern := detector.Pattern()
	e.detectors[pattern] = detector
	e.metricsStore.DetectorMetrics[pattern] = &DetectorMetrics{}

	logging.Info().Str("detector", string(pattern)).Msg("registered detector")
}

// Process evaluates a persisted audit record against all enabled rules.
// Detector failures are collected, not fatal: one broken rule must not
// mask findings from the others, and the error never reaches the audit
// write path.
func (e *Engine) Process(ctx context.Context, rec *audit.Record) ([]*Finding, error) {
	detectors := e.getEnabledDetectors()
	if detectors == nil {
		return nil, nil
	}

	start := time.Now()

	var findings []*Finding
	var errs []error

	for _, detector := range detectors {
		finding, err := e.runSingleDetector(ctx, detector, rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if finding != nil {
			findings = append(findings, finding)
		}
	}

	e.updateProcessingMetrics(start)

	if len(errs) > 0 {
		return findings, fmt.Errorf("detection errors: %v", errs)
	}

	return findings, nil
}

// getEnabledDetectors returns all enabled detectors, or nil if the engine
// is disabled or nothing is registered.
func (e *Engine) getEnabledDetectors() []Detector {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.enabled {
		return nil
	}

	detectors := make([]Detector, 0, len(e.detectors))
	for _, d := range e.detectors {
		if d.Enabled() {
			detectors = append(detectors, d)
		}
	}

	if len(detectors) == 0 {
		return nil
	}
	return detectors
}

// runSingleDetector executes one detector and updates its metrics.
func (e *Engine) runSingleDetector(ctx context.Context, detector Detector, rec *audit.Record) (*Finding, error) {
	pattern := detector.Pattern()

	e.metricsStore.mu.Lock()
	if dm, ok := e.metricsStore.DetectorMetrics[pattern]; ok {
		dm.RecordsChecked++
	}
	e.metricsStore.mu.Unlock()

	finding, err := detector.Check(ctx, rec)
	if err != nil {
		e.metricsStore.mu.Lock()
		if dm, ok := e.metricsStore.DetectorMetrics[pattern]; ok {
			dm.Errors++
		}
		e.metricsStore.DetectionErrors++
		e.metricsStore.mu.Unlock()
		metrics.DetectionErrors.WithLabelValues(string(pattern)).Inc()
		return nil, fmt.Errorf("%s: %w", pattern, err)
	}

	if finding != nil {
		e.metricsStore.mu.Lock()
		if dm, ok := e.metricsStore.DetectorMetrics[pattern]; ok {
			dm.FindingsRaised++
			now := time.Now()
			dm.LastTriggeredAt = &now
		}
		e.metricsStore.FindingsRaised++
		e.metricsStore.mu.Unlock()
		metrics.DetectionFindings.WithLabelValues(string(pattern), string(finding.Severity)).Inc()
	}

	return finding, nil
}

// updateProcessingMetrics records processing time and record count.
func (e *Engine) updateProcessingMetrics(start time.Time) {
	processingTime := time.Since(start)
	e.metricsStore.mu.Lock()
	e.metricsStore.RecordsProcessed++
	e.metricsStore.ProcessingTimeMs = processingTime.Milliseconds()
	e.metricsStore.LastProcessedAt = time.Now()
	e.metricsStore.mu.Unlock()
}

// SetEnabled enables or disables the detection engine.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

// Enabled returns whether the engine is enabled.
func (e *Engine) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}

// GetDetector returns a detector by pattern kind.
func (e *Engine) GetDetector(pattern PatternKind) (Detector, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.detectors[pattern]
	return d, ok
}

// ListDetectors returns all registered detectors.
func (e *Engine) ListDetectors() []Detector {
	e.mu.RLock()
	defer e.mu.RUnlock()

	detectors := make([]Detector, 0, len(e.detectors))
	for _, d := range e.detectors {
		detectors = append(detectors, d)
	}
	return detectors
}

// ConfigureDetector updates a detector's configuration.
func (e *Engine) ConfigureDetector(pattern PatternKind, config json.RawMessage) error {
	e.mu.RLock()
	detector, ok := e.detectors[pattern]
	e.mu.RUnlock()

	if !ok {
		return fmt.Errorf("detector not found: %s", pattern)
	}

	return detector.Configure(config)
}

// SetDetectorEnabled enables or disables a specific detector.
func (e *Engine) SetDetectorEnabled(pattern PatternKind, enabled bool) error {
	e.mu.RLock()
	detector, ok := e.detectors[pattern]
	e.mu.RUnlock()

	if !ok {
		return fmt.Errorf("detector not found: %s", pattern)
	}

	detector.SetEnabled(enabled)
	return nil
}

// Metrics returns a copy of the engine metrics.
func (e *Engine) Metrics() EngineMetrics {
	e.metricsStore.mu.RLock()
	defer e.metricsStore.mu.RUnlock()

	detectorMetrics := make(map[PatternKind]*DetectorMetrics)
	for k, v := range e.metricsStore.DetectorMetrics {
		dm := *v
		detectorMetrics[k] = &dm
	}

	return EngineMetrics{
		RecordsProcessed: e.metricsStore.RecordsProcessed,
		FindingsRaised:   e.metricsStore.FindingsRaised,
		DetectionErrors:  e.metricsStore.DetectionErrors,
		ProcessingTimeMs: e.metricsStore.ProcessingTimeMs,
		LastProcessedAt:  e.metricsStore.LastProcessedAt,
		DetectorMetrics:  detectorMetrics,
	}
}
