// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

// Package recorder composes the audit write path: persist the record,
// run detection over it, and raise alerts from any findings.
//
// Ordering is strict. Detection runs only after the record is durable, so
// the rule windows always include the triggering record, and no detection
// or alerting failure can ever propagate back into the write result. The
// audit trail is the primary artifact; everything downstream of it is
// best effort.
package recorder

import (
	"context"

	"github.com/tomtom215/custodian/internal/alert"
	"github.com/tomtom215/custodian/internal/audit"
	"github.com/tomtom215/custodian/internal/detection"
	"github.com/tomtom215/custodian/internal/logging"
)

// Recorder is the write-side entry point of the subsystem.
type Recorder struct {
	writer     *audit.Writer
	engine     *detection.Engine
	dispatcher *alert.Dispatcher
}

// New creates a Recorder. Engine and dispatcher may be nil, which turns
// the recorder into a plain audit writer (used in tooling and tests).
func New(writer *audit.Writer, engine *detection.Engine, dispatcher *alert.Dispatcher) *Recorder {
	return &Recorder{
		writer:     writer,
		engine:     engine,
		dispatcher: dispatcher,
	}
}

// RecordAuthentication persists an authentication record and feeds it to
// detection. The error reflects persistence only.
func (r *Recorder) RecordAuthentication(ctx context.Context, e audit.AuthenticationEntry) (*audit.Record, error) {
	rec, err := r.writer.RecordAuthentication(ctx, e)
	if err != nil {
		return nil, err
	}

	r.detect(ctx, rec)
	return rec, nil
}

// RecordAccess persists a data access record and feeds it to detection.
// The error reflects persistence only.
func (r *Recorder) RecordAccess(ctx context.Context, e audit.AccessEntry) (*audit.Record, error) {
	rec, err := r.writer.RecordAccess(ctx, e)
	if err != nil {
		return nil, err
	}

	r.detect(ctx, rec)
	return rec, nil
}

// RecordModification persists a modification record. Modification records
// feed no detection rule, so the write is the whole operation.
func (r *Recorder) RecordModification(ctx context.Context, e audit.ModificationEntry) (*audit.Record, error) {
	return r.writer.RecordModification(ctx, e)
}

// detect runs the engine over a persisted record and raises alerts for
// its findings. All failures are logged and swallowed.
func (r *Recorder) detect(ctx context.Context, rec *audit.Record) {
	if r.engine == nil {
		return
	}

	findings, err := r.engine.Process(ctx, rec)
	if err != nil {
		logging.Error().
			Err(err).
			Str("record_id", rec.ID).
			Str("actor_id", rec.ActorID).
			Msg("detection failed for audit record")
	}

	if r.dispatcher == nil {
		return
	}

	for _, finding := range findings {
		if _, err := r.dispatcher.Raise(ctx, finding); err != nil {
			logging.Error().
				Err(err).
				Str("finding_id", finding.ID).
				Str("pattern", string(finding.Pattern)).
				Msg("failed to raise alert for finding")
		}
	}
}
