// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package audit

import (
	"errors"
	"fmt"
)

// ValidationError indicates a malformed or underspecified request: missing
// required fields, an unscoped query, or a date span beyond the query
// contract. Validation errors are never retried.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	// ErrUnscopedQuery is returned when a query supplies none of the three
	// scoping filters (resource, actor, event type). Unscoped queries cannot
	// be bounded and are always rejected.
	ErrUnscopedQuery = &ValidationError{Reason: "query must be scoped by resource, actor, or event type"}

	// ErrSpanTooLarge is returned when a query's date range exceeds the
	// 90-day window the latency contract covers.
	ErrSpanTooLarge = &ValidationError{Field: "start_time", Reason: "date range exceeds the 90-day query window"}

	// ErrStoreUnavailable wraps transient event store failures. Audit writes
	// propagate it uncaught; a lost audit record is a security gap, so the
	// audited action decides whether to retry or abort.
	ErrStoreUnavailable = errors.New("event store unavailable")

	// ErrStoreClosed is returned for operations on a closed store.
	ErrStoreClosed = errors.New("event store closed")

	// ErrDuplicateRecord is returned when an append targets an occupied
	// (partitionKey, sortKey) slot. The store is append-only; a duplicate
	// key would silently rewrite history.
	ErrDuplicateRecord = errors.New("duplicate record key")
)
