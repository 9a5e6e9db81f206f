// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

// Package audit implements the append-only audit event store.
//
// Records are immutable: the store exposes Append and Scan operations
// only, with no update or delete path. Each record lives in exactly one
// partition chosen by its event family:
//
//	AUTH                         authentication attempts
//	ACCESS                       reads of classified resources
//	CHANGE:{type}:{id}           modifications, one partition per resource
//	SECURITY                     detection findings
//
// Within a partition the sort key {timestamp}#{actorId}[#{resourceId}]
// [#v{version}] makes lexicographic order chronological, so time-window
// scans are bounded prefix iterations. A USER:{actorId} secondary index
// supports per-actor queries across all families.
//
// Queries must be scoped by resource, actor, or event type, span at most
// 90 days, and return most-recent-first. The Writer validates and
// persists records synchronously; store failures propagate to the caller
// rather than being swallowed.
package audit
