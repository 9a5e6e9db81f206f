// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

// Package detection evaluates freshly written audit records against
// suspicious activity rules.
//
// Four patterns are watched: repeated failed logins, distributed failed
// logins from multiple addresses, excessive sensitive data access, and
// off-hours access to RESTRICTED data. Each rule is a Detector with its
// own sliding window and threshold, configurable at runtime through the
// engine.
//
// Detection runs synchronously after each audit write but its failures
// never propagate back into the write path: a broken rule degrades
// detection, not the audit trail.
package detection
