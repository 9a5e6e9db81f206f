// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

// Package alert turns detection findings into alerts.
//
// The dispatcher persists every finding as a SECURITY_EVENT audit record
// before anything else; only that persistence can fail a Raise call.
// Delivery to NATS and webhook channels is best effort, and CRITICAL
// findings additionally request an access restriction for the actor from
// the configured access control plane.
package alert
