// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

/*
Package api provides the HTTP REST API layer for Custodian.

Key Components:

  - Server: handler dependencies (recorder, query service, version history)
  - Routes: Chi router with middleware stack (request ID, real IP, recovery,
    structured request logging, Prometheus latency metrics)
  - Authenticator: JWT bearer token verification with permission claims
  - Response formatting: standardized JSON envelope with metadata

Endpoints:

Record endpoints (require audit:write):

	POST /api/v1/audit/events/authentication
	POST /api/v1/audit/events/access
	POST /api/v1/audit/events/modification

Query endpoints (require audit:read):

	GET /api/v1/audit/events
	GET /api/v1/audit/findings
	GET /api/v1/audit/resources/{type}/{id}/history

Unauthenticated:

	GET /healthz
	GET /metrics

Every query must be scoped to an actor, event type, or resource, and spans
at most 90 days; unbounded trail scans are rejected with 400.

Error Codes:

	VALIDATION_ERROR     - 400, malformed or unscoped request
	AUTHENTICATION_ERROR - 401, missing or invalid bearer token
	AUTHORIZATION_ERROR  - 403, token lacks the required permission
	STORE_ERROR          - 503, event store unavailable
	INTERNAL_ERROR       - 500, anything else

Thread Safety:

All handlers are thread-safe and designed for concurrent request handling.
*/
package api
