// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

// Package metrics defines Prometheus metrics for the audit subsystem.
// All metrics are registered with the default registry via promauto and
// exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuditRecordsWritten counts records appended to the event store,
	// labelled by event type.
	AuditRecordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custodian_audit_records_written_total",
		Help: "Total audit records appended to the event store by event type",
	}, []string{"event_type"})

	// AuditWriteErrors counts failed append attempts by event type.
	AuditWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custodian_audit_write_errors_total",
		Help: "Total failed audit record writes by event type",
	}, []string{"event_type"})

	// QueryDuration tracks end-to-end audit query latency by query scope
	// (resource, actor, event_type, history).
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "custodian_audit_query_duration_seconds",
		Help:    "Audit query latency in seconds by query scope",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"scope"})

	// QueryRejected counts queries rejected before hitting the store,
	// labelled by reason (unscoped, span_too_large, invalid).
	QueryRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custodian_audit_query_rejected_total",
		Help: "Total audit queries rejected by validation reason",
	}, []string{"reason"})

	// DetectionFindings counts findings raised by the detection engine,
	// labelled by pattern and severity.
	DetectionFindings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custodian_detection_findings_total",
		Help: "Total suspicious activity findings by pattern and severity",
	}, []string{"pattern", "severity"})

	// DetectionErrors counts detector check failures by pattern. Detection
	// errors never block audit writes, so this counter is the only signal
	// that a rule is misbehaving.
	DetectionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custodian_detection_errors_total",
		Help: "Total detector check failures by pattern",
	}, []string{"pattern"})

	// AlertNotifications counts alert delivery attempts by channel and
	// outcome (delivered, failed).
	AlertNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custodian_alert_notifications_total",
		Help: "Total alert notification attempts by channel and outcome",
	}, []string{"channel", "outcome"})

	// RestrictionRequests counts access restriction requests issued for
	// critical findings, by outcome (requested, failed).
	RestrictionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custodian_restriction_requests_total",
		Help: "Total access restriction requests by outcome",
	}, []string{"outcome"})

	// HTTPRequestDuration tracks API request latency by route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "custodian_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds by route, method and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)
