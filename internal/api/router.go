// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/custodian/internal/audit"
	"github.com/tomtom215/custodian/internal/detection"
	"github.com/tomtom215/custodian/internal/recorder"
)

// Server holds the handler dependencies for the HTTP API.
type Server struct {
	recorder *recorder.Recorder
	query    *audit.QueryService
	history  *audit.HistoryService
	engine   *detection.Engine
	auth     *Authenticator
}

// NewServer creates the API server. The engine is optional and only feeds
// the health endpoint.
func NewServer(rec *recorder.Recorder, query *audit.QueryService, history *audit.HistoryService, engine *detection.Engine, auth *Authenticator) *Server {
	return &Server{
		recorder: rec,
		query:    query,
		history:  history,
		engine:   engine,
		auth:     auth,
	}
}

// Routes builds the router. Record endpoints need audit:write, query
// endpoints need audit:read; health and metrics are unauthenticated.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/audit", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(PermissionWrite))
			r.Post("/events/authentication", s.handleRecordAuthentication)
			r.Post("/events/access", s.handleRecordAccess)
			r.Post("/events/modification", s.handleRecordModification)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(PermissionRead))
			r.Get("/events", s.handleQueryEvents)
			r.Get("/findings", s.handleFindings)
			r.Get("/resources/{type}/{id}/history", s.handleResourceHistory)
		})
	})

	return r
}
