// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/custodian/internal/audit"
	"github.com/tomtom215/custodian/internal/validation"
)

// eventsQuery captures the GET /audit/events parameters.
type eventsQuery struct {
	ActorID      string `validate:"omitempty,max=256"`
	EventType    string `validate:"omitempty,eventtype"`
	ResourceType string `validate:"omitempty,max=128"`
	ResourceID   string `validate:"omitempty,max=256"`
	Limit        int    `validate:"gte=0,lte=1000"`
}

// eventsResponse is the GET /audit/events payload.
type eventsResponse struct {
	Results []audit.Record `json:"results"`
	Count   int            `json:"count"`
}

func (s *Server) handleQueryEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		limit = n
	}

	req := eventsQuery{
		ActorID:      q.Get("actor_id"),
		EventType:    q.Get("event_type"),
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		Limit:        limit,
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	start, err := parseTimeParam(r, "start_time")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	end, err := parseTimeParam(r, "end_time")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	started := time.Now()
	records, err := s.query.Query(r.Context(), audit.Filter{
		ActorID:      req.ActorID,
		EventType:    audit.EventType(req.EventType),
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Start:        start,
		End:          end,
		Limit:        req.Limit,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if records == nil {
		records = []audit.Record{}
	}
	respondSuccess(w, http.StatusOK, eventsResponse{
		Results: records,
		Count:   len(records),
	}, time.Since(started))
}

// historyResponse is the GET /audit/resources/{type}/{id}/history payload.
type historyResponse struct {
	ResourceType string               `json:"resource_type"`
	ResourceID   string               `json:"resource_id"`
	Versions     []audit.VersionEntry `json:"versions"`
	Count        int                  `json:"count"`
}

func (s *Server) handleResourceHistory(w http.ResponseWriter, r *http.Request) {
	resourceType := chi.URLParam(r, "type")
	resourceID := chi.URLParam(r, "id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}
	start, err := parseTimeParam(r, "start_time")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	end, err := parseTimeParam(r, "end_time")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	started := time.Now()
	entries, err := s.history.GetHistory(r.Context(), resourceType, resourceID, audit.HistoryOptions{
		Start: start,
		End:   end,
		Limit: limit,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if entries == nil {
		entries = []audit.VersionEntry{}
	}
	respondSuccess(w, http.StatusOK, historyResponse{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Versions:     entries,
		Count:        len(entries),
	}, time.Since(started))
}

// handleFindings lists SECURITY_EVENT records, the persisted detection
// findings, newest first.
func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}
	start, err := parseTimeParam(r, "start_time")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	end, err := parseTimeParam(r, "end_time")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	started := time.Now()
	records, err := s.query.Query(r.Context(), audit.Filter{
		EventType: audit.EventTypeSecurityEvent,
		Start:     start,
		End:       end,
		Limit:     limit,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if records == nil {
		records = []audit.Record{}
	}
	respondSuccess(w, http.StatusOK, eventsResponse{
		Results: records,
		Count:   len(records),
	}, time.Since(started))
}

// healthResponse is the GET /healthz payload.
type healthResponse struct {
	Status    string `json:"status"`
	Detection bool   `json:"detection_enabled"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	detection := s.engine != nil && s.engine.Enabled()
	respondSuccess(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Detection: detection,
	}, 0)
}
