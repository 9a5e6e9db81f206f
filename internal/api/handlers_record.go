// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/custodian/internal/audit"
	"github.com/tomtom215/custodian/internal/validation"
)

// authenticationRequest is the POST body for authentication events.
type authenticationRequest struct {
	ActorID       string                 `json:"actor_id" validate:"required,max=256"`
	SourceAddress string                 `json:"source_address" validate:"omitempty,ip"`
	Action        string                 `json:"action" validate:"required,max=128"`
	Success       bool                   `json:"success"`
	UserAgent     string                 `json:"user_agent" validate:"omitempty,max=512"`
	ErrorDetail   string                 `json:"error_detail" validate:"omitempty,max=1024"`
	Attributes    map[string]audit.Value `json:"attributes"`
}

// accessRequest is the POST body for data access events.
type accessRequest struct {
	ActorID        string                 `json:"actor_id" validate:"required,max=256"`
	ResourceType   string                 `json:"resource_type" validate:"required,max=128"`
	ResourceID     string                 `json:"resource_id" validate:"required,max=256"`
	Classification string                 `json:"data_classification" validate:"required,classification"`
	SourceAddress  string                 `json:"source_address" validate:"omitempty,ip"`
	Action         string                 `json:"action" validate:"required,max=128"`
	UserAgent      string                 `json:"user_agent" validate:"omitempty,max=512"`
	Attributes     map[string]audit.Value `json:"attributes"`
}

// modificationRequest is the POST body for data modification events.
type modificationRequest struct {
	ActorID       string                 `json:"actor_id" validate:"required,max=256"`
	ResourceType  string                 `json:"resource_type" validate:"required,max=128"`
	ResourceID    string                 `json:"resource_id" validate:"required,max=256"`
	Action        string                 `json:"action" validate:"required,max=128"`
	Version       int64                  `json:"version" validate:"required,gt=0"`
	Changes       []changePayload        `json:"changes" validate:"required,min=1,dive"`
	SourceAddress string                 `json:"source_address" validate:"omitempty,ip"`
	UserAgent     string                 `json:"user_agent" validate:"omitempty,max=512"`
	Attributes    map[string]audit.Value `json:"attributes"`
}

type changePayload struct {
	Field    string      `json:"field" validate:"required,max=256"`
	OldValue audit.Value `json:"old_value"`
	NewValue audit.Value `json:"new_value"`
}

// recordedResponse is returned for every successful record write.
type recordedResponse struct {
	ID           string    `json:"id"`
	PartitionKey string    `json:"partition_key"`
	SortKey      string    `json:"sort_key"`
	Timestamp    time.Time `json:"timestamp"`
}

func (s *Server) handleRecordAuthentication(w http.ResponseWriter, r *http.Request) {
	var req authenticationRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	started := time.Now()
	rec, err := s.recorder.RecordAuthentication(r.Context(), audit.AuthenticationEntry{
		ActorID:       req.ActorID,
		SourceAddress: req.SourceAddress,
		Action:        req.Action,
		Success:       req.Success,
		UserAgent:     req.UserAgent,
		ErrorDetail:   req.ErrorDetail,
		Attributes:    req.Attributes,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondSuccess(w, http.StatusCreated, recordedResponse{
		ID:           rec.ID,
		PartitionKey: rec.PartitionKey,
		SortKey:      rec.SortKey,
		Timestamp:    rec.Timestamp,
	}, time.Since(started))
}

func (s *Server) handleRecordAccess(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	started := time.Now()
	rec, err := s.recorder.RecordAccess(r.Context(), audit.AccessEntry{
		ActorID:        req.ActorID,
		ResourceType:   req.ResourceType,
		ResourceID:     req.ResourceID,
		Classification: audit.Classification(req.Classification),
		SourceAddress:  req.SourceAddress,
		Action:         req.Action,
		UserAgent:      req.UserAgent,
		Attributes:     req.Attributes,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondSuccess(w, http.StatusCreated, recordedResponse{
		ID:           rec.ID,
		PartitionKey: rec.PartitionKey,
		SortKey:      rec.SortKey,
		Timestamp:    rec.Timestamp,
	}, time.Since(started))
}

func (s *Server) handleRecordModification(w http.ResponseWriter, r *http.Request) {
	var req modificationRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	changes := make([]audit.Change, len(req.Changes))
	for i, c := range req.Changes {
		changes[i] = audit.Change{Field: c.Field, OldValue: c.OldValue, NewValue: c.NewValue}
	}

	started := time.Now()
	rec, err := s.recorder.RecordModification(r.Context(), audit.ModificationEntry{
		ActorID:       req.ActorID,
		ResourceType:  req.ResourceType,
		ResourceID:    req.ResourceID,
		Changes:       changes,
		SourceAddress: req.SourceAddress,
		Action:        req.Action,
		Version:       req.Version,
		UserAgent:     req.UserAgent,
		Attributes:    req.Attributes,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondSuccess(w, http.StatusCreated, recordedResponse{
		ID:           rec.ID,
		PartitionKey: rec.PartitionKey,
		SortKey:      rec.SortKey,
		Timestamp:    rec.Timestamp,
	}, time.Since(started))
}
