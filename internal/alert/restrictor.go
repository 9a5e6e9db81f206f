// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package alert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/custodian/internal/detection"
	"github.com/tomtom215/custodian/internal/logging"
)

// HTTPRestrictor requests actor restriction from an external access
// control service. It posts a restriction request; whether and how the
// actor is actually locked out is that service's decision.
type HTTPRestrictor struct {
	endpoint string
	token    string
	client   *http.Client
}

// RestrictorConfig configures the HTTP restrictor.
type RestrictorConfig struct {
	Endpoint   string `json:"endpoint"`
	Token      string `json:"token,omitempty"`
	TimeoutSec int    `json:"timeout_sec"`
}

// restrictionRequest is the JSON body posted to the access control plane.
type restrictionRequest struct {
	ActorID   string    `json:"actor_id"`
	Reason    string    `json:"reason"`
	Pattern   string    `json:"pattern"`
	FindingID string    `json:"finding_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHTTPRestrictor creates an HTTPRestrictor.
func NewHTTPRestrictor(config RestrictorConfig) *HTTPRestrictor {
	timeout := time.Duration(config.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &HTTPRestrictor{
		endpoint: config.Endpoint,
		token:    config.Token,
		client:   &http.Client{Timeout: timeout},
	}
}

// Restrict posts a restriction request for the finding's actor.
func (r *HTTPRestrictor) Restrict(ctx context.Context, finding *detection.Finding) error {
	body, err := json.Marshal(restrictionRequest{
		ActorID:   finding.ActorID,
		Reason:    finding.Description,
		Pattern:   string(finding.Pattern),
		FindingID: finding.ID,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal restriction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create restriction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send restriction request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("access control service returned status %d", resp.StatusCode)
	}

	return nil
}

// LogRestrictor records restriction requests in the service log without
// calling out to any access control plane. Used when no endpoint is
// configured, so CRITICAL findings still leave an operator-visible trace.
type LogRestrictor struct{}

// NewLogRestrictor creates a LogRestrictor.
func NewLogRestrictor() *LogRestrictor {
	return &LogRestrictor{}
}

// Restrict logs the restriction request.
func (r *LogRestrictor) Restrict(ctx context.Context, finding *detection.Finding) error {
	logging.Warn().
		Str("actor_id", finding.ActorID).
		Str("pattern", string(finding.Pattern)).
		Str("finding_id", finding.ID).
		Msg("restriction requested (no access control endpoint configured)")
	return nil
}
