// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	ActorID        string `validate:"required"`
	EventType      string `validate:"omitempty,eventtype"`
	Classification string `validate:"omitempty,classification"`
	Limit          int    `validate:"gte=0,lte=1000"`
}

func TestValidateStruct_Valid(t *testing.T) {
	req := sampleRequest{
		ActorID:        "alice",
		EventType:      "AUTHENTICATION",
		Classification: "RESTRICTED",
		Limit:          100,
	}
	if err := ValidateStruct(&req); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

func TestValidateStruct_Failures(t *testing.T) {
	tests := []struct {
		name  string
		req   sampleRequest
		field string
	}{
		{"missing actor", sampleRequest{Limit: 1}, "ActorID"},
		{"bad event type", sampleRequest{ActorID: "a", EventType: "LOGIN"}, "EventType"},
		{"bad classification", sampleRequest{ActorID: "a", Classification: "SECRET"}, "Classification"},
		{"limit too large", sampleRequest{ActorID: "a", Limit: 5000}, "Limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if len(err.Errors()) != 1 || err.Errors()[0].Field() != tt.field {
				t.Errorf("errors = %v, want single error on %s", err, tt.field)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	req := sampleRequest{EventType: "LOGIN", Limit: -1}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation errors")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "ActorID") {
		t.Errorf("message missing field name: %q", apiErr.Message)
	}
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Error("multi-error details missing fields list")
	}
}
