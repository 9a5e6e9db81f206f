// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// EventType categorizes audit records into event families.
type EventType string

const (
	// EventTypeAuthentication covers login attempts, logouts and token events.
	EventTypeAuthentication EventType = "AUTHENTICATION"

	// EventTypeDataAccess covers reads of classified resources.
	EventTypeDataAccess EventType = "DATA_ACCESS"

	// EventTypeDataModification covers field-level changes to resources.
	EventTypeDataModification EventType = "DATA_MODIFICATION"

	// EventTypeSecurityEvent covers findings produced by the detection engine.
	EventTypeSecurityEvent EventType = "SECURITY_EVENT"
)

// Valid returns whether the event type is one of the known families.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeAuthentication, EventTypeDataAccess, EventTypeDataModification, EventTypeSecurityEvent:
		return true
	default:
		return false
	}
}

// Classification is the sensitivity tier of accessed data.
type Classification string

const (
	ClassificationPublic       Classification = "PUBLIC"
	ClassificationInternal     Classification = "INTERNAL"
	ClassificationConfidential Classification = "CONFIDENTIAL"
	ClassificationRestricted   Classification = "RESTRICTED"
)

// Valid returns whether the classification is a known tier.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationPublic, ClassificationInternal, ClassificationConfidential, ClassificationRestricted:
		return true
	default:
		return false
	}
}

// Sensitive returns true for tiers that feed the detection rules.
func (c Classification) Sensitive() bool {
	return c == ClassificationConfidential || c == ClassificationRestricted
}

// ValueKind identifies which primitive a Value holds.
type ValueKind uint8

const (
	ValueInvalid ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
)

// Value is a closed union of the primitive types allowed in the open
// attribute and change payloads (string, number, bool). It marshals to and
// from the bare JSON primitive, so payloads round-trip without type loss.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

// String returns a string Value.
func String(s string) Value { return Value{kind: ValueString, str: s} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: ValueNumber, num: n} }

// Int returns a numeric Value from an integer.
func Int(n int64) Value { return Value{kind: ValueNumber, num: float64(n)} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: ValueBool, b: b} }

// Kind returns which primitive the value holds.
func (v Value) Kind() ValueKind { return v.kind }

// AsString returns the string payload and whether the value is a string.
func (v Value) AsString() (string, bool) { return v.str, v.kind == ValueString }

// AsNumber returns the numeric payload and whether the value is a number.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == ValueNumber }

// AsBool returns the boolean payload and whether the value is a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == ValueBool }

// Text renders the value for log and notification messages.
func (v Value) Text() string {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// MarshalJSON emits the bare primitive. An unset value marshals as null
// (a change with no old value is a creation).
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueString:
		return json.Marshal(v.str)
	case ValueNumber:
		return json.Marshal(v.num)
	case ValueBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a bare string, number, bool or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("unmarshal attribute value: empty input")
	}
	switch data[0] {
	case '"':
		v.kind = ValueString
		return json.Unmarshal(data, &v.str)
	case 't', 'f':
		v.kind = ValueBool
		return json.Unmarshal(data, &v.b)
	case 'n':
		*v = Value{}
		return nil
	default:
		v.kind = ValueNumber
		return json.Unmarshal(data, &v.num)
	}
}

// Change is one field-level delta in a modification record.
type Change struct {
	Field    string `json:"field"`
	OldValue Value  `json:"old_value"`
	NewValue Value  `json:"new_value"`
}

// Record is one immutable audit trail entry. Records are created exactly once
// by the Writer and are never updated or deleted; corrections are new records.
type Record struct {
	// PartitionKey scopes the record to an event family
	// (AUTH, ACCESS, CHANGE:{type}:{id}, SECURITY).
	PartitionKey string `json:"partition_key"`

	// SortKey orders records within a partition. Its fixed-width timestamp
	// prefix makes lexicographic order equal chronological order.
	SortKey string `json:"sort_key"`

	// SecondaryKey / SecondarySort form the actor-scoped index
	// (USER:{actorId}, timestamp) for "all events by this actor" queries.
	SecondaryKey  string `json:"secondary_key,omitempty"`
	SecondarySort string `json:"secondary_sort,omitempty"`

	// ID is a unique identifier for cross-referencing the record.
	ID string `json:"id"`

	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`

	ActorID       string `json:"actor_id"`
	SourceAddress string `json:"source_address,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	Success       bool   `json:"success"`
	Action        string `json:"action"`

	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`

	// DataClassification is required for DATA_ACCESS records.
	DataClassification Classification `json:"data_classification,omitempty"`

	// Changes is required for DATA_MODIFICATION records.
	Changes []Change `json:"changes,omitempty"`

	ErrorDetail string `json:"error_detail,omitempty"`

	// Attributes is an open bag of primitive values. DATA_MODIFICATION
	// records carry the resource version here under AttrVersion.
	Attributes map[string]Value `json:"attributes,omitempty"`
}

// AttrVersion is the attribute key holding a modification record's version.
const AttrVersion = "version"

// Version returns the resource version of a DATA_MODIFICATION record,
// or 0 if the record carries none.
func (r *Record) Version() int64 {
	if r.Attributes == nil {
		return 0
	}
	if n, ok := r.Attributes[AttrVersion].AsNumber(); ok {
		return int64(n)
	}
	return 0
}

// ScanOptions bounds a partition or index scan. Scans always return records
// most-recent-first; cost is bounded by the time window and limit, not by
// total store size.
type ScanOptions struct {
	// Start is the inclusive lower time bound. Zero means unbounded.
	Start time.Time

	// End is the inclusive upper time bound. Zero means unbounded.
	End time.Time

	// Limit caps the number of returned records. Zero means no cap.
	Limit int
}

// Store is the append-only, partitioned event store the subsystem writes to
// and queries. Implementations must never mutate or reorder stored records.
type Store interface {
	// Append durably persists a record. It returns only after the write is
	// acknowledged; an error means the record is not durable.
	Append(ctx context.Context, rec *Record) error

	// ScanPartition returns records in one partition, most-recent-first.
	ScanPartition(ctx context.Context, partitionKey string, opts ScanOptions) ([]Record, error)

	// ScanActor returns records in an actor's secondary index,
	// most-recent-first.
	ScanActor(ctx context.Context, actorID string, opts ScanOptions) ([]Record, error)

	// Close releases store resources.
	Close() error
}
