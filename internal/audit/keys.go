// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package audit

import (
	"fmt"
	"strings"
	"time"
)

// Partition keys for the three shared event families. Modification records
// use per-resource partitions built by ChangePartition.
const (
	PartitionAuth     = "AUTH"
	PartitionAccess   = "ACCESS"
	PartitionSecurity = "SECURITY"

	changePartitionPrefix = "CHANGE:"
	actorKeyPrefix        = "USER:"
)

// SortTimeLayout is the fixed-width UTC timestamp embedded in sort keys.
// Unlike RFC3339Nano it never trims trailing zeros, so lexicographic order
// on sort keys equals chronological order.
const SortTimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatSortTime renders a timestamp in the sort key layout.
func FormatSortTime(t time.Time) string {
	return t.UTC().Format(SortTimeLayout)
}

// ParseSortTime parses a timestamp in the sort key layout.
func ParseSortTime(s string) (time.Time, error) {
	return time.Parse(SortTimeLayout, s)
}

// ChangePartition returns the per-resource partition key for modification
// records: CHANGE:{resourceType}:{resourceId}.
func ChangePartition(resourceType, resourceID string) string {
	return changePartitionPrefix + resourceType + ":" + resourceID
}

// ActorKey returns the secondary index key for an actor: USER:{actorId}.
func ActorKey(actorID string) string {
	return actorKeyPrefix + actorID
}

// keyReserved holds the characters the key schemes use as separators.
// An ID containing one would let one partition's scan prefix match
// another partition's keys, or make CHANGE:{type}:{id} ambiguous.
const keyReserved = "!#:"

// keyReservedReason is the validation message for IDs carrying reserved
// or control characters.
const keyReservedReason = "must not contain '!', '#', ':' or control characters"

// validKeyComponent reports whether a value may appear inside a partition,
// sort or index key: no reserved separators, no control characters.
func validKeyComponent(s string) bool {
	if strings.ContainsAny(s, keyReserved) {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			return false
		}
	}
	return true
}

// buildSortKey assembles {timestamp}#{actorId}[#{resourceId}][#v{version}].
func buildSortKey(ts time.Time, actorID, resourceID string, version int64) string {
	var b strings.Builder
	b.WriteString(FormatSortTime(ts))
	b.WriteByte('#')
	b.WriteString(actorID)
	if resourceID != "" {
		b.WriteByte('#')
		b.WriteString(resourceID)
	}
	if version > 0 {
		b.WriteString(fmt.Sprintf("#v%d", version))
	}
	return b.String()
}

// sortKeyTime extracts the timestamp prefix of a sort key.
func sortKeyTime(sortKey string) (time.Time, error) {
	if len(sortKey) < len(SortTimeLayout) {
		return time.Time{}, fmt.Errorf("sort key too short: %q", sortKey)
	}
	return ParseSortTime(sortKey[:len(SortTimeLayout)])
}

// familyPartition maps an event family to its shared partition key.
// DATA_MODIFICATION has no shared partition (records are partitioned
// per resource), so it returns false.
func familyPartition(t EventType) (string, bool) {
	switch t {
	case EventTypeAuthentication:
		return PartitionAuth, true
	case EventTypeDataAccess:
		return PartitionAccess, true
	case EventTypeSecurityEvent:
		return PartitionSecurity, true
	default:
		return "", false
	}
}
