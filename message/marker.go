// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package message

// MarkerType is the read state a chat marker reports. The zero value
// means no marker has been seen.
type MarkerType int

const (
	MarkerNone MarkerType = iota
	MarkerReceived
	MarkerDisplayed
	MarkerAcknowledged
)

func (m MarkerType) String() string {
	switch m {
	case MarkerReceived:
		return "received"
	case MarkerDisplayed:
		return "displayed"
	case MarkerAcknowledged:
		return "acknowledged"
	default:
		return "none"
	}
}

// ParseMarkerType maps a chat marker element name to its type.
func ParseMarkerType(name string) (MarkerType, bool) {
	switch name {
	case "received":
		return MarkerReceived, true
	case "displayed":
		return MarkerDisplayed, true
	case "acknowledged":
		return MarkerAcknowledged, true
	default:
		return MarkerNone, false
	}
}

// Marker is one user's read position in a room. A room holds at most
// one marker per user; a later MarkerDate replaces an earlier one.
type Marker struct {
	From       string
	MessageID  string
	MarkerDate int64
	Type       MarkerType
}
