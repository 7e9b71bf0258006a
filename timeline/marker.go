// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"maps"

	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/message"
)

// SetMarker records a user's read marker for a room. A marker older
// than the user's stored one is dropped and SetMarker returns false.
//
// A displayed or acknowledged marker from another user also marks the
// local user's own text messages up to and including the marked one
// as read.
func (s *Store) SetMarker(roomID ref.RoomID, marker message.Marker) bool {
	state := s.room(roomID)
	if existing, ok := state.markers[marker.From]; ok && existing.MarkerDate > marker.MarkerDate {
		return false
	}
	state.markers[marker.From] = marker

	if marker.From == s.self || marker.Type < message.MarkerDisplayed || marker.MessageID == "" {
		return true
	}
	through := -1
	for index, msg := range state.messages {
		if msg.Meta().ID == marker.MessageID || message.StanzaIDOf(msg) == marker.MessageID {
			through = index
			break
		}
	}
	for index := 0; index <= through; index++ {
		text, ok := state.messages[index].(message.Text)
		if !ok || text.From != s.self || text.Read >= marker.Type {
			continue
		}
		text.Read = marker.Type
		state.messages[index] = text
	}
	return true
}

// Markers returns a copy of the room's markers keyed by user.
func (s *Store) Markers(roomID ref.RoomID) map[string]message.Marker {
	state, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	return maps.Clone(state.markers)
}
