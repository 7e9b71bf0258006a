// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"fmt"
	"maps"
	"slices"

	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/message"
)

// Snapshot is the persistable state of one room. Day separators are
// not stored; Restore lays them out again in the store's time zone.
type Snapshot struct {
	Messages         []message.Record              `cbor:"messages"`
	Markers          []message.Marker              `cbor:"markers,omitempty"`
	Reactions        map[string][]message.Reaction `cbor:"reactions,omitempty"`
	PendingDeletions []message.Fastening           `cbor:"pending_deletions,omitempty"`
	Applied          []string                      `cbor:"applied,omitempty"`
}

// Snapshot captures the room's state. ok is false for a room the store
// has never seen.
func (s *Store) Snapshot(roomID ref.RoomID) (snapshot Snapshot, ok bool) {
	state, ok := s.rooms[roomID]
	if !ok {
		return Snapshot{}, false
	}
	for _, msg := range state.content() {
		snapshot.Messages = append(snapshot.Messages, message.ToRecord(msg))
	}
	for _, user := range slices.Sorted(maps.Keys(state.markers)) {
		snapshot.Markers = append(snapshot.Markers, state.markers[user])
	}
	if len(state.reactions) > 0 {
		snapshot.Reactions = make(map[string][]message.Reaction, len(state.reactions))
		for stanzaID, reactions := range state.reactions {
			snapshot.Reactions[stanzaID] = slices.Clone(reactions)
		}
	}
	for _, stanzaID := range slices.Sorted(maps.Keys(state.pendingDeletions)) {
		snapshot.PendingDeletions = append(snapshot.PendingDeletions, state.pendingDeletions[stanzaID])
	}
	snapshot.Applied = slices.Sorted(maps.Keys(state.applied))
	return snapshot, true
}

// Restore replaces the room's state with snapshot.
func (s *Store) Restore(roomID ref.RoomID, snapshot Snapshot) error {
	content := make([]message.Message, 0, len(snapshot.Messages))
	for _, record := range snapshot.Messages {
		msg, err := record.Message()
		if err != nil {
			return fmt.Errorf("restoring %s: %w", roomID, err)
		}
		if msg.Meta().RoomID != roomID {
			return fmt.Errorf("restoring %s: message %q belongs to %s", roomID, msg.Meta().ID, msg.Meta().RoomID)
		}
		if _, isDate := msg.(message.Date); isDate {
			continue
		}
		content = append(content, msg)
	}
	slices.SortStableFunc(content, byDate)

	delete(s.rooms, roomID)
	state := s.room(roomID)
	state.messages = s.withSeparators(content)
	for _, marker := range snapshot.Markers {
		state.markers[marker.From] = marker
	}
	for stanzaID, reactions := range snapshot.Reactions {
		state.reactions[stanzaID] = slices.Clone(reactions)
	}
	for _, fastening := range snapshot.PendingDeletions {
		state.pendingDeletions[fastening.OriginalStanzaID] = fastening
	}
	for _, key := range snapshot.Applied {
		state.applied[key] = struct{}{}
	}
	return nil
}
