// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"slices"

	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/message"
)

// Outcome reports what ApplyFastening did.
type Outcome int

const (
	// Applied: the timeline or reaction list changed.
	Applied Outcome = iota + 1

	// Deferred: the deletion target is not loaded; the deletion is
	// parked until it is.
	Deferred

	// Unchanged: the target already reflects the operation (an edit
	// to identical text, a delete of a tombstone).
	Unchanged

	// Ignored: the operation cannot apply (an edit of a missing or
	// deleted message, an invalid fastening).
	Ignored

	// Duplicate: a fastening with the same key was already processed.
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Deferred:
		return "deferred"
	case Unchanged:
		return "unchanged"
	case Ignored:
		return "ignored"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// ApplyFastening applies a retroactive operation to its room.
// Redelivery of the same fastening (same Key) is reported as Duplicate
// and changes nothing.
func (s *Store) ApplyFastening(fastening message.Fastening) Outcome {
	if fastening.Validate() != nil {
		return Ignored
	}
	state := s.room(fastening.RoomID)
	key := fastening.Key()
	if _, seen := state.applied[key]; seen {
		return Duplicate
	}

	var outcome Outcome
	switch fastening.Action {
	case message.ActionDelete:
		outcome = state.applyDelete(fastening)
	case message.ActionEdit:
		outcome = state.applyEdit(fastening)
	case message.ActionReaction:
		state.reactions[fastening.OriginalStanzaID] = append(state.reactions[fastening.OriginalStanzaID], message.Reaction{
			FasteningID: key,
			From:        fastening.From,
			Value:       fastening.Value,
			Date:        fastening.Date,
		})
		outcome = Applied
	}

	// A dropped edit is not recorded so a replay after the target
	// loads can still apply it.
	if outcome != Ignored {
		state.applied[key] = struct{}{}
	}
	return outcome
}

func (r *room) applyDelete(fastening message.Fastening) Outcome {
	index := r.findStanzaID(fastening.OriginalStanzaID)
	if index < 0 {
		r.pendingDeletions[fastening.OriginalStanzaID] = fastening
		return Deferred
	}
	switch target := r.messages[index].(type) {
	case message.Text:
		r.messages[index] = message.Delete(target)
		return Applied
	case message.Deleted:
		return Unchanged
	default:
		return Ignored
	}
}

func (r *room) applyEdit(fastening message.Fastening) Outcome {
	index := r.findStanzaID(fastening.OriginalStanzaID)
	if index < 0 {
		return Ignored
	}
	target, ok := r.messages[index].(message.Text)
	if !ok {
		return Ignored
	}
	if target.Body == fastening.Value {
		return Unchanged
	}
	target.Body = fastening.Value
	target.Edited = true
	r.messages[index] = target
	return Applied
}

// Reactions returns the reactions accumulated for a message, in
// arrival order.
func (s *Store) Reactions(roomID ref.RoomID, stanzaID string) []message.Reaction {
	state, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	return slices.Clone(state.reactions[stanzaID])
}

// PendingDeletion reports whether a deletion for stanzaID is parked.
func (s *Store) PendingDeletion(roomID ref.RoomID, stanzaID string) bool {
	state, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	_, pending := state.pendingDeletions[stanzaID]
	return pending
}
