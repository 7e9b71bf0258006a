// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/chatsync/lib/ref"
)

// Action is the operation a Fastening applies to its target.
type Action string

const (
	ActionDelete   Action = "delete"
	ActionEdit     Action = "edit"
	ActionReaction Action = "reaction"
)

// Fastening is a retroactive operation addressed to a previously
// delivered message by its StanzaID. Fastenings may arrive before
// their target is loaded into the timeline.
type Fastening struct {
	// ID is the fastening stanza's own identifier, used to make
	// redelivery idempotent.
	ID string

	RoomID           ref.RoomID
	Action           Action
	OriginalStanzaID string

	// Value is the new body for edits and the reaction payload for
	// reactions. Unused for deletes.
	Value string

	From string
	Date int64
}

// Validate checks that the fastening is addressable and its action is
// known.
func (f Fastening) Validate() error {
	if f.RoomID.IsZero() {
		return fmt.Errorf("fastening %q has no room", f.ID)
	}
	if f.OriginalStanzaID == "" {
		return fmt.Errorf("fastening %q has no target stanza ID", f.ID)
	}
	switch f.Action {
	case ActionDelete, ActionEdit, ActionReaction:
		return nil
	default:
		return fmt.Errorf("fastening %q has unknown action %q", f.ID, f.Action)
	}
}

// Key returns the deduplication key for f: its ID when present,
// otherwise a BLAKE3 digest of the fields that define the operation.
// Transports that strip stanza ids still replay to the same key.
func (f Fastening) Key() string {
	if f.ID != "" {
		return f.ID
	}
	hasher := blake3.New()
	for _, part := range []string{f.RoomID.String(), string(f.Action), f.OriginalStanzaID, f.Value, f.From} {
		hasher.Write([]byte(part))
		hasher.Write([]byte{0})
	}
	return "derived:" + hex.EncodeToString(hasher.Sum(nil)[:16])
}

// Reaction is one accumulated reaction record.
type Reaction struct {
	FasteningID string
	From        string
	Value       string
	Date        int64
}
