// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// RoomID is the bare address of a multi-user room
// (e.g., "general@conference.chat.example").
//
// Every per-room structure in the engine is keyed by RoomID. Occupant
// addresses ("room@conference/nick") reduce to their room with
// RoomIDFromJID.
//
// RoomID is an immutable value type. The zero value is not valid; use
// IsZero to check.
type RoomID struct {
	jid JID
}

// ParseRoomID validates a raw room address. The address must have a
// localpart and must not carry a resource.
func ParseRoomID(raw string) (RoomID, error) {
	j, err := ParseJID(raw)
	if err != nil {
		return RoomID{}, fmt.Errorf("room ID: %w", err)
	}
	if j.Local() == "" {
		return RoomID{}, fmt.Errorf("room ID has no localpart: %q", raw)
	}
	if !j.IsBare() {
		return RoomID{}, fmt.Errorf("room ID must be a bare JID: %q", raw)
	}
	return RoomID{jid: j}, nil
}

// MustParseRoomID is like ParseRoomID but panics on error.
func MustParseRoomID(raw string) RoomID {
	r, err := ParseRoomID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseRoomID(%q): %v", raw, err))
	}
	return r
}

// RoomIDFromJID returns the room addressed by an occupant or room JID.
// Returns an error for server addresses without a localpart.
func RoomIDFromJID(j JID) (RoomID, error) {
	if j.IsZero() || j.Local() == "" {
		return RoomID{}, fmt.Errorf("JID %q does not address a room", j.String())
	}
	return RoomID{jid: j.Bare()}, nil
}

// JID returns the room's bare JID.
func (r RoomID) JID() JID { return r.jid }

// String returns the room address.
func (r RoomID) String() string { return r.jid.String() }

// IsZero reports whether the RoomID is the zero value (uninitialized).
func (r RoomID) IsZero() bool { return r.jid.IsZero() }

// MarshalText implements encoding.TextMarshaler.
func (r RoomID) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value.
func (r *RoomID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*r = RoomID{}
		return nil
	}
	parsed, err := ParseRoomID(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
