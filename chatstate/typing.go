// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatstate

import "slices"

// Signal is a chat state transition reported by a remote user.
type Signal int

const (
	// Composing: the user started typing.
	Composing Signal = iota + 1

	// Paused: the user stopped typing.
	Paused

	// Spoke: the user sent a message, which ends any typing.
	Spoke
)

// Typing reduces chat state signals into a room's list of typing
// users. The zero value is usable but excludes nobody; set Self to the
// local user's nickname.
type Typing struct {
	// Self is never added to a typing list, even if a composing
	// signal for the local user is replayed to us.
	Self string
}

// Apply returns the typing list after user's signal. The input slice
// is not modified. Users appear in the order they started typing.
func (t Typing) Apply(writing []string, user string, signal Signal) []string {
	if user == "" || user == t.Self {
		return writing
	}
	index := slices.Index(writing, user)
	switch signal {
	case Composing:
		if index >= 0 {
			return writing
		}
		return append(slices.Clip(writing), user)
	case Paused, Spoke:
		if index < 0 {
			return writing
		}
		return slices.Delete(slices.Clone(writing), index, index+1)
	default:
		return writing
	}
}
