// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import "github.com/bureau-foundation/chatsync/message"

// ReferenceMode says what the composer is doing with
// Conversation.Reference.
type ReferenceMode int

const (
	ReferenceNone ReferenceMode = iota
	ReferenceReply
	ReferenceEdit
)

// Conversation is the ephemeral UI state of an open room. It exists
// from the first interaction with the room until the room is closed.
type Conversation struct {
	Draft                   string
	ScrollPositionMessageID string

	// HistoryFullyLoaded is set once the archive has no older pages.
	HistoryFullyLoaded bool

	// HistoryLoadDisabled is held while a history page is in flight,
	// so a second request for the same room is not issued.
	HistoryLoadDisabled bool

	// Writing lists the users currently typing, in the order they
	// started. Never contains the local user.
	Writing []string

	// Reference is the message being replied to or edited.
	Reference     *message.Text
	ReferenceMode ReferenceMode

	FilesToAttach []string
}
