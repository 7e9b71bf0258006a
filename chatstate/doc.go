// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatstate tracks who is typing and who is online.
//
// The receiving side is purely event-driven. [Typing] is a reducer
// over a room's ordered list of typing users: a composing signal adds
// the sender, a paused signal or a message from the sender removes
// them, and nothing expires on a local timer. [Presence] folds
// presence stanzas and last-activity answers into a per-user table
// and tells the caller which follow-up protocol call to make.
//
// The sending side is [Notifier], which owns the two timers that make
// the receiver's passivity safe: composing is throttled to one signal
// per interval, and paused is emitted automatically once the user
// stops typing or immediately when a message is sent.
package chatstate
