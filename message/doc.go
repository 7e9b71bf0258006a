// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package message defines the timeline entry types and the retroactive
// operations that mutate them.
//
// [Message] is a sealed sum type with five variants: [Text] (a chat
// message with optional reply, forward, and attachment), [Deleted] (a
// retracted message holding its original position), [Affiliation] (a
// membership change), [Configuration] (a room metadata change), and
// [Date] (a synthetic day separator). Code that branches on the variant
// uses an exhaustive type switch; the unexported marker method keeps
// other packages from adding variants.
//
// Two identifiers exist for every delivered message. Header.ID is
// assigned by the sending client and is unique only within one room's
// in-memory timeline. StanzaID is assigned by the server archive, is
// permanent, and is the only identifier used to correlate a later
// [Fastening] (edit, delete, reaction) with an earlier message.
package message
