// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging composes the chat sync engine for one signed-in
// account.
//
// [Engine] owns the per-room timelines, the history accumulator, the
// presence table and the typing notifier, and feeds inbound stanzas
// through a [dispatch.Dispatcher]. Every inbound stanza and every
// local action runs under a single mutex, so handlers observe and
// mutate room state one event at a time. The UI reads state through
// accessors that return copies.
//
// Local sends are optimistic: [Engine.Send] and [Engine.Reply] append
// the message before it reaches the server, and the server's echo
// fills in its permanent stanza id. [Engine.Edit] and [Engine.Delete]
// apply locally as soon as the transport accepts them, without
// waiting for the echo; whichever arrives second finds the change
// already made. Reactions are shown when the room echoes them.
//
// Local actions do not hold the mutex while the transport writes, so a
// slow write never stalls inbound stanzas. Protocol calls made while
// handling an inbound stanza (pongs, read markers, history pages) do
// run under it.
//
// The stanza transport can change underneath the engine. Protocol
// calls go through the [session.State], so [Engine.Reconnect] swaps
// the transport without rebuilding the dispatcher. A reconnect keeps
// timelines but drops staged history pages, typing lists and load
// guards; [Engine.Logout] drops everything including persisted
// snapshots.
package messaging
