// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch routes inbound stanzas to the handler for their
// kind and owns the history backfill protocol.
//
// [Dispatcher.Handle] classifies a stanza with [stanza.Stanza.Classify]
// and runs exactly one handler. It always returns true: the transport
// must never stall on a stanza the engine does not understand, so
// malformed and unknown stanzas are logged at debug level and dropped.
//
// History backfill works in pages. [Dispatcher.RequestHistory] sets
// the room's load guard and asks for the page before the oldest loaded
// message: before the archive id the previous fin reported as its
// first result, or up to the oldest loaded date when no page has
// finished yet. Each request carries its own iq id, and only a fin or
// error iq with that id ends it. Archive results are staged in the
// [history.Accumulator] until the page's fin arrives; then the page is
// merged into the timeline in one step and the fin decides what
// happens next:
//
//   - complete: the archive is exhausted, history is fully loaded.
//   - messages staged: the guard is released for the next scroll.
//   - nothing staged, but fastening results moved the cursor or the
//     boundary: the page was all retroactive operations, so the next
//     page is requested immediately from there, guard still held.
//   - nothing staged and no progress: history is fully loaded.
//
// Dispatcher is not safe for concurrent use; the engine serializes
// calls.
package dispatch
