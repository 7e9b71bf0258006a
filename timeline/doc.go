// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package timeline holds the authoritative per-room message timelines
// and the state that decorates them: read markers, reactions, pending
// deletions, and the per-room conversation UI state.
//
// Every mutation goes through a [Store] method (AppendMessage,
// MergeHistory, ReplaceMessage, ApplyFastening, SetMarker), which keep
// three properties for each room:
//
//   - Entries are ordered by Date, non-decreasing. History merges sort
//     stably, so entries with equal dates keep arrival order.
//   - No two entries share an ID or a non-empty StanzaID. A message
//     delivered twice (a server echo of a local send, a page fetched
//     again) updates the first copy instead of appending.
//   - A day separator precedes the first entry of each calendar day
//     except the first entry of the timeline.
//
// Fastenings that reference a message not yet loaded are handled per
// action: deletions are parked and applied when the message arrives,
// reactions accumulate independently of their target, and edits are
// dropped because the archive serves edited content directly.
package timeline
