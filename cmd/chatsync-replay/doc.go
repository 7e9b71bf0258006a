// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// chatsync-replay feeds a recorded stanza stream through the sync
// engine and prints the state it ends in: each room's timeline with
// day separators, tombstones, edits and reactions, plus who is typing
// and the read markers.
//
// The capture is a file (or stdin) of concatenated stanzas, optionally
// wrapped in a <stream:stream> element. Stanzas the engine would send
// in response (read markers, history page requests, pongs) go to the
// --outbound file, or are discarded.
//
// Rooms named with --open are opened before replay, so typing and
// read markers apply to them the way they would in a live client.
//
// With --config, the account, history settings and store come from a
// chatsync config file; --save then persists the replayed rooms.
package main
