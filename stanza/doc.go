// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stanza defines the XMPP stanza shapes the sync engine reads
// and writes.
//
// A single [Stanza] struct models message, presence, and iq stanzas
// with every child element the engine inspects as an optional field.
// [Stanza.Classify] assigns a [Kind] by structural inspection, and the
// conversion helpers in this package turn a classified stanza into
// the engine's model types ([message.Message], [message.Fastening],
// [message.Marker]).
//
// Outbound protocol calls are expressed by the [Outbound] interface.
// [Writer] implements it by encoding stanzas onto an [io.Writer];
// tests substitute a recording fake.
//
// Server-reported failures surface as [*Error], which callers inspect
// with [IsStanzaError] the same way they would any other typed error.
package stanza
