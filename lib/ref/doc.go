// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated, immutable addresses for the chat
// protocol: [JID] for any entity address (user, server, occupant) and
// [RoomID] for the bare address of a multi-user room.
//
// Addresses arrive from the wire as untyped strings and are parsed into
// these types at the stanza boundary. After parsing, equality is plain
// value comparison, so both types are usable as map keys. The canonical
// serialization form is the full string address, exposed through
// encoding.TextMarshaler for JSON and CBOR.
package ref
