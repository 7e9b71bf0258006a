// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by everything that
// writes engine state to disk. The wire protocol is XML (package
// stanza); CBOR is used only for local timeline snapshots, where
// deterministic encoding (RFC 8949 §4.2: sorted map keys, smallest
// integer encoding, no indefinite-length items) lets the snapshot
// store skip rewriting a room whose state has not changed.
//
//	data, err := codec.Marshal(snapshot)
//	err = codec.Unmarshal(data, &snapshot)
package codec
