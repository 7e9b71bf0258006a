// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package persist stores per-room timeline snapshots in the local
// SQLite database so a restarted client can show its rooms before
// the first history page arrives.
//
// A snapshot is CBOR-encoded with the deterministic options of
// lib/codec and then compressed with zstd. Snapshots that do not
// shrink under compression are stored raw; each row records which
// encoding it used and the uncompressed size.
package persist
