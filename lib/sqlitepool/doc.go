// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the local SQLite database with the pragmas
// every chatsync store expects.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Callers either
// [Pool.Take] and [Pool.Put] a connection directly, or use
// [Pool.Read] and [Pool.Write], which borrow a connection for the
// duration of a callback and, for Write, run it inside an IMMEDIATE
// transaction that commits on success and rolls back on error.
// Connections are not safe for concurrent use.
//
// Every connection runs with:
//
//   - journal_mode=WAL, so the UI can read while the engine writes.
//   - synchronous=NORMAL. A snapshot lost to a power failure is
//     refetched from the server's archive on the next start.
//   - busy_timeout=5000.
//   - foreign_keys=ON.
//   - temp_store=MEMORY.
//
// The schema in [Config.Schema] runs on every new connection, so it
// must be idempotent (CREATE ... IF NOT EXISTS).
package sqlitepool
