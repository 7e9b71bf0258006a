// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session holds the connection-level state of one signed-in
// account: the local identity, the stanza transport currently in use,
// the REST backend client, and whether each link is reachable.
//
// A [State] is created once per sign-in. [State.Disconnect] drops the
// handles and reachability flags on reconnect while keeping the
// identity; [State.Clear] also forgets the identity on logout.
package session
