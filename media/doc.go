// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package media keeps the set of meeting media streams this client
// receives in line with the set it wants.
//
// The caller computes a desired [Map] from which participants are
// visible or audible and hands it to [Reconciler.Update]. The
// reconciler diffs it against the streams it holds and issues only
// the delta to its [Controller]: keys desired but not held are
// subscribed, keys held but not desired are unsubscribed, and keys
// in both are left alone. Single streams can be toggled with
// [Reconciler.Add] and [Reconciler.Remove].
//
// Controller failures are returned to the caller joined into one
// error. Nothing is retried here; a stream whose subscribe failed is
// not recorded as held, so the next Update asks for it again.
//
// [PeerController] is the production controller: it receives each
// stream on a recvonly transceiver of one pion/webrtc PeerConnection
// and renegotiates through a caller-supplied signaling function.
package media
