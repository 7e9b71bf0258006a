// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "errors"

var (
	// ErrOffline is returned by protocol calls made while no stanza
	// transport is attached.
	ErrOffline = errors.New("messaging: not connected")

	// ErrMessageNotFound is returned when an edit, delete, reaction or
	// reply targets a stanza id the room's timeline does not hold.
	ErrMessageNotFound = errors.New("messaging: message not found")

	// ErrNotOwnMessage is returned when editing or deleting a message
	// another user sent.
	ErrNotOwnMessage = errors.New("messaging: message was sent by another user")

	// ErrEmptyMessage is returned by Send and Reply with neither body
	// nor attachment.
	ErrEmptyMessage = errors.New("messaging: message has no body or attachment")
)
