// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/session"
	"github.com/bureau-foundation/chatsync/stanza"
	"github.com/bureau-foundation/chatsync/timeline"
)

// Connect attaches a freshly established stanza transport and
// announces the local session as available.
func (e *Engine) Connect(ctx context.Context, outbound stanza.Outbound) error {
	if outbound == nil {
		return fmt.Errorf("messaging: Connect requires a transport")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.Attach(outbound, nil)
	e.presence.SetOnline(true)
	if err := e.outbound.SendPresence(ctx); err != nil {
		return fmt.Errorf("messaging: announcing presence: %w", err)
	}
	e.logger.Info("stanza transport connected", "self", e.self.String())
	return nil
}

// Disconnect records that the transport dropped. Room state is kept;
// call Reconnect once a new transport is up.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Disconnect()
	e.presence.SetOnline(false)
	e.notifier.Reset()
	e.logger.Info("stanza transport disconnected")
}

// Reconnect replaces the transport after a connection loss.
// Timelines, markers and reactions survive. Staged history pages,
// typing lists, load guards and remote presence are dropped, since
// the server will not finish or refresh them on the old stream.
func (e *Engine) Reconnect(ctx context.Context, outbound stanza.Outbound) error {
	e.mu.Lock()
	e.session.Disconnect()
	e.dispatcher.Reset()
	e.timelines.ResetTransient()
	e.presence.Reset()
	e.notifier.Reset()
	e.mu.Unlock()

	return e.Connect(ctx, outbound)
}

// Logout drops every piece of account state: timelines, presence,
// staged pages, the session handles and any persisted snapshots.
func (e *Engine) Logout(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.dispatcher.Clear()
	e.timelines.Reset()
	e.presence.Reset()
	e.notifier.Reset()
	e.session.Clear()

	if e.store != nil {
		if err := e.store.DeleteAll(ctx); err != nil {
			return fmt.Errorf("messaging: clearing stored snapshots: %w", err)
		}
	}
	e.logger.Info("logged out", "self", e.self.String())
	return nil
}

// OpenRoom opens a room's conversation. When the room has no loaded
// messages, or unreadCount is positive, the first history page is
// requested; the page size grows to cover the unread messages.
// Returns whether a request was sent.
func (e *Engine) OpenRoom(ctx context.Context, roomID ref.RoomID, unreadCount int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.timelines.Conversation(roomID)
	if len(e.timelines.Messages(roomID)) > 0 && unreadCount <= 0 {
		return false, nil
	}
	return e.dispatcher.RequestHistory(ctx, roomID, unreadCount)
}

// CloseRoom discards the room's conversation state. Its timeline is
// kept.
func (e *Engine) CloseRoom(ctx context.Context, roomID ref.RoomID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timelines.CloseConversation(roomID)
	e.messageSent(ctx, roomID)
}

// RequestOlderHistory asks for the page before the oldest loaded
// message. It returns false without sending when history is fully
// loaded or a page is already in flight.
func (e *Engine) RequestOlderHistory(ctx context.Context, roomID ref.RoomID) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatcher.RequestHistory(ctx, roomID, 0)
}

// CheckBackend probes the REST backend and records whether it is
// reachable.
func (e *Engine) CheckBackend(ctx context.Context) error {
	backend := e.session.Backend()
	if backend == nil {
		return fmt.Errorf("messaging: no backend attached")
	}
	_, err := backend.Status(ctx)
	e.session.SetReachable(session.LinkBackend, err == nil)
	if err != nil {
		return fmt.Errorf("messaging: backend unreachable: %w", err)
	}
	return nil
}

// Save persists a snapshot of every room. Without a Store it does
// nothing.
func (e *Engine) Save(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	e.mu.Lock()
	snapshots := make(map[ref.RoomID]timeline.Snapshot)
	for _, roomID := range e.timelines.Rooms() {
		if snapshot, ok := e.timelines.Snapshot(roomID); ok {
			snapshots[roomID] = snapshot
		}
	}
	e.mu.Unlock()

	savedAt := e.clock.Now()
	var errs []error
	for roomID, snapshot := range snapshots {
		errs = append(errs, e.store.Save(ctx, roomID, snapshot, savedAt))
	}
	return errors.Join(errs...)
}

// Load restores every persisted room. Rooms already holding state in
// memory are overwritten.
func (e *Engine) Load(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	snapshots, err := e.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("messaging: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for roomID, snapshot := range snapshots {
		errs = append(errs, e.timelines.Restore(roomID, snapshot))
	}
	e.logger.Debug("room snapshots loaded", "rooms", len(snapshots))
	return errors.Join(errs...)
}
