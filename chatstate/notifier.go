// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatstate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/chatsync/lib/clock"
	"github.com/bureau-foundation/chatsync/lib/ref"
)

// Default sender-side timings.
const (
	DefaultThrottle    = 3 * time.Second
	DefaultPausedAfter = 3500 * time.Millisecond
)

// Sender publishes the local chat state. stanza.Outbound satisfies it.
type Sender interface {
	SendIsWriting(ctx context.Context, roomID ref.RoomID) error
	SendPaused(ctx context.Context, roomID ref.RoomID) error
}

// NotifierConfig configures a Notifier.
type NotifierConfig struct {
	Sender Sender

	// Clock drives the throttle and the paused timer. Defaults to
	// clock.Real().
	Clock clock.Clock

	// Throttle is the minimum interval between composing signals for
	// one room. Defaults to DefaultThrottle.
	Throttle time.Duration

	// PausedAfter is the idle time after the last keystroke before
	// paused is sent. Defaults to DefaultPausedAfter.
	PausedAfter time.Duration

	// Logger receives failures of timer-driven sends, which have no
	// caller to return to. Defaults to discarding.
	Logger *slog.Logger
}

// Notifier turns local keystrokes into throttled composing signals and
// a trailing paused signal. Safe for concurrent use; timer callbacks
// and UI calls may race.
type Notifier struct {
	sender      Sender
	clock       clock.Clock
	throttle    time.Duration
	pausedAfter time.Duration
	logger      *slog.Logger

	mu    sync.Mutex
	rooms map[ref.RoomID]*composition
}

// composition is the local typing state in one room.
type composition struct {
	composing     bool
	lastComposing time.Time
	pauseTimer    *clock.Timer

	// generation invalidates a pause timer that fired after being
	// superseded but before it could take the lock.
	generation uint64
}

// NewNotifier returns a Notifier. Sender is required.
func NewNotifier(config NotifierConfig) (*Notifier, error) {
	if config.Sender == nil {
		return nil, fmt.Errorf("chatstate: notifier requires a Sender")
	}
	notifier := &Notifier{
		sender:      config.Sender,
		clock:       config.Clock,
		throttle:    config.Throttle,
		pausedAfter: config.PausedAfter,
		logger:      config.Logger,
		rooms:       make(map[ref.RoomID]*composition),
	}
	if notifier.clock == nil {
		notifier.clock = clock.Real()
	}
	if notifier.throttle <= 0 {
		notifier.throttle = DefaultThrottle
	}
	if notifier.pausedAfter <= 0 {
		notifier.pausedAfter = DefaultPausedAfter
	}
	if notifier.logger == nil {
		notifier.logger = slog.New(slog.DiscardHandler)
	}
	return notifier, nil
}

// Keystroke records local typing in roomID. It sends composing unless
// one was sent within the throttle interval, and restarts the paused
// timer.
func (n *Notifier) Keystroke(ctx context.Context, roomID ref.RoomID) error {
	n.mu.Lock()
	state, ok := n.rooms[roomID]
	if !ok {
		state = &composition{}
		n.rooms[roomID] = state
	}
	now := n.clock.Now()
	send := !state.composing || now.Sub(state.lastComposing) >= n.throttle
	if send {
		state.lastComposing = now
	}
	state.composing = true
	if state.pauseTimer != nil {
		state.pauseTimer.Stop()
	}
	state.generation++
	generation := state.generation
	state.pauseTimer = n.clock.AfterFunc(n.pausedAfter, func() { n.expire(roomID, generation) })
	n.mu.Unlock()

	if !send {
		return nil
	}
	if err := n.sender.SendIsWriting(ctx, roomID); err != nil {
		return fmt.Errorf("chatstate: sending composing to %s: %w", roomID, err)
	}
	return nil
}

// MessageSent ends local typing in roomID immediately. It sends paused
// only if composing was announced.
func (n *Notifier) MessageSent(ctx context.Context, roomID ref.RoomID) error {
	if !n.stop(roomID) {
		return nil
	}
	if err := n.sender.SendPaused(ctx, roomID); err != nil {
		return fmt.Errorf("chatstate: sending paused to %s: %w", roomID, err)
	}
	return nil
}

// Reset cancels every pending paused timer without sending anything.
// Called when the session goes away, since the server drops chat
// states with it.
func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, state := range n.rooms {
		if state.pauseTimer != nil {
			state.pauseTimer.Stop()
		}
	}
	n.rooms = make(map[ref.RoomID]*composition)
}

func (n *Notifier) expire(roomID ref.RoomID, generation uint64) {
	n.mu.Lock()
	state, ok := n.rooms[roomID]
	if !ok || state.generation != generation || !state.composing {
		n.mu.Unlock()
		return
	}
	state.composing = false
	state.pauseTimer = nil
	n.mu.Unlock()

	if err := n.sender.SendPaused(context.Background(), roomID); err != nil {
		n.logger.Warn("sending paused chat state failed",
			"room_id", roomID.String(),
			"error", err,
		)
	}
}

// stop clears the room's composing state and reports whether it was
// set.
func (n *Notifier) stop(roomID ref.RoomID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	state, ok := n.rooms[roomID]
	if !ok || !state.composing {
		return false
	}
	state.composing = false
	state.generation++
	if state.pauseTimer != nil {
		state.pauseTimer.Stop()
		state.pauseTimer = nil
	}
	return true
}
