// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/chatsync/chatstate"
	"github.com/bureau-foundation/chatsync/dispatch"
	"github.com/bureau-foundation/chatsync/history"
	"github.com/bureau-foundation/chatsync/lib/clock"
	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/message"
	"github.com/bureau-foundation/chatsync/persist"
	"github.com/bureau-foundation/chatsync/session"
	"github.com/bureau-foundation/chatsync/stanza"
	"github.com/bureau-foundation/chatsync/timeline"
)

// Config holds the parameters for creating an Engine. Self is
// required; everything else has a default.
type Config struct {
	// Self is the signed-in account. Its localpart is the local
	// user's nickname in rooms.
	Self ref.JID

	// Session holds the transport and backend handles. Defaults to a
	// fresh session.State for Self with nothing attached.
	Session *session.State

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Location decides where day separators fall. Defaults to
	// time.Local.
	Location *time.Location

	// PageSize defaults to dispatch.DefaultPageSize.
	PageSize int

	// TypingThrottle and PausedAfter tune the outgoing typing
	// notifier. Zero selects the chatstate defaults.
	TypingThrottle time.Duration
	PausedAfter    time.Duration

	// Store persists room snapshots. Optional; without it Save and
	// Load do nothing.
	Store *persist.Store

	// NewID generates ids for locally sent messages. Defaults to
	// uuid.NewString.
	NewID func() string

	Logger *slog.Logger
}

// Engine is safe for concurrent use.
type Engine struct {
	self     ref.JID
	session  *session.State
	outbound sessionOutbound
	store    *persist.Store
	clock    clock.Clock
	newID    func() string
	logger   *slog.Logger

	// notifier guards its own state; its timers call the transport
	// without taking mu.
	notifier *chatstate.Notifier

	mu          sync.Mutex
	accumulator *history.Accumulator
	timelines   *timeline.Store
	presence    *chatstate.Presence
	dispatcher  *dispatch.Dispatcher
}

// New creates an Engine. No transport is attached until Connect.
func New(config Config) (*Engine, error) {
	if config.Self.IsZero() || config.Self.Local() == "" {
		return nil, fmt.Errorf("messaging: Self must be an account JID with a localpart")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	state := config.Session
	if state == nil {
		state = session.New(config.Self)
	}
	engineClock := config.Clock
	if engineClock == nil {
		engineClock = clock.Real()
	}
	location := config.Location
	if location == nil {
		location = time.Local
	}
	newID := config.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	outbound := sessionOutbound{state: state}
	accumulator := history.New()
	timelines := timeline.New(timeline.Options{Self: config.Self.Local(), Location: location})
	presence := chatstate.NewPresence(config.Self)

	dispatcher, err := dispatch.New(dispatch.Config{
		Self:        config.Self,
		Outbound:    outbound,
		Accumulator: accumulator,
		Timelines:   timelines,
		Presence:    presence,
		Clock:       engineClock,
		PageSize:    config.PageSize,
		Logger:      logger.With("component", "dispatch"),
	})
	if err != nil {
		return nil, fmt.Errorf("messaging: %w", err)
	}
	notifier, err := chatstate.NewNotifier(chatstate.NotifierConfig{
		Sender:      outbound,
		Clock:       engineClock,
		Throttle:    config.TypingThrottle,
		PausedAfter: config.PausedAfter,
		Logger:      logger.With("component", "typing"),
	})
	if err != nil {
		return nil, fmt.Errorf("messaging: %w", err)
	}

	return &Engine{
		self:        config.Self,
		session:     state,
		outbound:    outbound,
		store:       config.Store,
		clock:       engineClock,
		newID:       newID,
		logger:      logger,
		notifier:    notifier,
		accumulator: accumulator,
		timelines:   timelines,
		presence:    presence,
		dispatcher:  dispatcher,
	}, nil
}

// Handle processes one inbound stanza. It always returns true so the
// transport never stalls on a stanza the engine cannot use.
func (e *Engine) Handle(ctx context.Context, inbound *stanza.Stanza) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatcher.Handle(ctx, inbound)
}

// HandleRaw parses and processes one serialized stanza.
func (e *Engine) HandleRaw(ctx context.Context, raw []byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatcher.HandleRaw(ctx, raw)
}

// Session returns the connection state the engine sends through.
func (e *Engine) Session() *session.State {
	return e.session
}

// Self returns the account the engine was created for.
func (e *Engine) Self() ref.JID {
	return e.self
}

// Messages returns a copy of a room's timeline, day separators
// included.
func (e *Engine) Messages(roomID ref.RoomID) []message.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timelines.Messages(roomID)
}

// Rooms returns every room with a timeline, sorted by address.
func (e *Engine) Rooms() []ref.RoomID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timelines.Rooms()
}

// Conversation returns a copy of a room's conversation state. ok is
// false when the room is not open.
func (e *Engine) Conversation(roomID ref.RoomID) (timeline.Conversation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	conversation, ok := e.timelines.LookupConversation(roomID)
	if !ok {
		return timeline.Conversation{}, false
	}
	return copyConversation(conversation), true
}

// UpdateConversation runs fn on a room's conversation state under the
// engine lock, opening the conversation if needed. Use it for
// composer state: the draft, the reply or edit reference, the files
// to attach, the scroll position.
func (e *Engine) UpdateConversation(roomID ref.RoomID, fn func(conversation *timeline.Conversation)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.timelines.Conversation(roomID))
}

// Writing returns who is typing in a room, in the order they started.
func (e *Engine) Writing(roomID ref.RoomID) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	conversation, ok := e.timelines.LookupConversation(roomID)
	if !ok {
		return nil
	}
	return slices.Clone(conversation.Writing)
}

// Markers returns the latest chat marker per user in a room.
func (e *Engine) Markers(roomID ref.RoomID) map[string]message.Marker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timelines.Markers(roomID)
}

// Reactions returns the reactions on one message, in arrival order.
func (e *Engine) Reactions(roomID ref.RoomID, stanzaID string) []message.Reaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timelines.Reactions(roomID, stanzaID)
}

// Presence returns what is known about a user's availability.
func (e *Engine) Presence(user ref.JID) chatstate.UserPresence {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.presence.User(user)
}

// Online reports the local session's own presence.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.presence.Online()
}

func (e *Engine) now() int64 {
	return e.clock.Now().UnixMilli()
}

func copyConversation(conversation *timeline.Conversation) timeline.Conversation {
	result := *conversation
	result.Writing = slices.Clone(conversation.Writing)
	result.FilesToAttach = slices.Clone(conversation.FilesToAttach)
	if conversation.Reference != nil {
		reference := *conversation.Reference
		result.Reference = &reference
	}
	return result
}
