// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/chatsync/chatstate"
	"github.com/bureau-foundation/chatsync/history"
	"github.com/bureau-foundation/chatsync/lib/clock"
	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/message"
	"github.com/bureau-foundation/chatsync/stanza"
	"github.com/bureau-foundation/chatsync/timeline"
)

// DefaultPageSize is the number of messages requested per history page.
const DefaultPageSize = 30

// Config holds the collaborators a Dispatcher drives.
type Config struct {
	// Self is the local account. Its localpart is the local user's
	// nickname in rooms.
	Self ref.JID

	Outbound    stanza.Outbound
	Accumulator *history.Accumulator
	Timelines   *timeline.Store
	Presence    *chatstate.Presence

	// Clock stamps stanzas that carry no delay. Defaults to
	// clock.Real().
	Clock clock.Clock

	// PageSize is the history page size. Defaults to DefaultPageSize.
	PageSize int

	// NewID generates iq ids for history requests. Defaults to
	// uuid.NewString.
	NewID func() string

	// Logger defaults to discarding.
	Logger *slog.Logger
}

// Dispatcher handles inbound stanzas.
type Dispatcher struct {
	self        ref.JID
	nick        string
	outbound    stanza.Outbound
	accumulator *history.Accumulator
	timelines   *timeline.Store
	presence    *chatstate.Presence
	typing      chatstate.Typing
	clock       clock.Clock
	pageSize    int
	newID       func() string
	logger      *slog.Logger

	// pages holds each room's in-flight history request.
	pages map[ref.RoomID]pendingPage

	// cursors holds, per room, the archive id of the oldest result
	// received so far. The next page is requested from just before it.
	cursors map[ref.RoomID]string
}

// pendingPage is an in-flight history request.
type pendingPage struct {
	// id is the request's iq id; the fin and any error carry it back.
	id string

	// before and cursor are where the page was anchored, used to tell
	// whether a fastening-only page made progress.
	before int64
	cursor string
}

// New returns a Dispatcher. Self, Outbound, Accumulator, Timelines,
// and Presence are required.
func New(config Config) (*Dispatcher, error) {
	if config.Self.IsZero() || config.Self.Local() == "" {
		return nil, fmt.Errorf("dispatch: Self must be an account JID with a localpart")
	}
	if config.Outbound == nil || config.Accumulator == nil || config.Timelines == nil || config.Presence == nil {
		return nil, fmt.Errorf("dispatch: Outbound, Accumulator, Timelines, and Presence are required")
	}
	dispatcher := &Dispatcher{
		self:        config.Self,
		nick:        config.Self.Local(),
		outbound:    config.Outbound,
		accumulator: config.Accumulator,
		timelines:   config.Timelines,
		presence:    config.Presence,
		typing:      chatstate.Typing{Self: config.Self.Local()},
		clock:       config.Clock,
		pageSize:    config.PageSize,
		newID:       config.NewID,
		logger:      config.Logger,
		pages:       make(map[ref.RoomID]pendingPage),
		cursors:     make(map[ref.RoomID]string),
	}
	if dispatcher.clock == nil {
		dispatcher.clock = clock.Real()
	}
	if dispatcher.pageSize <= 0 {
		dispatcher.pageSize = DefaultPageSize
	}
	if dispatcher.newID == nil {
		dispatcher.newID = uuid.NewString
	}
	if dispatcher.logger == nil {
		dispatcher.logger = slog.New(slog.DiscardHandler)
	}
	return dispatcher, nil
}

// HandleRaw parses and handles one serialized stanza. Like Handle, it
// always returns true.
func (d *Dispatcher) HandleRaw(ctx context.Context, raw []byte) bool {
	parsed, err := stanza.Parse(raw)
	if err != nil {
		d.logger.Debug("dropping unparseable stanza", "error", err, "bytes", len(raw))
		return true
	}
	return d.Handle(ctx, parsed)
}

// Handle routes one stanza to its handler. It always returns true.
func (d *Dispatcher) Handle(ctx context.Context, inbound *stanza.Stanza) bool {
	kind := inbound.Classify()
	var err error
	switch kind {
	case stanza.KindPresence:
		err = d.handlePresence(ctx, inbound)
	case stanza.KindPing:
		err = d.outbound.SendPong(ctx, inbound)
	case stanza.KindArchiveFin:
		err = d.handleFin(ctx, inbound)
	case stanza.KindLastActivity:
		err = d.handleLastActivity(inbound)
	case stanza.KindError:
		d.handleError(inbound)
	case stanza.KindArchiveResult:
		err = d.handleArchiveResult(ctx, inbound)
	case stanza.KindFastening:
		err = d.handleFastening(inbound)
	case stanza.KindMessage:
		err = d.handleMessage(ctx, inbound)
	case stanza.KindMarker:
		err = d.handleMarker(inbound)
	case stanza.KindChatState:
		err = d.handleChatState(inbound)
	case stanza.KindUnknown:
		d.logger.Debug("dropping unrecognized stanza",
			"element", inbound.Name(),
			"id", inbound.ID,
			"from", inbound.From,
		)
	}
	if err != nil {
		d.logger.Warn("stanza handling failed",
			"kind", kind.String(),
			"id", inbound.ID,
			"from", inbound.From,
			"error", err,
		)
	}
	return true
}

// Reset drops in-flight history pages. Called on reconnect, when the
// server will not finish them. Paging cursors are kept: archive ids
// stay valid across connections.
func (d *Dispatcher) Reset() {
	d.accumulator.Reset()
	d.pages = make(map[ref.RoomID]pendingPage)
}

// Clear drops in-flight pages and paging cursors. Called when the
// timelines themselves are discarded.
func (d *Dispatcher) Clear() {
	d.Reset()
	d.cursors = make(map[ref.RoomID]string)
}

func (d *Dispatcher) now() int64 {
	return d.clock.Now().UnixMilli()
}

func (d *Dispatcher) isSelf(nick string) bool {
	return nick == d.nick
}

func (d *Dispatcher) handlePresence(ctx context.Context, inbound *stanza.Stanza) error {
	user, occupant, ok, err := presenceUser(inbound)
	if err != nil || !ok {
		return err
	}
	var followUp chatstate.FollowUp
	if occupant {
		followUp = d.presence.ApplyOccupant(user, inbound.Type)
	} else {
		followUp = d.presence.Apply(user, inbound.Type)
	}
	switch followUp {
	case chatstate.AssertPresence:
		if err := d.outbound.SendPresence(ctx); err != nil {
			return fmt.Errorf("re-asserting presence: %w", err)
		}
	case chatstate.FetchLastActivity:
		if err := d.outbound.GetLastActivity(ctx, user); err != nil {
			return fmt.Errorf("requesting last activity of %s: %w", user, err)
		}
	case chatstate.NoFollowUp:
	}
	return nil
}

// presenceUser returns the account a presence describes and whether it
// came through a room. Room occupant presences name the account in the
// muc#user item; occupants of anonymous rooms carry no account and are
// skipped.
func presenceUser(inbound *stanza.Stanza) (user ref.JID, occupant, ok bool, err error) {
	if inbound.MUCUser != nil {
		for _, item := range inbound.MUCUser.Items {
			if item.JID != "" {
				user, err = ref.ParseJID(item.JID)
				return user, true, err == nil, err
			}
		}
		return ref.JID{}, true, false, nil
	}
	user, err = ref.ParseJID(inbound.From)
	if err != nil {
		return ref.JID{}, false, false, fmt.Errorf("presence sender: %w", err)
	}
	return user, false, true, nil
}

func (d *Dispatcher) handleLastActivity(inbound *stanza.Stanza) error {
	user, err := ref.ParseJID(inbound.From)
	if err != nil {
		return fmt.Errorf("last activity sender: %w", err)
	}
	idle := time.Duration(inbound.LastActivity.Seconds) * time.Second
	d.presence.SetLastActivity(user, idle, d.clock.Now())
	return nil
}

// handleError logs a stanza error. An error iq answering a room's
// in-flight history request means the page will never finish, so the
// staged results are dropped and the load guard is released. Every
// other error (a rejected send, a failed reference lookup) leaves
// paging alone.
func (d *Dispatcher) handleError(inbound *stanza.Stanza) {
	stanzaErr := inbound.Err()
	if roomID, ok := d.pageAnsweredBy(inbound); ok {
		d.accumulator.Return(roomID)
		delete(d.pages, roomID)
		if conversation, open := d.timelines.LookupConversation(roomID); open {
			conversation.HistoryLoadDisabled = false
		}
		d.logger.Warn("history request failed",
			"room_id", roomID.String(),
			"id", inbound.ID,
			"error", stanzaErr,
		)
		return
	}
	d.logger.Warn("stanza error", "from", inbound.From, "id", inbound.ID, "error", stanzaErr)
}

// pageAnsweredBy returns the room whose in-flight history request an
// error iq answers, matched by iq id.
func (d *Dispatcher) pageAnsweredBy(inbound *stanza.Stanza) (ref.RoomID, bool) {
	if inbound.Name() != "iq" || inbound.ID == "" {
		return ref.RoomID{}, false
	}
	for roomID, pending := range d.pages {
		if pending.id == inbound.ID {
			return roomID, true
		}
	}
	return ref.RoomID{}, false
}

func (d *Dispatcher) handleFastening(inbound *stanza.Stanza) error {
	fastening, err := inbound.Fastening(d.now())
	if err != nil {
		return err
	}
	d.applyFastening(fastening)
	return nil
}

func (d *Dispatcher) applyFastening(fastening message.Fastening) {
	outcome := d.timelines.ApplyFastening(fastening)
	d.logger.Debug("fastening processed",
		"room_id", fastening.RoomID.String(),
		"action", string(fastening.Action),
		"stanza_id", fastening.OriginalStanzaID,
		"outcome", outcome.String(),
	)
}

func (d *Dispatcher) handleMessage(ctx context.Context, inbound *stanza.Stanza) error {
	converted, err := inbound.Message(d.now())
	if err != nil {
		return err
	}
	header := converted.Meta()

	if text, ok := converted.(message.Text); ok {
		converted = d.resolveReply(ctx, text)
		if conversation, open := d.timelines.LookupConversation(header.RoomID); open {
			conversation.Writing = d.typing.Apply(conversation.Writing, header.From, chatstate.Spoke)
		}
	}

	if !d.timelines.AppendMessage(converted) {
		return nil
	}

	text, ok := converted.(message.Text)
	if !ok || !text.Markable || d.isSelf(text.From) || text.StanzaID == "" {
		return nil
	}
	if _, open := d.timelines.LookupConversation(header.RoomID); !open {
		return nil
	}
	if err := d.outbound.ReadMessage(ctx, header.RoomID, text.StanzaID); err != nil {
		return fmt.Errorf("marking %s read: %w", text.StanzaID, err)
	}
	return nil
}

// resolveReply fills in a reply preview the stanza did not carry: from
// a previously fetched reference, from the loaded timeline, or by
// asking the archive for the original.
func (d *Dispatcher) resolveReply(ctx context.Context, text message.Text) message.Text {
	if text.ReplyTo == nil || text.ReplyTo.StanzaID == "" {
		return text
	}
	if reference, ok := d.accumulator.TakeReference(text.RoomID, text.ReplyTo.StanzaID); ok {
		text.ReplyTo = &reference
		return text
	}
	if text.ReplyTo.Body != "" || text.ReplyTo.Attachment != nil {
		return text
	}
	if original, ok := d.timelines.Lookup(text.RoomID, text.ReplyTo.StanzaID); ok {
		if source, isText := original.(message.Text); isText {
			text.ReplyTo = &message.Reference{
				StanzaID:   source.StanzaID,
				From:       source.From,
				Body:       source.Body,
				Attachment: source.Attachment,
			}
		}
		return text
	}
	if err := d.outbound.FetchReference(ctx, text.RoomID, text.ReplyTo.StanzaID); err != nil {
		d.logger.Warn("fetching reply reference failed",
			"room_id", text.RoomID.String(),
			"stanza_id", text.ReplyTo.StanzaID,
			"error", err,
		)
	}
	return text
}

func (d *Dispatcher) handleMarker(inbound *stanza.Stanza) error {
	roomID, marker, err := inbound.Marker(d.now())
	if err != nil {
		return err
	}
	d.timelines.SetMarker(roomID, marker)
	return nil
}

func (d *Dispatcher) handleChatState(inbound *stanza.Stanza) error {
	roomID, nick, err := stanza.Occupant(inbound.From)
	if err != nil {
		return err
	}
	conversation, open := d.timelines.LookupConversation(roomID)
	if !open {
		return nil
	}
	signal := chatstate.Paused
	if inbound.Composing != nil {
		signal = chatstate.Composing
	}
	conversation.Writing = d.typing.Apply(conversation.Writing, nick, signal)
	return nil
}
