// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/chatsync/history"
	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/message"
	"github.com/bureau-foundation/chatsync/stanza"
)

// RequestHistory asks for the page of history before the room's
// oldest loaded message. It returns false without sending anything
// when history is fully loaded or a page is already in flight. A
// transport failure releases the load guard so the caller may retry.
//
// Once a page has finished, the next one is anchored on the archive id
// of that page's oldest result. Before that, it is anchored on the
// date of the oldest loaded message, inclusively.
func (d *Dispatcher) RequestHistory(ctx context.Context, roomID ref.RoomID, unreadCount int) (bool, error) {
	conversation := d.timelines.Conversation(roomID)
	if conversation.HistoryFullyLoaded || conversation.HistoryLoadDisabled {
		return false, nil
	}
	conversation.HistoryLoadDisabled = true
	anchor := pendingPage{cursor: d.cursors[roomID]}
	if anchor.cursor == "" {
		anchor.before = d.timelines.Oldest(roomID)
	}
	if err := d.requestPage(ctx, roomID, anchor, unreadCount); err != nil {
		conversation.HistoryLoadDisabled = false
		return false, err
	}
	return true, nil
}

func (d *Dispatcher) requestPage(ctx context.Context, roomID ref.RoomID, anchor pendingPage, unreadCount int) error {
	anchor.id = d.newID()
	d.pages[roomID] = anchor
	query := stanza.HistoryQuery{
		ID:          anchor.id,
		RoomID:      roomID,
		Cursor:      anchor.cursor,
		Before:      anchor.before,
		PageSize:    d.pageSize,
		UnreadCount: unreadCount,
	}
	if err := d.outbound.RequestHistory(ctx, query); err != nil {
		delete(d.pages, roomID)
		return fmt.Errorf("dispatch: requesting history for %s: %w", roomID, err)
	}
	d.logger.Debug("history page requested",
		"room_id", roomID.String(),
		"id", anchor.id,
		"cursor", anchor.cursor,
		"before", anchor.before,
		"page_size", query.Limit(),
	)
	return nil
}

func (d *Dispatcher) handleArchiveResult(ctx context.Context, inbound *stanza.Stanza) error {
	archived, err := inbound.Archived()
	if err != nil {
		return err
	}

	if inbound.IsReferenceAnswer() {
		return d.handleReference(archived)
	}

	roomID, _, err := stanza.Occupant(archived.From)
	if err != nil {
		return err
	}
	date := archived.Timestamp(0)

	switch archived.Classify() {
	case stanza.KindFastening:
		d.accumulator.Observe(roomID, date)
		fastening, err := archived.Fastening(date)
		if err != nil {
			return err
		}
		d.applyFastening(fastening)
	case stanza.KindMessage:
		converted, err := archived.Message(date)
		if err != nil {
			d.accumulator.Observe(roomID, date)
			return err
		}
		if text, ok := converted.(message.Text); ok {
			converted = d.resolveReply(ctx, text)
		}
		d.accumulator.Add(converted)
	default:
		// Markers and chat states in the archive carry no timeline
		// content but still mark how far back the page reached.
		d.accumulator.Observe(roomID, date)
	}
	return nil
}

// handleReference stores a single-message lookup answer. A loaded
// message already waiting on the preview takes it directly; otherwise
// it waits in the accumulator for the message that needs it.
func (d *Dispatcher) handleReference(archived *stanza.Stanza) error {
	roomID, _, err := stanza.Occupant(archived.From)
	if err != nil {
		return err
	}
	reference, err := archived.Reference()
	if err != nil {
		return err
	}
	filled := false
	for _, msg := range d.timelines.Messages(roomID) {
		text, ok := msg.(message.Text)
		if !ok || text.ReplyTo == nil || text.ReplyTo.StanzaID != reference.StanzaID || text.ReplyTo.Body != "" {
			continue
		}
		preview := reference
		text.ReplyTo = &preview
		d.timelines.ReplaceMessage(text)
		filled = true
	}
	if !filled {
		d.accumulator.AddReference(roomID, reference)
	}
	return nil
}

func (d *Dispatcher) handleFin(ctx context.Context, inbound *stanza.Stanza) error {
	if inbound.IsReferenceAnswer() {
		return nil
	}
	roomID, err := inbound.FinRoom()
	if err != nil {
		return err
	}
	pending, inFlight := d.pages[roomID]
	if !inFlight || (inbound.ID != "" && inbound.ID != pending.id) {
		// The page was abandoned (error, reconnect) or superseded.
		d.logger.Debug("dropping fin with no matching history request",
			"room_id", roomID.String(),
			"id", inbound.ID,
		)
		return nil
	}
	delete(d.pages, roomID)

	page := d.accumulator.Return(roomID)
	added := d.timelines.MergeHistory(roomID, page.Messages)
	cursor := inbound.FinCursor()
	if cursor != "" {
		d.cursors[roomID] = cursor
	}

	conversation := d.timelines.Conversation(roomID)
	complete := inbound.Fin.Complete
	d.logger.Debug("history page finished",
		"room_id", roomID.String(),
		"complete", complete,
		"staged", len(page.Messages),
		"added", added,
		"results", page.Results,
		"cursor", cursor,
	)

	switch {
	case complete:
		conversation.HistoryFullyLoaded = true
		conversation.HistoryLoadDisabled = false
	case len(page.Messages) > 0:
		conversation.HistoryLoadDisabled = false
	case progressed(page, pending, cursor):
		// A page of nothing but fastenings: continue from where it
		// reached instead of treating it as the end of the archive.
		next := pendingPage{cursor: cursor}
		if cursor == "" {
			next.before = page.Boundary
		}
		if err := d.requestPage(ctx, roomID, next, 0); err != nil {
			conversation.HistoryLoadDisabled = false
			return err
		}
	default:
		conversation.HistoryFullyLoaded = true
		conversation.HistoryLoadDisabled = false
	}
	return nil
}

// progressed reports whether an empty page still reached further back
// than the point it was requested from: a new archive cursor when the
// server reports one, an older result date otherwise.
func progressed(page history.Page, anchor pendingPage, cursor string) bool {
	if page.Results == 0 {
		return false
	}
	if cursor != "" {
		return cursor != anchor.cursor
	}
	if page.Boundary <= 0 {
		return false
	}
	return anchor.before <= 0 || page.Boundary < anchor.before
}
