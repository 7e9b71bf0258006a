// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package history stages archived messages while a backfill page is in
// flight.
//
// The archive streams a page as a sequence of result stanzas followed
// by a terminal fin. Results are staged per room in an [Accumulator]
// and only reach the timeline when the fin arrives and the page is
// drained with Return, so a half-delivered page is never rendered.
//
// The accumulator also holds reply/forward previews fetched by side
// queries, keyed by the referenced message's StanzaID, so a message
// rendered from history can show its preview before the original has
// been paged in. A preview is handed out once and then forgotten.
package history

import (
	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/message"
)

// Accumulator buffers backfilled messages and reference previews per
// room. One Accumulator serves the whole engine and is passed to the
// handlers that need it.
//
// Accumulator is not safe for concurrent use; the engine serializes
// all stanza handling.
type Accumulator struct {
	rooms      map[ref.RoomID]*page
	references map[referenceKey]message.Reference
}

// page is the staging state for one room's in-flight page.
type page struct {
	messages []message.Message

	// boundary is the oldest archive timestamp seen in this page,
	// including results that produced no message (fastenings).
	// Zero when nothing has been seen.
	boundary int64

	// results counts every archive result seen, message or not.
	results int
}

type referenceKey struct {
	room     ref.RoomID
	stanzaID string
}

// New returns an empty Accumulator.
func New() *Accumulator {
	return &Accumulator{
		rooms:      make(map[ref.RoomID]*page),
		references: make(map[referenceKey]message.Reference),
	}
}

// Page summarizes a drained page.
type Page struct {
	// Messages are the staged messages in arrival order.
	Messages []message.Message

	// Boundary is the oldest archive timestamp seen in the page (zero
	// when the page carried no results at all).
	Boundary int64

	// Results is the number of archive results the page carried,
	// including results that staged no message.
	Results int
}

// Add stages one archived message for its room.
func (a *Accumulator) Add(msg message.Message) {
	staged := a.page(msg.Meta().RoomID)
	staged.messages = append(staged.messages, msg)
	staged.observe(msg.Meta().Date)
}

// Observe records an archive result for roomID that did not stage a
// message (a fastening replayed from the archive). It still moves the
// page boundary so a fastening-only page is distinguishable from an
// empty one.
func (a *Accumulator) Observe(roomID ref.RoomID, date int64) {
	a.page(roomID).observe(date)
}

// Return drains the staged page for roomID and clears it.
func (a *Accumulator) Return(roomID ref.RoomID) Page {
	staged, ok := a.rooms[roomID]
	if !ok {
		return Page{}
	}
	delete(a.rooms, roomID)
	return Page{
		Messages: staged.messages,
		Boundary: staged.boundary,
		Results:  staged.results,
	}
}

// Pending returns the number of messages staged for roomID.
func (a *Accumulator) Pending(roomID ref.RoomID) int {
	if staged, ok := a.rooms[roomID]; ok {
		return len(staged.messages)
	}
	return 0
}

// AddReference stores a reply/forward preview for the message with
// the given StanzaID. A later preview for the same message replaces the
// earlier one.
func (a *Accumulator) AddReference(roomID ref.RoomID, reference message.Reference) {
	if reference.StanzaID == "" {
		return
	}
	a.references[referenceKey{room: roomID, stanzaID: reference.StanzaID}] = reference
}

// TakeReference returns and forgets the preview for stanzaID.
func (a *Accumulator) TakeReference(roomID ref.RoomID, stanzaID string) (message.Reference, bool) {
	key := referenceKey{room: roomID, stanzaID: stanzaID}
	reference, ok := a.references[key]
	if ok {
		delete(a.references, key)
	}
	return reference, ok
}

// Reset discards every staged page and preview. Called on reconnect,
// when in-flight pages can no longer complete.
func (a *Accumulator) Reset() {
	a.rooms = make(map[ref.RoomID]*page)
	a.references = make(map[referenceKey]message.Reference)
}

func (a *Accumulator) page(roomID ref.RoomID) *page {
	staged, ok := a.rooms[roomID]
	if !ok {
		staged = &page{}
		a.rooms[roomID] = staged
	}
	return staged
}

func (p *page) observe(date int64) {
	p.results++
	if date > 0 && (p.boundary == 0 || date < p.boundary) {
		p.boundary = date
	}
}
