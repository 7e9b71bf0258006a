// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"cmp"
	"slices"
	"time"

	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/message"
)

// Store owns every room's timeline. Rooms are fully independent; a
// room's state is created on first use.
//
// Store is not safe for concurrent use. The engine serializes access.
type Store struct {
	self          string
	location      *time.Location
	rooms         map[ref.RoomID]*room
	conversations map[ref.RoomID]*Conversation
}

// room is one room's timeline and decorations.
type room struct {
	messages []message.Message

	// markers holds each user's latest read marker.
	markers map[string]message.Marker

	// reactions accumulates reactions per target StanzaID.
	reactions map[string][]message.Reaction

	// pendingDeletions holds delete fastenings whose target StanzaID
	// has not been loaded yet.
	pendingDeletions map[string]message.Fastening

	// applied is the set of fastening keys already processed.
	applied map[string]struct{}
}

// Options configures a Store.
type Options struct {
	// Self is the local user's nickname, as it appears in message
	// From fields. Read markers from Self never mark messages read.
	Self string

	// Location is the time zone day separators are computed in.
	// Defaults to time.Local.
	Location *time.Location
}

// New returns an empty Store.
func New(options Options) *Store {
	location := options.Location
	if location == nil {
		location = time.Local
	}
	return &Store{
		self:          options.Self,
		location:      location,
		rooms:         make(map[ref.RoomID]*room),
		conversations: make(map[ref.RoomID]*Conversation),
	}
}

func (s *Store) room(roomID ref.RoomID) *room {
	state, ok := s.rooms[roomID]
	if !ok {
		state = &room{
			markers:          make(map[string]message.Marker),
			reactions:        make(map[string][]message.Reaction),
			pendingDeletions: make(map[string]message.Fastening),
			applied:          make(map[string]struct{}),
		}
		s.rooms[roomID] = state
	}
	return state
}

// AppendMessage adds a live message to its room. It returns false
// when the message was already present (matched by ID or StanzaID);
// a duplicate that carries a StanzaID the stored copy lacks (the
// server echo of a local send) fills it in. A parked deletion for the
// message's StanzaID is applied on arrival. Date separators passed in
// are ignored; the store places its own.
func (s *Store) AppendMessage(msg message.Message) bool {
	if _, isDate := msg.(message.Date); isDate {
		return false
	}
	state := s.room(msg.Meta().RoomID)
	if index := state.find(msg); index >= 0 {
		state.absorbDuplicate(index, msg)
		return false
	}
	msg = state.resolvePendingDeletion(msg)

	date := msg.Meta().Date
	last := state.lastContent()
	if last == nil || last.Meta().Date <= date {
		if last != nil && !message.SameDay(last.Meta().Date, date, s.location) {
			state.messages = append(state.messages, message.DaySeparator(msg.Meta().RoomID, date, s.location))
		}
		state.messages = append(state.messages, msg)
		return true
	}

	// Older than the newest entry (sender clock skew): insert in date
	// order and recompute separators around it.
	content := append(state.content(), msg)
	slices.SortStableFunc(content, byDate)
	state.messages = s.withSeparators(content)
	return true
}

// MergeHistory merges a drained history page into its room. Entries
// already present are skipped, parked deletions are applied, and the
// room is re-sorted stably by date with existing entries ahead of new
// ones on equal dates. Returns the number of entries added.
func (s *Store) MergeHistory(roomID ref.RoomID, batch []message.Message) int {
	state := s.room(roomID)
	content := state.content()
	added := 0
	for _, msg := range batch {
		if _, isDate := msg.(message.Date); isDate {
			continue
		}
		if msg.Meta().RoomID != roomID {
			continue
		}
		if index := indexOf(content, msg); index >= 0 {
			absorbInto(content, index, msg)
			content[index] = state.resolvePendingDeletion(content[index])
			continue
		}
		content = append(content, state.resolvePendingDeletion(msg))
		added++
	}
	slices.SortStableFunc(content, byDate)
	state.messages = s.withSeparators(content)
	return added
}

// ReplaceMessage swaps the entry with msg's ID for msg, keeping its
// position. Returns false if no entry has that ID.
func (s *Store) ReplaceMessage(msg message.Message) bool {
	state, ok := s.rooms[msg.Meta().RoomID]
	if !ok {
		return false
	}
	for index, existing := range state.messages {
		if _, isDate := existing.(message.Date); isDate {
			continue
		}
		if existing.Meta().ID == msg.Meta().ID {
			state.messages[index] = msg
			return true
		}
	}
	return false
}

// RemoveMessage drops the entry with the given ID and lays out the
// separators again. Returns false if no entry has that ID.
func (s *Store) RemoveMessage(roomID ref.RoomID, id string) bool {
	state, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	content := state.content()
	for index, existing := range content {
		if existing.Meta().ID == id {
			state.messages = s.withSeparators(slices.Delete(content, index, index+1))
			return true
		}
	}
	return false
}

// Messages returns a copy of the room's timeline.
func (s *Store) Messages(roomID ref.RoomID) []message.Message {
	state, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	return slices.Clone(state.messages)
}

// Lookup returns the entry with the given StanzaID.
func (s *Store) Lookup(roomID ref.RoomID, stanzaID string) (message.Message, bool) {
	state, ok := s.rooms[roomID]
	if !ok || stanzaID == "" {
		return nil, false
	}
	if index := state.findStanzaID(stanzaID); index >= 0 {
		return state.messages[index], true
	}
	return nil, false
}

// Oldest returns the date of the room's oldest entry, or zero for an
// empty room. History requests page backwards from here.
func (s *Store) Oldest(roomID ref.RoomID) int64 {
	state, ok := s.rooms[roomID]
	if !ok {
		return 0
	}
	for _, msg := range state.messages {
		if _, isDate := msg.(message.Date); !isDate {
			return msg.Meta().Date
		}
	}
	return 0
}

// Rooms returns every room with state, sorted by address.
func (s *Store) Rooms() []ref.RoomID {
	result := make([]ref.RoomID, 0, len(s.rooms))
	for roomID := range s.rooms {
		result = append(result, roomID)
	}
	slices.SortFunc(result, func(a, b ref.RoomID) int { return cmp.Compare(a.String(), b.String()) })
	return result
}

// Conversation returns the room's conversation state, creating it on
// first use. The returned pointer stays valid until CloseConversation.
func (s *Store) Conversation(roomID ref.RoomID) *Conversation {
	conversation, ok := s.conversations[roomID]
	if !ok {
		conversation = &Conversation{}
		s.conversations[roomID] = conversation
	}
	return conversation
}

// LookupConversation returns the room's conversation state without
// creating it.
func (s *Store) LookupConversation(roomID ref.RoomID) (*Conversation, bool) {
	conversation, ok := s.conversations[roomID]
	return conversation, ok
}

// CloseConversation discards the room's conversation state. The
// timeline itself is kept.
func (s *Store) CloseConversation(roomID ref.RoomID) {
	delete(s.conversations, roomID)
}

// ResetTransient clears state that does not survive a reconnect:
// typing lists and in-flight history guards. Timelines, markers, and
// reactions are kept.
func (s *Store) ResetTransient() {
	for _, conversation := range s.conversations {
		conversation.Writing = nil
		conversation.HistoryLoadDisabled = false
	}
}

// Reset discards every room.
func (s *Store) Reset() {
	s.rooms = make(map[ref.RoomID]*room)
	s.conversations = make(map[ref.RoomID]*Conversation)
}

// withSeparators lays out content-only entries (already sorted) with a
// separator before each day change.
func (s *Store) withSeparators(content []message.Message) []message.Message {
	result := make([]message.Message, 0, len(content)+len(content)/8)
	for index, msg := range content {
		if index > 0 && !message.SameDay(content[index-1].Meta().Date, msg.Meta().Date, s.location) {
			result = append(result, message.DaySeparator(msg.Meta().RoomID, msg.Meta().Date, s.location))
		}
		result = append(result, msg)
	}
	return result
}

// content returns the room's entries without separators.
func (r *room) content() []message.Message {
	result := make([]message.Message, 0, len(r.messages))
	for _, msg := range r.messages {
		if _, isDate := msg.(message.Date); !isDate {
			result = append(result, msg)
		}
	}
	return result
}

func (r *room) lastContent() message.Message {
	for index := len(r.messages) - 1; index >= 0; index-- {
		if _, isDate := r.messages[index].(message.Date); !isDate {
			return r.messages[index]
		}
	}
	return nil
}

func (r *room) find(msg message.Message) int {
	return indexOf(r.messages, msg)
}

func (r *room) findStanzaID(stanzaID string) int {
	for index, existing := range r.messages {
		if message.StanzaIDOf(existing) == stanzaID {
			return index
		}
	}
	return -1
}

func (r *room) absorbDuplicate(index int, msg message.Message) {
	absorbInto(r.messages, index, msg)
	r.messages[index] = r.resolvePendingDeletion(r.messages[index])
}

// resolvePendingDeletion converts msg to its tombstone when a deletion
// for its StanzaID is parked, and clears the parked entry.
func (r *room) resolvePendingDeletion(msg message.Message) message.Message {
	text, ok := msg.(message.Text)
	if !ok || text.StanzaID == "" {
		return msg
	}
	if _, pending := r.pendingDeletions[text.StanzaID]; !pending {
		return msg
	}
	delete(r.pendingDeletions, text.StanzaID)
	return message.Delete(text)
}

// indexOf finds the entry in entries that msg duplicates: same ID, or
// same non-empty StanzaID. Separators never match.
func indexOf(entries []message.Message, msg message.Message) int {
	id := msg.Meta().ID
	stanzaID := message.StanzaIDOf(msg)
	for index, existing := range entries {
		if _, isDate := existing.(message.Date); isDate {
			continue
		}
		if existing.Meta().ID == id {
			return index
		}
		if stanzaID != "" && message.StanzaIDOf(existing) == stanzaID {
			return index
		}
	}
	return -1
}

// absorbInto fills in the server StanzaID on a stored local copy when
// its duplicate carries one.
func absorbInto(entries []message.Message, index int, duplicate message.Message) {
	stored, ok := entries[index].(message.Text)
	if !ok || stored.StanzaID != "" {
		return
	}
	if stanzaID := message.StanzaIDOf(duplicate); stanzaID != "" {
		stored.StanzaID = stanzaID
		entries[index] = stored
	}
}

func byDate(a, b message.Message) int {
	return cmp.Compare(a.Meta().Date, b.Meta().Date)
}
