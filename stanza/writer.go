// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stanza

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/message"
)

// Outbound is the set of protocol calls the engine makes against the
// transport. Every call is fire-and-forget: a nil error means the
// stanza was handed to the transport, not that the server accepted
// it. Responses arrive later as ordinary inbound stanzas.
type Outbound interface {
	// SendChatMessage posts a new message with the client-assigned id.
	SendChatMessage(ctx context.Context, roomID ref.RoomID, id, body string, attachment *message.Attachment) error

	// SendChatMessageReply posts a new message quoting reply.
	SendChatMessageReply(ctx context.Context, roomID ref.RoomID, id, body string, reply message.Reference) error

	// SendChatMessageEdit replaces the text of an earlier message.
	SendChatMessageEdit(ctx context.Context, roomID ref.RoomID, originalStanzaID, body string) error

	// SendChatMessageDeletion retracts an earlier message.
	SendChatMessageDeletion(ctx context.Context, roomID ref.RoomID, originalStanzaID string) error

	// SendReaction attaches a reaction to an earlier message.
	SendReaction(ctx context.Context, roomID ref.RoomID, originalStanzaID, value string) error

	// SendIsWriting and SendPaused publish the local chat state.
	SendIsWriting(ctx context.Context, roomID ref.RoomID) error
	SendPaused(ctx context.Context, roomID ref.RoomID) error

	// ReadMessage sends a displayed marker for stanzaID.
	ReadMessage(ctx context.Context, roomID ref.RoomID, stanzaID string) error

	// RequestHistory asks for one page of archived messages. The
	// server answers with results followed by a fin iq carrying
	// query.ID, or an error iq carrying it.
	RequestHistory(ctx context.Context, query HistoryQuery) error

	// FetchReference asks the archive for the single message with
	// stanzaID, so a reply preview can render before the page holding
	// the original is loaded. The answer arrives as an archive result
	// whose query id starts with ReferenceQueryPrefix.
	FetchReference(ctx context.Context, roomID ref.RoomID, stanzaID string) error

	// GetLastActivity asks the server how long user has been idle.
	GetLastActivity(ctx context.Context, user ref.JID) error

	// SendPong answers a ping.
	SendPong(ctx context.Context, ping *Stanza) error

	// SendPresence announces the local session as available.
	SendPresence(ctx context.Context) error
}

// HistoryQuery describes one page of archive history, paging
// backwards from the newest message.
type HistoryQuery struct {
	// ID is the iq id of the request. The fin and any error for the
	// page carry it back. The Writer assigns one when empty.
	ID string

	RoomID ref.RoomID

	// Cursor is the archive id of the oldest result already received,
	// taken from the previous page's fin. When set, the page holds the
	// results immediately before it and Before is ignored.
	Cursor string

	// Before bounds the page by date (epoch ms, inclusive) when no
	// cursor is known. Results at exactly Before come back again and
	// are deduplicated on merge. Zero or less means the newest page.
	Before int64

	// PageSize is the number of results asked for. UnreadCount raises
	// it so a room's unread backlog loads in one page.
	PageSize    int
	UnreadCount int
}

// Limit is the page size the query asks the server for.
func (q HistoryQuery) Limit() int {
	return max(q.PageSize, q.UnreadCount)
}

// Compile-time check: *Writer implements Outbound.
var _ Outbound = (*Writer)(nil)

// Writer implements Outbound by encoding stanzas onto an io.Writer,
// one per line. Safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	out     io.Writer
	encoder *xml.Encoder
	newID   func() string
}

// NewWriter returns a Writer that encodes to out and assigns random
// UUIDs to stanzas whose id is not chosen by the caller.
func NewWriter(out io.Writer) *Writer {
	return &Writer{
		out:     out,
		encoder: xml.NewEncoder(out),
		newID:   uuid.NewString,
	}
}

func (w *Writer) SendChatMessage(ctx context.Context, roomID ref.RoomID, id, body string, attachment *message.Attachment) error {
	outgoing := groupchat(roomID, id)
	outgoing.Body = body
	outgoing.Markable = &Empty{}
	outgoing.Attachment = attachmentElement(attachment)
	return w.send(ctx, outgoing)
}

func (w *Writer) SendChatMessageReply(ctx context.Context, roomID ref.RoomID, id, body string, reply message.Reference) error {
	outgoing := groupchat(roomID, id)
	outgoing.Body = body
	outgoing.Markable = &Empty{}
	outgoing.Reply = &Reply{ID: reply.StanzaID, Preview: reply.Body}
	if reply.From != "" {
		outgoing.Reply.To = roomID.String() + "/" + reply.From
	}
	return w.send(ctx, outgoing)
}

func (w *Writer) SendChatMessageEdit(ctx context.Context, roomID ref.RoomID, originalStanzaID, body string) error {
	outgoing := groupchat(roomID, w.newID())
	outgoing.Body = body
	outgoing.ApplyTo = &ApplyTo{ID: originalStanzaID, Replace: &Empty{}}
	return w.send(ctx, outgoing)
}

func (w *Writer) SendChatMessageDeletion(ctx context.Context, roomID ref.RoomID, originalStanzaID string) error {
	outgoing := groupchat(roomID, w.newID())
	outgoing.ApplyTo = &ApplyTo{ID: originalStanzaID, Retract: &Empty{}}
	return w.send(ctx, outgoing)
}

func (w *Writer) SendReaction(ctx context.Context, roomID ref.RoomID, originalStanzaID, value string) error {
	outgoing := groupchat(roomID, w.newID())
	outgoing.ApplyTo = &ApplyTo{ID: originalStanzaID, Reaction: &ReactionElement{Value: value}}
	return w.send(ctx, outgoing)
}

func (w *Writer) SendIsWriting(ctx context.Context, roomID ref.RoomID) error {
	outgoing := groupchat(roomID, "")
	outgoing.Composing = &Empty{}
	return w.send(ctx, outgoing)
}

func (w *Writer) SendPaused(ctx context.Context, roomID ref.RoomID) error {
	outgoing := groupchat(roomID, "")
	outgoing.Paused = &Empty{}
	return w.send(ctx, outgoing)
}

func (w *Writer) ReadMessage(ctx context.Context, roomID ref.RoomID, stanzaID string) error {
	outgoing := groupchat(roomID, w.newID())
	outgoing.Displayed = &MarkerRef{ID: stanzaID}
	return w.send(ctx, outgoing)
}

func (w *Writer) RequestHistory(ctx context.Context, query HistoryQuery) error {
	limit := query.Limit()
	if limit <= 0 {
		return fmt.Errorf("stanza: history page size must be positive, got %d", limit)
	}
	request := w.archiveQuery(query.RoomID, query.RoomID.String(), limit)
	if query.ID != "" {
		request.ID = query.ID
	}
	switch {
	case query.Cursor != "":
		cursor := query.Cursor
		request.ArchiveQuery.Set.Before = &cursor
	case query.Before > 0:
		end := time.UnixMilli(query.Before).UTC().Format("2006-01-02T15:04:05.000Z07:00")
		form := request.ArchiveQuery.Form
		form.Fields = append(form.Fields, FormField{Var: "end", Values: []string{end}})
	}
	return w.send(ctx, request)
}

func (w *Writer) FetchReference(ctx context.Context, roomID ref.RoomID, stanzaID string) error {
	query := w.archiveQuery(roomID, ReferenceQueryPrefix+roomID.String(), 1)
	form := query.ArchiveQuery.Form
	form.Fields = append(form.Fields, FormField{Var: "ids", Values: []string{stanzaID}})
	return w.send(ctx, query)
}

func (w *Writer) archiveQuery(roomID ref.RoomID, queryID string, limit int) *Stanza {
	latest := ""
	return &Stanza{
		XMLName: xml.Name{Local: "iq"},
		ID:      w.newID(),
		To:      roomID.String(),
		Type:    TypeSet,
		ArchiveQuery: &ArchiveQuery{
			QueryID: queryID,
			Form: &DataForm{
				Type:   "submit",
				Fields: []FormField{{Var: "FORM_TYPE", Type: "hidden", Values: []string{NSMAM}}},
			},
			Set: &ResultSet{Max: limit, Before: &latest},
		},
	}
}

func (w *Writer) GetLastActivity(ctx context.Context, user ref.JID) error {
	return w.send(ctx, &Stanza{
		XMLName:      xml.Name{Local: "iq"},
		ID:           w.newID(),
		To:           user.Bare().String(),
		Type:         TypeGet,
		LastActivity: &LastActivity{},
	})
}

func (w *Writer) SendPong(ctx context.Context, ping *Stanza) error {
	return w.send(ctx, &Stanza{
		XMLName: xml.Name{Local: "iq"},
		ID:      ping.ID,
		From:    ping.To,
		To:      ping.From,
		Type:    TypeResult,
	})
}

func (w *Writer) SendPresence(ctx context.Context) error {
	return w.send(ctx, &Stanza{XMLName: xml.Name{Local: "presence"}})
}

func (w *Writer) send(ctx context.Context, outgoing *Stanza) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("stanza: sending %s: %w", outgoing.Name(), err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.encoder.Encode(outgoing); err != nil {
		return fmt.Errorf("stanza: encoding %s: %w", outgoing.Name(), err)
	}
	if _, err := io.WriteString(w.out, "\n"); err != nil {
		return fmt.Errorf("stanza: writing %s: %w", outgoing.Name(), err)
	}
	return nil
}

func groupchat(roomID ref.RoomID, id string) *Stanza {
	return &Stanza{
		XMLName: xml.Name{Local: "message"},
		ID:      id,
		To:      roomID.String(),
		Type:    TypeGroupChat,
	}
}
