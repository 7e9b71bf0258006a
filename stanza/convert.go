// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stanza

import (
	"fmt"
	"strings"
	"time"

	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/message"
)

// Occupant splits an occupant address ("room@service/nick") into the
// room and the sender's nickname. A bare room address yields an empty
// nickname; room notices arrive that way.
func Occupant(raw string) (ref.RoomID, string, error) {
	address, err := ref.ParseJID(raw)
	if err != nil {
		return ref.RoomID{}, "", fmt.Errorf("stanza: occupant address: %w", err)
	}
	roomID, err := ref.RoomIDFromJID(address)
	if err != nil {
		return ref.RoomID{}, "", fmt.Errorf("stanza: occupant address: %w", err)
	}
	return roomID, address.Resource(), nil
}

// Timestamp returns the stanza's delay stamp in epoch milliseconds,
// or fallback when it carries none or the stamp does not parse.
func (s *Stanza) Timestamp(fallback int64) int64 {
	if s.Delay == nil {
		return fallback
	}
	stamp, err := time.Parse(time.RFC3339, s.Delay.Stamp)
	if err != nil {
		return fallback
	}
	return stamp.UnixMilli()
}

// ServerID returns the server-assigned stanza id, or "" if none.
func (s *Stanza) ServerID() string {
	if s.StanzaID == nil {
		return ""
	}
	return s.StanzaID.ID
}

// Archived unwraps an archive result into the archived message. The
// returned stanza carries the result's delay stamp and, when the
// archived copy has no stanza-id of its own, the archive id, which
// servers assign from the same sequence.
func (s *Stanza) Archived() (*Stanza, error) {
	if s.Result == nil || s.Result.Forwarded == nil || s.Result.Forwarded.Message == nil {
		return nil, fmt.Errorf("stanza: archive result %q carries no message", s.ID)
	}
	inner := *s.Result.Forwarded.Message
	if inner.Delay == nil {
		inner.Delay = s.Result.Forwarded.Delay
	}
	if inner.Delay == nil {
		return nil, fmt.Errorf("stanza: archive result %q has no delay stamp", s.Result.ID)
	}
	if inner.ServerID() == "" && s.Result.ID != "" {
		inner.StanzaID = &StanzaIDElement{ID: s.Result.ID}
	}
	return &inner, nil
}

// Message converts a message-kind stanza into a timeline entry: a
// Text for body-bearing messages, a Configuration for subject changes,
// and an Affiliation for membership notices. now is the timestamp used
// when the stanza carries no delay.
func (s *Stanza) Message(now int64) (message.Message, error) {
	roomID, nick, err := Occupant(s.From)
	if err != nil {
		return nil, err
	}
	header := message.Header{
		ID:     s.entryID(),
		RoomID: roomID,
		Date:   s.Timestamp(now),
		From:   nick,
	}
	switch {
	case s.Body != "":
		text := message.Text{
			Header:     header,
			StanzaID:   s.ServerID(),
			Body:       s.Body,
			Markable:   s.Markable != nil,
			Attachment: s.Attachment.model(),
		}
		if s.Reply != nil && s.Reply.ID != "" {
			text.ReplyTo = &message.Reference{
				StanzaID: s.Reply.ID,
				From:     nickOf(s.Reply.To),
				Body:     s.Reply.Preview,
			}
		}
		if s.Forwarded != nil && s.Forwarded.Message != nil {
			origin := s.Forwarded.Message
			text.Forwarded = &message.Forwarded{
				From:       nickOf(origin.From),
				Body:       origin.Body,
				Attachment: origin.Attachment.model(),
			}
		}
		if header.ID == "" {
			return nil, fmt.Errorf("stanza: message from %q has no id", s.From)
		}
		return text, nil
	case s.Subject != nil:
		if header.ID == "" {
			header.ID = fmt.Sprintf("subject-%d", header.Date)
		}
		return message.Configuration{Header: header, Field: "subject", Value: *s.Subject}, nil
	case s.MUCUser != nil && len(s.MUCUser.Items) > 0:
		item := s.MUCUser.Items[0]
		target := item.Nick
		if target == "" {
			if address, err := ref.ParseJID(item.JID); err == nil {
				target = address.Local()
			}
		}
		if header.ID == "" {
			header.ID = fmt.Sprintf("affiliation-%s-%d", target, header.Date)
		}
		return message.Affiliation{
			Header:      header,
			Target:      target,
			Affiliation: item.Affiliation,
			Role:        item.Role,
		}, nil
	default:
		return nil, fmt.Errorf("stanza: message %q has no timeline content", s.ID)
	}
}

// Fastening converts a fastening-kind stanza.
func (s *Stanza) Fastening(now int64) (message.Fastening, error) {
	if s.ApplyTo == nil {
		return message.Fastening{}, fmt.Errorf("stanza: message %q has no apply-to", s.ID)
	}
	roomID, nick, err := Occupant(s.From)
	if err != nil {
		return message.Fastening{}, err
	}
	fastening := message.Fastening{
		ID:               s.ID,
		RoomID:           roomID,
		OriginalStanzaID: s.ApplyTo.ID,
		From:             nick,
		Date:             s.Timestamp(now),
	}
	switch {
	case s.ApplyTo.Retract != nil:
		fastening.Action = message.ActionDelete
	case s.ApplyTo.Replace != nil:
		fastening.Action = message.ActionEdit
		fastening.Value = s.Body
	case s.ApplyTo.Reaction != nil:
		fastening.Action = message.ActionReaction
		fastening.Value = s.ApplyTo.Reaction.Value
	}
	if err := fastening.Validate(); err != nil {
		return message.Fastening{}, fmt.Errorf("stanza: %w", err)
	}
	return fastening, nil
}

// Marker converts a chat marker stanza.
func (s *Stanza) Marker(now int64) (ref.RoomID, message.Marker, error) {
	roomID, nick, err := Occupant(s.From)
	if err != nil {
		return ref.RoomID{}, message.Marker{}, err
	}
	marker := message.Marker{From: nick, MarkerDate: s.Timestamp(now)}
	switch {
	case s.Acknowledged != nil:
		marker.Type, marker.MessageID = message.MarkerAcknowledged, s.Acknowledged.ID
	case s.Displayed != nil:
		marker.Type, marker.MessageID = message.MarkerDisplayed, s.Displayed.ID
	case s.Received != nil:
		marker.Type, marker.MessageID = message.MarkerReceived, s.Received.ID
	default:
		return ref.RoomID{}, message.Marker{}, fmt.Errorf("stanza: message %q carries no marker", s.ID)
	}
	if marker.MessageID == "" {
		return ref.RoomID{}, message.Marker{}, fmt.Errorf("stanza: %s marker from %q has no id", marker.Type, s.From)
	}
	return roomID, marker, nil
}

// ReferenceQueryPrefix marks the query id of a single-message archive
// lookup, as opposed to a history page.
const ReferenceQueryPrefix = "ref:"

// IsReferenceAnswer reports whether an archive result or fin belongs
// to a single-message lookup rather than a history page.
func (s *Stanza) IsReferenceAnswer() bool {
	switch {
	case s.Result != nil:
		return strings.HasPrefix(s.Result.QueryID, ReferenceQueryPrefix)
	case s.Fin != nil:
		return strings.HasPrefix(s.Fin.QueryID, ReferenceQueryPrefix)
	default:
		return false
	}
}

// Reference converts an archived message into a reply preview.
func (s *Stanza) Reference() (message.Reference, error) {
	stanzaID := s.ServerID()
	if stanzaID == "" {
		return message.Reference{}, fmt.Errorf("stanza: referenced message %q has no stanza id", s.ID)
	}
	return message.Reference{
		StanzaID:   stanzaID,
		From:       nickOf(s.From),
		Body:       s.Body,
		Attachment: s.Attachment.model(),
	}, nil
}

// FinRoom returns the room a history page terminator belongs to: the
// iq's sender, or the query id (which the Writer sets to the room
// address) when the server omits it.
func (s *Stanza) FinRoom() (ref.RoomID, error) {
	if s.From != "" {
		if roomID, _, err := Occupant(s.From); err == nil {
			return roomID, nil
		}
	}
	if s.Fin != nil && s.Fin.QueryID != "" {
		return ref.ParseRoomID(strings.TrimPrefix(s.Fin.QueryID, ReferenceQueryPrefix))
	}
	return ref.RoomID{}, fmt.Errorf("stanza: fin %q names no room", s.ID)
}

// FinCursor returns the archive id of the oldest result in the page a
// fin terminates, or "" when the server sent no result set.
func (s *Stanza) FinCursor() string {
	if s.Fin == nil || s.Fin.Set == nil {
		return ""
	}
	return s.Fin.Set.First
}

// entryID returns the client id, falling back to the server id for
// messages from clients that do not set one.
func (s *Stanza) entryID() string {
	if s.ID != "" {
		return s.ID
	}
	return s.ServerID()
}

func (a *Attachment) model() *message.Attachment {
	if a == nil || a.URL == "" {
		return nil
	}
	return &message.Attachment{
		URL:       a.URL,
		Name:      a.Name,
		MimeType:  a.MimeType,
		Size:      a.Size,
		Width:     a.Width,
		Height:    a.Height,
		Thumbnail: a.Thumbnail,
	}
}

func attachmentElement(a *message.Attachment) *Attachment {
	if a == nil {
		return nil
	}
	return &Attachment{
		URL:       a.URL,
		Name:      a.Name,
		MimeType:  a.MimeType,
		Size:      a.Size,
		Width:     a.Width,
		Height:    a.Height,
		Thumbnail: a.Thumbnail,
	}
}

// nickOf returns the resource of an occupant address, or raw itself
// when it is not one (a bare nickname).
func nickOf(raw string) string {
	address, err := ref.ParseJID(raw)
	if err != nil || address.Resource() == "" {
		return raw
	}
	return address.Resource()
}
