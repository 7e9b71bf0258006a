// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"

	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/message"
	"github.com/bureau-foundation/chatsync/session"
	"github.com/bureau-foundation/chatsync/stanza"
)

// sessionOutbound forwards every protocol call to whichever transport
// the session currently holds, failing with ErrOffline when none is
// attached.
type sessionOutbound struct {
	state *session.State
}

var _ stanza.Outbound = sessionOutbound{}

func (s sessionOutbound) current() (stanza.Outbound, error) {
	outbound := s.state.Outbound()
	if outbound == nil {
		return nil, ErrOffline
	}
	return outbound, nil
}

func (s sessionOutbound) SendChatMessage(ctx context.Context, roomID ref.RoomID, id, body string, attachment *message.Attachment) error {
	outbound, err := s.current()
	if err != nil {
		return err
	}
	return outbound.SendChatMessage(ctx, roomID, id, body, attachment)
}

func (s sessionOutbound) SendChatMessageReply(ctx context.Context, roomID ref.RoomID, id, body string, reply message.Reference) error {
	outbound, err := s.current()
	if err != nil {
		return err
	}
	return outbound.SendChatMessageReply(ctx, roomID, id, body, reply)
}

func (s sessionOutbound) SendChatMessageEdit(ctx context.Context, roomID ref.RoomID, originalStanzaID, body string) error {
	outbound, err := s.current()
	if err != nil {
		return err
	}
	return outbound.SendChatMessageEdit(ctx, roomID, originalStanzaID, body)
}

func (s sessionOutbound) SendChatMessageDeletion(ctx context.Context, roomID ref.RoomID, originalStanzaID string) error {
	outbound, err := s.current()
	if err != nil {
		return err
	}
	return outbound.SendChatMessageDeletion(ctx, roomID, originalStanzaID)
}

func (s sessionOutbound) SendReaction(ctx context.Context, roomID ref.RoomID, originalStanzaID, value string) error {
	outbound, err := s.current()
	if err != nil {
		return err
	}
	return outbound.SendReaction(ctx, roomID, originalStanzaID, value)
}

func (s sessionOutbound) SendIsWriting(ctx context.Context, roomID ref.RoomID) error {
	outbound, err := s.current()
	if err != nil {
		return err
	}
	return outbound.SendIsWriting(ctx, roomID)
}

func (s sessionOutbound) SendPaused(ctx context.Context, roomID ref.RoomID) error {
	outbound, err := s.current()
	if err != nil {
		return err
	}
	return outbound.SendPaused(ctx, roomID)
}

func (s sessionOutbound) ReadMessage(ctx context.Context, roomID ref.RoomID, stanzaID string) error {
	outbound, err := s.current()
	if err != nil {
		return err
	}
	return outbound.ReadMessage(ctx, roomID, stanzaID)
}

func (s sessionOutbound) RequestHistory(ctx context.Context, query stanza.HistoryQuery) error {
	outbound, err := s.current()
	if err != nil {
		return err
	}
	return outbound.RequestHistory(ctx, query)
}

func (s sessionOutbound) FetchReference(ctx context.Context, roomID ref.RoomID, stanzaID string) error {
	outbound, err := s.current()
	if err != nil {
		return err
	}
	return outbound.FetchReference(ctx, roomID, stanzaID)
}

func (s sessionOutbound) GetLastActivity(ctx context.Context, user ref.JID) error {
	outbound, err := s.current()
	if err != nil {
		return err
	}
	return outbound.GetLastActivity(ctx, user)
}

func (s sessionOutbound) SendPong(ctx context.Context, ping *stanza.Stanza) error {
	outbound, err := s.current()
	if err != nil {
		return err
	}
	return outbound.SendPong(ctx, ping)
}

func (s sessionOutbound) SendPresence(ctx context.Context) error {
	outbound, err := s.current()
	if err != nil {
		return err
	}
	return outbound.SendPresence(ctx)
}
