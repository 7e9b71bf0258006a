// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/message"
)

// Send appends a message to the room and sends it. The returned Text
// is the optimistic local copy; the server echo later fills in its
// StanzaID. If the send fails, the local copy is removed again.
func (e *Engine) Send(ctx context.Context, roomID ref.RoomID, body string, attachment *message.Attachment) (message.Text, error) {
	if body == "" && attachment == nil {
		return message.Text{}, ErrEmptyMessage
	}
	e.mu.Lock()
	text := e.outgoing(roomID, body)
	text.Attachment = attachment
	e.timelines.AppendMessage(text)
	e.mu.Unlock()

	if err := e.outbound.SendChatMessage(ctx, roomID, text.ID, body, attachment); err != nil {
		e.withdraw(roomID, text.ID)
		return message.Text{}, fmt.Errorf("messaging: sending to %s: %w", roomID, err)
	}
	e.messageSent(ctx, roomID)
	return text, nil
}

// Reply sends a message quoting the message with targetStanzaID.
func (e *Engine) Reply(ctx context.Context, roomID ref.RoomID, targetStanzaID, body string) (message.Text, error) {
	if body == "" {
		return message.Text{}, ErrEmptyMessage
	}
	e.mu.Lock()
	target, err := e.ownText(roomID, targetStanzaID, false)
	if err != nil {
		e.mu.Unlock()
		return message.Text{}, err
	}
	reference := message.Reference{
		StanzaID:   target.StanzaID,
		From:       target.From,
		Body:       target.Body,
		Attachment: target.Attachment,
	}
	text := e.outgoing(roomID, body)
	text.ReplyTo = &reference
	e.timelines.AppendMessage(text)
	e.mu.Unlock()

	if err := e.outbound.SendChatMessageReply(ctx, roomID, text.ID, body, reference); err != nil {
		e.withdraw(roomID, text.ID)
		return message.Text{}, fmt.Errorf("messaging: replying in %s: %w", roomID, err)
	}
	e.messageSent(ctx, roomID)
	return text, nil
}

// Edit replaces the body of one of the local user's messages. The
// timeline changes once the transport accepts the correction.
func (e *Engine) Edit(ctx context.Context, roomID ref.RoomID, stanzaID, body string) error {
	if body == "" {
		return ErrEmptyMessage
	}
	if err := e.checkTarget(roomID, stanzaID, true); err != nil {
		return err
	}
	if err := e.outbound.SendChatMessageEdit(ctx, roomID, stanzaID, body); err != nil {
		return fmt.Errorf("messaging: editing %s in %s: %w", stanzaID, roomID, err)
	}
	e.applyLocal(message.ActionEdit, roomID, stanzaID, body)
	return nil
}

// Delete retracts one of the local user's messages.
func (e *Engine) Delete(ctx context.Context, roomID ref.RoomID, stanzaID string) error {
	if err := e.checkTarget(roomID, stanzaID, true); err != nil {
		return err
	}
	if err := e.outbound.SendChatMessageDeletion(ctx, roomID, stanzaID); err != nil {
		return fmt.Errorf("messaging: deleting %s in %s: %w", stanzaID, roomID, err)
	}
	e.applyLocal(message.ActionDelete, roomID, stanzaID, "")
	return nil
}

// React sends a reaction to a message. It appears in Reactions once
// the room echoes it.
func (e *Engine) React(ctx context.Context, roomID ref.RoomID, stanzaID, value string) error {
	if value == "" {
		return fmt.Errorf("messaging: empty reaction")
	}
	if err := e.checkTarget(roomID, stanzaID, false); err != nil {
		return err
	}
	if err := e.outbound.SendReaction(ctx, roomID, stanzaID, value); err != nil {
		return fmt.Errorf("messaging: reacting to %s in %s: %w", stanzaID, roomID, err)
	}
	return nil
}

// Keystroke reports local typing in a room. Composing and paused
// signals are throttled and timed by the notifier.
func (e *Engine) Keystroke(ctx context.Context, roomID ref.RoomID) error {
	return e.notifier.Keystroke(ctx, roomID)
}

func (e *Engine) outgoing(roomID ref.RoomID, body string) message.Text {
	return message.Text{
		Header: message.Header{
			ID:     e.newID(),
			RoomID: roomID,
			Date:   e.now(),
			From:   e.self.Local(),
		},
		Body:     body,
		Markable: true,
	}
}

// checkTarget verifies that a fastening target exists, and with
// mustOwn that the local user sent it.
func (e *Engine) checkTarget(roomID ref.RoomID, stanzaID string, mustOwn bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.ownText(roomID, stanzaID, mustOwn)
	return err
}

// withdraw removes the optimistic copy of a message the transport
// refused.
func (e *Engine) withdraw(roomID ref.RoomID, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timelines.RemoveMessage(roomID, id)
}

// ownText finds a live text message by StanzaID. With mustOwn it also
// requires the local user to be the sender. Caller holds e.mu.
func (e *Engine) ownText(roomID ref.RoomID, stanzaID string, mustOwn bool) (message.Text, error) {
	found, ok := e.timelines.Lookup(roomID, stanzaID)
	if !ok {
		return message.Text{}, fmt.Errorf("%w: %s in %s", ErrMessageNotFound, stanzaID, roomID)
	}
	text, ok := found.(message.Text)
	if !ok {
		return message.Text{}, fmt.Errorf("%w: %s in %s is %s", ErrMessageNotFound, stanzaID, roomID, found.Kind())
	}
	if mustOwn && text.From != e.self.Local() {
		return message.Text{}, fmt.Errorf("%w: %s", ErrNotOwnMessage, stanzaID)
	}
	return text, nil
}

// applyLocal applies a just-sent edit or delete to the timeline. The
// echo arrives with a different fastening id; whichever of the two is
// applied second finds the change already made.
func (e *Engine) applyLocal(action message.Action, roomID ref.RoomID, stanzaID, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	outcome := e.timelines.ApplyFastening(message.Fastening{
		ID:               e.newID(),
		RoomID:           roomID,
		Action:           action,
		OriginalStanzaID: stanzaID,
		Value:            value,
		From:             e.self.Local(),
		Date:             e.now(),
	})
	e.logger.Debug("local fastening applied",
		"room_id", roomID.String(),
		"stanza_id", stanzaID,
		"action", string(action),
		"outcome", outcome.String(),
	)
}

// messageSent ends local typing after a send. A failure to send the
// paused signal does not fail the message.
func (e *Engine) messageSent(ctx context.Context, roomID ref.RoomID) {
	if err := e.notifier.MessageSent(ctx, roomID); err != nil {
		e.logger.Warn("ending typing after send failed", "room_id", roomID.String(), "error", err)
	}
}
