// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/chatsync/lib/clock"
	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/message"
	"github.com/bureau-foundation/chatsync/persist"
	"github.com/bureau-foundation/chatsync/stanza"
	"github.com/bureau-foundation/chatsync/timeline"
)

const roomAddress = "general@conference.chat.example"

var (
	general = ref.MustParseRoomID(roomAddress)
	self    = ref.MustParseJID("me@chat.example/web")
	start   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

// recordingOutbound logs protocol calls as short strings. sendErr,
// when set, fails every message send. When entered is set, message
// sends signal it and then wait for release to close.
type recordingOutbound struct {
	mu      sync.Mutex
	calls   []string
	sendErr error

	entered chan struct{}
	release chan struct{}
}

func (r *recordingOutbound) record(format string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	return nil
}

func (r *recordingOutbound) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func (r *recordingOutbound) SendChatMessage(ctx context.Context, roomID ref.RoomID, id, body string, attachment *message.Attachment) error {
	if r.entered != nil {
		r.entered <- struct{}{}
		<-r.release
	}
	if r.sendErr != nil {
		return r.sendErr
	}
	return r.record("message:%s:%s", id, body)
}

func (r *recordingOutbound) SendChatMessageReply(ctx context.Context, roomID ref.RoomID, id, body string, reply message.Reference) error {
	if r.sendErr != nil {
		return r.sendErr
	}
	return r.record("reply:%s:%s", id, reply.StanzaID)
}

func (r *recordingOutbound) SendChatMessageEdit(ctx context.Context, roomID ref.RoomID, originalStanzaID, body string) error {
	return r.record("edit:%s:%s", originalStanzaID, body)
}

func (r *recordingOutbound) SendChatMessageDeletion(ctx context.Context, roomID ref.RoomID, originalStanzaID string) error {
	return r.record("delete:%s", originalStanzaID)
}

func (r *recordingOutbound) SendReaction(ctx context.Context, roomID ref.RoomID, originalStanzaID, value string) error {
	return r.record("react:%s:%s", originalStanzaID, value)
}

func (r *recordingOutbound) SendIsWriting(ctx context.Context, roomID ref.RoomID) error {
	return r.record("composing")
}

func (r *recordingOutbound) SendPaused(ctx context.Context, roomID ref.RoomID) error {
	return r.record("paused")
}

func (r *recordingOutbound) ReadMessage(ctx context.Context, roomID ref.RoomID, stanzaID string) error {
	return r.record("read:%s", stanzaID)
}

func (r *recordingOutbound) RequestHistory(ctx context.Context, query stanza.HistoryQuery) error {
	if query.Cursor != "" {
		return r.record("history:@%s:%d:%d", query.Cursor, query.PageSize, query.UnreadCount)
	}
	return r.record("history:%d:%d:%d", query.Before, query.PageSize, query.UnreadCount)
}

func (r *recordingOutbound) FetchReference(ctx context.Context, roomID ref.RoomID, stanzaID string) error {
	return r.record("reference:%s", stanzaID)
}

func (r *recordingOutbound) GetLastActivity(ctx context.Context, user ref.JID) error {
	return r.record("last:%s", user.Bare())
}

func (r *recordingOutbound) SendPong(ctx context.Context, ping *stanza.Stanza) error {
	return r.record("pong:%s", ping.ID)
}

func (r *recordingOutbound) SendPresence(ctx context.Context) error {
	return r.record("presence")
}

type harness struct {
	engine   *Engine
	outbound *recordingOutbound
	clock    *clock.FakeClock
}

func newHarness(t *testing.T, store *persist.Store) *harness {
	t.Helper()
	h := &harness{outbound: &recordingOutbound{}, clock: clock.Fake(start)}
	counter := 0
	engine, err := New(Config{
		Self:     self,
		Clock:    h.clock,
		Location: time.UTC,
		Store:    store,
		NewID: func() string {
			counter++
			return fmt.Sprintf("local-%d", counter)
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.engine = engine
	return h
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	if err := h.engine.Connect(context.Background(), h.outbound); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	h.outbound.calls = nil
}

func (h *harness) receive(t *testing.T, raw string) {
	t.Helper()
	if !h.engine.HandleRaw(context.Background(), []byte(raw)) {
		t.Fatalf("HandleRaw returned false for %s", raw)
	}
}

func (h *harness) assertCalls(t *testing.T, want ...string) {
	t.Helper()
	if got := h.outbound.snapshot(); !slices.Equal(got, want) {
		t.Fatalf("outbound calls = %v, want %v", got, want)
	}
}

func roomMessage(id, stanzaID, nick, inner string) string {
	return `<message from="` + roomAddress + `/` + nick + `" id="` + id + `" type="groupchat">` + inner +
		`<stanza-id xmlns="urn:xmpp:sid:0" id="` + stanzaID + `" by="` + roomAddress + `"/></message>`
}

func body(text string) string {
	return `<body>` + text + `</body>`
}

func onlyText(t *testing.T, messages []message.Message) message.Text {
	t.Helper()
	if len(messages) != 1 {
		t.Fatalf("timeline = %v, want one entry", messages)
	}
	text, ok := messages[0].(message.Text)
	if !ok {
		t.Fatalf("entry is %T, want Text", messages[0])
	}
	return text
}

func TestSendIsOptimisticAndEchoFillsStanzaID(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)
	ctx := context.Background()

	sent, err := h.engine.Send(ctx, general, "hello", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sent.ID != "local-1" || sent.From != "me" || sent.Date != start.UnixMilli() {
		t.Errorf("optimistic copy = %+v", sent)
	}
	h.assertCalls(t, "message:local-1:hello")
	if onlyText(t, h.engine.Messages(general)).StanzaID != "" {
		t.Error("optimistic copy already has a stanza id")
	}

	h.receive(t, roomMessage("local-1", "s1", "me", body("hello")))
	if got := onlyText(t, h.engine.Messages(general)); got.StanzaID != "s1" {
		t.Errorf("echo did not fill the stanza id: %+v", got)
	}
}

func TestSendFailureRemovesLocalCopy(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)
	errBroken := errors.New("broken pipe")
	h.outbound.sendErr = errBroken

	if _, err := h.engine.Send(context.Background(), general, "lost", nil); !errors.Is(err, errBroken) {
		t.Fatalf("Send error = %v, want %v", err, errBroken)
	}
	if len(h.engine.Messages(general)) != 0 {
		t.Error("failed send left its local copy")
	}
}

func TestSendWhileOffline(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.engine.Send(context.Background(), general, "hi", nil); !errors.Is(err, ErrOffline) {
		t.Errorf("Send error = %v, want ErrOffline", err)
	}
	if _, err := h.engine.Send(context.Background(), general, "", nil); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("empty Send error = %v, want ErrEmptyMessage", err)
	}
}

func TestEditAndDeleteOwnMessage(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)
	ctx := context.Background()
	h.receive(t, roomMessage("m1", "s1", "me", body("helo")))
	h.receive(t, roomMessage("m2", "s2", "bob", body("hi")))
	h.outbound.calls = nil

	if err := h.engine.Edit(ctx, general, "s1", "hello"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	edited := h.engine.Messages(general)[0].(message.Text)
	if edited.Body != "hello" || !edited.Edited {
		t.Errorf("after Edit: %+v", edited)
	}

	// The echo of the correction finds the body already replaced.
	h.receive(t, roomMessage("e1", "s3", "me", body("hello")+
		`<apply-to xmlns="urn:xmpp:fasten:0" id="s1"><replace xmlns="urn:xmpp:message-correct:0"/></apply-to>`))
	if len(h.engine.Messages(general)) != 2 {
		t.Errorf("echoed edit changed the timeline: %v", h.engine.Messages(general))
	}

	if err := h.engine.Edit(ctx, general, "s2", "not mine"); !errors.Is(err, ErrNotOwnMessage) {
		t.Errorf("editing another user's message: %v", err)
	}
	if err := h.engine.Delete(ctx, general, "s-missing"); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("deleting a missing message: %v", err)
	}

	if err := h.engine.Delete(ctx, general, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	deleted, ok := h.engine.Messages(general)[0].(message.Deleted)
	if !ok || deleted.StanzaID != "s1" {
		t.Errorf("after Delete: %+v", h.engine.Messages(general)[0])
	}
	if err := h.engine.Edit(ctx, general, "s1", "again"); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("editing a deleted message: %v", err)
	}
	h.assertCalls(t, "edit:s1:hello", "delete:s1")
}

func TestSlowSendDoesNotBlockInboundStanzas(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)
	h.outbound.entered = make(chan struct{})
	h.outbound.release = make(chan struct{})
	ctx := context.Background()

	sent := make(chan error, 1)
	go func() {
		_, err := h.engine.Send(ctx, general, "slow", nil)
		sent <- err
	}()
	<-h.outbound.entered

	handled := make(chan struct{})
	go func() {
		h.engine.HandleRaw(ctx, []byte(roomMessage("m1", "s1", "bob", body("meanwhile"))))
		close(handled)
	}()
	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("inbound stanza waited for the transport write")
	}
	if got := len(h.engine.Messages(general)); got != 2 {
		t.Errorf("timeline has %d entries during the send, want 2", got)
	}

	close(h.outbound.release)
	if err := <-sent; err != nil {
		t.Fatalf("Send: %v", err)
	}
	h.assertCalls(t, "message:local-1:slow")
}

func TestReplyCarriesPreview(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)
	h.receive(t, roomMessage("m1", "s1", "bob", body("lunch?")))
	h.outbound.calls = nil

	reply, err := h.engine.Reply(context.Background(), general, "s1", "yes")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply.ReplyTo == nil || reply.ReplyTo.Body != "lunch?" || reply.ReplyTo.From != "bob" {
		t.Errorf("ReplyTo = %+v", reply.ReplyTo)
	}
	h.assertCalls(t, "reply:local-1:s1")
	if len(h.engine.Messages(general)) != 2 {
		t.Errorf("reply not appended: %v", h.engine.Messages(general))
	}
}

func TestReactionShownOnEcho(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)
	ctx := context.Background()
	h.receive(t, roomMessage("m1", "s1", "bob", body("shipped")))

	if err := h.engine.React(ctx, general, "s1", "🎉"); err != nil {
		t.Fatalf("React: %v", err)
	}
	if len(h.engine.Reactions(general, "s1")) != 0 {
		t.Error("reaction shown before the echo")
	}
	h.receive(t, roomMessage("r1", "s2", "me",
		`<apply-to xmlns="urn:xmpp:fasten:0" id="s1"><reaction xmlns="urn:xmpp:reactions:0">🎉</reaction></apply-to>`))
	reactions := h.engine.Reactions(general, "s1")
	if len(reactions) != 1 || reactions[0].From != "me" || reactions[0].Value != "🎉" {
		t.Errorf("reactions = %+v", reactions)
	}
}

func TestOpenRoomRequestsFirstPage(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)
	ctx := context.Background()

	requested, err := h.engine.OpenRoom(ctx, general, 0)
	if err != nil || !requested {
		t.Fatalf("OpenRoom = %v, %v", requested, err)
	}
	requested, _ = h.engine.RequestOlderHistory(ctx, general)
	if requested {
		t.Error("second request issued while the first is in flight")
	}
	h.assertCalls(t, "history:0:30:0")

	conversation, ok := h.engine.Conversation(general)
	if !ok || !conversation.HistoryLoadDisabled {
		t.Errorf("conversation = %+v, %v", conversation, ok)
	}
}

func TestReconnectKeepsTimelinesAndDropsTransientState(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)
	ctx := context.Background()

	h.receive(t, roomMessage("m1", "s1", "bob", body("before the drop")))
	h.engine.OpenRoom(ctx, general, 3)
	h.receive(t, `<message from="`+roomAddress+`/bob" type="groupchat"><composing xmlns="http://jabber.org/protocol/chatstates"/></message>`)
	if got := h.engine.Writing(general); !slices.Equal(got, []string{"bob"}) {
		t.Fatalf("Writing = %v", got)
	}

	h.engine.Disconnect()
	if h.engine.Online() || h.engine.Session().Online() {
		t.Error("still online after Disconnect")
	}

	replacement := &recordingOutbound{}
	if err := h.engine.Reconnect(ctx, replacement); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if len(h.engine.Messages(general)) != 1 {
		t.Error("timeline lost on reconnect")
	}
	conversation, _ := h.engine.Conversation(general)
	if conversation.HistoryLoadDisabled || len(conversation.Writing) != 0 {
		t.Errorf("transient state survived reconnect: %+v", conversation)
	}

	if requested, err := h.engine.RequestOlderHistory(ctx, general); err != nil || !requested {
		t.Fatalf("RequestOlderHistory = %v, %v", requested, err)
	}
	want := []string{"presence", fmt.Sprintf("history:%d:30:0", start.UnixMilli())}
	if got := replacement.snapshot(); !slices.Equal(got, want) {
		t.Errorf("replacement transport calls = %v, want %v", got, want)
	}
}

func TestTypingNotifications(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)
	ctx := context.Background()

	h.engine.Keystroke(ctx, general)
	h.engine.Keystroke(ctx, general)
	h.clock.Advance(4 * time.Second)
	h.assertCalls(t, "composing", "paused")

	h.engine.Keystroke(ctx, general)
	h.engine.Send(ctx, general, "done", nil)
	h.assertCalls(t, "composing", "paused", "composing", "message:local-1:done", "paused")
}

func TestUpdateConversationAndCopy(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.UpdateConversation(general, func(conversation *timeline.Conversation) {
		conversation.Draft = "half a thought"
		conversation.FilesToAttach = []string{"plan.pdf"}
	})

	conversation, ok := h.engine.Conversation(general)
	if !ok || conversation.Draft != "half a thought" {
		t.Fatalf("conversation = %+v, %v", conversation, ok)
	}
	conversation.FilesToAttach[0] = "changed.pdf"
	again, _ := h.engine.Conversation(general)
	if again.FilesToAttach[0] != "plan.pdf" {
		t.Error("Conversation returned shared state")
	}

	h.engine.CloseRoom(context.Background(), general)
	if _, ok := h.engine.Conversation(general); ok {
		t.Error("conversation survived CloseRoom")
	}
}

func TestSaveLoadAndLogout(t *testing.T) {
	store, err := persist.Open(persist.Config{Path: filepath.Join(t.TempDir(), "chatsync.db")})
	if err != nil {
		t.Fatalf("persist.Open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	first := newHarness(t, store)
	first.connect(t)
	first.receive(t, roomMessage("m1", "s1", "bob", body("keep me")))
	first.receive(t, roomMessage("m2", "s2", "me", body("and me")))
	if err := first.engine.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := newHarness(t, store)
	if err := second.engine.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := second.engine.Messages(general); len(got) != 2 {
		t.Fatalf("restored timeline = %v", got)
	}

	if err := second.engine.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(second.engine.Rooms()) != 0 {
		t.Error("rooms survived Logout")
	}
	if !second.engine.Session().Self().IsZero() {
		t.Error("session identity survived Logout")
	}
	remaining, err := store.LoadAll(ctx)
	if err != nil || len(remaining) != 0 {
		t.Errorf("stored snapshots after Logout = %d, %v", len(remaining), err)
	}
}

func TestNewRequiresAccount(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New without Self succeeded")
	}
	if _, err := New(Config{Self: ref.MustParseJID("chat.example")}); err == nil {
		t.Error("New with a domain-only Self succeeded")
	}
}
