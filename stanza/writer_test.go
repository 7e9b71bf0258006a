// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stanza

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/message"
)

// readAll decodes every stanza written to buffer.
func readAll(t *testing.T, buffer *bytes.Buffer) []*Stanza {
	t.Helper()
	reader := NewReader(bytes.NewReader(buffer.Bytes()))
	var result []*Stanza
	for {
		next, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return result
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		result = append(result, next)
	}
}

func newTestWriter(buffer *bytes.Buffer) *Writer {
	writer := NewWriter(buffer)
	counter := 0
	writer.newID = func() string {
		counter++
		return fmt.Sprintf("id-%d", counter)
	}
	return writer
}

func TestWriterMessages(t *testing.T) {
	ctx := context.Background()
	roomID := ref.MustParseRoomID(room)
	var buffer bytes.Buffer
	writer := newTestWriter(&buffer)

	if err := writer.SendChatMessage(ctx, roomID, "local-1", "hello", &message.Attachment{URL: "https://files.example/x"}); err != nil {
		t.Fatal(err)
	}
	if err := writer.SendChatMessageReply(ctx, roomID, "local-2", "yes", message.Reference{StanzaID: "s1", From: "alice", Body: "ok?"}); err != nil {
		t.Fatal(err)
	}
	if err := writer.SendChatMessageEdit(ctx, roomID, "s1", "fixed"); err != nil {
		t.Fatal(err)
	}
	if err := writer.SendChatMessageDeletion(ctx, roomID, "s1"); err != nil {
		t.Fatal(err)
	}
	if err := writer.SendReaction(ctx, roomID, "s1", "+1"); err != nil {
		t.Fatal(err)
	}
	if err := writer.SendIsWriting(ctx, roomID); err != nil {
		t.Fatal(err)
	}
	if err := writer.ReadMessage(ctx, roomID, "s9"); err != nil {
		t.Fatal(err)
	}

	written := readAll(t, &buffer)
	if len(written) != 7 {
		t.Fatalf("wrote %d stanzas, want 7", len(written))
	}

	sent := written[0]
	if sent.ID != "local-1" || sent.To != room || sent.Type != TypeGroupChat || sent.Body != "hello" || sent.Markable == nil {
		t.Errorf("chat message = %+v", sent)
	}
	if sent.Attachment == nil || sent.Attachment.URL != "https://files.example/x" {
		t.Errorf("attachment = %+v", sent.Attachment)
	}

	reply := written[1]
	if reply.Reply == nil || reply.Reply.ID != "s1" || reply.Reply.To != room+"/alice" || reply.Reply.Preview != "ok?" {
		t.Errorf("reply = %+v", reply.Reply)
	}

	// Outbound fastenings round-trip through the inbound classifier.
	for index, want := range []message.Action{message.ActionEdit, message.ActionDelete, message.ActionReaction} {
		outbound := written[2+index]
		if outbound.Classify() != KindFastening {
			t.Errorf("stanza %d Classify() = %v, want fastening", 2+index, outbound.Classify())
			continue
		}
		// Inbound copies come back from the room with an occupant address.
		outbound.From = room + "/me"
		fastening, err := outbound.Fastening(1)
		if err != nil {
			t.Errorf("stanza %d Fastening: %v", 2+index, err)
			continue
		}
		if fastening.Action != want || fastening.OriginalStanzaID != "s1" {
			t.Errorf("stanza %d fastening = %+v", 2+index, fastening)
		}
	}
	if written[2].Body != "fixed" {
		t.Errorf("edit body = %q", written[2].Body)
	}

	if written[5].Classify() != KindChatState || written[5].Composing == nil {
		t.Errorf("is-writing stanza = %+v", written[5])
	}
	if written[6].Displayed == nil || written[6].Displayed.ID != "s9" {
		t.Errorf("read marker = %+v", written[6].Displayed)
	}
}

func TestWriterRequestHistory(t *testing.T) {
	ctx := context.Background()
	roomID := ref.MustParseRoomID(room)
	var buffer bytes.Buffer
	writer := newTestWriter(&buffer)

	queries := []HistoryQuery{
		{ID: "page-1", RoomID: roomID, Before: 1772359200000, PageSize: 30, UnreadCount: 50},
		{RoomID: roomID, PageSize: 30},
		{ID: "page-3", RoomID: roomID, Cursor: "arch-17", Before: 1772359200000, PageSize: 30},
	}
	for _, query := range queries {
		if err := writer.RequestHistory(ctx, query); err != nil {
			t.Fatal(err)
		}
	}
	if err := writer.RequestHistory(ctx, HistoryQuery{RoomID: roomID}); err == nil {
		t.Error("RequestHistory accepted a zero page size")
	}

	written := readAll(t, &buffer)
	if len(written) != 3 {
		t.Fatalf("wrote %d stanzas, want 3", len(written))
	}
	endFilter := func(query *ArchiveQuery) string {
		for _, field := range query.Form.Fields {
			if field.Var == "end" && len(field.Values) == 1 {
				return field.Values[0]
			}
		}
		return ""
	}

	anchored := written[0].ArchiveQuery
	if anchored == nil || anchored.Set == nil {
		t.Fatalf("query = %+v", written[0])
	}
	if written[0].ID != "page-1" {
		t.Errorf("iq id = %q, want the query id", written[0].ID)
	}
	if anchored.QueryID != room {
		t.Errorf("QueryID = %q", anchored.QueryID)
	}
	if anchored.Set.Max != 50 {
		t.Errorf("Max = %d, want unread count 50", anchored.Set.Max)
	}
	// The end filter is inclusive so results sharing the oldest
	// loaded millisecond are not skipped.
	if end := endFilter(anchored); end != "2026-03-01T10:00:00.000Z" {
		t.Errorf("end = %q", end)
	}

	latest := written[1].ArchiveQuery
	if written[1].ID == "" {
		t.Error("query without an id was sent without one")
	}
	if end := endFilter(latest); end != "" {
		t.Errorf("newest-page query carries an end filter: %q", end)
	}
	if latest.Set.Max != 30 {
		t.Errorf("Max = %d, want 30", latest.Set.Max)
	}
	if latest.Set.Before == nil || *latest.Set.Before != "" {
		t.Errorf("newest-page before = %v, want empty", latest.Set.Before)
	}

	paged := written[2].ArchiveQuery
	if paged.Set.Before == nil || *paged.Set.Before != "arch-17" {
		t.Errorf("cursor query before = %v, want arch-17", paged.Set.Before)
	}
	if end := endFilter(paged); end != "" {
		t.Errorf("cursor query also carries an end filter: %q", end)
	}
}

func TestFinCursor(t *testing.T) {
	withSet, err := Parse([]byte(`<iq type="result" id="q1"><fin xmlns="urn:xmpp:mam:2" complete="false">` +
		`<set xmlns="http://jabber.org/protocol/rsm"><first>arch-3</first><last>arch-9</last></set></fin></iq>`))
	if err != nil {
		t.Fatal(err)
	}
	if got := withSet.FinCursor(); got != "arch-3" {
		t.Errorf("FinCursor = %q, want arch-3", got)
	}
	bare, err := Parse([]byte(`<iq type="result" id="q1"><fin xmlns="urn:xmpp:mam:2"/></iq>`))
	if err != nil {
		t.Fatal(err)
	}
	if got := bare.FinCursor(); got != "" {
		t.Errorf("FinCursor without a set = %q", got)
	}
}

func TestWriterFetchReference(t *testing.T) {
	var buffer bytes.Buffer
	writer := newTestWriter(&buffer)
	if err := writer.FetchReference(context.Background(), ref.MustParseRoomID(room), "s42"); err != nil {
		t.Fatal(err)
	}
	written := readAll(t, &buffer)
	if len(written) != 1 {
		t.Fatalf("wrote %d stanzas, want 1", len(written))
	}
	query := written[0].ArchiveQuery
	if query.QueryID != ReferenceQueryPrefix+room || query.Set.Max != 1 {
		t.Errorf("query = %+v", query)
	}
	var ids []string
	for _, field := range query.Form.Fields {
		if field.Var == "ids" {
			ids = field.Values
		}
	}
	if len(ids) != 1 || ids[0] != "s42" {
		t.Errorf("ids filter = %v", ids)
	}

	answer := mustParse(t, `<message from="`+room+`"><result xmlns="urn:xmpp:mam:2" queryid="ref:`+room+`" id="s42">`+
		`<forwarded xmlns="urn:xmpp:forward:0"><delay xmlns="urn:xmpp:delay" stamp="2026-03-01T10:00:00Z"/>`+
		`<message from="`+room+`/alice" id="m42"><body>the original</body></message></forwarded></result></message>`)
	if !answer.IsReferenceAnswer() {
		t.Fatal("reference answer not recognized")
	}
	inner, err := answer.Archived()
	if err != nil {
		t.Fatal(err)
	}
	reference, err := inner.Reference()
	if err != nil {
		t.Fatal(err)
	}
	if reference.StanzaID != "s42" || reference.From != "alice" || reference.Body != "the original" {
		t.Errorf("reference = %+v", reference)
	}

	fin := mustParse(t, `<iq type="result"><fin xmlns="urn:xmpp:mam:2" queryid="ref:`+room+`" complete="true"/></iq>`)
	if !fin.IsReferenceAnswer() {
		t.Error("reference fin not recognized")
	}
	if roomID, err := fin.FinRoom(); err != nil || roomID.String() != room {
		t.Errorf("FinRoom() = %v, %v", roomID, err)
	}
}

func TestWriterIQs(t *testing.T) {
	ctx := context.Background()
	var buffer bytes.Buffer
	writer := newTestWriter(&buffer)

	ping := mustParse(t, `<iq type="get" id="ping-7" from="chat.example" to="me@chat.example/web"><ping xmlns="urn:xmpp:ping"/></iq>`)
	if err := writer.SendPong(ctx, ping); err != nil {
		t.Fatal(err)
	}
	if err := writer.GetLastActivity(ctx, ref.MustParseJID("bob@chat.example/phone")); err != nil {
		t.Fatal(err)
	}
	if err := writer.SendPresence(ctx); err != nil {
		t.Fatal(err)
	}

	written := readAll(t, &buffer)
	if len(written) != 3 {
		t.Fatalf("wrote %d stanzas, want 3", len(written))
	}
	pong := written[0]
	if pong.Type != TypeResult || pong.ID != "ping-7" || pong.To != "chat.example" || pong.From != "me@chat.example/web" {
		t.Errorf("pong = %+v", pong)
	}
	if written[1].To != "bob@chat.example" || written[1].LastActivity == nil || written[1].Type != TypeGet {
		t.Errorf("last activity query = %+v", written[1])
	}
	if written[2].Name() != "presence" {
		t.Errorf("presence = %+v", written[2])
	}
}

func TestWriterCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buffer bytes.Buffer
	writer := NewWriter(&buffer)
	err := writer.SendPresence(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("SendPresence error = %v, want context.Canceled", err)
	}
	if buffer.Len() != 0 {
		t.Errorf("cancelled send wrote %q", buffer.String())
	}
}

func TestReaderDescendsIntoStreamRoot(t *testing.T) {
	input := `<?xml version="1.0"?>
<stream:stream xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams">
  <presence from="bob@chat.example/phone"/>
  <message from="` + room + `/bob" id="m1" type="groupchat"><body>hi</body></message>
</stream:stream>`
	reader := NewReader(strings.NewReader(input))

	first, err := reader.Next()
	if err != nil || first.Classify() != KindPresence {
		t.Fatalf("first = %+v, %v", first, err)
	}
	second, err := reader.Next()
	if err != nil || second.Classify() != KindMessage {
		t.Fatalf("second = %+v, %v", second, err)
	}
	if _, err := reader.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("third Next error = %v, want io.EOF", err)
	}
}
