// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stanza

import (
	"testing"

	"github.com/bureau-foundation/chatsync/message"
)

const room = "general@conference.chat.example"

func mustParse(t *testing.T, raw string) *Stanza {
	t.Helper()
	parsed, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse(%s): %v", raw, err)
	}
	return parsed
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Kind
	}{
		{
			name: "presence",
			raw:  `<presence from="bob@chat.example/phone" type="unavailable"/>`,
			want: KindPresence,
		},
		{
			name: "ping",
			raw:  `<iq type="get" id="p1" from="chat.example"><ping xmlns="urn:xmpp:ping"/></iq>`,
			want: KindPing,
		},
		{
			name: "archive fin",
			raw:  `<iq type="result" id="q1" from="` + room + `"><fin xmlns="urn:xmpp:mam:2" complete="true"/></iq>`,
			want: KindArchiveFin,
		},
		{
			name: "last activity",
			raw:  `<iq type="result" id="l1" from="bob@chat.example"><query xmlns="jabber:iq:last" seconds="90"/></iq>`,
			want: KindLastActivity,
		},
		{
			name: "error iq",
			raw:  `<iq type="error" id="q2" from="` + room + `"><error type="cancel"><item-not-found xmlns="urn:ietf:params:xml:ns:xmpp-stanzas"/></error></iq>`,
			want: KindError,
		},
		{
			name: "archive result",
			raw: `<message from="` + room + `"><result xmlns="urn:xmpp:mam:2" id="a1"><forwarded xmlns="urn:xmpp:forward:0">` +
				`<delay xmlns="urn:xmpp:delay" stamp="2026-03-01T10:00:00Z"/>` +
				`<message from="` + room + `/alice" id="m1"><body>hi</body></message></forwarded></result></message>`,
			want: KindArchiveResult,
		},
		{
			name: "fastening with body",
			raw: `<message from="` + room + `/alice" id="f1" type="groupchat"><body>fixed</body>` +
				`<apply-to xmlns="urn:xmpp:fasten:0" id="s1"><replace xmlns="urn:xmpp:message-correct:0"/></apply-to></message>`,
			want: KindFastening,
		},
		{
			name: "body with chat state",
			raw: `<message from="` + room + `/alice" id="m2" type="groupchat"><body>hello</body>` +
				`<active xmlns="http://jabber.org/protocol/chatstates"/></message>`,
			want: KindMessage,
		},
		{
			name: "subject",
			raw:  `<message from="` + room + `/alice" type="groupchat"><subject>Plans</subject></message>`,
			want: KindMessage,
		},
		{
			name: "affiliation",
			raw: `<message from="` + room + `"><x xmlns="http://jabber.org/protocol/muc#user">` +
				`<item affiliation="member" jid="carol@chat.example"/></x></message>`,
			want: KindMessage,
		},
		{
			name: "marker",
			raw:  `<message from="` + room + `/bob" type="groupchat"><displayed xmlns="urn:xmpp:chat-markers:0" id="s1"/></message>`,
			want: KindMarker,
		},
		{
			name: "composing",
			raw:  `<message from="` + room + `/bob" type="groupchat"><composing xmlns="http://jabber.org/protocol/chatstates"/></message>`,
			want: KindChatState,
		},
		{
			name: "bare active state",
			raw:  `<message from="` + room + `/bob" type="groupchat"><active xmlns="http://jabber.org/protocol/chatstates"/></message>`,
			want: KindUnknown,
		},
		{
			name: "error message",
			raw:  `<message from="` + room + `" type="error" id="m9"><body>x</body><error type="modify"><not-acceptable xmlns="urn:ietf:params:xml:ns:xmpp-stanzas"/></error></message>`,
			want: KindError,
		},
		{
			name: "unrelated iq",
			raw:  `<iq type="get" id="v1"><query xmlns="jabber:iq:version"/></iq>`,
			want: KindUnknown,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := mustParse(t, test.raw).Classify(); got != test.want {
				t.Errorf("Classify() = %v, want %v", got, test.want)
			}
		})
	}
}

func TestArchivedMessage(t *testing.T) {
	outer := mustParse(t, `<message from="`+room+`"><result xmlns="urn:xmpp:mam:2" queryid="`+room+`" id="arch-1">`+
		`<forwarded xmlns="urn:xmpp:forward:0"><delay xmlns="urn:xmpp:delay" stamp="2026-03-01T10:00:00Z"/>`+
		`<message xmlns="jabber:client" from="`+room+`/alice" id="m1" type="groupchat"><body>hi</body></message>`+
		`</forwarded></result></message>`)

	inner, err := outer.Archived()
	if err != nil {
		t.Fatalf("Archived: %v", err)
	}
	if inner.Classify() != KindMessage {
		t.Fatalf("inner Classify() = %v", inner.Classify())
	}
	if inner.ServerID() != "arch-1" {
		t.Errorf("ServerID() = %q, want archive id", inner.ServerID())
	}

	converted, err := inner.Message(0)
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	text, ok := converted.(message.Text)
	if !ok {
		t.Fatalf("converted to %T", converted)
	}
	if text.ID != "m1" || text.From != "alice" || text.Body != "hi" {
		t.Errorf("text = %+v", text)
	}
	if text.RoomID.String() != room {
		t.Errorf("RoomID = %s", text.RoomID)
	}
	if want := int64(1772359200000); text.Date != want {
		t.Errorf("Date = %d, want %d", text.Date, want)
	}
}

func TestArchivedWithoutMessage(t *testing.T) {
	outer := mustParse(t, `<message from="`+room+`"><result xmlns="urn:xmpp:mam:2" id="arch-1"/></message>`)
	if _, err := outer.Archived(); err == nil {
		t.Error("Archived succeeded on an empty result")
	}
}

func TestMessageConversion(t *testing.T) {
	t.Run("reply and attachment", func(t *testing.T) {
		parsed := mustParse(t, `<message from="`+room+`/bob" id="m3" type="groupchat"><body>agreed</body>`+
			`<markable xmlns="urn:xmpp:chat-markers:0"/>`+
			`<stanza-id xmlns="urn:xmpp:sid:0" id="s3" by="`+room+`"/>`+
			`<reply xmlns="urn:xmpp:reply:0" id="s1" to="`+room+`/alice">original text</reply>`+
			`<attachment xmlns="urn:chatsync:attachment:0" url="https://files.example/a.png" mime="image/png" size="2048"/>`+
			`</message>`)
		converted, err := parsed.Message(500)
		if err != nil {
			t.Fatalf("Message: %v", err)
		}
		text := converted.(message.Text)
		if text.StanzaID != "s3" || !text.Markable || text.Date != 500 {
			t.Errorf("text = %+v", text)
		}
		if text.ReplyTo == nil || text.ReplyTo.StanzaID != "s1" || text.ReplyTo.From != "alice" || text.ReplyTo.Body != "original text" {
			t.Errorf("ReplyTo = %+v", text.ReplyTo)
		}
		if text.Attachment == nil || text.Attachment.MimeType != "image/png" || text.Attachment.Size != 2048 {
			t.Errorf("Attachment = %+v", text.Attachment)
		}
	})

	t.Run("subject", func(t *testing.T) {
		parsed := mustParse(t, `<message from="`+room+`/alice" type="groupchat"><subject>Plans</subject></message>`)
		converted, err := parsed.Message(700)
		if err != nil {
			t.Fatalf("Message: %v", err)
		}
		configuration := converted.(message.Configuration)
		if configuration.Field != "subject" || configuration.Value != "Plans" || configuration.ID != "subject-700" {
			t.Errorf("configuration = %+v", configuration)
		}
	})

	t.Run("affiliation", func(t *testing.T) {
		parsed := mustParse(t, `<message from="`+room+`" id="n1"><x xmlns="http://jabber.org/protocol/muc#user">`+
			`<item affiliation="admin" role="moderator" jid="carol@chat.example/laptop"/></x></message>`)
		converted, err := parsed.Message(1)
		if err != nil {
			t.Fatalf("Message: %v", err)
		}
		affiliation := converted.(message.Affiliation)
		if affiliation.Target != "carol" || affiliation.Affiliation != "admin" || affiliation.Role != "moderator" {
			t.Errorf("affiliation = %+v", affiliation)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		parsed := mustParse(t, `<message from="`+room+`/alice" type="groupchat"><body>anon</body></message>`)
		if _, err := parsed.Message(1); err == nil {
			t.Error("Message accepted a body without any id")
		}
	})
}

func TestFasteningConversion(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantAction message.Action
		wantValue  string
	}{
		{
			name:       "retract",
			raw:        `<apply-to xmlns="urn:xmpp:fasten:0" id="s1"><retract xmlns="urn:xmpp:message-retract:0"/></apply-to>`,
			wantAction: message.ActionDelete,
		},
		{
			name:       "edit",
			raw:        `<body>new text</body><apply-to xmlns="urn:xmpp:fasten:0" id="s1"><replace xmlns="urn:xmpp:message-correct:0"/></apply-to>`,
			wantAction: message.ActionEdit,
			wantValue:  "new text",
		},
		{
			name:       "reaction",
			raw:        `<apply-to xmlns="urn:xmpp:fasten:0" id="s1"><reaction xmlns="urn:xmpp:reactions:0">+1</reaction></apply-to>`,
			wantAction: message.ActionReaction,
			wantValue:  "+1",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			parsed := mustParse(t, `<message from="`+room+`/alice" id="f1" type="groupchat">`+test.raw+`</message>`)
			fastening, err := parsed.Fastening(42)
			if err != nil {
				t.Fatalf("Fastening: %v", err)
			}
			if fastening.Action != test.wantAction || fastening.Value != test.wantValue {
				t.Errorf("fastening = %+v", fastening)
			}
			if fastening.OriginalStanzaID != "s1" || fastening.From != "alice" || fastening.Date != 42 || fastening.ID != "f1" {
				t.Errorf("fastening = %+v", fastening)
			}
		})
	}

	t.Run("no action", func(t *testing.T) {
		parsed := mustParse(t, `<message from="`+room+`/alice" id="f2"><apply-to xmlns="urn:xmpp:fasten:0" id="s1"/></message>`)
		if _, err := parsed.Fastening(1); err == nil {
			t.Error("Fastening accepted an apply-to without an action")
		}
	})
}

func TestMarkerConversion(t *testing.T) {
	parsed := mustParse(t, `<message from="`+room+`/bob" type="groupchat"><displayed xmlns="urn:xmpp:chat-markers:0" id="s7"/></message>`)
	roomID, marker, err := parsed.Marker(900)
	if err != nil {
		t.Fatalf("Marker: %v", err)
	}
	if roomID.String() != room {
		t.Errorf("room = %s", roomID)
	}
	want := message.Marker{From: "bob", MessageID: "s7", MarkerDate: 900, Type: message.MarkerDisplayed}
	if marker != want {
		t.Errorf("marker = %+v, want %+v", marker, want)
	}
}

func TestFinRoom(t *testing.T) {
	fromAttribute := mustParse(t, `<iq type="result" from="`+room+`"><fin xmlns="urn:xmpp:mam:2"/></iq>`)
	if roomID, err := fromAttribute.FinRoom(); err != nil || roomID.String() != room {
		t.Errorf("FinRoom() = %v, %v", roomID, err)
	}

	fromQueryID := mustParse(t, `<iq type="result"><fin xmlns="urn:xmpp:mam:2" queryid="`+room+`"/></iq>`)
	if roomID, err := fromQueryID.FinRoom(); err != nil || roomID.String() != room {
		t.Errorf("FinRoom() via queryid = %v, %v", roomID, err)
	}

	anonymous := mustParse(t, `<iq type="result"><fin xmlns="urn:xmpp:mam:2"/></iq>`)
	if _, err := anonymous.FinRoom(); err == nil {
		t.Error("FinRoom succeeded without a room")
	}
}

func TestStanzaError(t *testing.T) {
	parsed := mustParse(t, `<iq type="error" id="q2" from="`+room+`"><error type="cancel">`+
		`<item-not-found xmlns="urn:ietf:params:xml:ns:xmpp-stanzas"/>`+
		`<text xmlns="urn:ietf:params:xml:ns:xmpp-stanzas">no archive</text></error></iq>`)
	err := parsed.Err()
	if err == nil {
		t.Fatal("Err() = nil for an error stanza")
	}
	if !IsStanzaError(err, ConditionItemNotFound) {
		t.Errorf("IsStanzaError(%v, item-not-found) = false", err)
	}
	if IsStanzaError(err, ConditionForbidden) {
		t.Error("IsStanzaError matched the wrong condition")
	}
	if got, want := err.Error(), "stanza: item-not-found (cancel): no archive"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if mustParse(t, `<iq type="result" id="q3"/>`).Err() != nil {
		t.Error("Err() non-nil for a result stanza")
	}
}
