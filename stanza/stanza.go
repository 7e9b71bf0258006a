// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stanza

import "encoding/xml"

// XML namespaces of the extensions the engine understands.
const (
	NSClient     = "jabber:client"
	NSChatStates = "http://jabber.org/protocol/chatstates"
	NSMarkers    = "urn:xmpp:chat-markers:0"
	NSPing       = "urn:xmpp:ping"
	NSStanzaID   = "urn:xmpp:sid:0"
	NSFasten     = "urn:xmpp:fasten:0"
	NSRetract    = "urn:xmpp:message-retract:0"
	NSCorrect    = "urn:xmpp:message-correct:0"
	NSReactions  = "urn:xmpp:reactions:0"
	NSMAM        = "urn:xmpp:mam:2"
	NSForward    = "urn:xmpp:forward:0"
	NSDelay      = "urn:xmpp:delay"
	NSRSM        = "http://jabber.org/protocol/rsm"
	NSDataForm   = "jabber:x:data"
	NSReply      = "urn:xmpp:reply:0"
	NSMUCUser    = "http://jabber.org/protocol/muc#user"
	NSLast       = "jabber:iq:last"
	NSStanzas    = "urn:ietf:params:xml:ns:xmpp-stanzas"
	NSAttachment = "urn:chatsync:attachment:0"
)

// Stanza type attribute values.
const (
	TypeGroupChat   = "groupchat"
	TypeChat        = "chat"
	TypeError       = "error"
	TypeGet         = "get"
	TypeSet         = "set"
	TypeResult      = "result"
	TypeUnavailable = "unavailable"
)

// Stanza is one top-level message, presence, or iq element. XMLName
// holds the element name; every extension child the engine reads is
// an optional field, nil when absent.
type Stanza struct {
	XMLName xml.Name

	ID   string `xml:"id,attr,omitempty"`
	From string `xml:"from,attr,omitempty"`
	To   string `xml:"to,attr,omitempty"`
	Type string `xml:"type,attr,omitempty"`

	Body    string  `xml:"body,omitempty"`
	Subject *string `xml:"subject"`

	Markable     *Empty     `xml:"urn:xmpp:chat-markers:0 markable"`
	Received     *MarkerRef `xml:"urn:xmpp:chat-markers:0 received"`
	Displayed    *MarkerRef `xml:"urn:xmpp:chat-markers:0 displayed"`
	Acknowledged *MarkerRef `xml:"urn:xmpp:chat-markers:0 acknowledged"`

	Composing *Empty `xml:"http://jabber.org/protocol/chatstates composing"`
	Paused    *Empty `xml:"http://jabber.org/protocol/chatstates paused"`
	Active    *Empty `xml:"http://jabber.org/protocol/chatstates active"`

	StanzaID   *StanzaIDElement `xml:"urn:xmpp:sid:0 stanza-id"`
	ApplyTo    *ApplyTo         `xml:"urn:xmpp:fasten:0 apply-to"`
	Reply      *Reply           `xml:"urn:xmpp:reply:0 reply"`
	Attachment *Attachment      `xml:"urn:chatsync:attachment:0 attachment"`
	Forwarded  *Forwarded       `xml:"urn:xmpp:forward:0 forwarded"`
	Delay      *Delay           `xml:"urn:xmpp:delay delay"`
	MUCUser    *MUCUser         `xml:"http://jabber.org/protocol/muc#user x"`

	Result       *Result       `xml:"urn:xmpp:mam:2 result"`
	Fin          *Fin          `xml:"urn:xmpp:mam:2 fin"`
	ArchiveQuery *ArchiveQuery `xml:"urn:xmpp:mam:2 query"`
	LastActivity *LastActivity `xml:"jabber:iq:last query"`
	Ping         *Empty        `xml:"urn:xmpp:ping ping"`

	Error *ErrorElement `xml:"error"`
}

// Name returns the element's local name ("message", "presence", "iq").
func (s *Stanza) Name() string { return s.XMLName.Local }

// Empty is a child element whose presence is the whole signal.
type Empty struct{}

// MarkerRef is a chat marker pointing at a message.
type MarkerRef struct {
	ID string `xml:"id,attr"`
}

// StanzaIDElement is the server-assigned permanent message id.
type StanzaIDElement struct {
	ID string `xml:"id,attr"`
	By string `xml:"by,attr,omitempty"`
}

// ApplyTo wraps a retroactive operation on the message whose stanza id
// is ID. Exactly one of Retract, Replace, or Reaction is set; for
// Replace the new text travels in the enclosing message's body.
type ApplyTo struct {
	ID       string           `xml:"id,attr"`
	Retract  *Empty           `xml:"urn:xmpp:message-retract:0 retract"`
	Replace  *Empty           `xml:"urn:xmpp:message-correct:0 replace"`
	Reaction *ReactionElement `xml:"urn:xmpp:reactions:0 reaction"`
}

// ReactionElement carries one reaction payload (usually an emoji).
type ReactionElement struct {
	Value string `xml:",chardata"`
}

// Reply marks a message as a reply to the message with stanza id ID.
// Preview is the quoted text shown until the original is loaded.
type Reply struct {
	ID      string `xml:"id,attr"`
	To      string `xml:"to,attr,omitempty"`
	Preview string `xml:",chardata"`
}

// Attachment describes a file shared in a message.
type Attachment struct {
	URL       string `xml:"url,attr"`
	Name      string `xml:"name,attr,omitempty"`
	MimeType  string `xml:"mime,attr,omitempty"`
	Size      int64  `xml:"size,attr,omitempty"`
	Width     int    `xml:"width,attr,omitempty"`
	Height    int    `xml:"height,attr,omitempty"`
	Thumbnail string `xml:"thumbnail,attr,omitempty"`
}

// Forwarded wraps a message delivered on behalf of its original
// sender: an archive result, or a re-posted message.
type Forwarded struct {
	Delay   *Delay  `xml:"urn:xmpp:delay delay"`
	Message *Stanza `xml:"message"`
}

// Delay records when a stanza was originally sent.
type Delay struct {
	Stamp string `xml:"stamp,attr"`
	From  string `xml:"from,attr,omitempty"`
}

// MUCUser carries room membership data.
type MUCUser struct {
	Items    []MUCItem   `xml:"item"`
	Statuses []MUCStatus `xml:"status"`
}

// MUCItem is one occupant's affiliation and role.
type MUCItem struct {
	Affiliation string `xml:"affiliation,attr,omitempty"`
	Role        string `xml:"role,attr,omitempty"`
	JID         string `xml:"jid,attr,omitempty"`
	Nick        string `xml:"nick,attr,omitempty"`
}

// MUCStatus is a room status code.
type MUCStatus struct {
	Code int `xml:"code,attr"`
}

// Result wraps one archived message of a history page.
type Result struct {
	QueryID   string     `xml:"queryid,attr,omitempty"`
	ID        string     `xml:"id,attr"`
	Forwarded *Forwarded `xml:"urn:xmpp:forward:0 forwarded"`
}

// Fin terminates a history page.
type Fin struct {
	QueryID  string     `xml:"queryid,attr,omitempty"`
	Complete bool       `xml:"complete,attr,omitempty"`
	Set      *ResultSet `xml:"http://jabber.org/protocol/rsm set"`
}

// ResultSet is the paging cursor of an archive query.
type ResultSet struct {
	Max    int     `xml:"max,omitempty"`
	Before *string `xml:"before"`
	First  string  `xml:"first,omitempty"`
	Last   string  `xml:"last,omitempty"`
	Count  int     `xml:"count,omitempty"`
}

// ArchiveQuery requests a history page.
type ArchiveQuery struct {
	QueryID string     `xml:"queryid,attr,omitempty"`
	Form    *DataForm  `xml:"jabber:x:data x"`
	Set     *ResultSet `xml:"http://jabber.org/protocol/rsm set"`
}

// DataForm is a submitted query form.
type DataForm struct {
	Type   string      `xml:"type,attr"`
	Fields []FormField `xml:"field"`
}

// FormField is one form field.
type FormField struct {
	Var    string   `xml:"var,attr"`
	Type   string   `xml:"type,attr,omitempty"`
	Values []string `xml:"value"`
}

// LastActivity is a last-activity query or its result. Seconds is the
// idle time reported by the server.
type LastActivity struct {
	Seconds int64 `xml:"seconds,attr,omitempty"`
}

// ErrorElement is the <error/> child of an error stanza.
type ErrorElement struct {
	Type       string      `xml:"type,attr,omitempty"`
	By         string      `xml:"by,attr,omitempty"`
	Text       string      `xml:"urn:ietf:params:xml:ns:xmpp-stanzas text,omitempty"`
	Conditions []Condition `xml:",any"`
}

// Condition is a defined error condition element.
type Condition struct {
	XMLName xml.Name
}
