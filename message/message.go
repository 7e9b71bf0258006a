// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"fmt"

	"github.com/bureau-foundation/chatsync/lib/ref"
)

// Kind identifies a Message variant.
type Kind int

const (
	KindText Kind = iota + 1
	KindDeleted
	KindAffiliation
	KindConfiguration
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDeleted:
		return "deleted"
	case KindAffiliation:
		return "affiliation"
	case KindConfiguration:
		return "configuration"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Header carries the fields common to every variant.
type Header struct {
	// ID is the client-assigned identifier. Unique only within a
	// room's timeline.
	ID string

	// RoomID is the room this entry belongs to.
	RoomID ref.RoomID

	// Date is the entry's timestamp in epoch milliseconds.
	Date int64

	// From identifies the sender (the occupant nickname, which is the
	// user's account localpart in this deployment).
	From string
}

// Message is one entry in a room timeline.
type Message interface {
	// Meta returns the common header.
	Meta() Header

	// Kind returns the variant tag.
	Kind() Kind

	isMessage()
}

// Text is a chat message.
type Text struct {
	Header

	// StanzaID is the server-assigned permanent identifier. Empty on
	// an optimistic local copy until the server echo arrives.
	StanzaID string

	Body     string
	Read     MarkerType
	Edited   bool
	Markable bool

	// ReplyTo is a denormalized preview of the message this one
	// replies to.
	ReplyTo *Reference

	// Forwarded is set when this message re-posts another user's
	// content.
	Forwarded *Forwarded

	Attachment *Attachment
}

// Deleted is a retracted message. It keeps the original header so the
// timeline does not reorder, and the StanzaID so later operations can
// still find the slot.
type Deleted struct {
	Header
	StanzaID string
}

// Affiliation records a membership change in the room.
type Affiliation struct {
	Header

	// Target is the user whose membership changed.
	Target string

	// Affiliation is the new affiliation ("owner", "admin", "member",
	// "outcast", "none").
	Affiliation string

	// Role is the new occupant role ("moderator", "participant",
	// "visitor", "none").
	Role string
}

// Configuration records a room metadata change.
type Configuration struct {
	Header

	// Field names what changed ("subject", "name", "description").
	Field string
	Value string
}

// Date is a synthetic separator placed before the first message of
// each calendar day (except the first message of the timeline).
type Date struct {
	Header
}

func (m Text) Meta() Header          { return m.Header }
func (m Deleted) Meta() Header       { return m.Header }
func (m Affiliation) Meta() Header   { return m.Header }
func (m Configuration) Meta() Header { return m.Header }
func (m Date) Meta() Header          { return m.Header }

func (Text) Kind() Kind          { return KindText }
func (Deleted) Kind() Kind       { return KindDeleted }
func (Affiliation) Kind() Kind   { return KindAffiliation }
func (Configuration) Kind() Kind { return KindConfiguration }
func (Date) Kind() Kind          { return KindDate }

func (Text) isMessage()          {}
func (Deleted) isMessage()       {}
func (Affiliation) isMessage()   {}
func (Configuration) isMessage() {}
func (Date) isMessage()          {}

// Attachment describes a file attached to a message.
type Attachment struct {
	URL       string
	Name      string
	MimeType  string
	Size      int64
	Width     int
	Height    int
	Thumbnail string
}

// Reference is the preview content of a replied-to message, carried so
// the reply can render before the original is loaded.
type Reference struct {
	StanzaID   string
	From       string
	Body       string
	Attachment *Attachment
}

// Forwarded is the origin of a forwarded message.
type Forwarded struct {
	From       string
	Body       string
	Attachment *Attachment
}

// StanzaIDOf returns the permanent identifier of m, or "" for variants
// that have none.
func StanzaIDOf(m Message) string {
	switch v := m.(type) {
	case Text:
		return v.StanzaID
	case Deleted:
		return v.StanzaID
	case Affiliation, Configuration, Date:
		return ""
	default:
		panic(fmt.Sprintf("message: unhandled variant %T", m))
	}
}

// Delete returns the tombstone for t, preserving its header and
// StanzaID.
func Delete(t Text) Deleted {
	return Deleted{Header: t.Header, StanzaID: t.StanzaID}
}
