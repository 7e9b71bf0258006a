// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"fmt"

	"github.com/bureau-foundation/chatsync/lib/ref"
)

// Record is the flat serialized form of a Message. Only the fields of
// the recorded Kind are populated.
type Record struct {
	Kind   Kind       `cbor:"kind"`
	ID     string     `cbor:"id"`
	RoomID ref.RoomID `cbor:"room_id"`
	Date   int64      `cbor:"date"`
	From   string     `cbor:"from,omitempty"`

	StanzaID   string      `cbor:"stanza_id,omitempty"`
	Body       string      `cbor:"body,omitempty"`
	Read       MarkerType  `cbor:"read,omitempty"`
	Edited     bool        `cbor:"edited,omitempty"`
	Markable   bool        `cbor:"markable,omitempty"`
	ReplyTo    *Reference  `cbor:"reply_to,omitempty"`
	Forwarded  *Forwarded  `cbor:"forwarded,omitempty"`
	Attachment *Attachment `cbor:"attachment,omitempty"`

	Target      string `cbor:"target,omitempty"`
	Affiliation string `cbor:"affiliation,omitempty"`
	Role        string `cbor:"role,omitempty"`

	Field string `cbor:"field,omitempty"`
	Value string `cbor:"value,omitempty"`
}

// ToRecord flattens m.
func ToRecord(m Message) Record {
	header := m.Meta()
	record := Record{
		Kind:   m.Kind(),
		ID:     header.ID,
		RoomID: header.RoomID,
		Date:   header.Date,
		From:   header.From,
	}
	switch v := m.(type) {
	case Text:
		record.StanzaID = v.StanzaID
		record.Body = v.Body
		record.Read = v.Read
		record.Edited = v.Edited
		record.Markable = v.Markable
		record.ReplyTo = v.ReplyTo
		record.Forwarded = v.Forwarded
		record.Attachment = v.Attachment
	case Deleted:
		record.StanzaID = v.StanzaID
	case Affiliation:
		record.Target = v.Target
		record.Affiliation = v.Affiliation
		record.Role = v.Role
	case Configuration:
		record.Field = v.Field
		record.Value = v.Value
	case Date:
	default:
		panic(fmt.Sprintf("message: unhandled variant %T", m))
	}
	return record
}

// Message rebuilds the variant described by r.
func (r Record) Message() (Message, error) {
	header := Header{ID: r.ID, RoomID: r.RoomID, Date: r.Date, From: r.From}
	switch r.Kind {
	case KindText:
		return Text{
			Header:     header,
			StanzaID:   r.StanzaID,
			Body:       r.Body,
			Read:       r.Read,
			Edited:     r.Edited,
			Markable:   r.Markable,
			ReplyTo:    r.ReplyTo,
			Forwarded:  r.Forwarded,
			Attachment: r.Attachment,
		}, nil
	case KindDeleted:
		return Deleted{Header: header, StanzaID: r.StanzaID}, nil
	case KindAffiliation:
		return Affiliation{Header: header, Target: r.Target, Affiliation: r.Affiliation, Role: r.Role}, nil
	case KindConfiguration:
		return Configuration{Header: header, Field: r.Field, Value: r.Value}, nil
	case KindDate:
		return Date{Header: header}, nil
	default:
		return nil, fmt.Errorf("message record %q has unknown kind %d", r.ID, int(r.Kind))
	}
}
