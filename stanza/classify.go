// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stanza

import "fmt"

// Kind is the routing category of an inbound stanza.
type Kind int

const (
	KindUnknown Kind = iota
	KindPresence
	KindPing
	KindArchiveFin
	KindLastActivity
	KindError
	KindArchiveResult
	KindFastening
	KindMessage
	KindMarker
	KindChatState
)

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindPresence:
		return "presence"
	case KindPing:
		return "ping"
	case KindArchiveFin:
		return "archive-fin"
	case KindLastActivity:
		return "last-activity"
	case KindError:
		return "error"
	case KindArchiveResult:
		return "archive-result"
	case KindFastening:
		return "fastening"
	case KindMessage:
		return "message"
	case KindMarker:
		return "marker"
	case KindChatState:
		return "chat-state"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Classify determines the stanza's category from its shape. The checks
// run in precedence order: an archive result wraps a full message and
// wins over anything inside it, a fastening carries a body that must
// not be appended, and a body wins over the chat state and markers
// that clients attach to ordinary messages.
func (s *Stanza) Classify() Kind {
	switch s.Name() {
	case "presence":
		return KindPresence
	case "iq":
		return s.classifyIQ()
	case "message":
		return s.classifyMessage()
	default:
		return KindUnknown
	}
}

func (s *Stanza) classifyIQ() Kind {
	switch {
	case s.Type == TypeError:
		return KindError
	case s.Ping != nil && s.Type == TypeGet:
		return KindPing
	case s.Fin != nil:
		return KindArchiveFin
	case s.LastActivity != nil && s.Type == TypeResult:
		return KindLastActivity
	default:
		return KindUnknown
	}
}

func (s *Stanza) classifyMessage() Kind {
	switch {
	case s.Type == TypeError:
		return KindError
	case s.Result != nil:
		return KindArchiveResult
	case s.ApplyTo != nil:
		return KindFastening
	case s.Body != "":
		return KindMessage
	case s.Subject != nil, s.MUCUser != nil && len(s.MUCUser.Items) > 0:
		return KindMessage
	case s.Displayed != nil, s.Received != nil, s.Acknowledged != nil:
		return KindMarker
	case s.Composing != nil, s.Paused != nil:
		return KindChatState
	default:
		return KindUnknown
	}
}
