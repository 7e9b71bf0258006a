// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"sync"

	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/stanza"
)

// Link identifies one of the connections a session depends on.
type Link int

const (
	// LinkTransport is the primary stanza stream.
	LinkTransport Link = iota
	// LinkSecondary is the fallback stanza stream used while the
	// primary reconnects.
	LinkSecondary
	// LinkBackend is the REST backend.
	LinkBackend
)

func (l Link) String() string {
	switch l {
	case LinkTransport:
		return "transport"
	case LinkSecondary:
		return "secondary"
	case LinkBackend:
		return "backend"
	default:
		return "unknown"
	}
}

// State is safe for concurrent use.
type State struct {
	mu        sync.RWMutex
	self      ref.JID
	outbound  stanza.Outbound
	backend   *Backend
	reachable [3]bool
}

// New returns a State for the given account with no links attached.
func New(self ref.JID) *State {
	return &State{self: self}
}

// Self returns the signed-in account. Zero after Clear.
func (s *State) Self() ref.JID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.self
}

// Attach installs the handles for a freshly established connection
// and marks the primary transport reachable. A nil backend leaves
// the current one in place.
func (s *State) Attach(outbound stanza.Outbound, backend *Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbound = outbound
	if backend != nil {
		s.backend = backend
	}
	s.reachable[LinkTransport] = outbound != nil
}

// Outbound returns the current stanza transport, or nil while
// disconnected.
func (s *State) Outbound() stanza.Outbound {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outbound
}

// Backend returns the REST backend client, or nil if none is attached.
func (s *State) Backend() *Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend
}

// SetReachable records whether a link is currently up.
func (s *State) SetReachable(link Link, up bool) {
	if link < LinkTransport || link > LinkBackend {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reachable[link] = up
}

// Reachable reports whether a link was last seen up.
func (s *State) Reachable(link Link) bool {
	if link < LinkTransport || link > LinkBackend {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reachable[link]
}

// Online reports whether stanzas can currently be exchanged over
// either stream.
func (s *State) Online() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outbound != nil && (s.reachable[LinkTransport] || s.reachable[LinkSecondary])
}

// Disconnect drops the stanza transport and clears every reachability
// flag. The identity and the backend client are kept for the next
// Attach.
func (s *State) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbound = nil
	s.reachable = [3]bool{}
}

// Clear returns the State to its zero value.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend != nil {
		s.backend.CloseIdleConnections()
	}
	s.self = ref.JID{}
	s.outbound = nil
	s.backend = nil
	s.reachable = [3]bool{}
}
