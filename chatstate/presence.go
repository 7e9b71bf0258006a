// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatstate

import (
	"time"

	"github.com/bureau-foundation/chatsync/lib/ref"
)

// Status is a user's availability.
type Status int

const (
	StatusUnknown Status = iota
	StatusOnline
	StatusOffline
)

func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// UserPresence is what is known about one user.
type UserPresence struct {
	Status Status

	// LastActivity is when the user was last active, derived from the
	// server's idle time. Zero until a last-activity answer arrives.
	LastActivity time.Time
}

// FollowUp is the protocol call a presence update requires.
type FollowUp int

const (
	// NoFollowUp: nothing to send.
	NoFollowUp FollowUp = iota

	// FetchLastActivity: ask the server when the user was last active.
	FetchLastActivity

	// AssertPresence: announce the local session as available again.
	AssertPresence
)

// Presence is the per-user availability table plus the local
// session's own online flag.
//
// Presence is not safe for concurrent use.
type Presence struct {
	self   ref.JID
	online bool
	users  map[string]UserPresence
}

// NewPresence returns a table for the local account self.
func NewPresence(self ref.JID) *Presence {
	return &Presence{
		self:  self.Bare(),
		users: make(map[string]UserPresence),
	}
}

// Apply folds a presence stanza from user with the given type
// attribute into the table and returns the follow-up call.
//
// A presence for the local account is special: an unavailable
// presence there means another resource of the same account went
// away, so the local online flag is left alone and the session
// re-announces itself.
func (p *Presence) Apply(user ref.JID, presenceType string) FollowUp {
	bare := user.Bare()
	if bare == p.self {
		switch presenceType {
		case "unavailable":
			return AssertPresence
		case "":
			p.online = true
		}
		return NoFollowUp
	}

	key := bare.String()
	current := p.users[key]
	switch presenceType {
	case "":
		current.Status = StatusOnline
		p.users[key] = current
		return NoFollowUp
	case "unavailable":
		current.Status = StatusOffline
		p.users[key] = current
		return FetchLastActivity
	default:
		// subscribe, probe, and error presences carry no availability.
		return NoFollowUp
	}
}

// ApplyOccupant folds a room occupant presence naming user into the
// table. The local account's own occupant presences only report it
// joining and leaving rooms, so they change nothing.
func (p *Presence) ApplyOccupant(user ref.JID, presenceType string) FollowUp {
	if user.Bare() == p.self {
		return NoFollowUp
	}
	return p.Apply(user, presenceType)
}

// SetLastActivity records a last-activity answer: the user was last
// active idle before now.
func (p *Presence) SetLastActivity(user ref.JID, idle time.Duration, now time.Time) {
	key := user.Bare().String()
	current := p.users[key]
	current.LastActivity = now.Add(-idle)
	p.users[key] = current
}

// User returns what is known about user.
func (p *Presence) User(user ref.JID) UserPresence {
	return p.users[user.Bare().String()]
}

// Online reports the local session's online flag.
func (p *Presence) Online() bool { return p.online }

// SetOnline sets the local session's online flag. The engine sets it
// when the transport connects and clears it when it drops.
func (p *Presence) SetOnline(online bool) { p.online = online }

// Reset forgets every user and marks the session offline.
func (p *Presence) Reset() {
	p.online = false
	p.users = make(map[string]UserPresence)
}
