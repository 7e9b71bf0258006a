// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// StreamType names one kind of stream a participant can publish.
type StreamType string

const (
	StreamVideo  StreamType = "video"
	StreamAudio  StreamType = "audio"
	StreamScreen StreamType = "screen"
)

// Valid reports whether t is a known stream type.
func (t StreamType) Valid() bool {
	switch t {
	case StreamVideo, StreamAudio, StreamScreen:
		return true
	}
	return false
}

// Subscription is one stream of one participant.
type Subscription struct {
	UserID string
	Type   StreamType
}

// Key returns "<userID>-<type>", the identity used for diffing.
func (s Subscription) Key() string {
	return s.UserID + "-" + string(s.Type)
}

func (s Subscription) String() string {
	return s.Key()
}

func (s Subscription) validate() error {
	if s.UserID == "" {
		return fmt.Errorf("media: subscription has no user id")
	}
	if !s.Type.Valid() {
		return fmt.Errorf("media: subscription %s: unknown stream type %q", s.UserID, s.Type)
	}
	return nil
}

// Map is a set of subscriptions keyed by [Subscription.Key].
type Map map[string]Subscription

// NewMap builds a Map from the given subscriptions.
func NewMap(subscriptions ...Subscription) Map {
	result := make(Map, len(subscriptions))
	for _, subscription := range subscriptions {
		result.Put(subscription)
	}
	return result
}

// Put adds s under its key.
func (m Map) Put(s Subscription) {
	m[s.Key()] = s
}

// Has reports whether the map holds s.
func (m Map) Has(s Subscription) bool {
	_, ok := m[s.Key()]
	return ok
}

// Sorted returns the subscriptions ordered by key.
func (m Map) Sorted() []Subscription {
	keys := slices.Sorted(maps.Keys(m))
	result := make([]Subscription, 0, len(keys))
	for _, key := range keys {
		result = append(result, m[key])
	}
	return result
}

// Diff returns the subscriptions to add (desired but not current) and
// to remove (current but not desired), each sorted by key. Keys
// present in both are in neither list.
func Diff(current, desired Map) (add, remove []Subscription) {
	for key, subscription := range desired {
		if _, held := current[key]; !held {
			add = append(add, subscription)
		}
	}
	for key, subscription := range current {
		if _, wanted := desired[key]; !wanted {
			remove = append(remove, subscription)
		}
	}
	byKey := func(a, b Subscription) int { return strings.Compare(a.Key(), b.Key()) }
	slices.SortFunc(add, byKey)
	slices.SortFunc(remove, byKey)
	return add, remove
}
