// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"testing"

	"github.com/bureau-foundation/chatsync/message"
)

func TestDisplayedMarkerMarksOwnMessagesRead(t *testing.T) {
	store := newStore()
	store.AppendMessage(text("a", "sa", dayOne+1, "me", "one"))
	store.AppendMessage(text("b", "sb", dayOne+2, "bob", "two"))
	store.AppendMessage(text("c", "sc", dayOne+3, "me", "three"))
	store.AppendMessage(text("d", "sd", dayOne+4, "me", "four"))

	store.SetMarker(general, message.Marker{From: "bob", MessageID: "sc", MarkerDate: 10, Type: message.MarkerDisplayed})

	want := map[string]message.MarkerType{
		"a": message.MarkerDisplayed,
		"b": message.MarkerNone,
		"c": message.MarkerDisplayed,
		"d": message.MarkerNone,
	}
	for _, msg := range store.Messages(general) {
		text := msg.(message.Text)
		if text.Read != want[text.ID] {
			t.Errorf("%s Read = %v, want %v", text.ID, text.Read, want[text.ID])
		}
	}
}

func TestMarkerLastWriteWins(t *testing.T) {
	store := newStore()
	store.SetMarker(general, message.Marker{From: "bob", MessageID: "s2", MarkerDate: 20, Type: message.MarkerDisplayed})
	if store.SetMarker(general, message.Marker{From: "bob", MessageID: "s1", MarkerDate: 10, Type: message.MarkerDisplayed}) {
		t.Error("older marker accepted")
	}
	store.SetMarker(general, message.Marker{From: "carol", MessageID: "s1", MarkerDate: 5, Type: message.MarkerReceived})

	markers := store.Markers(general)
	if len(markers) != 2 {
		t.Fatalf("markers = %+v", markers)
	}
	if markers["bob"].MessageID != "s2" {
		t.Errorf("bob's marker = %+v, want s2", markers["bob"])
	}
}

func TestOwnMarkerDoesNotMarkRead(t *testing.T) {
	store := newStore()
	store.AppendMessage(text("a", "sa", dayOne, "me", "one"))
	store.SetMarker(general, message.Marker{From: "me", MessageID: "sa", MarkerDate: 1, Type: message.MarkerDisplayed})
	if store.Messages(general)[0].(message.Text).Read != message.MarkerNone {
		t.Error("local user's own marker marked their message read")
	}
}
