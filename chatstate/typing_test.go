// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatstate

import (
	"slices"
	"testing"
)

func TestTypingReducer(t *testing.T) {
	typing := Typing{Self: "me"}

	var writing []string
	writing = typing.Apply(writing, "alice", Composing)
	writing = typing.Apply(writing, "bob", Composing)
	writing = typing.Apply(writing, "alice", Composing)
	if !slices.Equal(writing, []string{"alice", "bob"}) {
		t.Fatalf("writing = %v, want [alice bob]", writing)
	}

	before := slices.Clone(writing)
	afterPause := typing.Apply(writing, "alice", Paused)
	if !slices.Equal(afterPause, []string{"bob"}) {
		t.Errorf("after pause = %v, want [bob]", afterPause)
	}
	if !slices.Equal(writing, before) {
		t.Errorf("Apply mutated its input: %v", writing)
	}

	if got := typing.Apply(afterPause, "bob", Spoke); len(got) != 0 {
		t.Errorf("after message = %v, want empty", got)
	}
	if got := typing.Apply(afterPause, "carol", Paused); !slices.Equal(got, afterPause) {
		t.Errorf("pause of non-typing user changed list: %v", got)
	}
}

func TestTypingExcludesSelf(t *testing.T) {
	typing := Typing{Self: "me"}
	var writing []string
	for range 3 {
		writing = typing.Apply(writing, "me", Composing)
	}
	writing = typing.Apply(writing, "", Composing)
	if len(writing) != 0 {
		t.Errorf("writing = %v, want empty", writing)
	}
}
