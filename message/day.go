// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"time"

	"github.com/bureau-foundation/chatsync/lib/ref"
)

// SameDay reports whether two epoch-millisecond timestamps fall on the
// same calendar day in loc.
func SameDay(a, b int64, loc *time.Location) bool {
	ay, am, ad := time.UnixMilli(a).In(loc).Date()
	by, bm, bd := time.UnixMilli(b).In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// DaySeparator returns the Date entry for the day containing date. The
// separator's ID is derived from the day, so a timeline holds at most
// one separator per day.
func DaySeparator(roomID ref.RoomID, date int64, loc *time.Location) Date {
	instant := time.UnixMilli(date).In(loc)
	year, month, day := instant.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, loc)
	return Date{Header: Header{
		ID:     "date-" + start.Format("2006-01-02"),
		RoomID: roomID,
		Date:   start.UnixMilli(),
	}}
}
