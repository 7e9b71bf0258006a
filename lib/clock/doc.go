// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the parts of the
// engine that stamp or schedule: presence last-activity timestamps and
// the sender-side typing notifier.
//
// Production code holds a Clock field set to Real(). Tests use Fake(),
// which stands still until Advance is called and fires AfterFunc
// callbacks synchronously in deadline order:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	notifier := chatstate.NewNotifier(sender, c, ...)
//	notifier.Keystroke(ctx, room)
//	c.Advance(3500 * time.Millisecond) // paused fires here
package clock
