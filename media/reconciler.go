// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
)

// Controller starts and stops receiving individual streams.
type Controller interface {
	Subscribe(ctx context.Context, subscription Subscription) error
	Unsubscribe(ctx context.Context, subscription Subscription) error
}

// Reconciler tracks which streams are held and issues the minimal
// set of Controller calls to move to a new desired set. It is safe
// for concurrent use; the controller is called with the reconciler's
// lock held and must not call back into it.
type Reconciler struct {
	controller Controller
	logger     *slog.Logger

	mu      sync.Mutex
	current Map
}

// NewReconciler returns a Reconciler holding no streams.
func NewReconciler(controller Controller, logger *slog.Logger) (*Reconciler, error) {
	if controller == nil {
		return nil, fmt.Errorf("media: controller is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{
		controller: controller,
		logger:     logger,
		current:    make(Map),
	}, nil
}

// Update moves the held set toward desired. Every add and remove in
// the delta is attempted even when an earlier one fails; the failures
// are joined into the returned error.
func (r *Reconciler) Update(ctx context.Context, desired Map) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	add, remove := Diff(r.current, desired)
	var errs []error
	for _, subscription := range remove {
		errs = append(errs, r.unsubscribe(ctx, subscription))
	}
	for _, subscription := range add {
		errs = append(errs, r.subscribe(ctx, subscription))
	}
	r.logger.Debug("media subscriptions updated",
		"added", len(add),
		"removed", len(remove),
		"held", len(r.current),
	)
	return errors.Join(errs...)
}

// Add subscribes to one stream unless it is already held.
func (r *Reconciler) Add(ctx context.Context, userID string, streamType StreamType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	subscription := Subscription{UserID: userID, Type: streamType}
	if r.current.Has(subscription) {
		return nil
	}
	return r.subscribe(ctx, subscription)
}

// Remove unsubscribes from one stream if it is held.
func (r *Reconciler) Remove(ctx context.Context, userID string, streamType StreamType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	subscription := Subscription{UserID: userID, Type: streamType}
	if !r.current.Has(subscription) {
		return nil
	}
	return r.unsubscribe(ctx, subscription)
}

// Current returns a copy of the held set.
func (r *Reconciler) Current() Map {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.current)
}

// Reset forgets every held stream without calling the controller.
// Used when the media session itself is torn down.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = make(Map)
}

// subscribe records the stream as held only when the controller
// accepts it. Caller holds r.mu.
func (r *Reconciler) subscribe(ctx context.Context, subscription Subscription) error {
	if err := subscription.validate(); err != nil {
		return err
	}
	if err := r.controller.Subscribe(ctx, subscription); err != nil {
		r.logger.Warn("media subscribe failed", "subscription", subscription.Key(), "error", err)
		return fmt.Errorf("media: subscribing to %s: %w", subscription, err)
	}
	r.current.Put(subscription)
	return nil
}

// unsubscribe drops the stream from the held set only when the
// controller releases it. Caller holds r.mu.
func (r *Reconciler) unsubscribe(ctx context.Context, subscription Subscription) error {
	if err := r.controller.Unsubscribe(ctx, subscription); err != nil {
		r.logger.Warn("media unsubscribe failed", "subscription", subscription.Key(), "error", err)
		return fmt.Errorf("media: unsubscribing from %s: %w", subscription, err)
	}
	delete(r.current, subscription.Key())
	return nil
}
