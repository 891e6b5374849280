// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package notify delivers confirmed fall events to the alerting
// collaborator.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/relabs-tech/hazard_haptics/internal/hazard"
	"github.com/relabs-tech/hazard_haptics/internal/logger"
)

// Notifier receives each confirmed fall exactly once.
type Notifier interface {
	Notify(ctx context.Context, ev hazard.FallEvent) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, ev hazard.FallEvent) error

func (f Func) Notify(ctx context.Context, ev hazard.FallEvent) error {
	return f(ctx, ev)
}

// Log writes the event to the context logger.
var Log = Func(func(ctx context.Context, ev hazard.FallEvent) error {
	logger.InfoKV(ctx, "fall alert notified",
		"trigger", ev.Trigger,
		"at", ev.At,
		"magnitude_g", ev.MagnitudeG,
		"jerk_g_per_s", ev.JerkGPerS,
		"freefall", ev.Freefall,
		"roll", ev.Pose.Roll,
		"pitch", ev.Pose.Pitch,
	)

	return nil
})

// ErrClosed is returned by Async.Notify once Wait has been called.
var ErrClosed = errors.New("notifier closed")

type multi []Notifier

// Multi calls every notifier in order and combines their errors.
func Multi(ns ...Notifier) Notifier {
	return multi(ns)
}

func (m multi) Notify(ctx context.Context, ev hazard.FallEvent) error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.Notify(ctx, ev))
	}

	return err
}

// Async hands each event to a background goroutine so that delivery never
// stalls the caller. Each delivery is bounded by its timeout and is not
// cancelled with the caller's context.
type Async struct {
	next    Notifier
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsync wraps next.
func NewAsync(next Notifier, timeout time.Duration) *Async {
	return &Async{next: next, timeout: timeout}
}

// Notify starts delivery and returns nil immediately. After Wait has
// started it delivers nothing and returns ErrClosed.
func (a *Async) Notify(ctx context.Context, ev hazard.FallEvent) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		logger.WarnKV(ctx, "fall alert dropped, notifier closed", "trigger", ev.Trigger, "at", ev.At)

		return ErrClosed
	}
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()

		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if err := a.deliver(dctx, ev); err != nil {
			logger.WarnKV(ctx, "fall alert delivery failed", "trigger", ev.Trigger, "error", err)
		}
	}()

	return nil
}

func (a *Async) deliver(ctx context.Context, ev hazard.FallEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()

	return a.next.Notify(ctx, ev)
}

// Wait refuses further events and blocks until every started delivery has
// returned or ctx is done.
func (a *Async) Wait(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
