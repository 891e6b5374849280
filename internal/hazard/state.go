// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hazard

import (
	"sync"
	"time"
)

// Fields is the record guarded by State.
type Fields struct {
	ObstaclePresent  bool
	LastObstacleSeen time.Time // zero until the first qualifying sample
	FallAlertActive  bool
	MotorSuppressed  bool

	// AlertRaisedAt is when the current fall alert was raised.
	AlertRaisedAt time.Time
	// SuppressedUntil ends the post-alert recovery pause.
	SuppressedUntil time.Time
}

// State is the mutex-protected hazard record. The zero value is not usable;
// call NewState.
type State struct {
	mu      sync.Mutex
	fields  Fields
	changed chan struct{}
}

// NewState returns a State with every flag false and no timestamps.
func NewState() *State {
	return &State{changed: make(chan struct{}, 1)}
}

// Snapshot returns a copy of the current fields.
func (s *State) Snapshot() Fields {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fields
}

// Changed delivers a signal after any update that modified the fields.
// Signals coalesce; a receiver must re-read the state.
func (s *State) Changed() <-chan struct{} {
	return s.changed
}

// Update runs fn on the fields as one critical section and returns the
// fields as left by fn. fn must not block.
func (s *State) Update(fn func(f *Fields)) Fields {
	s.mu.Lock()
	before := s.fields
	fn(&s.fields)
	after := s.fields
	s.mu.Unlock()

	if before != after {
		select {
		case s.changed <- struct{}{}:
		default:
		}
	}

	return after
}

// ObserveRange applies the obstacle debounce for one sample. A qualifying
// sample sets the obstacle flag and refreshes the timestamp together; any
// other sample clears the flag once more than grace has passed since the
// last qualifying one. It reports the resulting flag and whether it changed.
func (s *State) ObserveRange(sample RangeSample, thresholdCM float64, grace time.Duration) (present, changed bool) {
	var was bool

	f := s.Update(func(f *Fields) {
		was = f.ObstaclePresent

		if sample.Qualifies(thresholdCM) {
			f.ObstaclePresent = true
			f.LastObstacleSeen = sample.MeasuredAt

			return
		}

		if f.ObstaclePresent && sample.MeasuredAt.Sub(f.LastObstacleSeen) > grace {
			f.ObstaclePresent = false
		}
	})

	return f.ObstaclePresent, f.ObstaclePresent != was
}

// RaiseFallAlert marks a confirmed fall. Obstacle haptics are suppressed
// from this point until the arbiter ends the recovery pause. Raising again
// while active restarts the alert window.
func (s *State) RaiseFallAlert(at time.Time) {
	s.Update(func(f *Fields) {
		f.FallAlertActive = true
		f.AlertRaisedAt = at
		f.MotorSuppressed = true
		f.SuppressedUntil = time.Time{}
	})
}
