// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package obstacle

import "time"

const statsWindow = 10

// LoopStats keeps the periods between the last statsWindow iteration starts.
type LoopStats struct {
	periods [statsWindow]time.Duration
	n       int
	next    int
	last    time.Time
}

// Mark records the start of an iteration.
func (s *LoopStats) Mark(at time.Time) {
	if !s.last.IsZero() {
		s.periods[s.next] = at.Sub(s.last)
		s.next = (s.next + 1) % statsWindow
		if s.n < statsWindow {
			s.n++
		}
	}
	s.last = at
}

// Mean is the average period, zero before two marks.
func (s *LoopStats) Mean() time.Duration {
	if s.n == 0 {
		return 0
	}

	var sum time.Duration
	for _, p := range s.periods[:s.n] {
		sum += p
	}

	return sum / time.Duration(s.n)
}

// Jitter is the spread between the longest and shortest period.
func (s *LoopStats) Jitter() time.Duration {
	if s.n == 0 {
		return 0
	}

	lo, hi := s.periods[0], s.periods[0]
	for _, p := range s.periods[1:s.n] {
		lo = min(lo, p)
		hi = max(hi, p)
	}

	return hi - lo
}

// RateHz is the effective loop rate.
func (s *LoopStats) RateHz() float64 {
	mean := s.Mean()
	if mean <= 0 {
		return 0
	}

	return float64(time.Second) / float64(mean)
}
