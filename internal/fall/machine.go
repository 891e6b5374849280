// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fall detects falls from accelerometer samples.
package fall

import (
	"time"

	"github.com/relabs-tech/hazard_haptics/internal/hazard"
	"github.com/relabs-tech/hazard_haptics/internal/imu"
	"github.com/relabs-tech/hazard_haptics/internal/orientation"
)

// Phase is the state of the fall machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFreefall
	PhaseCooldown
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFreefall:
		return "freefall"
	case PhaseCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Thresholds parameterize the machine. Every comparison against them is
// strict.
type Thresholds struct {
	FreefallG     float64
	ImpactG       float64
	JerkGPerS     float64
	JerkBaselineG float64
	Window        time.Duration // freefall to impact
	Cooldown      time.Duration
	MinFreefall   time.Duration
	// SampleInterval is the nominal interval used for the jerk derivative.
	SampleInterval time.Duration
}

// Status is the phase at an instant. FreefallStart is set in PhaseFreefall,
// CooldownUntil in PhaseCooldown.
type Status struct {
	Phase         Phase
	FreefallStart time.Time
	CooldownUntil time.Time
}

// Step is what the machine observed for one sample.
type Step struct {
	MagnitudeG float64
	JerkGPerS  float64

	FreefallStarted   bool
	FreefallConfirmed bool // freefall has lasted MinFreefall, reported once
	WindowExpired     bool // freefall ended without impact

	Event *hazard.FallEvent
}

// Machine is the freefall, impact and jerk state machine. It is not safe
// for concurrent use.
type Machine struct {
	th Thresholds

	phase         Phase // idle or freefall; cooldown is derived from cooldownUntil
	freefallStart time.Time
	confirmed     bool
	cooldownUntil time.Time

	prev    imu.AccelSample
	hasPrev bool
}

// NewMachine returns a machine in PhaseIdle.
func NewMachine(th Thresholds) *Machine {
	return &Machine{th: th}
}

// Reset forgets the previous sample, so the next one yields zero jerk.
// Called after a bus error.
func (m *Machine) Reset() {
	m.hasPrev = false
}

// Status reports the phase as of now.
func (m *Machine) Status(now time.Time) Status {
	if now.Before(m.cooldownUntil) {
		return Status{Phase: PhaseCooldown, CooldownUntil: m.cooldownUntil}
	}
	if m.phase == PhaseFreefall {
		return Status{Phase: PhaseFreefall, FreefallStart: m.freefallStart}
	}

	return Status{Phase: PhaseIdle}
}

// Step feeds one sample. While cooling down the previous-sample tracking
// still advances but no transition is evaluated.
func (m *Machine) Step(s imu.AccelSample) Step {
	now := s.SampledAt
	r := Step{MagnitudeG: s.Magnitude()}

	if m.hasPrev {
		r.JerkGPerS = imu.Jerk(m.prev, s, m.th.SampleInterval)
	}
	m.prev, m.hasPrev = s, true

	if now.Before(m.cooldownUntil) {
		return r
	}

	switch m.phase {
	case PhaseIdle:
		if r.MagnitudeG < m.th.FreefallG {
			m.phase = PhaseFreefall
			m.freefallStart = now
			m.confirmed = false
			r.FreefallStarted = true

			return r
		}

		if r.JerkGPerS > m.th.JerkGPerS && r.MagnitudeG > m.th.JerkBaselineG {
			r.Event = m.fire(hazard.TriggerJerk, s, r, 0)
		}

	case PhaseFreefall:
		elapsed := now.Sub(m.freefallStart)

		// The expiring sample is not evaluated again from idle.
		if elapsed > m.th.Window {
			m.phase = PhaseIdle
			r.WindowExpired = true

			return r
		}

		if r.MagnitudeG > m.th.ImpactG {
			r.Event = m.fire(hazard.TriggerImpact, s, r, elapsed)

			return r
		}

		if !m.confirmed && elapsed >= m.th.MinFreefall && r.MagnitudeG < m.th.FreefallG {
			m.confirmed = true
			r.FreefallConfirmed = true
		}
	}

	return r
}

func (m *Machine) fire(trigger hazard.FallTrigger, s imu.AccelSample, r Step, freefall time.Duration) *hazard.FallEvent {
	m.phase = PhaseIdle
	m.cooldownUntil = s.SampledAt.Add(m.th.Cooldown)

	return &hazard.FallEvent{
		Trigger:    trigger,
		At:         s.SampledAt,
		MagnitudeG: r.MagnitudeG,
		JerkGPerS:  r.JerkGPerS,
		Freefall:   freefall,
		Pose:       orientation.ComputePoseFromAccel(s.Ax, s.Ay, s.Az),
	}
}
