// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"time"

	"github.com/relabs-tech/hazard_haptics/internal/lines"
)

var (
	// ErrNoEcho means no object in range or no echo returned. It is not a
	// failure of the sensor.
	ErrNoEcho = errors.New("no echo")
	// ErrEchoRiseTimeout is ErrNoEcho for a pulse that never started.
	ErrEchoRiseTimeout = fmt.Errorf("%w: echo did not go high", ErrNoEcho)
	// ErrEchoFallTimeout is ErrNoEcho for a pulse that never ended.
	ErrEchoFallTimeout = fmt.Errorf("%w: echo did not go low", ErrNoEcho)
)

// HCSR04Opts configures the pulse timing.
type HCSR04Opts struct {
	Settle      time.Duration // trigger held low before the pulse
	PulseWidth  time.Duration // at least 10µs
	EchoTimeout time.Duration // bound for each edge
	// SpeedOfSoundCMPS is the unhalved speed of sound; the echo covers the
	// distance twice.
	SpeedOfSoundCMPS float64
}

// HCSR04 drives an ultrasonic trigger/echo pair. It owns both lines.
type HCSR04 struct {
	trig lines.Line
	echo lines.Line
	opts HCSR04Opts
}

// NewHCSR04 returns a rangefinder on the given lines.
func NewHCSR04(trig, echo lines.Line, opts HCSR04Opts) *HCSR04 {
	return &HCSR04{trig: trig, echo: echo, opts: opts}
}

// Measure fires one pulse and returns the distance in centimeters. A
// missing edge returns ErrEchoRiseTimeout or ErrEchoFallTimeout, both of
// which match ErrNoEcho.
func (s *HCSR04) Measure() (float64, error) {
	if err := s.trig.Write(false); err != nil {
		return 0, fmt.Errorf("trigger low: %w", err)
	}
	time.Sleep(s.opts.Settle)

	if err := s.trig.Pulse(s.opts.PulseWidth); err != nil {
		return 0, fmt.Errorf("trigger pulse: %w", err)
	}

	start, err := s.echo.WaitFor(true, s.opts.EchoTimeout)
	if err != nil {
		return 0, edgeError(err, ErrEchoRiseTimeout)
	}

	end, err := s.echo.WaitFor(false, s.opts.EchoTimeout)
	if err != nil {
		return 0, edgeError(err, ErrEchoFallTimeout)
	}

	return DistanceCM(end.Sub(start), s.opts.SpeedOfSoundCMPS), nil
}

func edgeError(err, timeout error) error {
	if errors.Is(err, lines.ErrTimeout) {
		return timeout
	}

	return fmt.Errorf("echo read: %w", err)
}

// DistanceCM converts an echo pulse width into a one-way distance. It never
// returns a negative value.
func DistanceCM(pulse time.Duration, speedCMPS float64) float64 {
	if pulse <= 0 {
		return 0
	}

	return pulse.Seconds() * speedCMPS / 2
}
