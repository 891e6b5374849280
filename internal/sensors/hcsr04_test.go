// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/hazard_haptics/internal/lines"
)

func testOpts() HCSR04Opts {
	return HCSR04Opts{
		Settle:           time.Millisecond,
		PulseWidth:       10 * time.Microsecond,
		EchoTimeout:      50 * time.Millisecond,
		SpeedOfSoundCMPS: 34300,
	}
}

func TestDistanceCM(t *testing.T) {
	t.Parallel()

	// 1ms round trip is 17.15cm one way.
	require.InDelta(t, 17.15, DistanceCM(time.Millisecond, 34300), 1e-9)
	require.Zero(t, DistanceCM(0, 34300))
	require.Zero(t, DistanceCM(-time.Millisecond, 34300))
}

func TestMeasureSimulatedEcho(t *testing.T) {
	t.Parallel()

	trig := lines.NewMock("trig", lines.Output)
	echo := lines.NewMock("echo", lines.Input)
	SimulateHCSR04(trig, echo, 34300, func() (float64, bool) { return 50, true })

	d, err := NewHCSR04(trig, echo, testOpts()).Measure()
	require.NoError(t, err)
	// Busy polling adds a little slack on both edges.
	require.InDelta(t, 50, d, 5)

	// Trigger held low, then one pulse.
	require.Equal(t, []bool{false, true, false}, trig.Writes())
}

func TestMeasureRiseTimeout(t *testing.T) {
	t.Parallel()

	trig := lines.NewMock("trig", lines.Output)
	echo := lines.NewMock("echo", lines.Input)
	SimulateHCSR04(trig, echo, 34300, func() (float64, bool) { return 0, false })

	_, err := NewHCSR04(trig, echo, testOpts()).Measure()
	require.ErrorIs(t, err, ErrEchoRiseTimeout)
	require.ErrorIs(t, err, ErrNoEcho)
}

func TestMeasureFallTimeout(t *testing.T) {
	t.Parallel()

	echo := lines.NewMock("echo", lines.Input)
	echo.Set(true)

	_, err := NewHCSR04(lines.NewMock("trig", lines.Output), echo, testOpts()).Measure()
	require.ErrorIs(t, err, ErrEchoFallTimeout)
	require.ErrorIs(t, err, ErrNoEcho)
	require.NotErrorIs(t, err, ErrEchoRiseTimeout)
}

func TestMeasureLineErrorIsNotNoEcho(t *testing.T) {
	t.Parallel()

	trig := lines.NewMock("trig", lines.Output)
	require.NoError(t, trig.Close())

	_, err := NewHCSR04(trig, lines.NewMock("echo", lines.Input), testOpts()).Measure()
	require.ErrorIs(t, err, lines.ErrClosed)
	require.False(t, errors.Is(err, ErrNoEcho))
}
