// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package arbiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/hazard_haptics/internal/hazard"
	"github.com/relabs-tech/hazard_haptics/internal/lines"
)

var (
	t0   = time.Unix(500, 0)
	opts = Options{Interval: time.Millisecond, AlertDuration: 3 * time.Second, RecoveryDuration: 15 * time.Second}
)

func TestDecidePriority(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		fields hazard.Fields
		want   hazard.ActuatorCommand
	}{
		"idle":     {hazard.Fields{}, hazard.Off},
		"obstacle": {hazard.Fields{ObstaclePresent: true}, hazard.ActuatorCommand{Motor: true}},
		"fall over obstacle": {
			hazard.Fields{ObstaclePresent: true, FallAlertActive: true, AlertRaisedAt: t0},
			hazard.ActuatorCommand{Buzzer: true},
		},
		"suppressed obstacle": {
			hazard.Fields{ObstaclePresent: true, MotorSuppressed: true, SuppressedUntil: t0.Add(time.Second)},
			hazard.Off,
		},
	} {
		f := tc.fields
		require.Equal(t, tc.want, Decide(&f, t0, opts), name)
	}
}

func TestDecideAlertThenRecovery(t *testing.T) {
	t.Parallel()

	f := hazard.Fields{ObstaclePresent: true, FallAlertActive: true, MotorSuppressed: true, AlertRaisedAt: t0}

	for _, d := range []time.Duration{0, time.Second, 3*time.Second - time.Nanosecond} {
		require.Equal(t, hazard.ActuatorCommand{Buzzer: true}, Decide(&f, t0.Add(d), opts), d)
		require.True(t, f.FallAlertActive)
	}

	// After the buzzer, the motor stays off for the recovery pause even with
	// an obstacle in front.
	require.Equal(t, hazard.Off, Decide(&f, t0.Add(3*time.Second), opts))
	require.False(t, f.FallAlertActive)
	require.True(t, f.MotorSuppressed)
	require.Equal(t, t0.Add(18*time.Second), f.SuppressedUntil)

	require.Equal(t, hazard.Off, Decide(&f, t0.Add(18*time.Second-time.Nanosecond), opts))
	require.Equal(t, hazard.ActuatorCommand{Motor: true}, Decide(&f, t0.Add(18*time.Second), opts))
	require.False(t, f.MotorSuppressed)
}

func TestDecideMotorNeverRunsDuringAlert(t *testing.T) {
	t.Parallel()

	for d := time.Duration(0); d < opts.AlertDuration+opts.RecoveryDuration; d += 100 * time.Millisecond {
		f := hazard.Fields{ObstaclePresent: true, FallAlertActive: true, AlertRaisedAt: t0}
		require.False(t, Decide(&f, t0.Add(d), opts).Motor, d)
	}
}

func newArbiter() (*Arbiter, *hazard.State, *lines.Mock, *lines.Mock) {
	state := hazard.NewState()
	motor := lines.NewMock("motor", lines.Output)
	buzzer := lines.NewMock("buzzer", lines.Output)

	return New(state, motor, buzzer, opts), state, motor, buzzer
}

func TestTickWritesOnlyOnChange(t *testing.T) {
	t.Parallel()

	a, state, motor, buzzer := newArbiter()
	ctx := context.Background()

	a.Tick(ctx, t0)
	a.Tick(ctx, t0.Add(time.Millisecond))
	require.Equal(t, []bool{false}, motor.Writes())

	state.ObserveRange(hazard.RangeSample{DistanceCM: 5, OK: true, MeasuredAt: t0}, 20, time.Second)
	require.Equal(t, hazard.ActuatorCommand{Motor: true}, a.Tick(ctx, t0.Add(2*time.Millisecond)))
	a.Tick(ctx, t0.Add(3*time.Millisecond))
	require.Equal(t, []bool{false, true}, motor.Writes())
	require.Equal(t, []bool{false, false}, buzzer.Writes())

	state.RaiseFallAlert(t0.Add(4 * time.Millisecond))
	require.Equal(t, hazard.ActuatorCommand{Buzzer: true}, a.Tick(ctx, t0.Add(5*time.Millisecond)))
	require.False(t, motor.Level())
	require.True(t, buzzer.Level())
	require.Equal(t, hazard.ActuatorCommand{Buzzer: true}, a.Command())
}

func TestForceOffIsFinal(t *testing.T) {
	t.Parallel()

	a, state, motor, buzzer := newArbiter()
	ctx := context.Background()

	state.RaiseFallAlert(t0)
	a.Tick(ctx, t0)
	require.True(t, buzzer.Level())

	require.NoError(t, a.ForceOff())
	require.False(t, buzzer.Level())
	require.False(t, motor.Level())

	writes := len(buzzer.Writes())
	require.Equal(t, hazard.Off, a.Tick(ctx, t0.Add(time.Millisecond)))
	require.Len(t, buzzer.Writes(), writes)

	require.NoError(t, a.ForceOff())
	require.Equal(t, hazard.Off, a.Command())
}

func TestRunFollowsStateChanges(t *testing.T) {
	t.Parallel()

	a, state, motor, _ := newArbiter()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	state.ObserveRange(hazard.RangeSample{DistanceCM: 5, OK: true, MeasuredAt: time.Now()}, 20, time.Minute)
	require.Eventually(t, motor.Level, time.Second, time.Millisecond)

	state.RaiseFallAlert(time.Now())
	require.Eventually(t, func() bool { return !motor.Level() && a.Command().Buzzer }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestNoopBuzzerStillDrivesMotor(t *testing.T) {
	t.Parallel()

	state := hazard.NewState()
	motor := lines.NewMock("motor", lines.Output)
	a := New(state, motor, lines.Noop("buzzer"), opts)

	state.ObserveRange(hazard.RangeSample{DistanceCM: 5, OK: true, MeasuredAt: t0}, 20, time.Second)
	a.Tick(context.Background(), t0)
	require.True(t, motor.Level())
}
