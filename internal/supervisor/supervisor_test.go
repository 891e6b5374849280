// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/hazard_haptics/internal/config"
	"github.com/relabs-tech/hazard_haptics/internal/fall"
	"github.com/relabs-tech/hazard_haptics/internal/hardware"
	"github.com/relabs-tech/hazard_haptics/internal/hazard"
	"github.com/relabs-tech/hazard_haptics/internal/imu"
	"github.com/relabs-tech/hazard_haptics/internal/lines"
	"github.com/relabs-tech/hazard_haptics/internal/notify"
	"github.com/relabs-tech/hazard_haptics/internal/sensors"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		GPIO: config.GPIO{Backend: config.BackendMock},
		Rangefinder: config.Rangefinder{
			SampleInterval: 5 * time.Millisecond,
			Settle:         100 * time.Microsecond,
			EchoTimeout:    20 * time.Millisecond,
			GracePeriod:    50 * time.Millisecond,
		},
		Fall:       config.Fall{FreefallG: 0.3, ImpactG: 2.5, JerkGPerS: 30},
		Arbiter:    config.Arbiter{Interval: 5 * time.Millisecond, RecoveryDuration: time.Second},
		Supervisor: config.Supervisor{ShutdownGrace: 500 * time.Millisecond},
	}
	require.NoError(t, config.Validate(cfg))

	return cfg
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()

	s := New(nil, notify.Log, OptionsFromConfig(testConfig(t)))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	<-s.Done()

	require.ErrorIs(t, s.Start(context.Background()), ErrStopped)
	require.False(t, s.FallState().Enabled)
}

func TestStartTwice(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	s := New(hardware.Simulated(context.Background(), cfg, hardware.SimOptions{}), notify.Log, OptionsFromConfig(cfg))

	require.NoError(t, s.Start(context.Background()))
	require.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}

func TestEndToEndObstacleThenFall(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	var near atomic.Bool
	hw := hardware.Simulated(context.Background(), cfg, hardware.SimOptions{
		Distance: func() (float64, bool) {
			if near.Load() {
				return 10, true
			}

			return 80, true
		},
		Trace: sensors.FallTrace(300 * time.Millisecond),
	})
	motor := hw.Bank.Mock("motor", lines.Output)
	buzzer := hw.Bank.Mock("buzzer", lines.Output)

	var alerts atomic.Int32
	n := notify.Func(func(context.Context, hazard.FallEvent) error {
		alerts.Add(1)

		return nil
	})

	s := New(hw, n, OptionsFromConfig(cfg))
	require.NoError(t, s.Start(context.Background()))

	near.Store(true)
	require.Eventually(t, motor.Level, time.Second, time.Millisecond)
	require.True(t, s.ObstacleState().Present)
	require.InDelta(t, 10, s.ObstacleState().Last.DistanceCM, 5)

	require.Eventually(t, func() bool { return alerts.Load() == 1 }, 2*time.Second, time.Millisecond)
	require.Eventually(t, buzzer.Level, time.Second, time.Millisecond)
	require.False(t, motor.Level())

	fs := s.FallState()
	require.True(t, fs.Enabled)
	require.True(t, fs.AlertActive)
	require.True(t, fs.MotorSuppressed)
	require.Equal(t, 1, fs.Alerts)
	require.Equal(t, hazard.ActuatorCommand{Buzzer: true}, s.Command())

	require.NoError(t, s.Stop())
	require.False(t, motor.Level())
	require.False(t, buzzer.Level())
	require.True(t, motor.Closed())
	require.True(t, buzzer.Closed())
	require.Equal(t, int32(1), alerts.Load())

	require.NoError(t, s.Stop())
}

// stuckIMU blocks every read until release is closed.
type stuckIMU struct {
	release chan struct{}
	entered atomic.Bool
}

func (s *stuckIMU) ReadAccel() (imu.AccelSample, error) {
	s.entered.Store(true)
	<-s.release

	return imu.AccelSample{Az: 1, SampledAt: time.Now()}, nil
}

func TestStopTimesOutButStillReleases(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	reader := &stuckIMU{release: release}
	motor := lines.NewMock("motor", lines.Output)
	buzzer := lines.NewMock("buzzer", lines.Output)
	hw := &hardware.Hardware{
		Trigger: lines.Noop("trigger"),
		Echo:    lines.Noop("echo"),
		Motor:   motor,
		Buzzer:  buzzer,
		IMU:     reader,
	}

	opts := OptionsFromConfig(testConfig(t))
	opts.ShutdownGrace = 20 * time.Millisecond
	s := New(hw, notify.Log, opts)
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, reader.entered.Load, time.Second, time.Millisecond)

	require.ErrorIs(t, s.Stop(), ErrShutdownTimeout)
	require.False(t, motor.Level())
	require.False(t, buzzer.Level())
	require.NoError(t, s.Stop())
}

// panicky panics on its first read and then reports rest.
type panicky struct {
	reads atomic.Int32
}

func (p *panicky) ReadAccel() (imu.AccelSample, error) {
	if p.reads.Add(1) == 1 {
		panic("i2c driver bug")
	}

	return imu.AccelSample{Az: 1, SampledAt: time.Now()}, nil
}

func TestPanickedLoopRestarts(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	hw := hardware.Simulated(context.Background(), cfg, hardware.SimOptions{Distance: func() (float64, bool) { return 5, true }})
	reader := &panicky{}
	hw.IMU = reader

	s := New(hw, notify.Log, OptionsFromConfig(cfg))
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return reader.reads.Load() > 3 }, 2*time.Second, time.Millisecond)
	require.True(t, s.ObstacleState().Present)
	require.Equal(t, fall.PhaseIdle, s.FallState().Status.Phase)

	require.NoError(t, s.Stop())
}
