// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package supervisor composes the rangefinder, the fall detector and the
// arbiter, and owns their lifecycle and the hardware they run on.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/hazard_haptics/internal/arbiter"
	"github.com/relabs-tech/hazard_haptics/internal/config"
	"github.com/relabs-tech/hazard_haptics/internal/fall"
	"github.com/relabs-tech/hazard_haptics/internal/hardware"
	"github.com/relabs-tech/hazard_haptics/internal/hazard"
	"github.com/relabs-tech/hazard_haptics/internal/logger"
	"github.com/relabs-tech/hazard_haptics/internal/notify"
	"github.com/relabs-tech/hazard_haptics/internal/obstacle"
	"github.com/relabs-tech/hazard_haptics/internal/sensors"
)

var (
	// ErrShutdownTimeout is returned by Stop when a loop outlived the grace
	// period. Actuators were still forced off and handles released.
	ErrShutdownTimeout = errors.New("loops did not stop within the shutdown grace period")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("supervisor already started")
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("supervisor stopped")
)

// restartDelay is how long a panicked loop waits before running again.
const restartDelay = 100 * time.Millisecond

// Options configures every component.
type Options struct {
	Rangefinder   sensors.HCSR04Opts
	Obstacle      obstacle.Options
	Fall          fall.Options
	Arbiter       arbiter.Options
	ShutdownGrace time.Duration
	AlertTimeout  time.Duration
}

// OptionsFromConfig maps a validated configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	r, f := cfg.Rangefinder, cfg.Fall

	return Options{
		Rangefinder: sensors.HCSR04Opts{
			Settle:           r.Settle,
			PulseWidth:       r.PulseWidth,
			EchoTimeout:      r.EchoTimeout,
			SpeedOfSoundCMPS: r.SpeedOfSoundCMPS,
		},
		Obstacle: obstacle.Options{
			ThresholdCM:    r.ThresholdCM,
			GracePeriod:    r.GracePeriod,
			SampleInterval: r.SampleInterval,
			StatusInterval: r.StatusInterval,
		},
		Fall: fall.Options{
			Thresholds: fall.Thresholds{
				FreefallG:      f.FreefallG,
				ImpactG:        f.ImpactG,
				JerkGPerS:      f.JerkGPerS,
				JerkBaselineG:  f.JerkBaselineG,
				Window:         f.Window,
				Cooldown:       f.Cooldown,
				MinFreefall:    f.MinFreefall,
				SampleInterval: f.SampleInterval,
			},
			BusBackoff:     f.BusBackoff,
			StatusInterval: f.StatusInterval,
		},
		Arbiter: arbiter.Options{
			Interval:         cfg.Arbiter.Interval,
			AlertDuration:    cfg.Arbiter.AlertDuration,
			RecoveryDuration: cfg.Arbiter.RecoveryDuration,
		},
		ShutdownGrace: cfg.Supervisor.ShutdownGrace,
		AlertTimeout:  cfg.Notify.AsyncTimeout,
	}
}

// ObstacleState is the rangefinder side of the control surface.
type ObstacleState struct {
	Present  bool
	LastSeen time.Time
	Last     hazard.RangeSample
}

// FallState is the fall detector side of the control surface.
type FallState struct {
	Status          fall.Status
	AlertActive     bool
	MotorSuppressed bool
	Alerts          int
	// Enabled is false when no accelerometer was acquired.
	Enabled bool
}

// Supervisor runs the loops. Every method is safe for concurrent use.
type Supervisor struct {
	hw       *hardware.Hardware
	state    *hazard.State
	watcher  *obstacle.Watcher
	detector *fall.Detector
	arbiter  *arbiter.Arbiter
	alerts   *notify.Async
	grace    time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds every component on hw. A nil hw is treated as hardware with
// every handle missing. The notifier is called asynchronously.
func New(hw *hardware.Hardware, notifier notify.Notifier, opts Options) *Supervisor {
	if hw == nil {
		hw = hardware.None()
	}

	state := hazard.NewState()
	alerts := notify.NewAsync(notifier, opts.AlertTimeout)

	s := &Supervisor{
		hw:      hw,
		state:   state,
		watcher: obstacle.NewWatcher(sensors.NewHCSR04(hw.Trigger, hw.Echo, opts.Rangefinder), state, opts.Obstacle),
		arbiter: arbiter.New(state, hw.Motor, hw.Buzzer, opts.Arbiter),
		alerts:  alerts,
		grace:   opts.ShutdownGrace,
		done:    make(chan struct{}),
	}

	if hw.IMU != nil {
		s.detector = fall.NewDetector(hw.IMU, state, alerts, opts.Fall)
	}

	return s
}

// Start runs the loops in the background until Stop.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.stopped:
		return ErrStopped
	case s.started:
		return ErrAlreadyStarted
	}
	s.started = true

	ctx = logger.WithName(ctx, "supervisor")
	ctx, s.cancel = context.WithCancel(ctx)

	var g errgroup.Group
	s.goLoop(ctx, &g, "rangefinder", s.watcher.Run)
	s.goLoop(ctx, &g, "arbiter", s.arbiter.Run)
	if s.detector != nil {
		s.goLoop(ctx, &g, "fall-detector", s.detector.Run)
	} else {
		logger.Warnf(ctx, "fall detection disabled: no accelerometer")
	}

	go func() {
		if err := g.Wait(); err != nil {
			logger.ErrorKV(ctx, "loop failed", "error", err)
		}
		close(s.done)
	}()

	logger.Infof(ctx, "started, missing hardware: %v", s.hw.Missing())

	return nil
}

// goLoop runs fn until ctx is done. A panic is logged and the loop is
// restarted after restartDelay, so one loop never takes down another.
func (s *Supervisor) goLoop(ctx context.Context, g *errgroup.Group, name string, fn func(context.Context) error) {
	g.Go(func() error {
		for {
			err := runRecovered(ctx, fn)
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				logger.ErrorKV(ctx, "loop failed, restarting", "loop", name, "error", err, "delay", restartDelay)
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(restartDelay):
			}
		}
	})
}

func runRecovered(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return fn(ctx)
}

// Stop cancels the loops, waits up to the shutdown grace period, then
// forces both actuators off and releases the hardware whether or not the
// loops exited. It returns ErrShutdownTimeout if they did not; any later
// call returns nil.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()

		return nil
	}
	s.stopped = true
	started, cancel := s.started, s.cancel
	s.mu.Unlock()

	ctx := logger.WithName(context.Background(), "supervisor")

	var err error
	if started {
		cancel()

		select {
		case <-s.done:
		case <-time.After(s.grace):
			logger.Warnf(ctx, "loops still running after %s, forcing shutdown", s.grace)
			err = ErrShutdownTimeout
		}
	} else {
		close(s.done)
	}

	if offErr := s.arbiter.ForceOff(); offErr != nil {
		err = multierr.Append(err, fmt.Errorf("force actuators off: %w", offErr))
	}
	if closeErr := s.hw.Close(); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("release hardware: %w", closeErr))
	}

	wctx, wcancel := context.WithTimeout(ctx, s.grace)
	defer wcancel()
	if werr := s.alerts.Wait(wctx); werr != nil {
		logger.Warnf(ctx, "alert delivery still pending at shutdown: %v", werr)
	}

	logger.Infof(ctx, "stopped")

	return err
}

// Done is closed once every loop has exited, or by Stop if the loops were
// never started.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// ObstacleState reports obstacle presence.
func (s *Supervisor) ObstacleState() ObstacleState {
	f := s.state.Snapshot()

	return ObstacleState{Present: f.ObstaclePresent, LastSeen: f.LastObstacleSeen, Last: s.watcher.Last()}
}

// FallState reports the fall detector phase and alert flags.
func (s *Supervisor) FallState() FallState {
	f := s.state.Snapshot()
	st := FallState{AlertActive: f.FallAlertActive, MotorSuppressed: f.MotorSuppressed}

	if s.detector != nil {
		st.Enabled = true
		st.Status = s.detector.Status()
		st.Alerts = s.detector.Alerts()
	}

	return st
}

// Command returns the actuator command currently written.
func (s *Supervisor) Command() hazard.ActuatorCommand {
	return s.arbiter.Command()
}
