// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package arbiter decides what the motor and buzzer do. It is the only
// writer of either line.
package arbiter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/relabs-tech/hazard_haptics/internal/hazard"
	"github.com/relabs-tech/hazard_haptics/internal/lines"
	"github.com/relabs-tech/hazard_haptics/internal/logger"
)

// Options configures an Arbiter.
type Options struct {
	Interval         time.Duration
	AlertDuration    time.Duration
	RecoveryDuration time.Duration
}

// Decide applies the priority policy to f at now and returns the command.
// It also ends the alert and the recovery pause when their time is up.
//
//  1. an active fall alert sounds the buzzer, motor off, for AlertDuration;
//     obstacle haptics stay suppressed for RecoveryDuration after that
//  2. an obstacle not suppressed runs the motor
//  3. otherwise everything is off
func Decide(f *hazard.Fields, now time.Time, opts Options) hazard.ActuatorCommand {
	if f.FallAlertActive {
		if now.Sub(f.AlertRaisedAt) < opts.AlertDuration {
			f.MotorSuppressed = true

			return hazard.ActuatorCommand{Buzzer: true}
		}

		f.FallAlertActive = false
		f.MotorSuppressed = true
		f.SuppressedUntil = f.AlertRaisedAt.Add(opts.AlertDuration + opts.RecoveryDuration)
	}

	if f.MotorSuppressed && !now.Before(f.SuppressedUntil) {
		f.MotorSuppressed = false
	}

	if f.ObstaclePresent && !f.MotorSuppressed {
		return hazard.ActuatorCommand{Motor: true}
	}

	return hazard.Off
}

// Arbiter drives the motor and buzzer lines from the shared state.
type Arbiter struct {
	state  *hazard.State
	motor  lines.Line
	buzzer lines.Line
	opts   Options

	// mu serializes every actuator write.
	mu      sync.Mutex
	current hazard.ActuatorCommand
	written bool
	closed  bool
}

// New returns an arbiter owning motor and buzzer.
func New(state *hazard.State, motor, buzzer lines.Line, opts Options) *Arbiter {
	return &Arbiter{state: state, motor: motor, buzzer: buzzer, opts: opts}
}

// Tick evaluates the policy once and writes the lines if the command
// changed. It returns the command in effect.
func (a *Arbiter) Tick(ctx context.Context, now time.Time) hazard.ActuatorCommand {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return hazard.Off
	}

	var cmd hazard.ActuatorCommand
	a.state.Update(func(f *hazard.Fields) {
		cmd = Decide(f, now, a.opts)
	})

	if a.written && cmd == a.current {
		return cmd
	}

	if err := a.write(cmd); err != nil {
		logger.WarnKV(ctx, "actuator write failed", "command", cmd.String(), "error", err)

		// Retry on the next tick.
		a.written = false

		return cmd
	}

	logger.InfoKV(ctx, "actuators", "command", cmd.String())
	a.current, a.written = cmd, true

	return cmd
}

// Run ticks on the interval and on every state change until ctx is done.
func (a *Arbiter) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "arbiter")

	ticker := time.NewTicker(a.opts.Interval)
	defer ticker.Stop()

	a.Tick(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-a.state.Changed():
		}

		a.Tick(ctx, time.Now())
	}
}

// Command returns the last command written.
func (a *Arbiter) Command() hazard.ActuatorCommand {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.current
}

// ForceOff drives both lines low. No write follows it; later ticks are
// ignored. It is safe to call more than once.
func (a *Arbiter) ForceOff() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	a.current = hazard.Off

	return a.write(hazard.Off)
}

func (a *Arbiter) write(cmd hazard.ActuatorCommand) error {
	return multierr.Combine(a.motor.Write(cmd.Motor), a.buzzer.Write(cmd.Buzzer))
}
