// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/hazard_haptics/internal/config"
	"github.com/relabs-tech/hazard_haptics/internal/hardware"
	"github.com/relabs-tech/hazard_haptics/internal/hazard"
	"github.com/relabs-tech/hazard_haptics/internal/notify"
	"github.com/relabs-tech/hazard_haptics/internal/sensors"
	"github.com/relabs-tech/hazard_haptics/internal/supervisor"
)

// SimulateOptions controls the simulate command.
type SimulateOptions struct {
	// ConfigPath is optional; the example configuration is used without it.
	// The GPIO backend is always replaced by simulated hardware.
	ConfigPath string
	Duration   time.Duration
	// ObstacleAt is when an object appears 12cm in front of the wearer.
	ObstacleAt time.Duration
	// FallAt is when the wearer falls. After the fall nothing echoes.
	FallAt      time.Duration
	StatusEvery time.Duration
	LogLevel    string
	Out         io.Writer
}

// SimulateResult summarizes a simulation.
type SimulateResult struct {
	Alerts       int
	ObstacleSeen bool
	Final        hazard.ActuatorCommand
}

const (
	farCM  = 120.0
	nearCM = 12.0
)

// Simulate runs the full loop against simulated hardware and prints a
// status line every StatusEvery.
func Simulate(ctx context.Context, opts *SimulateOptions) (SimulateResult, error) {
	if opts.StatusEvery <= 0 {
		return SimulateResult{}, fmt.Errorf("status interval must be positive, got %s", opts.StatusEvery)
	}

	cfg := config.Example()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return SimulateResult{}, fmt.Errorf("load settings: %w", err)
		}
		cfg = loaded
	}
	cfg.GPIO.Backend = config.BackendMock

	if err := configureLogging(cfg.LogLevel, opts.LogLevel); err != nil {
		return SimulateResult{}, err
	}

	start := time.Now()
	distance := func() (float64, bool) {
		switch elapsed := time.Since(start); {
		case elapsed >= opts.FallAt:
			return 0, false
		case elapsed >= opts.ObstacleAt:
			return nearCM, true
		default:
			return farCM, true
		}
	}

	hw := hardware.Simulated(ctx, cfg, hardware.SimOptions{
		Distance: distance,
		Trace:    sensors.FallTrace(opts.FallAt),
	})

	var alerts atomic.Int32
	counter := notify.Func(func(context.Context, hazard.FallEvent) error {
		alerts.Add(1)

		return nil
	})

	sup := supervisor.New(hw, notify.Multi(notify.Log, counter), supervisor.OptionsFromConfig(cfg))
	if err := sup.Start(ctx); err != nil {
		return SimulateResult{}, fmt.Errorf("start supervisor: %w", err)
	}

	var res SimulateResult

	ticker := time.NewTicker(opts.StatusEvery)
	defer ticker.Stop()

	deadline := time.NewTimer(opts.Duration)
	defer deadline.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline.C:
			break loop
		case <-ticker.C:
			obs, fs, cmd := sup.ObstacleState(), sup.FallState(), sup.Command()
			res.ObstacleSeen = res.ObstacleSeen || obs.Present

			fmt.Fprintf(opts.Out, "t=%5.2fs  range=%-7s obstacle=%-5v phase=%-9s alert=%-5v %s\n",
				time.Since(start).Seconds(), obs.Last.String(), obs.Present, fs.Status.Phase, fs.AlertActive, cmd)
		}
	}

	res.ObstacleSeen = res.ObstacleSeen || sup.ObstacleState().Present
	res.Final = sup.Command()
	err := stop(ctx, sup)
	res.Alerts = int(alerts.Load())

	return res, err
}
