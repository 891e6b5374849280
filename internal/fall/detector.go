// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fall

import (
	"context"
	"sync"
	"time"

	"github.com/relabs-tech/hazard_haptics/internal/hazard"
	"github.com/relabs-tech/hazard_haptics/internal/imu"
	"github.com/relabs-tech/hazard_haptics/internal/logger"
	"github.com/relabs-tech/hazard_haptics/internal/notify"
)

// Options configures a Detector.
type Options struct {
	Thresholds
	BusBackoff     time.Duration
	StatusInterval time.Duration
}

// Detector samples the accelerometer at a fixed rate, runs the machine and
// raises fall alerts. It owns the accelerometer.
type Detector struct {
	reader   imu.AccelReader
	state    *hazard.State
	notifier notify.Notifier
	opts     Options

	mu      sync.Mutex
	machine *Machine
	last    Step
	alerts  int
}

// NewDetector returns a detector feeding state.
func NewDetector(reader imu.AccelReader, state *hazard.State, notifier notify.Notifier, opts Options) *Detector {
	return &Detector{
		reader:   reader,
		state:    state,
		notifier: notifier,
		opts:     opts,
		machine:  NewMachine(opts.Thresholds),
	}
}

// Run samples until ctx is done. Bus errors are logged and retried after
// BusBackoff; they never end the loop.
func (d *Detector) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "fall-detector")

	ticker := time.NewTicker(d.opts.SampleInterval)
	defer ticker.Stop()

	backoff := time.NewTimer(0)
	<-backoff.C

	nextStatus := time.Now().Add(d.opts.StatusInterval)

	logger.Infof(ctx, "sampling at %s, freefall<%.2fg impact>%.2fg within %s, jerk>%.1fg/s",
		d.opts.SampleInterval, d.opts.FreefallG, d.opts.ImpactG, d.opts.Window, d.opts.JerkGPerS)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := d.sampleOnce(ctx); err != nil {
			logger.WarnKV(ctx, "accelerometer read failed", "error", err, "backoff", d.opts.BusBackoff)

			backoff.Reset(d.opts.BusBackoff)
			select {
			case <-ctx.Done():
				backoff.Stop()

				return nil
			case <-backoff.C:
			}

			continue
		}

		if now := time.Now(); !now.Before(nextStatus) {
			d.logStatus(ctx, now)
			nextStatus = now.Add(d.opts.StatusInterval)
		}
	}
}

func (d *Detector) sampleOnce(ctx context.Context) error {
	s, err := d.reader.ReadAccel()
	if err != nil {
		d.mu.Lock()
		d.machine.Reset()
		d.mu.Unlock()

		return err
	}

	d.mu.Lock()
	step := d.machine.Step(s)
	d.last = step
	if step.Event != nil {
		d.alerts++
	}
	d.mu.Unlock()

	switch {
	case step.FreefallStarted:
		logger.DebugKV(ctx, "freefall suspected", "magnitude_g", step.MagnitudeG)
	case step.FreefallConfirmed:
		logger.InfoKV(ctx, "freefall confirmed", "magnitude_g", step.MagnitudeG, "min_freefall", d.opts.MinFreefall)
	case step.WindowExpired:
		logger.DebugKV(ctx, "freefall ended without impact", "window", d.opts.Window)
	}

	if step.Event != nil {
		d.alert(ctx, *step.Event)
	}

	return nil
}

func (d *Detector) alert(ctx context.Context, ev hazard.FallEvent) {
	logger.ErrorKV(ctx, "fall detected",
		"trigger", ev.Trigger,
		"magnitude_g", ev.MagnitudeG,
		"jerk_g_per_s", ev.JerkGPerS,
		"freefall", ev.Freefall,
	)

	d.state.RaiseFallAlert(ev.At)

	if err := d.notifier.Notify(ctx, ev); err != nil {
		logger.WarnKV(ctx, "alert notifier failed", "error", err)
	}
}

func (d *Detector) logStatus(ctx context.Context, now time.Time) {
	d.mu.Lock()
	st := d.machine.Status(now)
	last := d.last
	d.mu.Unlock()

	mode := "OK"
	if st.Phase == PhaseCooldown {
		mode = "COOLDOWN"
	}

	logger.Debugf(ctx, "%s |a|=%.2fg jerk=%.1fg/s phase=%s", mode, last.MagnitudeG, last.JerkGPerS, st.Phase)
}

// Status reports the current phase.
func (d *Detector) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.machine.Status(time.Now())
}

// Alerts returns how many falls have been confirmed.
func (d *Detector) Alerts() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.alerts
}
