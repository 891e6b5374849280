// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package obstacle runs the rangefinder loop and debounces obstacle
// presence into the shared hazard state.
package obstacle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/relabs-tech/hazard_haptics/internal/hazard"
	"github.com/relabs-tech/hazard_haptics/internal/logger"
	"github.com/relabs-tech/hazard_haptics/internal/sensors"
)

// Ranger measures a distance in centimeters. Any error yields an absent
// sample.
type Ranger interface {
	Measure() (float64, error)
}

// Options configures a Watcher.
type Options struct {
	ThresholdCM    float64
	GracePeriod    time.Duration
	SampleInterval time.Duration
	StatusInterval time.Duration
}

// Watcher samples a Ranger at a fixed cadence. It owns the ranger's lines.
type Watcher struct {
	ranger Ranger
	state  *hazard.State
	opts   Options

	mu    sync.Mutex
	last  hazard.RangeSample
	stats LoopStats
}

// NewWatcher returns a watcher feeding state.
func NewWatcher(ranger Ranger, state *hazard.State, opts Options) *Watcher {
	return &Watcher{ranger: ranger, state: state, opts: opts}
}

// Run samples until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "rangefinder")

	ticker := time.NewTicker(w.opts.SampleInterval)
	defer ticker.Stop()

	nextStatus := time.Now().Add(w.opts.StatusInterval)

	logger.Infof(ctx, "sampling every %s, obstacle below %.0fcm, grace %s",
		w.opts.SampleInterval, w.opts.ThresholdCM, w.opts.GracePeriod)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		start := time.Now()
		w.mu.Lock()
		w.stats.Mark(start)
		w.mu.Unlock()

		w.sampleOnce(ctx)

		if now := time.Now(); !now.Before(nextStatus) {
			w.logStatus(ctx)
			nextStatus = now.Add(w.opts.StatusInterval)
		}
	}
}

func (w *Watcher) sampleOnce(ctx context.Context) hazard.RangeSample {
	cm, err := w.ranger.Measure()
	sample := hazard.RangeSample{DistanceCM: cm, OK: err == nil, MeasuredAt: time.Now()}

	switch {
	case err == nil:
	case errors.Is(err, sensors.ErrEchoRiseTimeout):
		logger.Debugf(ctx, "echo rise timeout")
	case errors.Is(err, sensors.ErrEchoFallTimeout):
		logger.Debugf(ctx, "echo fall timeout")
	default:
		logger.WarnKV(ctx, "rangefinder read failed", "error", err)
	}

	if !sample.OK {
		sample.DistanceCM = 0
	}

	w.mu.Lock()
	w.last = sample
	w.mu.Unlock()

	present, changed := w.state.ObserveRange(sample, w.opts.ThresholdCM, w.opts.GracePeriod)
	if changed {
		if present {
			logger.InfoKV(ctx, "obstacle detected", "distance", sample.String())
		} else {
			logger.InfoKV(ctx, "obstacle cleared", "grace", w.opts.GracePeriod)
		}
	}

	return sample
}

func (w *Watcher) logStatus(ctx context.Context) {
	w.mu.Lock()
	last := w.last
	mean, jitter, rate := w.stats.Mean(), w.stats.Jitter(), w.stats.RateHz()
	w.mu.Unlock()

	logger.DebugKV(ctx, "rangefinder status",
		"last", last.String(),
		"obstacle", w.state.Snapshot().ObstaclePresent,
		"period", mean,
		"jitter", jitter,
		"rate_hz", rate,
	)
}

// Last returns the most recent sample.
func (w *Watcher) Last() hazard.RangeSample {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.last
}
