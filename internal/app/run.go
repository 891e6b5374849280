// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package app holds the entry points behind the hazardd subcommands.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/relabs-tech/hazard_haptics/internal/config"
	"github.com/relabs-tech/hazard_haptics/internal/hardware"
	"github.com/relabs-tech/hazard_haptics/internal/logger"
	"github.com/relabs-tech/hazard_haptics/internal/notify"
	"github.com/relabs-tech/hazard_haptics/internal/supervisor"
)

// Options controls the run command.
type Options struct {
	// ConfigPath is the YAML configuration file.
	ConfigPath string
	// LogLevel overrides the configured level when set.
	LogLevel string
}

// Run acquires the hardware, runs the hazard loops until ctx is done and
// then shuts down.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "hazardd")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err := configureLogging(cfg.LogLevel, opts.LogLevel); err != nil {
		return err
	}

	hw, err := hardware.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open hardware: %w", err)
	}

	notifier, closeNotifier := buildNotifier(ctx, cfg.Notify)
	defer closeNotifier()

	sup := supervisor.New(hw, notifier, supervisor.OptionsFromConfig(cfg))
	if err := sup.Start(ctx); err != nil {
		return multierr.Append(fmt.Errorf("start supervisor: %w", err), sup.Stop())
	}

	<-ctx.Done()
	logger.Info(ctx, "Shutting down")

	return stop(ctx, sup)
}

// stop reports a shutdown timeout without failing the process.
func stop(ctx context.Context, sup *supervisor.Supervisor) error {
	var rest error

	for _, err := range multierr.Errors(sup.Stop()) {
		if errors.Is(err, supervisor.ErrShutdownTimeout) {
			logger.WarnKV(ctx, "Shutdown was not clean", "error", err)

			continue
		}
		rest = multierr.Append(rest, err)
	}

	return rest
}

func configureLogging(configured, override string) error {
	name := configured
	if override != "" {
		name = override
	}

	level, ok := logger.ParseLogLevel(name)
	if !ok {
		return fmt.Errorf("unknown log level %q", name)
	}
	logger.SetLevel(level)

	return nil
}

// buildNotifier always logs alerts and also publishes them over MQTT when
// a broker is configured and reachable.
func buildNotifier(ctx context.Context, cfg config.Notify) (notify.Notifier, func()) {
	if cfg.MQTT.Broker == "" {
		return notify.Log, func() {}
	}

	m, err := notify.DialMQTT(cfg.MQTT)
	if err != nil {
		logger.WarnKV(ctx, "MQTT alerts unavailable, logging only", "error", err)

		return notify.Log, func() {}
	}

	logger.InfoKV(ctx, "Publishing alerts over MQTT", "broker", cfg.MQTT.Broker, "topic", cfg.MQTT.Topic)

	return notify.Multi(notify.Log, m), m.Close
}
