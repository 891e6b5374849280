// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package hardware acquires every line and bus the device uses. A handle
// that cannot be acquired is logged once and replaced by a no-op, so the
// rest of the system keeps running.
package hardware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/hazard_haptics/internal/config"
	"github.com/relabs-tech/hazard_haptics/internal/imu"
	"github.com/relabs-tech/hazard_haptics/internal/lines"
	"github.com/relabs-tech/hazard_haptics/internal/logger"
	"github.com/relabs-tech/hazard_haptics/internal/sensors"
)

// ErrUnavailable marks a handle that could not be acquired.
var ErrUnavailable = errors.New("hardware unavailable")

// BusOpener opens an I2C bus by i2creg name.
type BusOpener func(name string) (i2c.BusCloser, error)

// Hardware is the set of acquired handles. Lines are never nil; IMU is nil
// when the accelerometer could not be acquired.
type Hardware struct {
	Trigger lines.Line
	Echo    lines.Line
	Motor   lines.Line
	Buzzer  lines.Line

	IMU imu.AccelReader
	// MPU is set when IMU is a real MPU6050.
	MPU *sensors.MPU6050

	// Bank holds the mock lines of simulated hardware.
	Bank *lines.MockBank

	missing []string
	closers []io.Closer

	once     sync.Once
	closeErr error
}

// Open acquires the hardware described by cfg. Only an unknown backend is
// an error; every other failure degrades.
func Open(ctx context.Context, cfg *config.Config) (*Hardware, error) {
	if cfg.GPIO.Backend == config.BackendMock {
		return Simulated(ctx, cfg, SimOptions{}), nil
	}

	opener, err := lines.Backend(cfg.GPIO.Backend)
	if err != nil {
		return nil, err
	}

	return OpenWith(ctx, cfg, opener, openI2C), nil
}

func openI2C(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	return i2creg.Open(name)
}

// OpenWith is Open with explicit line and bus backends.
func OpenWith(ctx context.Context, cfg *config.Config, opener lines.Opener, openBus BusOpener) *Hardware {
	ctx = logger.WithName(ctx, "hardware")
	h := &Hardware{}

	h.Trigger = h.acquire(ctx, opener, "trigger", cfg.GPIO.Trigger, lines.Output)
	h.Echo = h.acquire(ctx, opener, "echo", cfg.GPIO.Echo, lines.Input)
	h.Motor = h.acquire(ctx, opener, "motor", cfg.GPIO.Motor, lines.Output)
	h.Buzzer = h.acquire(ctx, opener, "buzzer", cfg.GPIO.Buzzer, lines.Output)

	if err := h.openIMU(ctx, cfg.IMU, openBus); err != nil {
		h.unavailable(ctx, "imu", err)
	}

	return h
}

func (h *Hardware) acquire(ctx context.Context, opener lines.Opener, role, name string, dir lines.Direction) lines.Line {
	if name == "" {
		h.unavailable(ctx, role, errors.New("no line configured"))

		return lines.Noop(role)
	}

	l, err := opener.Open(name, dir)
	if err != nil {
		h.unavailable(ctx, role, err)

		return lines.Noop(role)
	}

	logger.Debugf(ctx, "%s on %s (%s)", role, l.Name(), dir)
	h.closers = append(h.closers, l)

	return l
}

func (h *Hardware) openIMU(ctx context.Context, cfg config.IMU, openBus BusOpener) error {
	bus, err := openBus(cfg.Bus)
	if err != nil {
		return fmt.Errorf("open I2C bus %q: %w", cfg.Bus, err)
	}

	mpu, err := sensors.NewMPU6050(ctx, bus, sensors.MPU6050Opts{
		Addr:          cfg.Address,
		AccelRange:    cfg.AccelRange,
		SampleRateDiv: cfg.RateDivider(),
		DLPF:          cfg.FilterConfig(),
		WakeDelay:     cfg.WakeDelay,
	})
	if err != nil {
		return multierr.Append(fmt.Errorf("MPU6050 at 0x%02X: %w", cfg.Address, err), bus.Close())
	}

	h.IMU, h.MPU = mpu, mpu
	h.closers = append(h.closers, bus)

	return nil
}

func (h *Hardware) unavailable(ctx context.Context, role string, err error) {
	h.missing = append(h.missing, role)
	logger.WarnKV(ctx, "degrading to no-op", "handle", role, "error", fmt.Errorf("%w: %w", ErrUnavailable, err))
}

// Missing lists the handles that degraded, in acquisition order.
func (h *Hardware) Missing() []string {
	return append([]string(nil), h.missing...)
}

// Close releases every acquired handle. Later calls return the first
// call's result.
func (h *Hardware) Close() error {
	h.once.Do(func() {
		for i := len(h.closers) - 1; i >= 0; i-- {
			h.closeErr = multierr.Append(h.closeErr, h.closers[i].Close())
		}
		h.closers = nil
	})

	return h.closeErr
}

// None returns hardware with every handle degraded.
func None() *Hardware {
	return &Hardware{
		Trigger: lines.Noop("trigger"),
		Echo:    lines.Noop("echo"),
		Motor:   lines.Noop("motor"),
		Buzzer:  lines.Noop("buzzer"),
		missing: []string{"trigger", "echo", "motor", "buzzer", "imu"},
	}
}

// SimOptions shapes simulated hardware. Zero values give an empty room and
// a wearer at rest.
type SimOptions struct {
	Distance func() (float64, bool)
	Trace    func(elapsed time.Duration) (ax, ay, az float64)
}

// Simulated returns hardware backed by mock lines, an HC-SR04 echo model
// and a scripted accelerometer.
func Simulated(ctx context.Context, cfg *config.Config, opts SimOptions) *Hardware {
	if opts.Distance == nil {
		opts.Distance = func() (float64, bool) { return 0, false }
	}
	if opts.Trace == nil {
		opts.Trace = sensors.RestTrace
	}

	bank := lines.NewMockBank()
	h := &Hardware{Bank: bank}

	trig := bank.Mock("trigger", lines.Output)
	echo := bank.Mock("echo", lines.Input)
	sensors.SimulateHCSR04(trig, echo, cfg.Rangefinder.SpeedOfSoundCMPS, opts.Distance)

	h.Trigger, h.Echo = trig, echo
	h.Motor = bank.Mock("motor", lines.Output)
	h.Buzzer = bank.Mock("buzzer", lines.Output)
	h.closers = []io.Closer{h.Trigger, h.Echo, h.Motor, h.Buzzer}
	h.IMU = sensors.NewSimulatedIMU(opts.Trace)

	logger.Infof(logger.WithName(ctx, "hardware"), "using simulated hardware")

	return h
}
