// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package lines

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/sysfs"
)

// pinLine adapts a periph gpio.PinIO. Both the gpioreg and the sysfs
// backends resolve to it.
type pinLine struct {
	mu     sync.Mutex
	pin    gpio.PinIO
	dir    Direction
	closed bool
}

// FromPin configures pin for dir and wraps it as a Line.
func FromPin(pin gpio.PinIO, dir Direction) (Line, error) {
	var err error
	if dir == Output {
		err = pin.Out(gpio.Low)
	} else {
		err = pin.In(inputPull(pin), gpio.NoEdge)
	}
	if err != nil {
		return nil, fmt.Errorf("line %s: set direction %s: %w", pin.Name(), dir, err)
	}

	return &pinLine{pin: pin, dir: dir}, nil
}

// inputPull is PullDown where the driver can set it. sysfs cannot set pulls
// and rejects anything but PullNoChange or Float; gpioreg hands out sysfs
// pins on hosts without a native driver.
func inputPull(pin gpio.PinIO) gpio.Pull {
	if r, ok := pin.(gpio.RealPin); ok {
		pin = r.Real()
	}
	if _, ok := pin.(*sysfs.Pin); ok {
		return gpio.PullNoChange
	}

	return gpio.PullDown
}

func openGPIOReg(name string, dir Direction) (Line, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpioreg %q: %w", name, ErrNotFound)
	}

	return FromPin(pin, dir)
}

func openSysfs(name string, dir Direction) (Line, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	n, err := strconv.Atoi(name)
	if err != nil {
		return nil, fmt.Errorf("sysfs line %q must be a number: %w", name, err)
	}

	pin, ok := sysfs.Pins[n]
	if !ok {
		return nil, fmt.Errorf("sysfs gpio%d: %w", n, ErrNotFound)
	}

	return FromPin(pin, dir)
}

func (l *pinLine) Name() string {
	return l.pin.Name()
}

func (l *pinLine) Read() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false, ErrClosed
	}

	return l.pin.Read() == gpio.High, nil
}

func (l *pinLine) Write(high bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.writeLocked(high)
}

func (l *pinLine) writeLocked(high bool) error {
	if l.closed {
		return ErrClosed
	}
	if l.dir != Output {
		return fmt.Errorf("line %s: %w", l.pin.Name(), ErrDirection)
	}

	if err := l.pin.Out(gpio.Level(high)); err != nil {
		return fmt.Errorf("line %s: write: %w", l.pin.Name(), err)
	}

	return nil
}

func (l *pinLine) Pulse(width time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return pulse(l.writeLocked, width)
}

func (l *pinLine) WaitFor(level bool, timeout time.Duration) (time.Time, error) {
	return pollLevel(l.Read, level, timeout)
}

// Close drives an output low and halts the pin. It is idempotent.
func (l *pinLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.dir == Output {
		if err := l.pin.Out(gpio.Low); err != nil {
			return fmt.Errorf("line %s: drive low: %w", l.pin.Name(), err)
		}
	}

	if err := l.pin.Halt(); err != nil {
		return fmt.Errorf("line %s: halt: %w", l.pin.Name(), err)
	}

	return nil
}
