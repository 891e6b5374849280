// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package lines is the digital line capability set used by every hardware
// component: read, write, pulse and a bounded wait for a level. Backends
// are selected once at startup by name.
package lines

import (
	"errors"
	"fmt"
	"time"
)

// Line is a single two-state digital line.
type Line interface {
	Name() string
	Read() (bool, error)
	Write(high bool) error
	// Pulse drives the line high for at least width, then low.
	Pulse(width time.Duration) error
	// WaitFor polls until the line reads level and returns the monotonic
	// time it was first observed. It fails with ErrTimeout after timeout.
	WaitFor(level bool, timeout time.Duration) (time.Time, error)
	Close() error
}

var (
	// ErrTimeout is returned by WaitFor when the level was not observed in time.
	ErrTimeout = errors.New("timed out waiting for level")
	// ErrNotFound is returned when a backend has no line with the given name.
	ErrNotFound = errors.New("line not found")
	// ErrClosed is returned by operations on a released line.
	ErrClosed = errors.New("line closed")
	// ErrDirection is returned when writing an input line.
	ErrDirection = errors.New("line not configured as output")
)

// Direction of a line as requested at open time.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "out"
	}

	return "in"
}

// Opener resolves a line name for one backend.
type Opener interface {
	Open(name string, dir Direction) (Line, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(name string, dir Direction) (Line, error)

// Open calls f.
func (f OpenerFunc) Open(name string, dir Direction) (Line, error) {
	return f(name, dir)
}

// Backend returns the opener registered under name.
func Backend(name string) (Opener, error) {
	switch name {
	case "gpioreg":
		return OpenerFunc(openGPIOReg), nil
	case "sysfs":
		return OpenerFunc(openSysfs), nil
	case "mock":
		return NewMockBank(), nil
	default:
		return nil, fmt.Errorf("unknown line backend %q", name)
	}
}

// pollLevel is the bounded busy-poll shared by every backend. It uses the
// monotonic clock carried by time.Now.
func pollLevel(read func() (bool, error), level bool, timeout time.Duration) (time.Time, error) {
	deadline := time.Now().Add(timeout)

	for {
		v, err := read()
		now := time.Now()
		if err != nil {
			return now, err
		}
		if v == level {
			return now, nil
		}
		if now.After(deadline) {
			return now, ErrTimeout
		}
	}
}

// pulse drives write high, spins for width and drives it low again.
// A sleep is too coarse for a 10µs pulse.
func pulse(write func(bool) error, width time.Duration) error {
	if err := write(true); err != nil {
		return err
	}

	start := time.Now()
	for time.Since(start) < width {
	}

	return write(false)
}
