// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package lines

import (
	"sync"
	"time"
)

// Mock is an in-memory line. Inputs are driven with Set or Drive; outputs
// record every level written.
type Mock struct {
	mu      sync.Mutex
	name    string
	dir     Direction
	level   bool
	drive   func(now time.Time) bool
	onWrite func(high bool, at time.Time)
	writes  []bool
	closed  bool
}

// NewMock returns a mock line configured for dir.
func NewMock(name string, dir Direction) *Mock {
	return &Mock{name: name, dir: dir}
}

// Set fixes the level seen by Read.
func (m *Mock) Set(level bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.level = level
	m.drive = nil
}

// Drive makes Read evaluate fn at the time of each read.
func (m *Mock) Drive(fn func(now time.Time) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.drive = fn
}

// OnWrite registers a hook called after each write, outside the lock.
func (m *Mock) OnWrite(fn func(high bool, at time.Time)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onWrite = fn
}

// Level returns the last level set or written.
func (m *Mock) Level() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.level
}

// Writes returns a copy of every level written so far.
func (m *Mock) Writes() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]bool(nil), m.writes...)
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

func (m *Mock) Name() string {
	return m.name
}

func (m *Mock) Read() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrClosed
	}
	if m.drive != nil {
		return m.drive(time.Now()), nil
	}

	return m.level, nil
}

func (m *Mock) Write(high bool) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()

		return ErrClosed
	}
	if m.dir != Output {
		m.mu.Unlock()

		return ErrDirection
	}

	m.level = high
	m.writes = append(m.writes, high)
	hook := m.onWrite
	m.mu.Unlock()

	if hook != nil {
		hook(high, time.Now())
	}

	return nil
}

func (m *Mock) Pulse(width time.Duration) error {
	return pulse(m.Write, width)
}

func (m *Mock) WaitFor(level bool, timeout time.Duration) (time.Time, error) {
	return pollLevel(m.Read, level, timeout)
}

// Close drives an output low and releases the line. It is idempotent.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	if m.dir == Output {
		m.level = false
	}
	m.closed = true

	return nil
}

// MockBank is the mock backend: it hands out one Mock per name and keeps
// them for inspection.
type MockBank struct {
	mu    sync.Mutex
	lines map[string]*Mock
}

// NewMockBank returns an empty bank.
func NewMockBank() *MockBank {
	return &MockBank{lines: make(map[string]*Mock)}
}

// Open returns the mock registered under name, creating it on first use.
func (b *MockBank) Open(name string, dir Direction) (Line, error) {
	return b.Mock(name, dir), nil
}

// Mock is Open with the concrete type.
func (b *MockBank) Mock(name string, dir Direction) *Mock {
	b.mu.Lock()
	defer b.mu.Unlock()

	m, ok := b.lines[name]
	if !ok {
		m = NewMock(name, dir)
		b.lines[name] = m
	}

	return m
}

// noopLine stands in for a line that could not be acquired.
type noopLine struct {
	name string
}

// Noop returns a line whose writes do nothing and whose reads are low.
func Noop(name string) Line {
	return noopLine{name: name}
}

// IsNoop reports whether l was returned by Noop.
func IsNoop(l Line) bool {
	_, ok := l.(noopLine)

	return ok
}

func (n noopLine) Name() string { return n.name }
func (n noopLine) Read() (bool, error) { return false, nil }
func (n noopLine) Write(bool) error { return nil }
func (n noopLine) Pulse(time.Duration) error { return nil }
func (n noopLine) Close() error { return nil }

func (n noopLine) WaitFor(_ bool, timeout time.Duration) (time.Time, error) {
	time.Sleep(timeout)

	return time.Now(), ErrTimeout
}
