// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package lines

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/host/v3/sysfs"
)

func TestPinLineWriteReadClose(t *testing.T) {
	t.Parallel()

	pin := &gpiotest.Pin{N: "GPIO18", Num: 18}
	l, err := FromPin(pin, Output)
	require.NoError(t, err)
	require.Equal(t, "GPIO18", l.Name())

	require.NoError(t, l.Write(true))
	v, err := l.Read()
	require.NoError(t, err)
	require.True(t, v)

	require.NoError(t, l.Pulse(10*time.Microsecond))
	require.Equal(t, gpio.Low, pin.Read())

	require.NoError(t, l.Write(true))
	require.NoError(t, l.Close())
	require.Equal(t, gpio.Low, pin.Read())
	require.NoError(t, l.Close())
	require.ErrorIs(t, l.Write(true), ErrClosed)
}

func TestPinLineInputRejectsWrite(t *testing.T) {
	t.Parallel()

	l, err := FromPin(&gpiotest.Pin{N: "GPIO24"}, Input)
	require.NoError(t, err)
	require.ErrorIs(t, l.Write(true), ErrDirection)

	_, err = l.WaitFor(true, 2*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)

	at, err := l.WaitFor(false, time.Millisecond)
	require.NoError(t, err)
	require.False(t, at.IsZero())
}

func TestInputPullPerDriver(t *testing.T) {
	t.Parallel()

	pin := &gpiotest.Pin{N: "GPIO24"}
	_, err := FromPin(pin, Input)
	require.NoError(t, err)
	require.Equal(t, gpio.PullDown, pin.P)

	require.Equal(t, gpio.PullNoChange, inputPull(&sysfs.Pin{}))

	// A bare sysfs pin has no files behind it, so acquiring it may still
	// fail, but never because of the pull.
	if _, err := FromPin(&sysfs.Pin{}, Input); err != nil {
		require.False(t, strings.Contains(err.Error(), "pull"), err.Error())
	}
}

func TestMockPulseRecordsBothEdges(t *testing.T) {
	t.Parallel()

	m := NewMock("trig", Output)
	start := time.Now()
	require.NoError(t, m.Pulse(20*time.Microsecond))
	require.GreaterOrEqual(t, time.Since(start), 20*time.Microsecond)
	require.Equal(t, []bool{true, false}, m.Writes())
}

func TestMockWaitForDrivenLevel(t *testing.T) {
	t.Parallel()

	rise := time.Now().Add(3 * time.Millisecond)
	m := NewMock("echo", Input)
	m.Drive(func(now time.Time) bool { return !now.Before(rise) })

	at, err := m.WaitFor(true, 50*time.Millisecond)
	require.NoError(t, err)
	require.False(t, at.Before(rise))

	_, err = NewMock("dead", Input).WaitFor(true, time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestMockCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	m := NewMock("motor", Output)
	require.NoError(t, m.Write(true))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	require.True(t, m.Closed())
	require.False(t, m.Level())
	require.ErrorIs(t, m.Write(true), ErrClosed)
	require.ErrorIs(t, NewMock("echo", Input).Write(true), ErrDirection)
}

func TestBackendSelection(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"gpioreg", "sysfs", "mock"} {
		o, err := Backend(name)
		require.NoError(t, err)
		require.NotNil(t, o)
	}

	_, err := Backend("wiringpi")
	require.Error(t, err)

	o, err := Backend("mock")
	require.NoError(t, err)
	a, err := o.Open("motor", Output)
	require.NoError(t, err)
	b, err := o.Open("motor", Output)
	require.NoError(t, err)
	require.Same(t, a, b)
}

func TestNoop(t *testing.T) {
	t.Parallel()

	n := Noop("buzzer")
	require.True(t, IsNoop(n))
	require.False(t, IsNoop(NewMock("x", Output)))
	require.NoError(t, n.Write(true))
	v, err := n.Read()
	require.NoError(t, err)
	require.False(t, v)
	_, err = n.WaitFor(true, time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	require.NoError(t, n.Close())
}
