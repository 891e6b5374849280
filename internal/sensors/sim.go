// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/hazard_haptics/internal/imu"
	"github.com/relabs-tech/hazard_haptics/internal/lines"
)

// echoLead is how long after the trigger's falling edge a simulated
// HC-SR04 raises its echo line.
const echoLead = 200 * time.Microsecond

// SimulateHCSR04 makes echo answer each pulse on trig like an HC-SR04
// facing an object at distance(). When distance reports false the echo
// line stays low and the measurement times out.
func SimulateHCSR04(trig, echo *lines.Mock, speedCMPS float64, distance func() (float64, bool)) {
	var (
		mu       sync.Mutex
		wasHigh  bool
		rise     time.Time
		fall     time.Time
		hasPulse bool
	)

	trig.OnWrite(func(high bool, at time.Time) {
		mu.Lock()
		defer mu.Unlock()

		falling := wasHigh && !high
		wasHigh = high
		if !falling {
			return
		}

		cm, ok := distance()
		hasPulse = ok
		if !ok {
			return
		}

		rise = at.Add(echoLead)
		fall = rise.Add(time.Duration(2 * cm / speedCMPS * float64(time.Second)))
	})

	echo.Drive(func(now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()

		return hasPulse && !now.Before(rise) && now.Before(fall)
	})
}

// SimulatedIMU replays an accelerometer trace as a function of the time
// since it was created.
type SimulatedIMU struct {
	start time.Time
	trace func(elapsed time.Duration) (ax, ay, az float64)
}

// NewSimulatedIMU returns an IMU playing trace.
func NewSimulatedIMU(trace func(elapsed time.Duration) (ax, ay, az float64)) *SimulatedIMU {
	return &SimulatedIMU{start: time.Now(), trace: trace}
}

func (s *SimulatedIMU) ReadAccel() (imu.AccelSample, error) {
	now := time.Now()
	ax, ay, az := s.trace(now.Sub(s.start))

	return imu.AccelSample{Ax: ax, Ay: ay, Az: az, SampledAt: now}, nil
}

// FallTrace is a wearer standing still at 1g, dropping at fallAt for
// 300ms at 0.1g, hitting the ground at 3.5g for 50ms and then lying on
// their side.
func FallTrace(fallAt time.Duration) func(time.Duration) (float64, float64, float64) {
	const (
		freefall = 300 * time.Millisecond
		impact   = 50 * time.Millisecond
	)

	return func(elapsed time.Duration) (float64, float64, float64) {
		// Small deterministic wobble so the trace is not perfectly flat.
		n := 0.01 * math.Sin(float64(elapsed)/float64(37*time.Millisecond))

		switch {
		case elapsed < fallAt:
			return n, -n, 1 + n
		case elapsed < fallAt+freefall:
			return 0.05, 0.05, 0.07
		case elapsed < fallAt+freefall+impact:
			return 1.2, 3.2, 0.6
		default:
			return n, 1 + n, -n
		}
	}
}

// RestTrace is 1g on the z axis forever.
func RestTrace(time.Duration) (float64, float64, float64) {
	return 0, 0, 1
}
