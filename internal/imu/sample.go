// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"math"
	"time"
)

// AccelRaw is one raw accelerometer read: big-endian register pairs
// decoded as two's-complement int16.
type AccelRaw struct {
	Ax int16 `json:"ax"`
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`
}

// AccelSample is an accelerometer sample in units of g.
type AccelSample struct {
	Ax        float64   `json:"ax"`
	Ay        float64   `json:"ay"`
	Az        float64   `json:"az"`
	SampledAt time.Time `json:"sampled_at"`
}

// AccelReader is anything that produces accelerometer samples.
type AccelReader interface {
	ReadAccel() (AccelSample, error)
}

// Scale converts a raw read with the given full-scale factor (LSB per g).
func (r AccelRaw) Scale(lsbPerG float64, at time.Time) AccelSample {
	return AccelSample{
		Ax:        float64(r.Ax) / lsbPerG,
		Ay:        float64(r.Ay) / lsbPerG,
		Az:        float64(r.Az) / lsbPerG,
		SampledAt: at,
	}
}

// Magnitude returns sqrt(ax² + ay² + az²).
func (s AccelSample) Magnitude() float64 {
	return Norm(s.Ax, s.Ay, s.Az)
}

// Jerk returns the magnitude of the per-axis derivative between prev and s
// over dt, in g/s.
func Jerk(prev, s AccelSample, dt time.Duration) float64 {
	sec := dt.Seconds()
	if sec <= 0 {
		return 0
	}

	return Norm((s.Ax-prev.Ax)/sec, (s.Ay-prev.Ay)/sec, (s.Az-prev.Az)/sec)
}

// Norm is the Euclidean norm of a 3-vector.
func Norm(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}
