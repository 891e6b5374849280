// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
)

// Pose is an accelerometer-only tilt estimate in degrees. Yaw is not
// observable from gravity alone and is not reported.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data in
// any unit:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}

// Upright reports whether gravity lies within tol degrees of the sensor z
// axis. Alerts carry it as a coarse lying/upright hint.
func (p Pose) Upright(tolDeg float64) bool {
	return math.Abs(p.Roll) <= tolDeg && math.Abs(p.Pitch) <= tolDeg
}
