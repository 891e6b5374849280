// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/hazard_haptics/internal/imu"
)

func TestFallTracePhases(t *testing.T) {
	t.Parallel()

	trace := FallTrace(time.Second)
	mag := func(d time.Duration) float64 { return imu.Norm(trace(d)) }

	require.InDelta(t, 1.0, mag(500*time.Millisecond), 0.05)
	require.Less(t, mag(1100*time.Millisecond), 0.3)
	require.Greater(t, mag(1320*time.Millisecond), 2.5)
	require.InDelta(t, 1.0, mag(2*time.Second), 0.05)
}

func TestSimulatedIMU(t *testing.T) {
	t.Parallel()

	s, err := NewSimulatedIMU(RestTrace).ReadAccel()
	require.NoError(t, err)
	require.InDelta(t, 1.0, s.Magnitude(), 1e-9)
	require.False(t, s.SampledAt.IsZero())
}
