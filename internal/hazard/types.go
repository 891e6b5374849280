// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hazard

import (
	"fmt"
	"time"

	"github.com/relabs-tech/hazard_haptics/internal/orientation"
)

// RangeSample is a single rangefinder reading. OK is false when no echo
// came back within the timeout.
type RangeSample struct {
	DistanceCM float64   `json:"distance_cm"`
	OK         bool      `json:"ok"`
	MeasuredAt time.Time `json:"measured_at"`
}

// Qualifies reports whether the sample is a present reading strictly below
// threshold.
func (s RangeSample) Qualifies(thresholdCM float64) bool {
	return s.OK && s.DistanceCM < thresholdCM
}

func (s RangeSample) String() string {
	if !s.OK {
		return "none"
	}

	return fmt.Sprintf("%.1fcm", s.DistanceCM)
}

// ActuatorCommand is the only value ever written to the motor and buzzer.
type ActuatorCommand struct {
	Motor  bool `json:"motor"`
	Buzzer bool `json:"buzzer"`
}

// Off is the all-inactive command.
var Off = ActuatorCommand{}

func (c ActuatorCommand) String() string {
	return fmt.Sprintf("motor=%s buzzer=%s", onOff(c.Motor), onOff(c.Buzzer))
}

func onOff(b bool) string {
	if b {
		return "ON"
	}

	return "OFF"
}

// FallTrigger names the path that confirmed a fall.
type FallTrigger string

const (
	TriggerImpact FallTrigger = "impact" // freefall followed by impact
	TriggerJerk   FallTrigger = "jerk"   // sudden jerk above baseline
)

// FallEvent describes one confirmed fall. It is what the alert notifier
// receives.
type FallEvent struct {
	Trigger    FallTrigger      `json:"trigger"`
	At         time.Time        `json:"at"`
	MagnitudeG float64          `json:"magnitude_g"`
	JerkGPerS  float64          `json:"jerk_g_per_s"`
	Freefall   time.Duration    `json:"freefall_ns,omitempty"`
	Pose       orientation.Pose `json:"pose"`
}

func (e FallEvent) String() string {
	return fmt.Sprintf("%s at %s: |a|=%.2fg jerk=%.1fg/s freefall=%s roll=%.0f pitch=%.0f",
		e.Trigger, e.At.Format(time.RFC3339Nano), e.MagnitudeG, e.JerkGPerS, e.Freefall, e.Pose.Roll, e.Pose.Pitch)
}
