// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func minimal() *Config {
	return &Config{
		Fall: Fall{
			FreefallG: 0.3,
			ImpactG:   2.5,
			JerkGPerS: 30,
		},
		Arbiter: Arbiter{RecoveryDuration: 15 * time.Second},
	}
}

func TestValidateDefaults(t *testing.T) {
	t.Parallel()

	cfg := minimal()
	require.NoError(t, Validate(cfg))

	require.Equal(t, BackendGPIOReg, cfg.GPIO.Backend)
	require.Equal(t, uint16(0x68), cfg.IMU.Address)
	require.InDelta(t, 20.0, cfg.Rangefinder.ThresholdCM, 0)
	require.Equal(t, 1500*time.Millisecond, cfg.Rangefinder.GracePeriod)
	require.Equal(t, 200*time.Millisecond, cfg.Rangefinder.EchoTimeout)
	require.InDelta(t, 34300.0, cfg.Rangefinder.SpeedOfSoundCMPS, 0)
	require.Equal(t, 10*time.Millisecond, cfg.Fall.SampleInterval)
	require.Equal(t, 2*time.Second, cfg.Fall.Cooldown)
	require.Equal(t, 3*time.Second, cfg.Arbiter.AlertDuration)
	require.Equal(t, 15*time.Second, cfg.Arbiter.RecoveryDuration)
}

func TestValidateRequiresUnresolvedThresholds(t *testing.T) {
	t.Parallel()

	for name, mutate := range map[string]func(*Config){
		"freefall": func(c *Config) { c.Fall.FreefallG = 0 },
		"impact":   func(c *Config) { c.Fall.ImpactG = 0 },
		"jerk":     func(c *Config) { c.Fall.JerkGPerS = 0 },
		"recovery": func(c *Config) { c.Arbiter.RecoveryDuration = 0 },
	} {
		cfg := minimal()
		mutate(cfg)
		require.ErrorIs(t, Validate(cfg), ErrMissingThreshold, name)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cfg := minimal()
	cfg.GPIO.Backend = "wiringpi"
	require.Error(t, Validate(cfg))

	cfg = minimal()
	cfg.Fall.ImpactG = 0.2
	require.Error(t, Validate(cfg))

	cfg = minimal()
	cfg.IMU.AccelRange = 4
	require.Error(t, Validate(cfg))

	cfg = minimal()
	cfg.Rangefinder.PulseWidth = 5 * time.Microsecond
	require.Error(t, Validate(cfg))

	require.Error(t, Validate(nil))
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hazardd.yaml")
	contents := `
gpio:
  backend: sysfs
  trigger: "426"
  echo: "485"
  motor: "484"
  buzzer: "487"
rangefinder:
  grace_period: 2s
fall:
  freefall_g: 0.5
  impact_g: 2.5
  window: 700ms
  jerk_g_per_s: 15
arbiter:
  recovery_duration: 1.5s
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendSysfs, cfg.GPIO.Backend)
	require.Equal(t, "485", cfg.GPIO.Echo)
	require.Equal(t, 2*time.Second, cfg.Rangefinder.GracePeriod)
	require.Equal(t, 700*time.Millisecond, cfg.Fall.Window)
	require.Equal(t, 1500*time.Millisecond, cfg.Arbiter.RecoveryDuration)
	require.Equal(t, byte(9), cfg.IMU.RateDivider())
	require.Equal(t, byte(3), cfg.IMU.FilterConfig())
}

func TestLoadKeepsExplicitZeroIMUSettings(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hazardd.yaml")
	contents := `
imu:
  sample_rate_div: 0
  dlpf: 0
fall:
  freefall_g: 0.3
  impact_g: 2.5
  jerk_g_per_s: 30
arbiter:
  recovery_duration: 15s
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, byte(0), cfg.IMU.RateDivider())
	require.Equal(t, byte(0), cfg.IMU.FilterConfig())

	seven := byte(7)
	cfg.IMU.DLPF = &seven
	require.Error(t, Validate(cfg))
}

func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hazardd.yaml")
	cfg := minimal()
	cfg.Notify.MQTT.Broker = "tcp://localhost:1883"

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	require.Error(t, Save(path, nil))
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestExampleIsValid(t *testing.T) {
	t.Parallel()

	cfg := Example()
	require.NoError(t, Validate(cfg))
	require.Equal(t, "GPIO23", cfg.GPIO.Trigger)
	require.Equal(t, time.Second, cfg.Rangefinder.StatusInterval)
}

func TestLoadShippedExample(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join("..", "..", DefaultConfigFilename))
	require.NoError(t, err)
	require.Equal(t, uint16(0x68), cfg.IMU.Address)
	require.Equal(t, 10*time.Microsecond, cfg.Rangefinder.PulseWidth)
	require.Equal(t, byte(1), cfg.Notify.MQTT.QoS)
	require.Equal(t, Example().Fall, cfg.Fall)
}
