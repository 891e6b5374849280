// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all hazardd configuration values.
type Config struct {
	LogLevel string `yaml:"log_level"`

	GPIO        GPIO        `yaml:"gpio"`
	IMU         IMU         `yaml:"imu"`
	Rangefinder Rangefinder `yaml:"rangefinder"`
	Fall        Fall        `yaml:"fall"`
	Arbiter     Arbiter     `yaml:"arbiter"`
	Supervisor  Supervisor  `yaml:"supervisor"`
	Notify      Notify      `yaml:"notify"`
}

// GPIO names the digital lines and the backend used to resolve them.
// With the gpioreg backend names are periph registry names ("GPIO23");
// with sysfs they are kernel line numbers ("426").
type GPIO struct {
	Backend string `yaml:"backend"` // gpioreg, sysfs or mock
	Trigger string `yaml:"trigger"`
	Echo    string `yaml:"echo"`
	Motor   string `yaml:"motor"`
	Buzzer  string `yaml:"buzzer"`
}

// IMU configures the MPU6050 on the inertial bus.
type IMU struct {
	Bus     string `yaml:"bus"`     // i2creg name, "" picks the first bus
	Address uint16 `yaml:"address"` // 0x68 with AD0 low, 0x69 with AD0 high
	// AccelRange: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	AccelRange    byte          `yaml:"accel_range"`
	// SampleRateDiv and DLPF are pointers because 0 is a valid setting
	// (1 kHz output, 260 Hz filter). Nil means the default.
	SampleRateDiv *byte         `yaml:"sample_rate_div"` // output rate = 1kHz / (1 + div)
	DLPF          *byte         `yaml:"dlpf"`            // CONFIG register DLPF_CFG (0-6)
	WakeDelay     time.Duration `yaml:"wake_delay"`
}

const (
	defaultSampleRateDiv = 9
	defaultDLPF          = 3
)

// RateDivider returns SMPLRT_DIV, the default when unset.
func (c IMU) RateDivider() byte {
	if c.SampleRateDiv == nil {
		return defaultSampleRateDiv
	}

	return *c.SampleRateDiv
}

// FilterConfig returns DLPF_CFG, the default when unset.
func (c IMU) FilterConfig() byte {
	if c.DLPF == nil {
		return defaultDLPF
	}

	return *c.DLPF
}

// Rangefinder configures the HC-SR04 pulse timing and obstacle debounce.
type Rangefinder struct {
	ThresholdCM      float64       `yaml:"threshold_cm"`
	GracePeriod      time.Duration `yaml:"grace_period"`
	SampleInterval   time.Duration `yaml:"sample_interval"`
	Settle           time.Duration `yaml:"settle"`
	PulseWidth       time.Duration `yaml:"pulse_width"`
	EchoTimeout      time.Duration `yaml:"echo_timeout"`
	SpeedOfSoundCMPS float64       `yaml:"speed_of_sound_cm_s"` // unhalved, distance = t * v / 2
	StatusInterval   time.Duration `yaml:"status_interval"`
}

// Fall configures the fall-detection state machine.
// FreefallG, ImpactG and JerkGPerS have no default.
type Fall struct {
	SampleInterval time.Duration `yaml:"sample_interval"`
	FreefallG      float64       `yaml:"freefall_g"`
	ImpactG        float64       `yaml:"impact_g"`
	Window         time.Duration `yaml:"window"`
	Cooldown       time.Duration `yaml:"cooldown"`
	JerkGPerS      float64       `yaml:"jerk_g_per_s"`
	JerkBaselineG  float64       `yaml:"jerk_baseline_g"`
	MinFreefall    time.Duration `yaml:"min_freefall"`
	BusBackoff     time.Duration `yaml:"bus_backoff"`
	StatusInterval time.Duration `yaml:"status_interval"`
}

// Arbiter configures actuator arbitration. RecoveryDuration has no default.
type Arbiter struct {
	Interval         time.Duration `yaml:"interval"`
	AlertDuration    time.Duration `yaml:"alert_duration"`
	RecoveryDuration time.Duration `yaml:"recovery_duration"`
}

// Supervisor configures lifecycle handling.
type Supervisor struct {
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// Notify configures alert delivery.
type Notify struct {
	AsyncTimeout time.Duration `yaml:"async_timeout"`
	MQTT         MQTT          `yaml:"mqtt"`
}

// MQTT configures the MQTT alert publisher. An empty Broker disables it.
type MQTT struct {
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"`
	Topic    string        `yaml:"topic"`
	QoS      byte          `yaml:"qos"`
	Timeout  time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is used when no path is given.
	DefaultConfigFilename = "hazardd.yaml"

	// DefaultFilePermissions is used by Save.
	DefaultFilePermissions = 0o600

	BackendGPIOReg = "gpioreg"
	BackendSysfs   = "sysfs"
	BackendMock    = "mock"
)

var (
	errConfigIsNotSet = errors.New("configuration is not set")

	// ErrMissingThreshold is returned when a threshold without a canonical
	// default is left unset.
	ErrMissingThreshold = errors.New("threshold must be set explicitly")
)

// Example returns a complete configuration for the reference wiring. The
// fall thresholds and the recovery pause are starting points to tune per
// wearer; they are not defaults.
func Example() *Config {
	cfg := &Config{
		GPIO: GPIO{
			Backend: BackendGPIOReg,
			Trigger: "GPIO23",
			Echo:    "GPIO24",
			Motor:   "GPIO18",
			Buzzer:  "GPIO25",
		},
		Fall: Fall{
			FreefallG: 0.3,
			ImpactG:   2.5,
			JerkGPerS: 30,
		},
		Arbiter: Arbiter{RecoveryDuration: 15 * time.Second},
	}
	applyDefaults(cfg)

	return cfg
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save validates cfg and writes it to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate fills defaults in place and checks every value.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	switch cfg.GPIO.Backend {
	case BackendGPIOReg, BackendSysfs, BackendMock:
	default:
		return fmt.Errorf("gpio.backend must be %s, %s or %s, got %q",
			BackendGPIOReg, BackendSysfs, BackendMock, cfg.GPIO.Backend)
	}

	if cfg.IMU.AccelRange > 3 {
		return fmt.Errorf("imu.accel_range must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", cfg.IMU.AccelRange)
	}
	if dlpf := cfg.IMU.FilterConfig(); dlpf > 6 {
		return fmt.Errorf("imu.dlpf must be 0-6, got %d", dlpf)
	}

	r := cfg.Rangefinder
	if r.ThresholdCM <= 0 {
		return fmt.Errorf("rangefinder.threshold_cm must be positive, got %v", r.ThresholdCM)
	}
	if r.PulseWidth < 10*time.Microsecond {
		return fmt.Errorf("rangefinder.pulse_width must be at least 10µs, got %s", r.PulseWidth)
	}

	f := cfg.Fall
	if f.FreefallG <= 0 {
		return fmt.Errorf("fall.freefall_g: %w", ErrMissingThreshold)
	}
	if f.ImpactG <= 0 {
		return fmt.Errorf("fall.impact_g: %w", ErrMissingThreshold)
	}
	if f.JerkGPerS <= 0 {
		return fmt.Errorf("fall.jerk_g_per_s: %w", ErrMissingThreshold)
	}
	if f.ImpactG <= f.FreefallG {
		return fmt.Errorf("fall.impact_g (%v) must exceed fall.freefall_g (%v)", f.ImpactG, f.FreefallG)
	}

	if cfg.Arbiter.RecoveryDuration <= 0 {
		return fmt.Errorf("arbiter.recovery_duration: %w", ErrMissingThreshold)
	}

	if cfg.Notify.MQTT.QoS > 2 {
		return fmt.Errorf("notify.mqtt.qos must be 0-2, got %d", cfg.Notify.MQTT.QoS)
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.GPIO.Backend == "" {
		cfg.GPIO.Backend = BackendGPIOReg
	}

	if cfg.IMU.Address == 0 {
		cfg.IMU.Address = 0x68
	}
	if cfg.IMU.SampleRateDiv == nil {
		div := byte(defaultSampleRateDiv)
		cfg.IMU.SampleRateDiv = &div
	}
	if cfg.IMU.DLPF == nil {
		dlpf := byte(defaultDLPF)
		cfg.IMU.DLPF = &dlpf
	}
	if cfg.IMU.WakeDelay == 0 {
		cfg.IMU.WakeDelay = 50 * time.Millisecond
	}

	r := &cfg.Rangefinder
	if r.ThresholdCM == 0 {
		r.ThresholdCM = 20
	}
	setDuration(&r.GracePeriod, 1500*time.Millisecond)
	setDuration(&r.SampleInterval, 100*time.Millisecond)
	setDuration(&r.Settle, 10*time.Millisecond)
	setDuration(&r.PulseWidth, 10*time.Microsecond)
	setDuration(&r.EchoTimeout, 200*time.Millisecond)
	if r.SpeedOfSoundCMPS == 0 {
		r.SpeedOfSoundCMPS = 34300
	}
	setDuration(&r.StatusInterval, time.Second)

	f := &cfg.Fall
	setDuration(&f.SampleInterval, 10*time.Millisecond)
	setDuration(&f.Window, time.Second)
	setDuration(&f.Cooldown, 2*time.Second)
	setDuration(&f.MinFreefall, 200*time.Millisecond)
	setDuration(&f.BusBackoff, 100*time.Millisecond)
	setDuration(&f.StatusInterval, time.Second)
	if f.JerkBaselineG == 0 {
		f.JerkBaselineG = 1.5
	}

	setDuration(&cfg.Arbiter.Interval, 20*time.Millisecond)
	setDuration(&cfg.Arbiter.AlertDuration, 3*time.Second)

	setDuration(&cfg.Supervisor.ShutdownGrace, 2*time.Second)

	setDuration(&cfg.Notify.AsyncTimeout, 5*time.Second)
	m := &cfg.Notify.MQTT
	if m.ClientID == "" {
		m.ClientID = "hazardd"
	}
	if m.Topic == "" {
		m.Topic = "hazard/alerts/fall"
	}
	setDuration(&m.Timeout, 2*time.Second)
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}
