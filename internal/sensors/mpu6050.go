// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/hazard_haptics/internal/imu"
	"github.com/relabs-tech/hazard_haptics/internal/logger"
)

const (
	regSmplrtDiv   = 0x19
	regConfig      = 0x1A
	regGyroConfig  = 0x1B
	regAccelConfig = 0x1C
	regAccelXOutH  = 0x3B
	regPwrMgmt1    = 0x6B
	regWhoAmI      = 0x75

	// WhoAmIMPU6050 is the expected WHO_AM_I value.
	WhoAmIMPU6050 = 0x68

	// lsbPerG at ±2g; each range step halves it.
	lsbPerG = 16384.0
)

// ErrBus wraps every failed transaction on the inertial bus.
var ErrBus = errors.New("inertial bus error")

// MPU6050Opts configures the device at init.
type MPU6050Opts struct {
	Addr          uint16
	AccelRange    byte // 0=±2g, 1=±4g, 2=±8g, 3=±16g
	SampleRateDiv byte
	DLPF          byte
	WakeDelay     time.Duration
}

// MPU6050 reads the accelerometer of an MPU6050 over I2C.
type MPU6050 struct {
	dev     *i2c.Dev
	lsbPerG float64
	whoAmI  byte
}

// NewMPU6050 wakes the device, applies the sample rate, filter and range,
// and checks WHO_AM_I. An unexpected WHO_AM_I is logged, not fatal; many
// clones report other values.
func NewMPU6050(ctx context.Context, bus i2c.Bus, opts MPU6050Opts) (*MPU6050, error) {
	m := &MPU6050{
		dev:     &i2c.Dev{Bus: bus, Addr: opts.Addr},
		lsbPerG: lsbPerG / float64(int(1)<<opts.AccelRange),
	}

	if err := m.writeRegister(regPwrMgmt1, 0x00); err != nil {
		return nil, fmt.Errorf("wake: %w", err)
	}
	time.Sleep(opts.WakeDelay)

	for _, w := range []struct {
		reg, val byte
		name     string
	}{
		{regSmplrtDiv, opts.SampleRateDiv, "SMPLRT_DIV"},
		{regConfig, opts.DLPF & 0x07, "CONFIG"},
		{regGyroConfig, 0x00, "GYRO_CONFIG"},
		{regAccelConfig, (opts.AccelRange & 0x03) << 3, "ACCEL_CONFIG"},
	} {
		if err := m.writeRegister(w.reg, w.val); err != nil {
			return nil, fmt.Errorf("set %s: %w", w.name, err)
		}
	}

	who, err := m.ReadRegister(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("read WHO_AM_I: %w", err)
	}
	m.whoAmI = who

	if who != WhoAmIMPU6050 {
		logger.Warnf(ctx, "MPU6050 at 0x%02X: unexpected WHO_AM_I 0x%02X, expected 0x%02X", opts.Addr, who, WhoAmIMPU6050)
	} else {
		logger.Infof(ctx, "MPU6050 at 0x%02X: WHO_AM_I 0x%02X, ±%dg, %d Hz",
			opts.Addr, who, 2<<opts.AccelRange, 1000/(1+int(opts.SampleRateDiv)))
	}

	return m, nil
}

// WhoAmI returns the identity byte read at init.
func (m *MPU6050) WhoAmI() byte {
	return m.whoAmI
}

// ReadRegister reads a single register.
func (m *MPU6050) ReadRegister(reg byte) (byte, error) {
	var r [1]byte
	if err := m.dev.Tx([]byte{reg}, r[:]); err != nil {
		return 0, fmt.Errorf("%w: read 0x%02X: %w", ErrBus, reg, err)
	}

	return r[0], nil
}

func (m *MPU6050) writeRegister(reg, val byte) error {
	if err := m.dev.Tx([]byte{reg, val}, nil); err != nil {
		return fmt.Errorf("%w: write 0x%02X: %w", ErrBus, reg, err)
	}

	return nil
}

// ReadRaw reads ACCEL_XOUT_H..ACCEL_ZOUT_L: three big-endian pairs decoded
// as two's-complement.
func (m *MPU6050) ReadRaw() (imu.AccelRaw, error) {
	var r [6]byte
	if err := m.dev.Tx([]byte{regAccelXOutH}, r[:]); err != nil {
		return imu.AccelRaw{}, fmt.Errorf("%w: read accel: %w", ErrBus, err)
	}

	return imu.AccelRaw{
		Ax: int16(binary.BigEndian.Uint16(r[0:2])),
		Ay: int16(binary.BigEndian.Uint16(r[2:4])),
		Az: int16(binary.BigEndian.Uint16(r[4:6])),
	}, nil
}

// ReadAccel reads one sample in g.
func (m *MPU6050) ReadAccel() (imu.AccelSample, error) {
	raw, err := m.ReadRaw()
	if err != nil {
		return imu.AccelSample{}, err
	}

	return raw.Scale(m.lsbPerG, time.Now()), nil
}

// RegisterValue is one register read by Dump.
type RegisterValue struct {
	RegisterInfo
	Value byte
}

// Dump reads every readable register in the MPU6050 register map.
func (m *MPU6050) Dump() ([]RegisterValue, error) {
	regs := MPU6050Registers()
	out := make([]RegisterValue, 0, len(regs))

	for _, info := range regs {
		if info.Access == "W" {
			continue
		}

		v, err := m.ReadRegister(info.Address)
		if err != nil {
			return out, err
		}
		out = append(out, RegisterValue{RegisterInfo: info, Value: v})
	}

	return out, nil
}
