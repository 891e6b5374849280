// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/relabs-tech/hazard_haptics/internal/config"
	"github.com/relabs-tech/hazard_haptics/internal/hardware"
	"github.com/relabs-tech/hazard_haptics/internal/orientation"
	"github.com/relabs-tech/hazard_haptics/internal/sensors"
)

// ProbeOptions controls the probe command.
type ProbeOptions struct {
	ConfigPath string
	// Readings is the number of range measurements to take.
	Readings int
	// ExportPath, when set, receives a JSON snapshot of the MPU6050 registers.
	ExportPath string
	Out        io.Writer
}

// RegisterSnapshot is the exported register file.
type RegisterSnapshot struct {
	Version   int               `json:"version"`
	Device    string            `json:"device"`
	Address   string            `json:"address"`
	Timestamp time.Time         `json:"timestamp"`
	Registers map[string]string `json:"registers"` // hex address -> hex value
}

// Probe checks every handle once and prints what it finds. A failure to
// release the hardware is part of the returned error.
func Probe(ctx context.Context, opts *ProbeOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	hw, err := hardware.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open hardware: %w", err)
	}

	return closing(hw, func() error { return probe(cfg, hw, opts) })
}

// closing runs fn and then closes c, combining both errors.
func closing(c io.Closer, fn func() error) (err error) {
	defer multierr.AppendInvoke(&err, multierr.Close(c))

	return fn()
}

func probe(cfg *config.Config, hw *hardware.Hardware, opts *ProbeOptions) error {
	w := opts.Out
	if missing := hw.Missing(); len(missing) > 0 {
		fmt.Fprintf(w, "unavailable: %s\n", strings.Join(missing, ", "))
	}

	if hw.MPU != nil {
		fmt.Fprintf(w, "MPU6050 at 0x%02X, WHO_AM_I 0x%02X\n", cfg.IMU.Address, hw.MPU.WhoAmI())

		regs, err := hw.MPU.Dump()
		if err != nil {
			return fmt.Errorf("dump registers: %w", err)
		}
		WriteRegisterDump(w, regs)

		if opts.ExportPath != "" {
			if err := exportRegisters(opts.ExportPath, cfg.IMU.Address, regs); err != nil {
				return err
			}
			fmt.Fprintf(w, "registers written to %s\n", opts.ExportPath)
		}
	}

	if hw.IMU != nil {
		s, err := hw.IMU.ReadAccel()
		if err != nil {
			fmt.Fprintf(w, "accel: %v\n", err)
		} else {
			pose := orientation.ComputePoseFromAccel(s.Ax, s.Ay, s.Az)
			fmt.Fprintf(w, "accel: ax=%+.3fg ay=%+.3fg az=%+.3fg |a|=%.2fg roll=%.1f pitch=%.1f upright=%v\n",
				s.Ax, s.Ay, s.Az, s.Magnitude(), pose.Roll, pose.Pitch, pose.Upright(30))
		}
	}

	r := cfg.Rangefinder
	ranger := sensors.NewHCSR04(hw.Trigger, hw.Echo, sensors.HCSR04Opts{
		Settle:           r.Settle,
		PulseWidth:       r.PulseWidth,
		EchoTimeout:      r.EchoTimeout,
		SpeedOfSoundCMPS: r.SpeedOfSoundCMPS,
	})

	for i := 0; i < opts.Readings; i++ {
		d, err := ranger.Measure()

		switch {
		case err == nil:
			fmt.Fprintf(w, "range %d: %.1fcm\n", i+1, d)
		case errors.Is(err, sensors.ErrNoEcho):
			fmt.Fprintf(w, "range %d: no echo (%v)\n", i+1, err)
		default:
			fmt.Fprintf(w, "range %d: %v\n", i+1, err)
		}

		time.Sleep(r.SampleInterval)
	}

	return nil
}

// WriteRegisterDump prints one line per register with its decoded fields.
func WriteRegisterDump(w io.Writer, regs []sensors.RegisterValue) {
	for _, r := range regs {
		fmt.Fprintf(w, "  %s %-13s 0x%02X  %08b  %s\n", r.Hex(), r.Name, r.Value, r.Value, r.Description)

		for _, f := range r.BitFields {
			fmt.Fprintf(w, "      [%s] %-13s = %d  %s\n", f.Bits, f.Name, fieldValue(r.Value, f.Bits), f.Values)
		}
	}
}

// fieldValue extracts the bits named "7:0", "4:3" or "6" from v.
func fieldValue(v byte, bits string) byte {
	var hi, lo uint
	if _, err := fmt.Sscanf(bits, "%d:%d", &hi, &lo); err != nil {
		if _, err := fmt.Sscanf(bits, "%d", &hi); err != nil {
			return 0
		}
		lo = hi
	}

	width := hi - lo + 1

	return (v >> lo) & byte(uint(1)<<width-1)
}

func exportRegisters(path string, addr uint16, regs []sensors.RegisterValue) error {
	snap := RegisterSnapshot{
		Version:   1,
		Device:    "mpu6050",
		Address:   fmt.Sprintf("0x%02X", addr),
		Timestamp: time.Now().UTC(),
		Registers: make(map[string]string, len(regs)),
	}
	for _, r := range regs {
		snap.Registers[r.Hex()] = fmt.Sprintf("0x%02X", r.Value)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal register snapshot: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write register snapshot: %w", err)
	}

	return nil
}
