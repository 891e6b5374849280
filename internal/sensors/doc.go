// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors contains the device drivers: HC-SR04 time-of-flight
// ranging over two digital lines and MPU6050 accelerometer access over an
// I2C bus, plus simulated stand-ins for both.
package sensors
