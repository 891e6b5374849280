// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package logger wraps zap with a global sugared console logger and
// context helpers, so every loop can log under its own component name:
//
//	ctx = logger.WithName(ctx, "rangefinder")
//	logger.InfoKV(ctx, "obstacle set", "distance_cm", d)
package logger
