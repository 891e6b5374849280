// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package hazard holds the state shared by the rangefinder, the fall
// detector and the actuator arbiter.
//
// Every read and write of State happens under a single mutex, and the mutex
// is never held across I/O. Callers must not assume a value observed in one
// critical section still holds in the next.
package hazard
