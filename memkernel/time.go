// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memkernel

import "math"

// Time contains the simulation clock of the kernel.
type Time struct {

	// accumulated simulated time, in ms
	Time float64

	// total number of steps simulated since the last Reset
	Step int

	// duration of one step in ms
	Resolution float64 `def:"0.1"`
}

// Defaults sets default values
func (tm *Time) Defaults() {
	tm.Resolution = 0.1
}

// Reset resets the counters all back to zero
func (tm *Time) Reset() {
	tm.Time = 0
	tm.Step = 0
	if tm.Resolution == 0 {
		tm.Defaults()
	}
}

// StepInc increments at the step level
func (tm *Time) StepInc() {
	tm.Step++
	tm.Time = float64(tm.Step) * tm.Resolution
}

// Steps returns the number of steps of the given duration in ms, rounded.
func (tm *Time) Steps(ms float64) int {
	return int(math.Round(ms / tm.Resolution))
}

// StepTime returns the time in ms at the end of the given step.
func (tm *Time) StepTime(step int) float64 {
	return float64(step+1) * tm.Resolution
}
