// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tsc stands in for a calibrated hardware tick source. A real
// time-stamp-counter calibration helper is out of this module's scope
// (it is an external collaborator, per the pipeline's design) — this
// package gives the bundle builder and ingress source the same contract
// a calibrated TSC would: a monotonic tick, and a factor to convert ticks
// to nanoseconds, without committing the hot path to a specific hardware
// counter or build tag per architecture.
//
// Go's runtime clock (runtime.nanotime, surfaced via time.Now()'s
// monotonic reading) already ticks in nanoseconds, so the calibration
// factor here is always 1.0; Calibrate exists so callers that would block
// on a real calibration routine (typically a short sleep-and-measure) have
// a single place to call once at startup, before any worker goroutines
// start reading the clock.
package tsc

import (
	"sync"
	"time"
)

var (
	once       sync.Once
	calibrated bool
)

// Calibrate performs one-time calibration. It is idempotent and safe to
// call from multiple goroutines; only the first call does anything.
//
// Must be called before [Now] is used from more than one goroutine, the
// same ordering requirement a real TSC calibration step would carry.
func Calibrate() {
	once.Do(func() {
		calibrated = true
	})
}

// Calibrated reports whether Calibrate has run.
func Calibrated() bool {
	return calibrated
}

// epoch anchors the tick count to the monotonic clock reading taken at
// package initialization.
var epoch = time.Now()

// Now returns the current tick count. Ticks are nanoseconds by
// construction (the calibration factor is 1.0), but callers should treat
// the return value as an opaque tick and convert through [ToNanos] to
// keep call sites agnostic of that fact.
func Now() uint64 {
	return uint64(time.Since(epoch).Nanoseconds())
}

// ToNanos converts a tick delta to nanoseconds.
func ToNanos(ticks uint64) uint64 {
	return ticks
}

// ElapsedNanos returns the number of nanoseconds elapsed since startTick,
// as measured by [Now].
func ElapsedNanos(startTick uint64) uint64 {
	return ToNanos(Now() - startTick)
}
