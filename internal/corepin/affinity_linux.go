// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

// Package corepin pins the calling goroutine's underlying OS thread to a
// single CPU core. Pinning is best-effort: failure is never fatal, only
// reported, mirroring the queue-runner affinity pattern of pinning one
// worker thread per hardware queue and logging (not failing) when the
// scheduler call errors.
package corepin

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its current OS thread and requests
// that thread run only on the given CPU core. The caller must run on a
// long-lived goroutine that never returns to the scheduler's pool (a
// worker loop), since LockOSThread only has effect for the lifetime of
// that goroutine.
func Pin(core int) error {
	runtime.LockOSThread()

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(core)
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		return fmt.Errorf("corepin: set affinity to core %d: %w", core, err)
	}
	return nil
}
