// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package corepin

import "runtime"

// Pin is a no-op outside Linux: it still locks the OS thread (so callers
// get consistent behavior across platforms) but cannot request a specific
// core, since there is no portable affinity syscall. Never fatal.
func Pin(core int) error {
	runtime.LockOSThread()
	return nil
}
