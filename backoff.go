// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package velox

import (
	"runtime"
	"time"

	"code.hybscloud.com/spin"
)

const (
	spinLimit  uint32 = 6  // spin through step 6 (2^6 = 64 pause-iterations)
	yieldLimit uint32 = 10 // yield through step 10, park from step 11
)

// Backoff implements the idle-consumer escalation strategy: spin with
// doubling pause counts, then yield to the OS scheduler, then park for a
// short sleep. Short bursts of contention are amortized by cheap pauses;
// prolonged idleness descends to an OS park to avoid burning a core.
//
// Zero value is ready to use.
type Backoff struct {
	step uint32
}

// IsSpinning reports whether the next Snooze will spin rather than yield
// or park.
func (b *Backoff) IsSpinning() bool {
	return b.step <= spinLimit
}

// Snooze performs one escalation step. Call it once per empty poll (or
// once per bundle-builder idle check); call [Backoff.Reset] after any
// successful pop or CAS.
func (b *Backoff) Snooze() {
	switch {
	case b.step <= spinLimit:
		sw := spin.Wait{}
		for i := uint32(0); i < (uint32(1) << b.step); i++ {
			sw.Once()
		}
	case b.step <= yieldLimit:
		runtime.Gosched()
	default:
		time.Sleep(100 * time.Microsecond)
	}

	if b.step < yieldLimit+1 {
		b.step++
	}
}

// Reset returns the backoff to its initial, fully-spinning state.
func (b *Backoff) Reset() {
	b.step = 0
}
