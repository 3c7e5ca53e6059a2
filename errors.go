// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package velox

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates a queue operation cannot proceed immediately.
//
// For Push: the queue is full (backpressure). For Pop: the queue is empty.
// ErrWouldBlock is a control flow signal, not a failure; callers count it
// and retry with backoff rather than propagating it as an error.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency, the
// same choice the lock-free queue library this package is built on makes.
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates the operation would block.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// ErrBundleFull is returned by [BundleBuilder.Add] when a previously
// completed bundle is still pending acknowledgement. The caller must
// drain [BundleBuilder.Pending] and push it downstream before new events
// can be accumulated.
var ErrBundleFull = errors.New("velox: bundle queue full")

// Event construction errors.
var (
	ErrInvalidSide   = errors.New("velox: side must be 0 (bid) or 1 (ask)")
	ErrNegativePrice = errors.New("velox: price must be positive")
	ErrZeroSize      = errors.New("velox: size must be non-zero")
)

// ErrCountTooLarge is returned by [NewBundle] when count exceeds BundleMax.
type ErrCountTooLarge struct {
	Count uint32
	Max   int
}

func (e *ErrCountTooLarge) Error() string {
	return fmt.Sprintf("velox: bundle count %d exceeds maximum %d", e.Count, e.Max)
}

// Order book errors.
var (
	// ErrQuantityOverflow is returned when a delta would overflow the
	// signed 64-bit net quantity at a price level. Fatal for that update;
	// the pipeline accounts it and moves on.
	ErrQuantityOverflow = errors.New("velox: order book quantity overflow")

	// ErrTimeout is returned when a CAS loop exceeds maxRetries. Transient;
	// the pipeline accounts it and drops the update.
	ErrTimeout = errors.New("velox: order book update timed out after max retries")
)
