// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package velox

import (
	"time"

	"code.hybscloud.com/velox/internal/tsc"
)

// FlushReason identifies why a bundle was emitted.
type FlushReason uint8

const (
	// FlushReasonSize means the bundle filled to BundleMax.
	FlushReasonSize FlushReason = iota
	// FlushReasonTimeout means the bundle's open duration exceeded its
	// window before filling.
	FlushReasonTimeout
	// FlushReasonForced means the caller explicitly drained a partial,
	// non-empty bundle (shutdown path).
	FlushReasonForced
)

func (r FlushReason) String() string {
	switch r {
	case FlushReasonSize:
		return "size"
	case FlushReasonTimeout:
		return "timeout"
	case FlushReasonForced:
		return "forced"
	default:
		return "unknown"
	}
}

// BundleBuilder accumulates events into fixed-size bundles, flushing
// whichever comes first: BundleMax events, or windowNs elapsed since the
// bundle's first event. It is single-owner (one stage alone calls
// Add/PollTimeout/ForceFlush/Ack) and carries no synchronization of its
// own.
//
// A completed bundle does not vanish from the builder the instant it
// fills or times out: it becomes the builder's pending bundle, returned
// again by [BundleBuilder.Pending] until the caller confirms the push
// downstream succeeded by calling [BundleBuilder.Ack]. This is what lets
// a full output queue be retried without losing or overwriting data —
// the accumulator refuses new events while a bundle is pending.
type BundleBuilder struct {
	window   time.Duration
	windowNs uint64

	events   [BundleMax]Event
	count    uint32
	openTick uint64
	open     bool

	pending       Bundle
	pendingReason FlushReason
	hasPending    bool
}

// NewBundleBuilder constructs a builder that flushes on size or after
// window elapses since the first event added to an empty bundle.
func NewBundleBuilder(window time.Duration) *BundleBuilder {
	return &BundleBuilder{
		window:   window,
		windowNs: uint64(window.Nanoseconds()),
	}
}

// Add appends ev to the in-progress bundle. If the bundle was empty, this
// opens its timeout window starting now.
//
// Returns [ErrBundleFull] without consuming ev if a previous bundle is
// still pending (the caller must drain [BundleBuilder.Pending] and Ack it
// first) — this is what preserves the pending buffer instead of
// overwriting it. Otherwise returns ok=true if ev filled the bundle to
// BundleMax, making a new bundle pending.
func (bb *BundleBuilder) Add(ev Event) (ok bool, err error) {
	if bb.hasPending {
		return false, ErrBundleFull
	}

	if !bb.open {
		bb.openTick = tsc.Now()
		bb.open = true
	}

	bb.events[bb.count] = ev
	bb.count++

	if bb.count == BundleMax {
		bb.makePending(FlushReasonSize)
		return true, nil
	}
	return false, nil
}

// PollTimeout checks whether the open bundle's window has elapsed and,
// if so, makes it pending. Called by the owning stage between Adds when
// its input queue is momentarily empty, so a slow trickle of events still
// reaches the bundle stage within window. A no-op while a bundle is
// already pending.
func (bb *BundleBuilder) PollTimeout() {
	if bb.hasPending || !bb.open || bb.count == 0 {
		return
	}
	if tsc.ElapsedNanos(bb.openTick) < bb.windowNs {
		return
	}
	bb.makePending(FlushReasonTimeout)
}

// ForceFlush makes any partial, non-empty bundle pending unconditionally,
// for use on the shutdown path so in-flight events are not silently
// dropped. A no-op while a bundle is already pending or the accumulator
// is empty.
func (bb *BundleBuilder) ForceFlush() {
	if bb.hasPending || bb.count == 0 {
		return
	}
	bb.makePending(FlushReasonForced)
}

// Pending returns the bundle awaiting push downstream, if any.
func (bb *BundleBuilder) Pending() (bundle Bundle, reason FlushReason, ok bool) {
	if !bb.hasPending {
		return Bundle{}, 0, false
	}
	return bb.pending, bb.pendingReason, true
}

// Ack confirms the pending bundle was pushed downstream successfully,
// clearing it and reopening the accumulator for new events. Calling Ack
// with no pending bundle is a no-op.
func (bb *BundleBuilder) Ack() {
	bb.hasPending = false
	bb.pending = Bundle{}
}

func (bb *BundleBuilder) makePending(reason FlushReason) {
	bb.pending = Bundle{
		Events:   bb.events,
		Count:    bb.count,
		OpenTSNs: tsc.ToNanos(bb.openTick),
	}
	bb.pendingReason = reason
	bb.hasPending = true

	bb.events = [BundleMax]Event{}
	bb.count = 0
	bb.open = false
}
