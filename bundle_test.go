// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package velox_test

import (
	"testing"
	"time"

	"code.hybscloud.com/velox"
)

func TestBundleBuilderFlushesOnSize(t *testing.T) {
	bb := velox.NewBundleBuilder(time.Hour) // window far longer than the test

	var ok bool
	var err error
	for i := 0; i < velox.BundleMax; i++ {
		ev := velox.NewEventUnchecked(uint64(i), 1_000_000, 1, velox.SideBid, 1)
		ok, err = bb.Add(ev)
		if err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}
	if !ok {
		t.Fatal("expected a pending bundle after the BundleMax-th Add")
	}

	bundle, reason, has := bb.Pending()
	if !has {
		t.Fatal("Pending should report the size-triggered bundle")
	}
	if reason != velox.FlushReasonSize {
		t.Fatalf("reason: got %v, want FlushReasonSize", reason)
	}
	if bundle.Count != velox.BundleMax {
		t.Fatalf("Count: got %d, want %d", bundle.Count, velox.BundleMax)
	}
}

func TestBundleBuilderPollTimeoutWhenDue(t *testing.T) {
	bb := velox.NewBundleBuilder(time.Millisecond)
	ev := velox.NewEventUnchecked(1, 1_000_000, 1, velox.SideBid, 1)
	if ok, err := bb.Add(ev); ok || err != nil {
		t.Fatalf("single Add should not fill the bundle: ok=%v err=%v", ok, err)
	}

	bb.PollTimeout()
	if _, _, has := bb.Pending(); has {
		t.Fatal("PollTimeout should not fire before the window elapses")
	}

	time.Sleep(2 * time.Millisecond)

	bb.PollTimeout()
	bundle, reason, has := bb.Pending()
	if !has {
		t.Fatal("PollTimeout should fire once the window elapses")
	}
	if reason != velox.FlushReasonTimeout {
		t.Fatalf("reason: got %v, want FlushReasonTimeout", reason)
	}
	if bundle.Count != 1 {
		t.Fatalf("Count: got %d, want 1", bundle.Count)
	}
}

func TestBundleBuilderForceFlush(t *testing.T) {
	bb := velox.NewBundleBuilder(time.Hour)
	bb.ForceFlush()
	if _, _, has := bb.Pending(); has {
		t.Fatal("ForceFlush on empty builder should not make a bundle pending")
	}

	ev := velox.NewEventUnchecked(1, 1_000_000, 1, velox.SideBid, 1)
	if _, err := bb.Add(ev); err != nil {
		t.Fatalf("Add: %v", err)
	}

	bb.ForceFlush()
	bundle, reason, has := bb.Pending()
	if !has {
		t.Fatal("ForceFlush on a partial bundle should make it pending")
	}
	if reason != velox.FlushReasonForced {
		t.Fatalf("reason: got %v, want FlushReasonForced", reason)
	}
	if bundle.Count != 1 {
		t.Fatalf("Count: got %d, want 1", bundle.Count)
	}
}

func TestBundleBuilderResetsAfterAck(t *testing.T) {
	bb := velox.NewBundleBuilder(time.Hour)
	ev := velox.NewEventUnchecked(1, 1_000_000, 1, velox.SideBid, 1)
	bb.Add(ev)
	bb.ForceFlush()

	if _, _, has := bb.Pending(); !has {
		t.Fatal("expected a pending bundle after ForceFlush")
	}
	bb.Ack()

	if _, _, has := bb.Pending(); has {
		t.Fatal("builder should have no pending bundle after Ack")
	}

	bb.ForceFlush() // empty again: no-op
	if _, _, has := bb.Pending(); has {
		t.Fatal("ForceFlush on an empty builder after Ack should not make a bundle pending")
	}
}

func TestBundleBuilderRefusesNewEventsWhilePending(t *testing.T) {
	bb := velox.NewBundleBuilder(time.Hour)
	ev := velox.NewEventUnchecked(1, 1_000_000, 1, velox.SideBid, 1)
	bb.Add(ev)
	bb.ForceFlush()

	pending, _, has := bb.Pending()
	if !has {
		t.Fatal("expected a pending bundle")
	}

	next := velox.NewEventUnchecked(2, 1_000_100, 1, velox.SideAsk, 2)
	if _, err := bb.Add(next); err != velox.ErrBundleFull {
		t.Fatalf("Add while pending: got err=%v, want ErrBundleFull", err)
	}

	// The pending bundle must be unchanged by the rejected Add.
	stillPending, _, _ := bb.Pending()
	if stillPending != pending {
		t.Fatal("pending bundle must not be overwritten while awaiting Ack")
	}

	bb.Ack()
	if _, err := bb.Add(next); err != nil {
		t.Fatalf("Add after Ack: %v", err)
	}
}
