// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package velox_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/velox"
)

func TestNewEventValidation(t *testing.T) {
	if _, err := velox.NewEvent(1, 100, 10, velox.Side(2), 0); !errors.Is(err, velox.ErrInvalidSide) {
		t.Fatalf("invalid side: got %v, want ErrInvalidSide", err)
	}
	if _, err := velox.NewEvent(1, 0, 10, velox.SideBid, 0); !errors.Is(err, velox.ErrNegativePrice) {
		t.Fatalf("zero price: got %v, want ErrNegativePrice", err)
	}
	if _, err := velox.NewEvent(1, 100, 0, velox.SideBid, 0); !errors.Is(err, velox.ErrZeroSize) {
		t.Fatalf("zero size: got %v, want ErrZeroSize", err)
	}
	ev, err := velox.NewEvent(1, 1_000_000, 10, velox.SideAsk, 42)
	if err != nil {
		t.Fatalf("valid event: unexpected error %v", err)
	}
	if ev.ID != 1 || ev.Price != 1_000_000 || ev.Size != 10 || ev.Side != velox.SideAsk || ev.IngressTSNs != 42 {
		t.Fatalf("valid event: got %+v", ev)
	}
}

func TestEventRoundTrip(t *testing.T) {
	ev := velox.NewEventUnchecked(123, 1_000_000, 7, velox.SideAsk, 987654321)
	got := velox.EventFromBytes(ev.ToBytes())
	if got != ev {
		t.Fatalf("round trip: got %+v, want %+v", got, ev)
	}
}

func TestEventSizeIs32Bytes(t *testing.T) {
	ev := velox.NewEventUnchecked(1, 1, 1, velox.SideBid, 1)
	b := ev.ToBytes()
	if len(b) != velox.EventSize {
		t.Fatalf("ToBytes length: got %d, want %d", len(b), velox.EventSize)
	}
}

func TestNewBundleCountTooLarge(t *testing.T) {
	_, err := velox.NewBundle([velox.BundleMax]velox.Event{}, velox.BundleMax+1, 0)
	var tooLarge *velox.ErrCountTooLarge
	if !errors.As(err, &tooLarge) {
		t.Fatalf("got %v, want *ErrCountTooLarge", err)
	}
	if tooLarge.Max != velox.BundleMax {
		t.Fatalf("Max: got %d, want %d", tooLarge.Max, velox.BundleMax)
	}
}

func TestBundleActiveSlice(t *testing.T) {
	var events [velox.BundleMax]velox.Event
	events[0] = velox.NewEventUnchecked(1, 1, 1, velox.SideBid, 1)
	events[1] = velox.NewEventUnchecked(2, 1, 1, velox.SideBid, 1)
	b, err := velox.NewBundle(events, 2, 0)
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	if b.IsEmpty() || b.IsFull() {
		t.Fatalf("IsEmpty/IsFull: got %v/%v, want false/false", b.IsEmpty(), b.IsFull())
	}
	active := b.Active()
	if len(active) != 2 || active[0].ID != 1 || active[1].ID != 2 {
		t.Fatalf("Active: got %+v", active)
	}
}
