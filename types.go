// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package velox

import (
	"encoding/binary"
	"fmt"
)

// BundleMax is the fixed capacity of a [Bundle].
const BundleMax = 16

// Side identifies which book side an [Event] belongs to.
type Side uint8

const (
	SideBid Side = 0
	SideAsk Side = 1
)

func (s Side) String() string {
	if s == SideBid {
		return "BID"
	}
	return "ASK"
}

// EventSize is the stable wire size of an [Event] in bytes.
const EventSize = 32

// Event is a fixed-layout transaction record: monotonic id, fixed-point
// price (scaled by 10000), size, side, and ingress timestamp in
// nanoseconds. Events are owned by exactly one queue slot at a time.
type Event struct {
	ID          uint64
	Price       int64 // fixed-point, divide by 10000 for decimal
	Size        uint32
	Side        Side
	IngressTSNs uint64
}

// NewEvent constructs a validated Event.
//
// Returns [ErrInvalidSide] if side is not 0 or 1, [ErrNegativePrice] if
// price <= 0, or [ErrZeroSize] if size == 0.
func NewEvent(id uint64, price int64, size uint32, side Side, ingressTSNs uint64) (Event, error) {
	if side > SideAsk {
		return Event{}, ErrInvalidSide
	}
	if price <= 0 {
		return Event{}, ErrNegativePrice
	}
	if size == 0 {
		return Event{}, ErrZeroSize
	}
	return Event{ID: id, Price: price, Size: size, Side: side, IngressTSNs: ingressTSNs}, nil
}

// NewEventUnchecked constructs an Event without validation, for trusted
// internal callers (ingress generators, tests) that already hold valid
// fields.
func NewEventUnchecked(id uint64, price int64, size uint32, side Side, ingressTSNs uint64) Event {
	return Event{ID: id, Price: price, Size: size, Side: side, IngressTSNs: ingressTSNs}
}

// PriceF64 returns the price as a decimal float for display.
func (e Event) PriceF64() float64 {
	return float64(e.Price) / 10000.0
}

// IsBid reports whether the event is on the bid side.
func (e Event) IsBid() bool { return e.Side == SideBid }

// IsAsk reports whether the event is on the ask side.
func (e Event) IsAsk() bool { return e.Side == SideAsk }

func (e Event) String() string {
	return fmt.Sprintf("Event{id=%d price=%.4f size=%d side=%s ts=%d}",
		e.ID, e.PriceF64(), e.Size, e.Side, e.IngressTSNs)
}

// ToBytes serializes the event to its stable 32-byte wire layout:
// id(8) price(8) size(4) side(1) pad(3) ingress_ts_ns(8), little-endian.
//
// Go does not guarantee in-memory struct layout the way a #[repr(C)]
// type does, so the wire form is produced explicitly field-by-field
// rather than read off the struct's memory — the contract is
// FromBytes(ToBytes(x)) == x, not byte-identity with the Go struct.
func (e Event) ToBytes() [EventSize]byte {
	var b [EventSize]byte
	binary.LittleEndian.PutUint64(b[0:8], e.ID)
	binary.LittleEndian.PutUint64(b[8:16], uint64(e.Price))
	binary.LittleEndian.PutUint32(b[16:20], e.Size)
	b[20] = byte(e.Side)
	// b[21:24] reserved padding, always zero.
	binary.LittleEndian.PutUint64(b[24:32], e.IngressTSNs)
	return b
}

// EventFromBytes deserializes an event from its 32-byte wire layout.
func EventFromBytes(b [EventSize]byte) Event {
	return Event{
		ID:          binary.LittleEndian.Uint64(b[0:8]),
		Price:       int64(binary.LittleEndian.Uint64(b[8:16])),
		Size:        binary.LittleEndian.Uint32(b[16:20]),
		Side:        Side(b[20]),
		IngressTSNs: binary.LittleEndian.Uint64(b[24:32]),
	}
}

// Bundle is a batch of up to [BundleMax] events emitted together. Only
// the first Count slots are meaningful; slots beyond Count are never
// read by consumers.
type Bundle struct {
	Events   [BundleMax]Event
	Count    uint32
	OpenTSNs uint64 // bundle-open timestamp in nanoseconds
}

// NewBundle constructs a validated Bundle.
//
// Returns an [*ErrCountTooLarge] if count exceeds BundleMax.
func NewBundle(events [BundleMax]Event, count uint32, openTSNs uint64) (Bundle, error) {
	if int(count) > BundleMax {
		return Bundle{}, &ErrCountTooLarge{Count: count, Max: BundleMax}
	}
	return Bundle{Events: events, Count: count, OpenTSNs: openTSNs}, nil
}

// Active returns the meaningful slice of events in the bundle (the first
// Count entries).
func (b Bundle) Active() []Event {
	return b.Events[:b.Count]
}

// IsEmpty reports whether the bundle holds no events.
func (b Bundle) IsEmpty() bool { return b.Count == 0 }

// IsFull reports whether the bundle is at BundleMax capacity.
func (b Bundle) IsFull() bool { return int(b.Count) >= BundleMax }
