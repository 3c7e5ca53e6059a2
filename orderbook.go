// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package velox

import (
	"math"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

const (
	bookLevels  = 1024
	tickShift   = 4    // each level aggregates 2^4 = 16 ticks
	levelMask   = bookLevels - 1
	maxRetries  = 100 // bounded CAS retry budget per update
)

// priceLevel is a single cache-line-aligned price bucket: a net quantity
// (may go negative) and the timestamp of its last update.
type priceLevel struct {
	_         pad
	quantity  atomix.Int64
	timestamp atomix.Uint64
	_         pad
}

// OrderBook is a lock-free, price-aggregated depth table. Writes are
// lock-free via bounded compare-and-swap loops; reads are wait-free.
//
// Prices are bucketed into 1024 levels per side by level_index(price) =
// (price >> 4) & 1023 — 16 consecutive ticks share a bucket. There is no
// price-time priority, order identity, or fill semantics: this is an
// aggregated depth view, not a matching engine.
type OrderBook struct {
	bids []priceLevel
	asks []priceLevel

	_       pad
	bestBid atomix.Int64
	_       pad
	bestAsk atomix.Int64
	_       pad
}

// NewOrderBook constructs an empty book. bestAsk starts at MaxInt64 (no
// ask observed) and bestBid at 0 (no bid observed) — the same degenerate
// values a depleted level is cleared to.
func NewOrderBook() *OrderBook {
	b := &OrderBook{
		bids: make([]priceLevel, bookLevels),
		asks: make([]priceLevel, bookLevels),
	}
	b.bestBid.StoreRelaxed(0)
	b.bestAsk.StoreRelaxed(math.MaxInt64)
	return b
}

func levelIndex(price int64) int {
	return int((price >> tickShift) & levelMask)
}

// UpdateBid atomically adds delta to the bid level that price maps to,
// then refreshes best-bid. delta may be negative.
//
// Returns [ErrQuantityOverflow] if the add would overflow a signed
// 64-bit quantity (fatal for this update), or [ErrTimeout] if the CAS
// loop exceeds the bounded retry budget (transient; the caller accounts
// and drops it).
func (b *OrderBook) UpdateBid(price, delta int64, tsNs uint64) error {
	return b.update(b.bids, price, delta, tsNs, b.updateBestBid)
}

// UpdateAsk atomically adds delta to the ask level that price maps to,
// then refreshes best-ask.
func (b *OrderBook) UpdateAsk(price, delta int64, tsNs uint64) error {
	return b.update(b.asks, price, delta, tsNs, b.updateBestAsk)
}

func (b *OrderBook) update(levels []priceLevel, price, delta int64, tsNs uint64, refreshBest func(price, newQty int64)) error {
	level := &levels[levelIndex(price)]
	sw := spin.Wait{}
	pause := uint32(1)

	for attempt := 0; attempt < maxRetries; attempt++ {
		current := level.quantity.LoadAcquire()

		newQty, overflowed := addOverflows(current, delta)
		if overflowed {
			return ErrQuantityOverflow
		}

		if level.quantity.CompareAndSwapAcqRel(current, newQty) {
			level.timestamp.StoreRelaxed(tsNs)
			refreshBest(price, newQty)
			return nil
		}

		for i := uint32(0); i < pause; i++ {
			sw.Once()
		}
		if pause < 64 {
			pause *= 2
			if pause > 64 {
				pause = 64
			}
		}
	}

	return ErrTimeout
}

// addOverflows reports whether a+b overflows a signed 64-bit integer,
// returning the sum when it does not.
func addOverflows(a, b int64) (sum int64, overflowed bool) {
	sum = a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, true
	}
	return sum, false
}

// updateBestBid CAS-loops bestBid upward while price is a new high with
// positive quantity, or clears it to the degenerate 0 if the depleted
// level was the current best. Clearing rather than rescanning all 1024
// levels is an intentional latency/accuracy trade: a subsequent positive
// update restores the true best, but reads in between may be stale.
func (b *OrderBook) updateBestBid(price, newQty int64) {
	if newQty > 0 {
		for {
			current := b.bestBid.LoadRelaxed()
			if price <= current {
				return
			}
			if b.bestBid.CompareAndSwapRelaxed(current, price) {
				return
			}
		}
	}
	if b.bestBid.LoadRelaxed() == price {
		b.bestBid.StoreRelaxed(0)
	}
}

// updateBestAsk is the symmetric downward counterpart of updateBestBid.
func (b *OrderBook) updateBestAsk(price, newQty int64) {
	if newQty > 0 {
		for {
			current := b.bestAsk.LoadRelaxed()
			if price >= current {
				return
			}
			if b.bestAsk.CompareAndSwapRelaxed(current, price) {
				return
			}
		}
	}
	if b.bestAsk.LoadRelaxed() == price {
		b.bestAsk.StoreRelaxed(math.MaxInt64)
	}
}

// BestBid returns the current best bid price (may be momentarily stale
// or degenerate — see [OrderBook] doc).
func (b *OrderBook) BestBid() int64 { return b.bestBid.LoadRelaxed() }

// BestAsk returns the current best ask price.
func (b *OrderBook) BestAsk() int64 { return b.bestAsk.LoadRelaxed() }

// BidQuantity returns the net quantity at the bid level price maps to.
func (b *OrderBook) BidQuantity(price int64) int64 {
	return b.bids[levelIndex(price)].quantity.LoadAcquire()
}

// AskQuantity returns the net quantity at the ask level price maps to.
func (b *OrderBook) AskQuantity(price int64) int64 {
	return b.asks[levelIndex(price)].quantity.LoadAcquire()
}

// Spread returns BestAsk - BestBid, or 0 if either side has never been
// populated (bid == 0 or ask == MaxInt64).
func (b *OrderBook) Spread() int64 {
	bid, ask := b.BestBid(), b.BestAsk()
	if ask == math.MaxInt64 || bid == 0 {
		return 0
	}
	return ask - bid
}

// BookSnapshot is a non-atomic, point-in-time copy of the book, used by
// tests; the pipeline, including its drain path, does not take one. It is
// never read on the hot path.
type BookSnapshot struct {
	BestBid, BestAsk int64
	BidQuantities    [bookLevels]int64
	AskQuantities    [bookLevels]int64
}

// Snapshot copies the book's current state. Concurrent updates may be
// interleaved with the copy; the result is a best-effort consistent view.
func (b *OrderBook) Snapshot() BookSnapshot {
	var s BookSnapshot
	s.BestBid = b.BestBid()
	s.BestAsk = b.BestAsk()
	for i := range b.bids {
		s.BidQuantities[i] = b.bids[i].quantity.LoadAcquire()
		s.AskQuantities[i] = b.asks[i].quantity.LoadAcquire()
	}
	return s
}
