// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package velox

import (
	"errors"
	"io"
	"math"
	"math/rand"

	"code.hybscloud.com/velox/internal/tsc"
)

// Source generates the next event to ingest. Next is called repeatedly
// from the ingress worker's hot loop and must not block for unbounded
// durations. nowNS is the caller's current tick, in the same domain as
// [internal/tsc.Now], so a source can schedule arrivals without reading
// the clock itself.
//
// Next returns [ErrWouldBlock] if no event is due yet at nowNS (the
// common case, retried on the next poll), or [io.EOF] if the source is
// permanently exhausted (a replay source reaching end of file;
// synthetic sources never return it). Any other error is fatal to
// ingestion.
type Source interface {
	Next(nowNS uint64) (Event, error)
}

// IsSourceExhausted reports whether err is a permanent end-of-source
// signal from a [Source], as opposed to a transient "not due yet".
func IsSourceExhausted(err error) bool {
	return errors.Is(err, io.EOF)
}

// PoissonSource synthesizes a Poisson-arrival event stream at a target
// rate, with prices following a bounded random walk and sizes drawn
// uniformly from a fixed range. It is the default [Source] a [Pipeline]
// uses when [Config].Source is nil.
type PoissonSource struct {
	rng *rand.Rand

	ratePerSec   float64
	nextTick     uint64
	lastPrice    int64
	priceFloor   int64
	priceCeil    int64
	minSize      uint32
	maxSize      uint32
	nextID       uint64
}

// PoissonSourceConfig controls synthetic stream generation.
type PoissonSourceConfig struct {
	RatePerSec   float64
	StartPrice   int64 // fixed-point, ×10000
	PriceFloor   int64
	PriceCeil    int64
	MinSize      uint32
	MaxSize      uint32
	Seed         int64
}

// DefaultPoissonSourceConfig matches the specification's default
// workload: 100,000 events/sec around a starting price of 100.0000.
func DefaultPoissonSourceConfig() PoissonSourceConfig {
	return PoissonSourceConfig{
		RatePerSec: 100_000,
		StartPrice: 1_000_000,
		PriceFloor: 1,
		PriceCeil:  math.MaxInt64 / 2,
		MinSize:    1,
		MaxSize:    1_000,
		Seed:       1,
	}
}

// NewPoissonSource constructs a synthetic ingress source from cfg.
func NewPoissonSource(cfg PoissonSourceConfig) *PoissonSource {
	return &PoissonSource{
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		ratePerSec: cfg.RatePerSec,
		nextTick:   tsc.Now(),
		lastPrice:  cfg.StartPrice,
		priceFloor: cfg.PriceFloor,
		priceCeil:  cfg.PriceCeil,
		minSize:    cfg.MinSize,
		maxSize:    cfg.MaxSize,
	}
}

// Next never returns [io.EOF]: the synthetic stream has no end. It
// returns [ErrWouldBlock] whenever nowNS has not yet reached the
// Poisson-scheduled next arrival instant.
func (s *PoissonSource) Next(nowNS uint64) (Event, error) {
	if nowNS < s.nextTick {
		return Event{}, ErrWouldBlock
	}

	interArrivalSec := -math.Log(1-s.rng.Float64()) / s.ratePerSec
	s.nextTick = nowNS + uint64(interArrivalSec*1e9)

	s.lastPrice = s.nextPrice()
	size := s.minSize + uint32(s.rng.Intn(int(s.maxSize-s.minSize+1)))
	side := SideBid
	if s.rng.Intn(2) == 1 {
		side = SideAsk
	}

	s.nextID++
	return NewEventUnchecked(s.nextID, s.lastPrice, size, side, nowNS), nil
}

// nextPrice performs a bounded random walk: a step of -50 to +49 ticks
// (zero included), reflected
// at the configured floor and ceiling rather than clamped, so the walk
// does not pile up against a boundary.
func (s *PoissonSource) nextPrice() int64 {
	step := int64(s.rng.Intn(100) - 50)
	p := s.lastPrice + step
	if p < s.priceFloor {
		p = s.priceFloor + (s.priceFloor - p)
	}
	if p > s.priceCeil {
		p = s.priceCeil - (p - s.priceCeil)
	}
	return p
}
