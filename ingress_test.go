// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package velox_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/velox"
	"code.hybscloud.com/velox/internal/tsc"
)

func TestPoissonSourceNotDueYet(t *testing.T) {
	cfg := velox.DefaultPoissonSourceConfig()
	cfg.RatePerSec = 1 // one event/sec on average
	s := velox.NewPoissonSource(cfg)

	// The first arrival is scheduled at the source's construction tick, so
	// t=0 lies before it and is never due.

	if _, err := s.Next(0); !errors.Is(err, velox.ErrWouldBlock) {
		t.Fatalf("Next at t=0: got %v, want ErrWouldBlock", err)
	}
}

func TestPoissonSourceProducesMonotonicIDs(t *testing.T) {
	cfg := velox.DefaultPoissonSourceConfig()
	cfg.RatePerSec = 1_000_000 // dense enough that every poll is due
	s := velox.NewPoissonSource(cfg)

	var lastID uint64
	now := tsc.Now()
	for i := 0; i < 1000; i++ {
		ev, err := s.Next(now)
		if err != nil {
			now += 1000
			continue
		}
		if ev.ID <= lastID && lastID != 0 {
			t.Fatalf("event %d: id %d did not increase past %d", i, ev.ID, lastID)
		}
		lastID = ev.ID
		now = ev.IngressTSNs
	}
	if lastID == 0 {
		t.Fatal("expected at least one event to be produced")
	}
}

func TestPoissonSourcePriceStaysInBounds(t *testing.T) {
	cfg := velox.DefaultPoissonSourceConfig()
	cfg.RatePerSec = 1_000_000
	cfg.PriceFloor = 100
	cfg.PriceCeil = 200
	cfg.StartPrice = 150
	s := velox.NewPoissonSource(cfg)

	now := tsc.Now()
	for i := 0; i < 10_000; i++ {
		ev, err := s.Next(now)
		if err != nil {
			now += 1000
			continue
		}
		if ev.Price < cfg.PriceFloor || ev.Price > cfg.PriceCeil {
			t.Fatalf("event %d: price %d out of bounds [%d,%d]", i, ev.Price, cfg.PriceFloor, cfg.PriceCeil)
		}
		now = ev.IngressTSNs
	}
}
