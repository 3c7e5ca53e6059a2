// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package velox_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/velox"
)

// replaySource drains a fixed slice of events, then reports exhaustion.
type replaySource struct {
	events []velox.Event
	i      int
}

func (r *replaySource) Next(nowNS uint64) (velox.Event, error) {
	if r.i >= len(r.events) {
		return velox.Event{}, io.EOF
	}
	ev := r.events[r.i]
	r.i++
	return ev, nil
}

func TestEndToEndSingleTransaction(t *testing.T) {
	cfg := velox.DefaultConfig()
	cfg.Source = &replaySource{events: []velox.Event{
		velox.NewEventUnchecked(1, 1_000_000, 100, velox.SideBid, 0),
	}}
	// A lone event only leaves the builder on timeout, so the window must
	// elapse well within the wait below.
	cfg.BundleWindow = 100 * time.Microsecond
	p := velox.NewPipeline(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	p.Run(ctx)

	waitForCondition(t, time.Second, func() bool {
		return p.Stats().OutputReceived >= 1
	})

	cancel()
	p.Shutdown()
	p.Wait()

	if got := p.Book().BidQuantity(1_000_000); got != 100 {
		t.Fatalf("BidQuantity: got %d, want 100", got)
	}
	if got := p.Book().BestBid(); got != 1_000_000 {
		t.Fatalf("BestBid: got %d, want 1000000", got)
	}
	if got := p.Stats().BundleFlushedTotal(); got != 1 {
		t.Fatalf("bundles flushed: got %d, want 1", got)
	}
}

func TestEndToEndSizeTriggeredFlush(t *testing.T) {
	events := make([]velox.Event, velox.BundleMax)
	for i := range events {
		events[i] = velox.NewEventUnchecked(uint64(i+1), 1_000_000, uint32(10*(i+1)), velox.SideBid, 0)
	}
	cfg := velox.DefaultConfig()
	cfg.Source = &replaySource{events: events}
	cfg.BundleWindow = time.Hour
	p := velox.NewPipeline(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	p.Run(ctx)

	waitForCondition(t, time.Second, func() bool {
		return p.Stats().OutputReceived >= 1
	})
	cancel()
	p.Shutdown()
	p.Wait()

	stats := p.Stats()
	if stats.BundleFlushedSize != 1 {
		t.Fatalf("BundleFlushedSize: got %d, want 1", stats.BundleFlushedSize)
	}
	if stats.BundleFlushedTotal() != 1 {
		t.Fatalf("total flushes: got %d, want 1", stats.BundleFlushedTotal())
	}
}

func TestContentionOnOneLevel(t *testing.T) {
	book := velox.NewOrderBook()
	var wg sync.WaitGroup
	var timeouts int64
	var mu sync.Mutex

	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if err := book.UpdateBid(1_000_000, 1, uint64(i)); err != nil {
					mu.Lock()
					timeouts++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if got := book.BidQuantity(1_000_000); got != 4000 {
		t.Fatalf("aggregate quantity: got %d, want 4000", got)
	}
	if timeouts > 4000 {
		t.Fatalf("timeouts: got %d, should be <= 4000", timeouts)
	}
}

func TestFIFOUnderLoad(t *testing.T) {
	q := velox.NewQueue[int](256)
	done := make(chan struct{})

	go func() {
		defer close(done)
		prev := -1
		received := 0
		for received < 10_000 {
			v, err := q.Pop()
			if err != nil {
				continue
			}
			if v != prev+1 {
				t.Errorf("FIFO violation: got %d, want %d", v, prev+1)
			}
			prev = v
			received++
		}
	}()

	for i := 0; i < 10_000; i++ {
		for q.Push(i) != nil {
		}
	}
	<-done
}

func TestDropAccounting(t *testing.T) {
	q := velox.NewQueue[velox.Event](4096)
	if q.Cap() != 4096 {
		t.Fatalf("Cap: got %d, want 4096", q.Cap())
	}

	var pushed, dropped int
	for i := 0; i < 5000; i++ {
		ev := velox.NewEventUnchecked(uint64(i), 1_000_000, 1, velox.SideBid, 0)
		if err := q.Push(ev); err != nil {
			dropped++
		} else {
			pushed++
		}
	}

	if pushed != 4096 {
		t.Fatalf("pushed: got %d, want 4096", pushed)
	}
	if dropped != 904 {
		t.Fatalf("dropped: got %d, want 904", dropped)
	}
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
