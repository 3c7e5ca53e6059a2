// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package velox

import (
	"context"
	"log"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/velox/internal/corepin"
	"code.hybscloud.com/velox/internal/telemetry"
	"code.hybscloud.com/velox/internal/tsc"
)

// Config parameterizes one [Pipeline] instance. [NewPipeline] replaces
// zero-value capacities, BundleWindow and CoreIDs with [DefaultConfig]'s
// values and a nil Source with a default [PoissonSource]; an empty
// TelemetryEndpoint is kept as is.
type Config struct {
	// Source generates the synthetic or replayed event workload. If nil,
	// a [PoissonSource] built from [DefaultPoissonSourceConfig] is used.
	Source Source

	Q1Capacity int
	Q2Capacity int
	Q3Capacity int

	// BundleWindow is the bundle builder's timeout: a partial bundle is
	// flushed after this long without filling.
	BundleWindow time.Duration

	// CoreIDs assigns the four workers (ingress, orderbook, bundle,
	// output, in that order) to OS cores. Pinning is best-effort.
	CoreIDs [4]int

	// TelemetryEndpoint is passed to internal/telemetry.NewSink.
	TelemetryEndpoint string
}

// DefaultConfig matches the specification's default topology: Q1/Q2
// capacity 4096, Q3 capacity 1024, cores 0..3, a 1ms bundle window, and
// the local OTLP collector address.
func DefaultConfig() Config {
	return Config{
		Q1Capacity:        4096,
		Q2Capacity:        4096,
		Q3Capacity:        1024,
		BundleWindow:      time.Millisecond,
		CoreIDs:           [4]int{0, 1, 2, 3},
		TelemetryEndpoint: "http://localhost:4317",
	}
}

// Stats holds the per-stage counters the specification requires: atomics
// incremented with acquire-release adds (not relaxed ones) and read with
// relaxed loads, cache-line padded against false sharing, polled by the
// monitor goroutine and read at drain completion.
type Stats struct {
	_                    pad
	IngressGenerated     atomix.Uint64
	_                    pad
	IngressDropped       atomix.Uint64
	_                    pad
	OrderbookProcessed   atomix.Uint64
	_                    pad
	OrderbookTimeout     atomix.Uint64
	_                    pad
	OrderbookDropped     atomix.Uint64
	_                    pad
	BundleDropped        atomix.Uint64
	_                    pad
	BundleFlushedSize    atomix.Uint64
	_                    pad
	BundleFlushedTimeout atomix.Uint64
	_                    pad
	BundleFlushedForced  atomix.Uint64
	_                    pad
	OutputReceived       atomix.Uint64
	_                    pad
}

// StatsSnapshot is a non-atomic, point-in-time copy of Stats for logging.
type StatsSnapshot struct {
	IngressGenerated     uint64
	IngressDropped       uint64
	OrderbookProcessed   uint64
	OrderbookTimeout     uint64
	OrderbookDropped     uint64
	BundleDropped        uint64
	BundleFlushedSize    uint64
	BundleFlushedTimeout uint64
	BundleFlushedForced  uint64
	OutputReceived       uint64
}

// BundleFlushedTotal sums all three flush-reason counters.
func (s StatsSnapshot) BundleFlushedTotal() uint64 {
	return s.BundleFlushedSize + s.BundleFlushedTimeout + s.BundleFlushedForced
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		IngressGenerated:     s.IngressGenerated.LoadRelaxed(),
		IngressDropped:       s.IngressDropped.LoadRelaxed(),
		OrderbookProcessed:   s.OrderbookProcessed.LoadRelaxed(),
		OrderbookTimeout:     s.OrderbookTimeout.LoadRelaxed(),
		OrderbookDropped:     s.OrderbookDropped.LoadRelaxed(),
		BundleDropped:        s.BundleDropped.LoadRelaxed(),
		BundleFlushedSize:    s.BundleFlushedSize.LoadRelaxed(),
		BundleFlushedTimeout: s.BundleFlushedTimeout.LoadRelaxed(),
		BundleFlushedForced:  s.BundleFlushedForced.LoadRelaxed(),
		OutputReceived:       s.OutputReceived.LoadRelaxed(),
	}
}

// Pipeline wires the four stages — ingress, orderbook, bundle, output —
// each a core-pinned goroutine connected by bounded SPSC queues, around
// a shared order book and latency histogram.
type Pipeline struct {
	cfg Config

	q1 *Queue[Event]
	q2 *Queue[Event]
	q3 *Queue[Bundle]

	book *OrderBook
	hist *LatencyHistogram
	sink telemetry.Sink
	stats Stats

	shutdown atomix.Bool
	workers  sync.WaitGroup
	monitor  sync.WaitGroup
}

// NewPipeline constructs a Pipeline from cfg, filling zero-value fields
// as described on [Config].
func NewPipeline(cfg Config) *Pipeline {
	def := DefaultConfig()
	if cfg.Q1Capacity == 0 {
		cfg.Q1Capacity = def.Q1Capacity
	}
	if cfg.Q2Capacity == 0 {
		cfg.Q2Capacity = def.Q2Capacity
	}
	if cfg.Q3Capacity == 0 {
		cfg.Q3Capacity = def.Q3Capacity
	}
	if cfg.BundleWindow == 0 {
		cfg.BundleWindow = def.BundleWindow
	}
	if cfg.CoreIDs == ([4]int{}) {
		cfg.CoreIDs = def.CoreIDs
	}
	if cfg.Source == nil {
		cfg.Source = NewPoissonSource(DefaultPoissonSourceConfig())
	}

	return &Pipeline{
		cfg:  cfg,
		q1:   NewQueue[Event](cfg.Q1Capacity),
		q2:   NewQueue[Event](cfg.Q2Capacity),
		q3:   NewQueue[Bundle](cfg.Q3Capacity),
		book: NewOrderBook(),
		hist: NewLatencyHistogram(),
		sink: telemetry.NewSink(cfg.TelemetryEndpoint),
	}
}

// Histogram returns the pipeline's end-to-end latency recorder.
func (p *Pipeline) Histogram() *LatencyHistogram { return p.hist }

// Stats returns a point-in-time snapshot of the pipeline's counters.
func (p *Pipeline) Stats() StatsSnapshot { return p.stats.snapshot() }

// Book returns the pipeline's live order book.
func (p *Pipeline) Book() *OrderBook { return p.book }

// Run spawns the four worker goroutines and a monitor goroutine, then
// returns immediately; call [Pipeline.Shutdown] followed by
// [Pipeline.Wait] to stop it. Cancelling ctx calls Shutdown only;
// Wait must still be called to join the workers and drain.
func (p *Pipeline) Run(ctx context.Context) {
	p.workers.Add(4)
	go p.runIngress(p.cfg.CoreIDs[0])
	go p.runOrderbook(p.cfg.CoreIDs[1])
	go p.runBundle(p.cfg.CoreIDs[2])
	go p.runOutput(p.cfg.CoreIDs[3])

	p.monitor.Add(1)
	go p.runMonitor()

	if ctx != nil {
		go func() {
			<-ctx.Done()
			p.Shutdown()
		}()
	}
}

// Shutdown requests cooperative stop. Workers observe the flag between
// polls and exit their steady loops; call [Pipeline.Wait] afterward to
// join them and run the drain sequence.
func (p *Pipeline) Shutdown() {
	p.shutdown.StoreRelease(true)
}

// Wait blocks until all four workers have exited their steady loops,
// then drains every queue and the bundle builder to completion in the
// order the specification requires, and finally stops the monitor.
func (p *Pipeline) Wait() {
	p.workers.Wait()
	p.drain()
	p.monitor.Wait()
}

func (p *Pipeline) stopping() bool {
	return p.shutdown.LoadAcquire()
}

func (p *Pipeline) runIngress(core int) {
	defer p.workers.Done()
	if err := corepin.Pin(core); err != nil {
		log.Printf("velox: ingress core pin: %v", err)
	}

	for !p.stopping() {
		ev, err := p.cfg.Source.Next(tsc.Now())
		if err != nil {
			if IsSourceExhausted(err) {
				return
			}
			if !IsWouldBlock(err) {
				log.Printf("velox: ingress source: %v", err)
				return
			}
			continue
		}
		p.stats.IngressGenerated.AddAcqRel(1)
		if pushErr := p.q1.Push(ev); pushErr != nil {
			p.stats.IngressDropped.AddAcqRel(1)
		}
	}
}

func (p *Pipeline) runOrderbook(core int) {
	defer p.workers.Done()
	if err := corepin.Pin(core); err != nil {
		log.Printf("velox: orderbook core pin: %v", err)
	}

	var bo Backoff
	for !p.stopping() {
		ev, err := p.q1.Pop()
		if err != nil {
			bo.Snooze()
			continue
		}
		bo.Reset()
		p.processOrderbookEvent(ev)
	}
}

func (p *Pipeline) processOrderbookEvent(ev Event) {
	delta := int64(ev.Size)
	var updateErr error
	if ev.IsBid() {
		updateErr = p.book.UpdateBid(ev.Price, delta, ev.IngressTSNs)
	} else {
		updateErr = p.book.UpdateAsk(ev.Price, -delta, ev.IngressTSNs)
	}

	if updateErr != nil {
		p.stats.OrderbookTimeout.AddAcqRel(1)
		return
	}
	p.stats.OrderbookProcessed.AddAcqRel(1)
	if pushErr := p.q2.Push(ev); pushErr != nil {
		p.stats.OrderbookDropped.AddAcqRel(1)
	}
}

func (p *Pipeline) runBundle(core int) {
	defer p.workers.Done()
	if err := corepin.Pin(core); err != nil {
		log.Printf("velox: bundle core pin: %v", err)
	}

	builder := NewBundleBuilder(p.cfg.BundleWindow)
	var bo Backoff
	for !p.stopping() {
		p.tryPushPending(builder)

		ev, err := p.q2.Pop()
		if err != nil {
			builder.PollTimeout()
			bo.Snooze()
			continue
		}
		bo.Reset()
		if ok, addErr := builder.Add(ev); addErr != nil {
			p.stats.BundleDropped.AddAcqRel(1)
		} else if ok {
			p.tryPushPending(builder)
		}
	}

	// Hand any buffered events to Q3 before exiting; the drain pass uses a
	// builder of its own. Events that still cannot be pushed are counted.
	builder.ForceFlush()
	p.tryPushPending(builder)
	if stranded, _, ok := builder.Pending(); ok {
		p.stats.BundleDropped.AddAcqRel(uint64(stranded.Count))
	}
}

// tryPushPending attempts to push builder's pending bundle, if any, onto
// Q3. On success it accounts the flush by reason and acks the builder so
// it can accept new events again; on failure the bundle stays pending
// for the next call, per [BundleBuilder]'s retry contract.
func (p *Pipeline) tryPushPending(builder *BundleBuilder) {
	bundle, reason, ok := builder.Pending()
	if !ok {
		return
	}
	if err := p.q3.Push(bundle); err != nil {
		return
	}
	builder.Ack()
	switch reason {
	case FlushReasonSize:
		p.stats.BundleFlushedSize.AddAcqRel(1)
	case FlushReasonTimeout:
		p.stats.BundleFlushedTimeout.AddAcqRel(1)
	case FlushReasonForced:
		p.stats.BundleFlushedForced.AddAcqRel(1)
	}
}

func (p *Pipeline) runOutput(core int) {
	defer p.workers.Done()
	if err := corepin.Pin(core); err != nil {
		log.Printf("velox: output core pin: %v", err)
	}

	var bo Backoff
	for !p.stopping() {
		b, err := p.q3.Pop()
		if err != nil {
			bo.Snooze()
			continue
		}
		bo.Reset()
		p.recordOutput(b)
	}
}

func (p *Pipeline) recordOutput(b Bundle) {
	active := b.Active()
	if len(active) == 0 {
		return
	}
	latencyNs := tsc.Now() - active[0].IngressTSNs
	p.hist.Record(latencyNs)
	p.sink.StageExit("output", active[0].ID, latencyNs)
	p.stats.OutputReceived.AddAcqRel(1)
}

// drain runs after every worker has exited its steady loop: it is the
// pipeline's sole owner of every queue and the bundle builder at this
// point, so it can pop single-threaded without racing a stopped worker.
//
// It follows the specified order (Q1 through the book into Q2, Q2 into
// the builder, force-flush, then Q3 to completion) with one adaptation:
// since the output worker has already stopped, nothing else is draining
// Q3, so a full Q3 during the Q2 pass would otherwise strand the
// builder's pending bundle forever. drainPendingWithRoom reclaims whatever
// room it can before a retry, keeping drain's sole-writer-and-reader role
// deadlock-free without changing any accounted total.
func (p *Pipeline) drain() {
	for {
		ev, err := p.q1.Pop()
		if err != nil {
			break
		}
		p.processOrderbookEvent(ev)
	}

	builder := NewBundleBuilder(p.cfg.BundleWindow)
	for {
		ev, err := p.q2.Pop()
		if err != nil {
			break
		}
		if ok, addErr := builder.Add(ev); addErr != nil {
			p.stats.BundleDropped.AddAcqRel(1)
		} else if ok {
			p.drainPendingWithRoom(builder)
		}
	}
	builder.ForceFlush()
	p.drainPendingWithRoom(builder)

	p.drainQ3Available()
}

// drainPendingWithRoom pushes builder's pending bundle, freeing space in
// Q3 by recording whatever is already sitting there if the first attempt
// finds it full. Both queues are single-owner at this point, so this
// cannot race the stopped output worker.
func (p *Pipeline) drainPendingWithRoom(builder *BundleBuilder) {
	for {
		_, _, ok := builder.Pending()
		if !ok {
			return
		}
		p.tryPushPending(builder)
		if _, _, stillPending := builder.Pending(); !stillPending {
			return
		}
		if !p.drainOneFromQ3() {
			return
		}
	}
}

// drainQ3Available pops every remaining bundle out of Q3 and records it.
func (p *Pipeline) drainQ3Available() {
	for p.drainOneFromQ3() {
	}
}

func (p *Pipeline) drainOneFromQ3() bool {
	b, err := p.q3.Pop()
	if err != nil {
		return false
	}
	p.recordOutput(b)
	return true
}

func (p *Pipeline) runMonitor() {
	defer p.monitor.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for !p.stopping() {
		<-ticker.C
		if p.stopping() {
			return
		}
		s := p.stats.snapshot()
		log.Printf("velox: generated=%d dropped=%d processed=%d timeout=%d bundles=%d received=%d",
			s.IngressGenerated, s.IngressDropped+s.OrderbookDropped, s.OrderbookProcessed,
			s.OrderbookTimeout, s.BundleFlushedSize+s.BundleFlushedTimeout, s.OutputReceived)
	}
}
