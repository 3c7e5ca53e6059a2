// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package velox implements a single-process transaction pipeline: a
// fixed-layout event record flows through a bounded SPSC queue into a
// lock-free price-aggregated order book, is batched by a size-or-timeout
// bundle builder, and drains through a final output queue into a
// latency histogram.
//
// # Pipeline
//
//	[ingress] --Q1--> [orderbook] --Q2--> [bundle] --Q3--> [output]
//
// Each stage is a dedicated, best-effort core-pinned goroutine. Queues are
// single-producer single-consumer; producers push and drop on full rather
// than block, and every drop is accounted in [Stats].
//
// # Quick start
//
//	p := velox.NewPipeline(velox.DefaultConfig())
//	p.Run(context.Background()) // spawns workers, returns immediately
//	time.Sleep(10 * time.Second)
//	p.Shutdown()
//	p.Wait() // joins workers and drains every queue
//	fmt.Println(p.Histogram().Snapshot())
//
// # Concurrency model
//
// Queues enforce their single-producer/single-consumer contract by
// convention, not by the type system: violating it corrupts data. The
// order book is lock-free for writes and wait-free for reads via bounded
// compare-and-swap loops (see [OrderBook]); the histogram and all stage
// counters are wait-free atomics.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomics with explicit
// memory ordering, [code.hybscloud.com/spin] for CPU pause instructions in
// CAS retry loops, and [code.hybscloud.com/iox] for the ecosystem's
// semantic ErrWouldBlock family.
package velox
