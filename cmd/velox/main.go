// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command velox runs the transaction pipeline for a fixed duration and
// prints a latency summary on exit. It takes no required flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"code.hybscloud.com/velox"
	"code.hybscloud.com/velox/internal/tsc"
)

func main() {
	duration := flag.Duration("duration", 10*time.Second, "how long to run the pipeline before shutting down")
	flag.Parse()

	if v, ok := os.LookupEnv("VELOX_DURATION"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*duration = d
		} else if secs, err := strconv.Atoi(v); err == nil {
			*duration = time.Duration(secs) * time.Second
		} else {
			log.Printf("velox: ignoring invalid VELOX_DURATION=%q: %v", v, err)
		}
	}

	endpoint := os.Getenv("OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4317"
	}

	tsc.Calibrate()

	cfg := velox.DefaultConfig()
	cfg.TelemetryEndpoint = endpoint

	p := velox.NewPipeline(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	log.Printf("velox: running for %s (ctrl-c to stop early)", *duration)
	p.Run(runCtx)
	<-runCtx.Done()
	p.Shutdown()
	p.Wait()

	printSummary(p)
}

func printSummary(p *velox.Pipeline) {
	stats := p.Stats()
	summary := p.Histogram().Snapshot()

	fmt.Println("--- velox run summary ---")
	fmt.Printf("ingress:   generated=%d dropped=%d\n", stats.IngressGenerated, stats.IngressDropped)
	fmt.Printf("orderbook: processed=%d timeout=%d dropped=%d\n", stats.OrderbookProcessed, stats.OrderbookTimeout, stats.OrderbookDropped)
	fmt.Printf("bundle:    flushed_size=%d flushed_timeout=%d flushed_forced=%d dropped=%d\n", stats.BundleFlushedSize, stats.BundleFlushedTimeout, stats.BundleFlushedForced, stats.BundleDropped)
	fmt.Printf("output:    received=%d\n", stats.OutputReceived)
	fmt.Printf("latency:   %s\n", summary.String())

	book := p.Book()
	fmt.Printf("book:      best_bid=%d best_ask=%d spread=%d\n", book.BestBid(), book.BestAsk(), book.Spread())
}
