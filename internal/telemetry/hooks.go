// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package telemetry defines the instrumentation hook for pipeline stage
// exits. The pipeline calls it once per bundle leaving the output stage;
// the ingress, orderbook and bundle stages do not call it. Observability
// export is an external collaborator to this module: the hot path depends
// only on this narrow interface, not on any particular SDK or exporter
// process being alive. No exporter is wired in: a configured endpoint
// yields one log line and a sink that discards samples, rather than
// blocking or failing pipeline startup.
package telemetry

import "log"

// Sink receives per-stage latency samples. Implementations must not
// block the calling goroutine for any meaningful duration — this is
// called from hot-path-adjacent worker code.
type Sink interface {
	// StageExit is called when an item (event or bundle) leaves a
	// pipeline stage. stage is a short stable name ("ingress",
	// "orderbook", "bundle", "output"); id identifies the item (an
	// event id, or a bundle's first event id); latencyNs is the time
	// spent in that stage.
	StageExit(stage string, id uint64, latencyNs uint64)
}

// NopSink discards every sample. [NewSink] returns it when no endpoint is
// configured.
type NopSink struct{}

func (NopSink) StageExit(string, uint64, uint64) {}

// LoggingSink is what [NewSink] returns for a non-empty endpoint, after
// logging once that no exporter is wired for it; it behaves as a NopSink
// and does not log by itself. This stands in for a real OTLP
// exporter, which is out of this module's scope — wiring a gRPC/HTTP
// OTLP client belongs to the CLI binary's deployment, not the pipeline
// core.
type LoggingSink struct {
	NopSink
}

// NewSink constructs the default Sink for the given OTLP endpoint. It
// never blocks or returns an error, and it does not contact the endpoint:
// an empty endpoint yields a NopSink, any other endpoint a single log
// line and a LoggingSink, per the pipeline's "telemetry is best-effort"
// contract.
func NewSink(endpoint string) Sink {
	if endpoint == "" {
		return NopSink{}
	}
	log.Printf("telemetry: no exporter wired for endpoint %s; recording locally only", endpoint)
	return LoggingSink{}
}
