// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package velox

import (
	"fmt"
	"math"
	"strings"

	"code.hybscloud.com/atomix"
	"golang.org/x/sys/cpu"
)

// bucketCount is the number of logarithmic latency buckets. Boundaries
// are fixed at compile time to keep Record branch-predictable and
// allocation-free.
const bucketCount = 13

// bucketUpperBoundNs is the inclusive upper edge of each bucket, in
// nanoseconds. The last bucket has no upper bound.
var bucketUpperBoundNs = [bucketCount]uint64{
	100, 200, 500, 1_000, 2_000, 5_000, 10_000,
	20_000, 50_000, 100_000, 200_000, 500_000,
	math.MaxUint64,
}

// bucketMidpointNs is the representative latency used when estimating a
// percentile from bucket counts. The last bucket's midpoint is a fixed
// estimate rather than a true midpoint, since its upper bound is
// unbounded.
var bucketMidpointNs = [bucketCount]float64{
	50, 150, 350, 750, 1_500, 3_500, 7_500,
	15_000, 35_000, 75_000, 150_000, 350_000,
	750_000,
}

// histBucket is one cache-line-padded counter. Padding prevents adjacent
// buckets, which are written from the same stage at wildly different
// rates, from false-sharing a line.
type histBucket struct {
	_     pad
	count atomix.Uint64
	_     pad
}

// LatencyHistogram is a wait-free latency recorder: Record never spins,
// never blocks, and never allocates. Min/max tracking uses an optimistic
// compare-and-swap retry rather than a lock, since contention on the
// extremes is rare relative to the steady stream of bucket increments.
type LatencyHistogram struct {
	buckets [bucketCount]histBucket

	_ pad
	// extremePad additionally demonstrates cache-line isolation via the
	// platform-detected line size rather than the fixed 64-byte guess
	// used elsewhere in this package — min/max are the two fields
	// contended from every recording goroutine at once, so they get the
	// more precise padding.
	extremePad cpu.CacheLinePad
	min        atomix.Uint64
	extremePad2 cpu.CacheLinePad
	max        atomix.Uint64
	_          pad
}

// NewLatencyHistogram returns a histogram with min initialized to
// MaxUint64 and max to 0, so that the first Record establishes both.
func NewLatencyHistogram() *LatencyHistogram {
	h := &LatencyHistogram{}
	h.min.StoreRelaxed(math.MaxUint64)
	h.max.StoreRelaxed(0)
	return h
}

func bucketFor(latencyNs uint64) int {
	for i, upper := range bucketUpperBoundNs {
		if latencyNs <= upper {
			return i
		}
	}
	return bucketCount - 1
}

// Record accounts one latency sample. Safe for concurrent use by
// multiple recording goroutines against one reading goroutine, or vice
// versa.
func (h *LatencyHistogram) Record(latencyNs uint64) {
	h.buckets[bucketFor(latencyNs)].count.AddAcqRel(1)

	for {
		current := h.min.LoadAcquire()
		if latencyNs >= current {
			break
		}
		if h.min.CompareAndSwapAcqRel(current, latencyNs) {
			break
		}
	}
	for {
		current := h.max.LoadAcquire()
		if latencyNs <= current {
			break
		}
		if h.max.CompareAndSwapAcqRel(current, latencyNs) {
			break
		}
	}
}

// Min returns the smallest recorded latency, or 0 if nothing has been
// recorded.
func (h *LatencyHistogram) Min() uint64 {
	v := h.min.LoadAcquire()
	if v == math.MaxUint64 {
		return 0
	}
	return v
}

// Max returns the largest recorded latency.
func (h *LatencyHistogram) Max() uint64 { return h.max.LoadAcquire() }

// Count returns the total number of recorded samples.
func (h *LatencyHistogram) Count() uint64 {
	var total uint64
	for i := range h.buckets {
		total += h.buckets[i].count.LoadAcquire()
	}
	return total
}

// Percentile estimates the latency at percentile p (0..100) from bucket
// midpoints. The result is an approximation: true distribution shape
// within a bucket is lost, trading precision for a wait-free recorder.
func (h *LatencyHistogram) Percentile(p float64) float64 {
	total := h.Count()
	if total == 0 {
		return 0
	}
	target := uint64(math.Ceil(p / 100 * float64(total)))
	if target == 0 {
		target = 1
	}

	var cumulative uint64
	for i := range h.buckets {
		cumulative += h.buckets[i].count.LoadAcquire()
		if cumulative >= target {
			return bucketMidpointNs[i]
		}
	}
	return bucketMidpointNs[bucketCount-1]
}

// Reset zeroes every bucket and the min/max extremes. Not safe to call
// concurrently with Record.
func (h *LatencyHistogram) Reset() {
	for i := range h.buckets {
		h.buckets[i].count.StoreRelaxed(0)
	}
	h.min.StoreRelaxed(math.MaxUint64)
	h.max.StoreRelaxed(0)
}

// Summary is a point-in-time, non-atomic rendering of the histogram.
type Summary struct {
	Count      uint64
	Min, Max   uint64
	P50, P90   float64
	P99, P999  float64
}

// Snapshot computes a [Summary] from the current bucket state.
func (h *LatencyHistogram) Snapshot() Summary {
	return Summary{
		Count: h.Count(),
		Min:   h.Min(),
		Max:   h.Max(),
		P50:   h.Percentile(50),
		P90:   h.Percentile(90),
		P99:   h.Percentile(99),
		P999:  h.Percentile(99.9),
	}
}

// String renders the summary as a single-line report, matching the
// teacher's bench-report formatting convention.
func (s Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "count=%d min=%dns max=%dns p50=%.0fns p90=%.0fns p99=%.0fns p999=%.0fns",
		s.Count, s.Min, s.Max, s.P50, s.P90, s.P99, s.P999)
	return sb.String()
}
