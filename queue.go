// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package velox

import (
	"code.hybscloud.com/atomix"
)

// pad is cache-line padding to prevent false sharing between the
// producer-owned and consumer-owned fields of a [Queue].
type pad [64]byte

// Ring is the minimal interface the pipeline stages need from a bounded
// FIFO. It is satisfied by [Queue]. [Pipeline] holds its queues as
// concrete *Queue values and does not accept a Ring in their place.
type Ring[T any] interface {
	Push(v T) error
	Pop() (T, error)
	Cap() int
}

// Queue is a bounded single-producer single-consumer lock-free ring
// buffer. Capacity rounds up to the next power of two.
//
// Based on Lamport's ring buffer with cached-index optimization: the
// producer caches its last-observed view of the consumer's head, and the
// consumer caches its last-observed view of the producer's tail, cutting
// cross-core cache-line traffic on the common (non-contended) path.
//
// # Safety
//
// Only one goroutine may call Push; only one goroutine may call Pop.
// Violating this corrupts data — the type does not enforce it.
type Queue[T any] struct {
	_          pad
	head       atomix.Uint64 // consumer-owned: next slot to pop
	_          pad
	cachedTail uint64 // consumer's cached view of tail
	_          pad
	tail       atomix.Uint64 // producer-owned: next slot to push
	_          pad
	cachedHead uint64 // producer's cached view of head
	_          pad
	buffer     []T
	mask       uint64
}

// NewQueue creates a new bounded SPSC queue. Capacity rounds up to the
// next power of two; panics if capacity < 2.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 2 {
		panic("velox: queue capacity must be >= 2")
	}
	n := uint64(roundToPow2(capacity))
	return &Queue[T]{
		buffer: make([]T, n),
		mask:   n - 1,
	}
}

// Push adds an element to the queue (producer only).
//
// Per the memory-ordering contract: tail is loaded relaxed (self-owned),
// head is loaded acquire only when the cached view suggests full (to
// observe the consumer's released pop), the slot is written, then tail+1
// is stored release — publishing the slot write to the consumer.
//
// Returns [ErrWouldBlock] if the queue is full; the caller should count
// the drop rather than retry synchronously.
func (q *Queue[T]) Push(v T) error {
	tail := q.tail.LoadRelaxed()
	if tail-q.cachedHead >= uint64(len(q.buffer)) {
		q.cachedHead = q.head.LoadAcquire()
		if tail-q.cachedHead >= uint64(len(q.buffer)) {
			return ErrWouldBlock
		}
	}

	q.buffer[tail&q.mask] = v
	q.tail.StoreRelease(tail + 1)
	return nil
}

// Pop removes and returns the oldest element (consumer only).
//
// head is loaded relaxed (self-owned), tail is loaded acquire only when
// the cached view suggests empty (to observe the producer's released
// push) — acquire on tail synchronizes with the producer's release,
// making the slot write visible before this read. Returns
// [ErrWouldBlock] if the queue is empty.
func (q *Queue[T]) Pop() (T, error) {
	var zero T
	head := q.head.LoadRelaxed()
	if head >= q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head >= q.cachedTail {
			return zero, ErrWouldBlock
		}
	}

	v := q.buffer[head&q.mask]
	q.buffer[head&q.mask] = zero // drop any references so GC can reclaim
	q.head.StoreRelease(head + 1)
	return v, nil
}

// Cap returns the queue's actual capacity (rounded up to a power of two).
func (q *Queue[T]) Cap() int {
	return len(q.buffer)
}

// Len returns the approximate occupancy; may be stale the instant it is
// read since the other side's counter can move concurrently.
func (q *Queue[T]) Len() int {
	tail := q.tail.LoadAcquire()
	head := q.head.LoadAcquire()
	return int(tail - head)
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
