package logring

import (
	"runtime"
	"sync/atomic"
)

// MPSC is a bounded multi-producer, single-consumer, lock-free queue.
type MPSC[T any] struct {
	// Optional padding to avoid false sharing between frequently accessed fields
	_        [64]byte
	mask     uint64
	capacity uint64
	slots    []slot[T]
	_        [64]byte
	enqueue  atomic.Uint64 // logical "tail", updated by multiple producers
	_        [64]byte
	dequeue  uint64 // logical "head", updated by a single consumer
	_        [64]byte
}

// NewMPSC creates a new bounded queue holding at least capacity items.
// The capacity is rounded up to the next power of two.
func NewMPSC[T any](capacity int) (*MPSC[T], error) {
	c, _, err := roundCapacity(capacity)
	if err != nil {
		return nil, err
	}

	slots := make([]slot[T], c)
	for i := uint64(0); i < c; i++ {
		// initial sequence value per slot
		slots[i].seq.Store(i)
	}

	return &MPSC[T]{
		mask:     c - 1,
		capacity: c,
		slots:    slots,
	}, nil
}

// Enqueue pushes an element into the queue.
// Returns false if the queue is full (overflow).
// May be called concurrently from many goroutines (producers).
func (q *MPSC[T]) Enqueue(v T) bool {
	var spins uint32
	for {
		pos := q.enqueue.Load()
		s := &q.slots[pos&q.mask]

		diff := int64(s.seq.Load()) - int64(pos)
		switch {
		case diff == 0:
			// slot is free for this position, try to reserve it
			if q.enqueue.CompareAndSwap(pos, pos+1) {
				s.val = v
				// publish the value: seq = pos+1
				s.seq.Store(pos + 1)
				return true
			}
		case diff < 0:
			// slot has not been freed by the consumer yet
			return false
		}

		// contention, or the slot still belongs to a previous cycle
		spins++
		if spins%goschedEvery == 0 {
			runtime.Gosched()
		}
	}
}

// Dequeue pops an element from the queue.
// Returns (zero, false) if the queue is empty or the next producer has not
// finished publishing.
// IMPORTANT: must be called from a single consumer goroutine.
func (q *MPSC[T]) Dequeue() (T, bool) {
	var zero T

	pos := q.dequeue
	s := &q.slots[pos&q.mask]

	if s.seq.Load() != pos+1 {
		return zero, false
	}

	q.dequeue = pos + 1
	v := s.val
	// release the reference held by the slot and free it for the next cycle:
	// next time this physical slot will be used at pos+capacity
	s.val = zero
	s.seq.Store(pos + q.capacity)

	return v, true
}

// Drain dequeues until the queue looks empty, calling fn for every element.
// It returns the number of elements drained.
// IMPORTANT: must be called from a single consumer goroutine.
func (q *MPSC[T]) Drain(fn func(T)) int {
	n := 0
	for {
		v, ok := q.Dequeue()
		if !ok {
			return n
		}
		fn(v)
		n++
	}
}

// Capacity returns the fixed queue capacity.
func (q *MPSC[T]) Capacity() int {
	return int(q.capacity)
}
