// Package logring provides lock-free, fixed-capacity ring buffers.
//
// Ring accumulates items from many producers, is sealed exactly once, and is
// then enumerated oldest to newest, retaining only the most recent Capacity
// items. MPSC is a bounded multi-producer, single-consumer queue.
//
// Slot sequencing follows Dmitry Vyukov's bounded queue:
// https://www.1024cores.net/home/lock-free-algorithms/queues/bounded-mpmc-queue
package logring

import (
	"fmt"
	"math/bits"
	"runtime"
	"sync/atomic"
)

// MaxCapacity is the largest capacity accepted by NewRing and NewMPSC.
// It keeps generation arithmetic well inside the 63-bit claim counter.
const MaxCapacity = 1 << 30

const goschedEvery = 64 // reduce runtime.Gosched() frequency in hot loops

var (
	ErrInvalidCapacity = fmt.Errorf("capacity must be above 0 and at most %d", MaxCapacity)
	ErrSealed          = fmt.Errorf("ring is sealed")
	ErrNotSealed       = fmt.Errorf("ring is not sealed")
)

type slot[T any] struct {
	seq atomic.Uint64 // generation (Ring) or sequence (MPSC); controls visibility and slot ownership
	val T             // actual value stored in this slot
}

// roundCapacity rounds capacity up to the next power of two and returns it
// with its log2.
func roundCapacity(capacity int) (uint64, uint, error) {
	if capacity <= 0 || capacity > MaxCapacity {
		return 0, 0, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	shift := uint(bits.Len64(uint64(capacity) - 1))
	return 1 << shift, shift, nil
}

// spin busy-waits until done returns true, yielding to the scheduler every
// goschedEvery iterations.
func spin(done func() bool) {
	var spins uint32
	for !done() {
		spins++
		if spins%goschedEvery == 0 {
			runtime.Gosched()
		}
	}
}
