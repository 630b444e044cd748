package logring

import (
	"iter"
	"sync/atomic"
)

const (
	sealedBit = 1 << 63
	indexMask = sealedBit - 1
)

// Ring is a fixed-capacity, lock-free, multi-producer ring buffer.
//
// Producers call Add concurrently. Once CompleteAdding has sealed the ring,
// Enumerate yields the retained items oldest to newest: every item if no
// more than Capacity were added, otherwise the last Capacity of them.
//
// A producer that stalls between claiming an index and publishing its value
// blocks later writers to the same slot and any concurrent CompleteAdding
// until it resumes.
type Ring[T any] struct {
	// Optional padding to avoid false sharing between hot fields.
	_        [64]byte
	mask     uint64
	shift    uint
	capacity uint64
	slots    []slot[T]
	_        [64]byte
	index    atomic.Uint64 // bit 63: sealed; bits 0-62: claim counter (producers)
	_        [64]byte
	written  atomic.Uint64 // published writes
	_        [64]byte
	sealedAt uint64      // claim count at seal time, written once by the sealing call
	complete atomic.Bool // every write claimed before the seal has published
}

// RingStats is a point-in-time view of a Ring's counters.
type RingStats struct {
	Capacity    int
	Claimed     uint64 // claims; may include rejected attempts until complete
	Published   uint64
	Sealed      bool
	Complete    bool
	Retained    int    // items Enumerate yields; zero until complete
	Overwritten uint64 // items lost to wraparound; zero until complete
}

// NewRing creates a ring holding at least capacity items. The capacity is
// rounded up to the next power of two.
func NewRing[T any](capacity int) (*Ring[T], error) {
	c, shift, err := roundCapacity(capacity)
	if err != nil {
		return nil, err
	}

	// Every slot starts at generation 0, which is the generation of the
	// first lap's logical indexes [0, capacity).
	return &Ring[T]{
		mask:     c - 1,
		shift:    shift,
		capacity: c,
		slots:    make([]slot[T], c),
	}, nil
}

// Capacity returns the physical (power of two) capacity.
func (r *Ring[T]) Capacity() int {
	return int(r.capacity)
}

// IsSealed reports whether CompleteAdding has sealed the ring. Writes claimed
// before the seal may still be publishing.
func (r *Ring[T]) IsSealed() bool {
	return r.index.Load()&sealedBit != 0
}

// Add appends v. It returns ErrSealed once the ring has been sealed.
// Safe to call concurrently from many producer goroutines.
func (r *Ring[T]) Add(v T) error {
	if !r.TryAdd(v) {
		return ErrSealed
	}
	return nil
}

// TryAdd appends v and reports whether it was accepted.
// Safe to call concurrently from many producer goroutines.
func (r *Ring[T]) TryAdd(v T) bool {
	i, ok := r.claim()
	if !ok {
		return false
	}
	r.write(i, v)
	return true
}

// claim reserves the next logical index. The increment made while sealed is
// harmless: the sealed bit stays set and the low bits are never read again.
func (r *Ring[T]) claim() (uint64, bool) {
	i := r.index.Add(1) - 1
	if i&sealedBit != 0 {
		return 0, false
	}
	return i, true
}

// write stores v at logical index i and publishes it.
func (r *Ring[T]) write(i uint64, v T) {
	s := &r.slots[i&r.mask]
	gen := i >> r.shift

	// A writer from the previous lap (i - capacity) may have claimed this
	// slot without publishing yet. Wait for it, otherwise it would
	// overwrite our newer value.
	if s.seq.Load() != gen {
		spin(func() bool { return s.seq.Load() == gen })
	}

	s.val = v
	// Publish: the store orders the value write before the new generation.
	s.seq.Store(gen + 1)
	r.written.Add(1)
}

// seal sets the sealed bit. Only the call that performs the transition
// returns true.
func (r *Ring[T]) seal() bool {
	cur := r.index.Load()
	for cur&sealedBit == 0 {
		if r.index.CompareAndSwap(cur, cur|sealedBit) {
			r.sealedAt = cur
			return true
		}
		cur = r.index.Load()
	}
	return false
}

// CompleteAdding seals the ring and waits until every write claimed before
// the seal has published. It returns true for the call that sealed the ring
// and false for every later call.
func (r *Ring[T]) CompleteAdding() bool {
	if !r.seal() {
		return false
	}

	n := r.sealedAt
	spin(func() bool { return r.written.Load() == n })
	r.complete.Store(true)
	return true
}

// window returns the retained logical range [from, to).
func (r *Ring[T]) window() (from, to uint64) {
	to = r.sealedAt
	if to > r.capacity {
		from = to - r.capacity
	}
	return from, to
}

// Enumerate returns the retained items, oldest to newest. It fails with
// ErrNotSealed until CompleteAdding has finished. The sequence may be
// ranged over any number of times and always yields the same items.
func (r *Ring[T]) Enumerate() (iter.Seq[T], error) {
	if !r.complete.Load() {
		return nil, ErrNotSealed
	}

	from, to := r.window()
	return func(yield func(T) bool) {
		for i := from; i < to; i++ {
			if !yield(r.slots[i&r.mask].val) {
				return
			}
		}
	}, nil
}

// Slice appends the retained items to dst, oldest to newest.
func (r *Ring[T]) Slice(dst []T) ([]T, error) {
	items, err := r.Enumerate()
	if err != nil {
		return dst, err
	}
	for v := range items {
		dst = append(dst, v)
	}
	return dst, nil
}

// Len returns how many items Enumerate yields. It fails with ErrNotSealed
// until CompleteAdding has finished.
func (r *Ring[T]) Len() (int, error) {
	if !r.complete.Load() {
		return 0, ErrNotSealed
	}
	from, to := r.window()
	return int(to - from), nil
}

// Stats retrieves the current counters of the ring.
func (r *Ring[T]) Stats() RingStats {
	idx := r.index.Load()
	st := RingStats{
		Capacity:  int(r.capacity),
		Claimed:   idx & indexMask,
		Published: r.written.Load(),
		Sealed:    idx&sealedBit != 0,
		Complete:  r.complete.Load(),
	}
	if st.Complete {
		from, to := r.window()
		st.Claimed = to
		st.Retained = int(to - from)
		st.Overwritten = from
	}
	return st
}
