package intercept

import (
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/aradilov/logring"
)

// DefaultBufferCapacity is the ring capacity used by PushLevelBuffer.
const DefaultBufferCapacity = 1024

// FlushIDKey is the attribute added to every event of one flush.
const FlushIDKey = "flush_id"

type bufferOptions struct {
	flushID bool
	hook    func(logring.RingStats)
}

// BufferOption configures RingBuffer and LevelBuffer.
type BufferOption func(*bufferOptions)

// WithFlushID controls whether flushed events carry a FlushIDKey attribute
// shared by the whole burst. Enabled by default.
func WithFlushID(enabled bool) BufferOption {
	return func(o *bufferOptions) { o.flushID = enabled }
}

// WithFlushHook calls hook with the stats of every sealed ring, right
// before its events are released.
func WithFlushHook(hook func(logring.RingStats)) BufferOption {
	return func(o *bufferOptions) { o.hook = hook }
}

func newBufferOptions(opts []BufferOption) bufferOptions {
	o := bufferOptions{flushID: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// RingBuffer holds the most recent events below a trigger level. An event
// at or above the trigger releases the held events, oldest first, followed
// by the trigger event itself, and buffering starts over.
type RingBuffer struct {
	capacity int
	trigger  slog.Level
	opts     bufferOptions
	ring     atomic.Pointer[logring.Ring[Event]]
}

// NewRingBuffer creates a RingBuffer keeping at least capacity events.
func NewRingBuffer(capacity int, trigger slog.Level, opts ...BufferOption) (*RingBuffer, error) {
	r, err := logring.NewRing[Event](capacity)
	if err != nil {
		return nil, err
	}

	b := &RingBuffer{
		capacity: capacity,
		trigger:  trigger,
		opts:     newBufferOptions(opts),
	}
	b.ring.Store(r)
	return b, nil
}

func (b *RingBuffer) Reject(Event) bool { return false }

func (b *RingBuffer) Intercept(ev Event) []Event {
	if ev.Level() < b.trigger {
		ev.Record = ev.Record.Clone()
		// A failed add means a flush sealed the ring after we loaded it;
		// the fresh ring is already in place.
		for !b.ring.Load().TryAdd(ev) {
		}
		return nil
	}

	fresh, err := logring.NewRing[Event](b.capacity)
	if err != nil {
		panic("unreached")
	}
	return flush(b.ring.Swap(fresh), ev, b.opts)
}

// Capacity returns the number of events held between flushes.
func (b *RingBuffer) Capacity() int {
	return b.ring.Load().Capacity()
}

// LevelBuffer holds events below a trigger level until the first event at
// or above it, releases them together with that event, and from then on
// lets every event through.
type LevelBuffer struct {
	trigger slog.Level
	opts    bufferOptions
	ring    atomic.Pointer[logring.Ring[Event]]
}

// NewLevelBuffer creates a LevelBuffer holding at most capacity events
// (rounded up to a power of two); older ones are discarded first.
func NewLevelBuffer(capacity int, trigger slog.Level, opts ...BufferOption) (*LevelBuffer, error) {
	r, err := logring.NewRing[Event](capacity)
	if err != nil {
		return nil, err
	}

	b := &LevelBuffer{
		trigger: trigger,
		opts:    newBufferOptions(opts),
	}
	b.ring.Store(r)
	return b, nil
}

func (b *LevelBuffer) Reject(Event) bool { return false }

func (b *LevelBuffer) Intercept(ev Event) []Event {
	r := b.ring.Load()
	if r == nil {
		return []Event{ev}
	}

	if ev.Level() >= b.trigger {
		if r = b.ring.Swap(nil); r == nil {
			return []Event{ev}
		}
		return flush(r, ev, b.opts)
	}

	stored := ev
	stored.Record = ev.Record.Clone()
	if r.TryAdd(stored) {
		return nil
	}
	// flushed concurrently
	return []Event{ev}
}

// Flushed reports whether the buffer has been released.
func (b *LevelBuffer) Flushed() bool {
	return b.ring.Load() == nil
}

// flush seals r and returns its retained events followed by trigger.
func flush(r *logring.Ring[Event], trigger Event, o bufferOptions) []Event {
	r.CompleteAdding()
	if o.hook != nil {
		o.hook(r.Stats())
	}

	n, _ := r.Len()
	out := make([]Event, 0, n+1)
	out, _ = r.Slice(out)
	out = append(out, trigger)

	var id string
	if o.flushID {
		id = uuid.NewString()
	}
	for i := range out {
		out[i].flushed = true
		if id != "" {
			rec := out[i].Record.Clone()
			rec.AddAttrs(slog.String(FlushIDKey, id))
			out[i].Record = rec
		}
	}
	return out
}
