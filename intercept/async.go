package intercept

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/aradilov/logring"
)

var (
	ErrQueueFull = fmt.Errorf("async queue is full")
	ErrClosed    = fmt.Errorf("async handler is closed")
)

type asyncEntry struct {
	next slog.Handler
	rec  slog.Record
}

type asyncCore struct {
	queue    *logring.MPSC[asyncEntry]
	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	closing  atomic.Bool
	inflight atomic.Int64
	once     sync.Once
	metrics  *Metrics
	onError  func(error)
}

// AsyncHandler hands records to a single background goroutine that writes
// them to next, so producers never wait on the downstream writer.
type AsyncHandler struct {
	core *asyncCore
	next slog.Handler
}

// AsyncOption configures an AsyncHandler.
type AsyncOption func(*asyncCore)

// WithAsyncMetrics counts dropped records in m.
func WithAsyncMetrics(m *Metrics) AsyncOption {
	return func(c *asyncCore) { c.metrics = m }
}

// WithErrorHandler receives errors returned by the downstream handler.
func WithErrorHandler(fn func(error)) AsyncOption {
	return func(c *asyncCore) { c.onError = fn }
}

// NewAsyncHandler starts the writer goroutine. queueSize is rounded up to a
// power of two. Call Close to flush and stop it.
func NewAsyncHandler(next slog.Handler, queueSize int, opts ...AsyncOption) (*AsyncHandler, error) {
	q, err := logring.NewMPSC[asyncEntry](queueSize)
	if err != nil {
		return nil, fmt.Errorf("async queue: %w", err)
	}

	c := &asyncCore{
		queue: q,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.run()

	return &AsyncHandler{core: c, next: next}, nil
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle queues r. It returns ErrQueueFull when the writer has fallen a full
// queue behind and ErrClosed after Close; the record is dropped in both cases.
func (h *AsyncHandler) Handle(_ context.Context, r slog.Record) error {
	c := h.core
	c.inflight.Add(1)
	defer c.inflight.Add(-1)

	if c.closing.Load() {
		c.metrics.dropped()
		return ErrClosed
	}
	if !c.queue.Enqueue(asyncEntry{next: h.next, rec: r.Clone()}) {
		c.metrics.dropped()
		return ErrQueueFull
	}

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return &AsyncHandler{core: h.core, next: h.next.WithAttrs(attrs)}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &AsyncHandler{core: h.core, next: h.next.WithGroup(name)}
}

// Close stops accepting records, writes everything already queued and waits
// for the writer goroutine, or for ctx to be done.
func (h *AsyncHandler) Close(ctx context.Context) error {
	c := h.core
	c.once.Do(func() {
		c.closing.Store(true)
		// Handle calls that saw closing == false are still enqueueing.
		for c.inflight.Load() != 0 {
			runtime.Gosched()
		}
		close(c.stop)
	})

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *asyncCore) run() {
	defer close(c.done)
	for {
		c.queue.Drain(c.emit)
		select {
		case <-c.wake:
		case <-c.stop:
			c.queue.Drain(c.emit)
			return
		}
	}
}

func (c *asyncCore) emit(e asyncEntry) {
	if err := e.next.Handle(context.Background(), e.rec); err != nil && c.onError != nil {
		c.onError(err)
	}
}
