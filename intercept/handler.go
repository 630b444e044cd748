package intercept

import (
	"context"
	"errors"
	"log/slog"
)

// Handler is a slog.Handler that routes every record through the
// interceptor active in the record's context before it reaches next.
// Records logged without an active interceptor go straight to next.
type Handler struct {
	next    slog.Handler
	scope   *Scope
	capture slog.Leveler
	metrics *Metrics
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithScope selects the scope interceptors are looked up in.
func WithScope(s *Scope) HandlerOption {
	return func(h *Handler) { h.scope = s }
}

// WithCaptureLevel sets the lowest level handed to an active interceptor.
// Defaults to slog.LevelDebug, so buffers see records the downstream handler
// would otherwise discard.
func WithCaptureLevel(l slog.Leveler) HandlerOption {
	return func(h *Handler) { h.capture = l }
}

// WithMetrics records handler outcomes in m.
func WithMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler wraps next.
func NewHandler(next slog.Handler, opts ...HandlerOption) *Handler {
	h := &Handler{
		next:    next,
		scope:   Default,
		capture: slog.LevelDebug,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.scope.Interceptor(ctx) != nil {
		return level >= h.capture.Level()
	}
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	ic := h.scope.Interceptor(ctx)
	if ic == nil {
		h.metrics.event(outcomePassthrough, 1)
		return h.next.Handle(ctx, r)
	}

	ev := NewEvent(r, h.next)
	if ic.Reject(ev) {
		h.metrics.event(outcomeRejected, 1)
		return nil
	}

	released := ic.Intercept(ev)
	if len(released) == 0 {
		h.metrics.event(outcomeHeld, 1)
		return nil
	}
	h.metrics.event(outcomeReleased, len(released))

	var errs []error
	for _, e := range released {
		if err := e.emit(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.next = h.next.WithAttrs(attrs)
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.next = h.next.WithGroup(name)
	return &h2
}
