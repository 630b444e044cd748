package intercept

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/valyala/fastrand"
)

var ErrInvalidPercent = fmt.Errorf("sample percentage must be between 0 and 100")

// Event is a log record on its way to the handler that will write it.
type Event struct {
	Record slog.Record

	next    slog.Handler
	flushed bool
}

// NewEvent returns an event that is written to h when released.
func NewEvent(r slog.Record, h slog.Handler) Event {
	return Event{Record: r, next: h}
}

// Level returns the record level.
func (e Event) Level() slog.Level {
	return e.Record.Level
}

// Flushed reports whether the event was released from a buffer.
func (e Event) Flushed() bool {
	return e.flushed
}

// emit writes the event to its handler. Events released directly still obey
// the handler's level; flushed events were captured on purpose and bypass it.
func (e Event) emit(ctx context.Context) error {
	if e.next == nil {
		return nil
	}
	if !e.flushed && !e.next.Enabled(ctx, e.Record.Level) {
		return nil
	}
	return e.next.Handle(ctx, e.Record)
}

// Interceptor inspects events before they reach their handler.
// Implementations must be safe for concurrent use.
type Interceptor interface {
	// Reject reports whether ev is dropped without being intercepted.
	Reject(ev Event) bool

	// Intercept returns the events to release now. It may hold ev back,
	// release it, or release previously held events along with it.
	Intercept(ev Event) []Event
}

// Factory builds a fresh, independent interceptor for one scope.
type Factory func() Interceptor

type pass struct{}

func (pass) Reject(Event) bool { return false }
func (pass) Intercept(ev Event) []Event { return []Event{ev} }

// Pass returns an interceptor that releases every event unchanged.
func Pass() Interceptor { return pass{} }

type drop struct {
	pred func(Event) bool
}

func (d drop) Reject(ev Event) bool { return d.pred(ev) }
func (drop) Intercept(ev Event) []Event { return []Event{ev} }

// Drop rejects events matching pred and releases the rest.
func Drop(pred func(Event) bool) Interceptor {
	return drop{pred: pred}
}

// DropLevels rejects events with any of the given levels.
func DropLevels(levels ...slog.Level) Interceptor {
	levels = slices.Clone(levels)
	return Drop(func(ev Event) bool {
		return slices.Contains(levels, ev.Level())
	})
}

type chain struct {
	first, second Interceptor
	either        bool
}

func (c chain) Reject(ev Event) bool {
	if c.either {
		return c.first.Reject(ev) || c.second.Reject(ev)
	}
	return c.first.Reject(ev)
}

func (c chain) Intercept(ev Event) []Event {
	var out []Event
	for _, e := range c.first.Intercept(ev) {
		if !c.second.Reject(e) {
			out = append(out, c.second.Intercept(e)...)
		}
	}
	return out
}

// Chain passes every event released by first through second, dropping the
// ones second rejects. Only first decides whether the incoming event is
// rejected.
func Chain(first, second Interceptor) Interceptor {
	return chain{first: first, second: second}
}

// And is Chain, except that the incoming event is rejected when either
// interceptor rejects it.
func And(a, b Interceptor) Interceptor {
	return chain{first: a, second: b, either: true}
}

type or struct {
	a, b Interceptor
}

func (o or) Reject(ev Event) bool {
	return o.a.Reject(ev) && o.b.Reject(ev)
}

func (o or) Intercept(ev Event) []Event {
	if !o.a.Reject(ev) {
		return o.a.Intercept(ev)
	}
	return o.b.Intercept(ev)
}

// Or intercepts each event with a, or with b when a rejects it. The event is
// rejected only when both reject it.
func Or(a, b Interceptor) Interceptor {
	return or{a: a, b: b}
}

// Sample decides once whether this scope is sampled: with probability
// percent/100 it returns inner, otherwise an interceptor that passes every
// event through.
func Sample(percent int, inner Interceptor) (Interceptor, error) {
	if percent < 0 || percent > 100 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPercent, percent)
	}
	if int(fastrand.Uint32n(100)) < percent {
		return inner, nil
	}
	return Pass(), nil
}
