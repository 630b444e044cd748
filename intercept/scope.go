package intercept

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Scope selects the active Interceptor for a logical call chain.
//
// Interceptors pushed with Push live in the returned context, so they are
// visible to everything that receives that context, including goroutines
// started with it, and invisible to unrelated call chains. Leaving the
// function that pushed restores the caller's interceptor on every exit
// path, because the caller's context was never modified.
//
// Each Scope is independent: an interceptor pushed on one is never seen
// through another.
type Scope struct {
	name string
	def  atomic.Pointer[active]
}

type active struct {
	ic Interceptor
}

type scopeKey struct {
	s *Scope
}

// Default is the scope used by Handler unless WithScope is given.
var Default = NewScope("default")

// NewScope returns a scope with no active interceptor.
func NewScope(name string) *Scope {
	return &Scope{name: name}
}

// Name returns the name given to NewScope.
func (s *Scope) Name() string {
	return s.name
}

// Push returns a copy of ctx in which ic is the active interceptor.
// Pushing nil disables interception for that context.
func (s *Scope) Push(ctx context.Context, ic Interceptor) context.Context {
	return context.WithValue(ctx, scopeKey{s}, active{ic: ic})
}

// Interceptor returns the interceptor active in ctx, falling back to the
// scope's default. It returns nil when neither is set.
func (s *Scope) Interceptor(ctx context.Context) Interceptor {
	if ctx != nil {
		if a, ok := ctx.Value(scopeKey{s}).(active); ok {
			return a.ic
		}
	}
	if a := s.def.Load(); a != nil {
		return a.ic
	}
	return nil
}

// SetDefault makes ic active for every context that has not pushed its own
// interceptor. The returned func restores the previous default.
func (s *Scope) SetDefault(ic Interceptor) (restore func()) {
	prev := s.def.Swap(&active{ic: ic})
	return func() { s.def.Store(prev) }
}

// Push pushes ic on the Default scope.
func Push(ctx context.Context, ic Interceptor) context.Context {
	return Default.Push(ctx, ic)
}

// PushLevelBuffer pushes a LevelBuffer of DefaultBufferCapacity events on
// the Default scope.
func PushLevelBuffer(ctx context.Context, trigger slog.Level) context.Context {
	lb, err := NewLevelBuffer(DefaultBufferCapacity, trigger)
	if err != nil {
		panic("unreached")
	}
	return Default.Push(ctx, lb)
}
