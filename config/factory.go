package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aradilov/logring/intercept"
)

// Factory validates the node and returns a factory building a fresh
// pipeline, with its own buffers, on every call.
func (ic InterceptorConfig) Factory() (intercept.Factory, error) {
	return ic.factory("interceptor")
}

func (ic InterceptorConfig) factory(path string) (intercept.Factory, error) {
	children := make([]intercept.Factory, len(ic.Children))
	for i, c := range ic.Children {
		f, err := c.factory(fmt.Sprintf("%s.children[%d]", path, i))
		if err != nil {
			return nil, err
		}
		children[i] = f
	}

	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalid, path, fmt.Sprintf(format, args...))
	}

	switch strings.ToLower(ic.Type) {
	case TypePass:
		return intercept.Pass, nil

	case TypeDrop:
		if len(ic.Levels) == 0 {
			return nil, invalid("drop needs at least one level")
		}
		levels := make([]slog.Level, len(ic.Levels))
		for i, s := range ic.Levels {
			l, err := ParseLevel(s)
			if err != nil {
				return nil, invalid("levels[%d]: %v", i, err)
			}
			levels[i] = l
		}
		return func() intercept.Interceptor { return intercept.DropLevels(levels...) }, nil

	case TypeSample:
		if len(children) != 1 {
			return nil, invalid("sample wraps exactly one child, got %d", len(children))
		}
		if _, err := intercept.Sample(ic.Percent, intercept.Pass()); err != nil {
			return nil, invalid("%v", err)
		}
		percent, inner := ic.Percent, children[0]
		return func() intercept.Interceptor {
			s, _ := intercept.Sample(percent, inner())
			return s
		}, nil

	case TypeRingBuffer, TypeLevelBuffer:
		return ic.bufferFactory(invalid)

	case TypeChain, TypeAnd, TypeOr:
		if len(children) < 2 {
			return nil, invalid("%s needs at least two children, got %d", ic.Type, len(children))
		}
		combine := intercept.Chain
		switch strings.ToLower(ic.Type) {
		case TypeAnd:
			combine = intercept.And
		case TypeOr:
			combine = intercept.Or
		}
		return func() intercept.Interceptor {
			out := children[0]()
			for _, c := range children[1:] {
				out = combine(out, c())
			}
			return out
		}, nil

	case "":
		return nil, invalid("missing type")
	default:
		return nil, invalid("unknown type %q", ic.Type)
	}
}

func (ic InterceptorConfig) bufferFactory(invalid func(string, ...any) error) (intercept.Factory, error) {
	capacity := ic.Capacity
	if capacity == 0 {
		capacity = intercept.DefaultBufferCapacity
	}
	trigger := slog.LevelError
	if ic.Trigger != "" {
		l, err := ParseLevel(ic.Trigger)
		if err != nil {
			return nil, invalid("trigger: %v", err)
		}
		trigger = l
	}
	var opts []intercept.BufferOption
	if ic.FlushID != nil {
		opts = append(opts, intercept.WithFlushID(*ic.FlushID))
	}

	ring := strings.ToLower(ic.Type) == TypeRingBuffer
	build := func() (intercept.Interceptor, error) {
		if ring {
			return intercept.NewRingBuffer(capacity, trigger, opts...)
		}
		return intercept.NewLevelBuffer(capacity, trigger, opts...)
	}
	if _, err := build(); err != nil {
		return nil, invalid("%v", err)
	}

	return func() intercept.Interceptor {
		b, err := build()
		if err != nil {
			panic("unreached")
		}
		return b
	}, nil
}
