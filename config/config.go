// Package config loads the YAML description of an interceptor pipeline and
// the handler that writes its output.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aradilov/logring"
	"github.com/aradilov/logring/intercept"
)

// Interceptor types.
const (
	TypePass        = "pass"
	TypeDrop        = "drop"
	TypeSample      = "sample"
	TypeRingBuffer  = "ring_buffer"
	TypeLevelBuffer = "level_buffer"
	TypeChain       = "chain"
	TypeAnd         = "and"
	TypeOr          = "or"
)

// Handler output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

var ErrInvalid = errors.New("invalid config")

// Config is the top-level configuration.
type Config struct {
	Handler     HandlerConfig     `yaml:"handler"`
	Interceptor InterceptorConfig `yaml:"interceptor"`
}

// HandlerConfig describes the downstream handler.
type HandlerConfig struct {
	Format     string `yaml:"format"`
	Level      string `yaml:"level"`
	AsyncQueue int    `yaml:"async_queue"` // 0 writes synchronously
}

// InterceptorConfig describes one node of the pipeline. Which fields apply
// depends on Type.
type InterceptorConfig struct {
	Type     string              `yaml:"type"`
	Children []InterceptorConfig `yaml:"children,omitempty"`
	Levels   []string            `yaml:"levels,omitempty"`
	Percent  int                 `yaml:"percent,omitempty"`
	Capacity int                 `yaml:"capacity,omitempty"`
	Trigger  string              `yaml:"trigger,omitempty"`
	FlushID  *bool               `yaml:"flush_id,omitempty"`
}

// Default returns built-in defaults: JSON output at INFO with a per-scope
// level buffer flushed on ERROR.
func Default() Config {
	return Config{
		Handler: HandlerConfig{
			Format: FormatJSON,
			Level:  "INFO",
		},
		Interceptor: InterceptorConfig{
			Type:     TypeLevelBuffer,
			Capacity: intercept.DefaultBufferCapacity,
			Trigger:  "ERROR",
		},
	}
}

// Load reads and validates the YAML file at path, on top of Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML, on top of Default. Unknown fields are
// rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	switch strings.ToLower(c.Handler.Format) {
	case FormatJSON, FormatText:
	default:
		return fmt.Errorf("%w: handler.format %q", ErrInvalid, c.Handler.Format)
	}
	if _, err := ParseLevel(c.Handler.Level); err != nil {
		return fmt.Errorf("%w: handler.level: %v", ErrInvalid, err)
	}
	if c.Handler.AsyncQueue < 0 || c.Handler.AsyncQueue > logring.MaxCapacity {
		return fmt.Errorf("%w: handler.async_queue %d", ErrInvalid, c.Handler.AsyncQueue)
	}
	if _, err := c.Interceptor.Factory(); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the parsed handler level.
func (h HandlerConfig) SlogLevel() slog.Level {
	l, _ := ParseLevel(h.Level)
	return l
}

// NewHandler builds the downstream handler writing to w. closeFn flushes
// and stops an async handler; it is a no-op otherwise.
func (h HandlerConfig) NewHandler(w io.Writer, opts ...intercept.AsyncOption) (handler slog.Handler, closeFn func() error, err error) {
	ho := &slog.HandlerOptions{Level: h.SlogLevel()}
	if strings.ToLower(h.Format) == FormatText {
		handler = slog.NewTextHandler(w, ho)
	} else {
		handler = slog.NewJSONHandler(w, ho)
	}

	if h.AsyncQueue == 0 {
		return handler, func() error { return nil }, nil
	}
	ah, err := intercept.NewAsyncHandler(handler, h.AsyncQueue, opts...)
	if err != nil {
		return nil, nil, err
	}
	return ah, func() error { return ah.Close(context.Background()) }, nil
}

// ParseLevel parses DEBUG, INFO, WARN, ERROR and offsets such as "ERROR+4",
// case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return l, nil
}
