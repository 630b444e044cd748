package intercept

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aradilov/logring"
)

type line struct {
	Level slog.Level
	Msg   string
	Attrs map[string]string
}

type sink struct {
	mu    sync.Mutex
	lines []line
}

// recorder is a slog.Handler that keeps every record it is handed.
type recorder struct {
	sink  *sink
	level slog.Level
	attrs []slog.Attr
	err   error
}

func newRecorder(level slog.Level) *recorder {
	return &recorder{sink: &sink{}, level: level}
}

func (r *recorder) Enabled(_ context.Context, l slog.Level) bool {
	return l >= r.level
}

func (r *recorder) Handle(_ context.Context, rec slog.Record) error {
	l := line{Level: rec.Level, Msg: rec.Message, Attrs: map[string]string{}}
	for _, a := range r.attrs {
		l.Attrs[a.Key] = a.Value.String()
	}
	rec.Attrs(func(a slog.Attr) bool {
		l.Attrs[a.Key] = a.Value.String()
		return true
	})

	r.sink.mu.Lock()
	r.sink.lines = append(r.sink.lines, l)
	r.sink.mu.Unlock()
	return r.err
}

func (r *recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	r2 := *r
	r2.attrs = append(append([]slog.Attr(nil), r.attrs...), attrs...)
	return &r2
}

func (r *recorder) WithGroup(string) slog.Handler {
	return r
}

func (r *recorder) Lines() []line {
	r.sink.mu.Lock()
	defer r.sink.mu.Unlock()
	return append([]line(nil), r.sink.lines...)
}

func (r *recorder) Messages() []string {
	var out []string
	for _, l := range r.Lines() {
		out = append(out, l.Msg)
	}
	return out
}

func record(level slog.Level, msg string, attrs ...slog.Attr) slog.Record {
	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.AddAttrs(attrs...)
	return r
}

func event(level slog.Level, msg string) Event {
	return NewEvent(record(level, msg), nil)
}

func messages(evs []Event) []string {
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Record.Message)
	}
	return out
}

func testStats() logring.RingStats {
	return logring.RingStats{Capacity: 4, Retained: 4, Overwritten: 1}
}
