package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/aradilov/logring/config"
	"github.com/aradilov/logring/intercept"
)

// Reserved keys of a replayed line; every other key becomes an attribute.
const (
	keyTime  = "time"
	keyLevel = "level"
	keyMsg   = "msg"
	keyScope = "scope"
)

const maxLineBytes = 1 << 20

func newReplayCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay JSON log lines from stdin through the configured pipeline",
		Long: `Reads one JSON object per line from stdin. "level", "msg" and "time" fill
the record; "scope" selects a pipeline instance, so lines sharing a scope are
buffered together. Lines without a scope share one process-wide pipeline.
Released records are written to stdout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}

			diag := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			stats, err := replay(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout(), diag)
			if err != nil {
				return err
			}
			diag.Info("replay finished", "lines", stats.lines, "scopes", stats.scopes, "errors", stats.errors)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML pipeline configuration (defaults to a level buffer flushed on ERROR)")
	return cmd
}

type replayStats struct {
	lines  int
	scopes int
	errors int
}

func replay(ctx context.Context, cfg config.Config, in io.Reader, out io.Writer, diag *slog.Logger) (replayStats, error) {
	var st replayStats
	if ctx == nil {
		ctx = context.Background()
	}

	factory, err := cfg.Interceptor.Factory()
	if err != nil {
		return st, err
	}
	next, closeFn, err := cfg.Handler.NewHandler(out, intercept.WithErrorHandler(func(err error) {
		diag.Warn("write failed", "error", err)
	}))
	if err != nil {
		return st, err
	}

	scope := intercept.NewScope("replay")
	restore := scope.SetDefault(factory())
	defer restore()

	h := intercept.NewHandler(next, intercept.WithScope(scope), intercept.WithCaptureLevel(slog.Level(math.MinInt)))
	scopes := map[string]context.Context{}

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for sc.Scan() {
		st.lines++
		if len(sc.Bytes()) == 0 {
			continue
		}

		r, name, err := parseLine(sc.Bytes())
		if err != nil {
			st.errors++
			diag.Warn("skipping line", "line", st.lines, "error", err)
			continue
		}

		lctx := ctx
		if name != "" {
			sctx, ok := scopes[name]
			if !ok {
				sctx = scope.Push(ctx, factory())
				scopes[name] = sctx
			}
			lctx = sctx
		}

		if !h.Enabled(lctx, r.Level) {
			continue
		}
		if err := h.Handle(lctx, r); err != nil {
			st.errors++
			diag.Warn("handle failed", "line", st.lines, "error", err)
		}
	}
	st.scopes = len(scopes)

	if err := closeFn(); err != nil {
		return st, fmt.Errorf("close handler: %w", err)
	}
	if err := sc.Err(); err != nil {
		return st, fmt.Errorf("read input: %w", err)
	}
	return st, nil
}

// parseLine turns one JSON object into a record and its scope name.
func parseLine(b []byte) (slog.Record, string, error) {
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return slog.Record{}, "", err
	}

	level := slog.LevelInfo
	if v, ok := fields[keyLevel].(string); ok {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return slog.Record{}, "", err
		}
	}
	ts := time.Now()
	if v, ok := fields[keyTime].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return slog.Record{}, "", err
		}
		ts = t
	}
	msg, _ := fields[keyMsg].(string)
	name, _ := fields[keyScope].(string)

	r := slog.NewRecord(ts, level, msg, 0)
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		switch k {
		case keyTime, keyLevel, keyMsg, keyScope:
			continue
		}
		r.AddAttrs(slog.Any(k, fields[k]))
	}
	return r, name, nil
}
