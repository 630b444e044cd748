// Command logring replays JSON log lines through an interceptor pipeline and
// benchmarks the sealed ring buffer.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "logring",
		Short:         "Buffer, filter and release structured logs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newReplayCmd(), newBenchCmd())
	return root
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("logring failed", "error", err)
		os.Exit(1)
	}
}
