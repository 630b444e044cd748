package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aradilov/logring"
)

type benchResult struct {
	capacity int
	items    int
	retained int
	elapsed  time.Duration
}

func newBenchCmd() *cobra.Command {
	var capacity, producers, items int

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure concurrent Add throughput of the sealed ring",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := bench(capacity, producers, items)
			if err != nil {
				return err
			}
			perOp := time.Duration(0)
			if res.items > 0 {
				perOp = res.elapsed / time.Duration(res.items)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "capacity=%d producers=%d items=%d retained=%d elapsed=%s per_add=%s\n",
				res.capacity, producers, res.items, res.retained, res.elapsed, perOp)
			return nil
		},
	}
	cmd.Flags().IntVar(&capacity, "capacity", 1<<16, "requested ring capacity")
	cmd.Flags().IntVar(&producers, "producers", 8, "concurrent producer goroutines")
	cmd.Flags().IntVar(&items, "items", 1_000_000, "total items added across producers")
	return cmd
}

// bench fills a ring from producers goroutines, seals it and checks that
// the retained window has the expected size.
func bench(capacity, producers, items int) (benchResult, error) {
	if producers <= 0 || items < 0 {
		return benchResult{}, fmt.Errorf("producers must be positive and items non-negative")
	}
	r, err := logring.NewRing[int](capacity)
	if err != nil {
		return benchResult{}, err
	}

	start := time.Now()
	var g errgroup.Group
	for p := 0; p < producers; p++ {
		from, to := p*items/producers, (p+1)*items/producers
		g.Go(func() error {
			for i := from; i < to; i++ {
				if err := r.Add(i); err != nil {
					return fmt.Errorf("add %d: %w", i, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return benchResult{}, err
	}
	r.CompleteAdding()
	elapsed := time.Since(start)

	n, err := r.Len()
	if err != nil {
		return benchResult{}, err
	}
	if want := min(items, r.Capacity()); n != want {
		return benchResult{}, fmt.Errorf("retained %d items, expected %d", n, want)
	}

	return benchResult{capacity: r.Capacity(), items: items, retained: n, elapsed: elapsed}, nil
}
