package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/centraunit/dikernel"
)

var (
	benchWorkers    int
	benchIterations int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure resolve/release throughput on a sample component graph",
	Long: `Resolve and release a transient, intercepted handler backed by pooled
sessions from several goroutines at once, then report throughput and the
final pool occupancy.`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().IntVarP(&benchWorkers, "workers", "w", 8, "number of concurrent goroutines")
	benchCmd.Flags().IntVarP(&benchIterations, "iterations", "n", 10000, "resolutions per goroutine")
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchWorkers <= 0 || benchIterations <= 0 {
		return fmt.Errorf("workers and iterations must be positive")
	}
	k := newKernel()
	defer k.Dispose()

	counter, err := registerSample(k)
	if err != nil {
		return fmt.Errorf("registering sample components: %w", err)
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(cmd.Context())
	for range benchWorkers {
		g.Go(func() error {
			return benchWorker(ctx, k)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	total := benchWorkers * benchIterations
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "resolutions: %d in %s (%.0f/s)\n", total, elapsed, float64(total)/elapsed.Seconds())
	fmt.Fprintf(out, "intercepted calls: %d\n", counter.calls.Load())
	return nil
}

func benchWorker(ctx context.Context, k *dikernel.Kernel) error {
	for range benchIterations {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, err := dikernel.ResolveContext[requestHandler](ctx, k, nil)
		if err != nil {
			return err
		}
		h.Handle("ping")
		if err := k.Release(h); err != nil {
			return err
		}
	}
	return nil
}
