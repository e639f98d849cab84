package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/gstats/internal/tracker"
)

type trafficOptions struct {
	Workers   int
	Requests  int
	MaxDelay  time.Duration
	Address   string
	Namespace string
}

type trafficResult struct {
	Completed int64
	Dropped   int64
	Elapsed   time.Duration
}

var trafficFlags trafficOptions

var trafficCmd = &cobra.Command{
	Use:   "traffic",
	Short: "Generate synthetic requests against the collector",
	Long: `Start --workers goroutines that each run --requests fake requests. Every
request is reported to the collector through the tracker and sleeps a random
duration up to --max-delay between its start and end.`,
	Args: cobra.NoArgs,
	RunE: runTrafficCmd,
}

func init() {
	rootCmd.AddCommand(trafficCmd)

	trafficCmd.Flags().IntVarP(&trafficFlags.Workers, "workers", "w", 10, "concurrent workers")
	trafficCmd.Flags().IntVarP(&trafficFlags.Requests, "requests", "n", 100, "requests per worker")
	trafficCmd.Flags().DurationVar(&trafficFlags.MaxDelay, "max-delay", 500*time.Millisecond, "upper bound of the simulated request duration")
	trafficCmd.Flags().StringVar(&trafficFlags.Address, "collector", "", "override tracker.collector_address")
	trafficCmd.Flags().StringVar(&trafficFlags.Namespace, "namespace", "", "override tracker.prefix")
}

func runTrafficCmd(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	opts := trafficFlags
	if opts.Address == "" {
		opts.Address = cfg.Tracker.CollectorAddress
	}
	if opts.Namespace == "" {
		opts.Namespace = cfg.Tracker.Prefix
	}

	tr, client := newTracker(cfg, log)
	defer client.Close()

	res, err := runTraffic(cmd.Context(), tr, opts)
	if err != nil {
		return err
	}

	log.Info("Traffic finished",
		slog.Int64("completed", res.Completed),
		slog.Int64("dropped", res.Dropped),
		slog.Duration("elapsed", res.Elapsed))
	fmt.Fprintf(cmd.OutOrStdout(), "%d requests in %s, %d measurements dropped\n",
		res.Completed, res.Elapsed.Round(time.Millisecond), res.Dropped)
	return nil
}

func runTraffic(ctx context.Context, tr *tracker.Tracker, opts trafficOptions) (trafficResult, error) {
	if opts.Workers < 1 || opts.Requests < 1 {
		return trafficResult{}, fmt.Errorf("workers and requests must be positive, got %d and %d", opts.Workers, opts.Requests)
	}

	var completed atomic.Int64
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for range opts.Workers {
		g.Go(func() error {
			for range opts.Requests {
				id := tracker.NewRequestID()
				tr.Start(id, true, opts.Address, opts.Namespace)

				if err := sleep(gctx, randomDelay(opts.MaxDelay)); err != nil {
					tr.End(id, opts.Address, opts.Namespace)
					return err
				}

				tr.End(id, opts.Address, opts.Namespace)
				completed.Add(1)
			}
			return nil
		})
	}

	err := g.Wait()
	return trafficResult{
		Completed: completed.Load(),
		Dropped:   tr.Dropped(),
		Elapsed:   time.Since(start),
	}, err
}

func randomDelay(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit + 1)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
