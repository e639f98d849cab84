package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/gstats/config"
	"github.com/angeloszaimis/gstats/internal/httpserver"
	"github.com/angeloszaimis/gstats/internal/metrics"
	"github.com/angeloszaimis/gstats/internal/pidfile"
	"github.com/angeloszaimis/gstats/internal/transport"
)

var collectdFlags struct {
	ingestAddress  string
	controlAddress string
	statusAddress  string
	window         string
}

var collectdCmd = &cobra.Command{
	Use:   "collectd",
	Short: "Run the statistics collector daemon",
	Long: `Run the collector: a single event loop that ingests measurements,
answers QUERY commands and reacts to signals.

  SIGHUP                  reset every namespace
  SIGTERM, SIGQUIT, SIGINT stop the collector

Examples:
  # Start with default config
  gstats collectd

  # Override the ingest address and window
  gstats collectd --ingest 0.0.0.0:2345 --window 5m`,
	RunE: runCollectd,
}

func init() {
	rootCmd.AddCommand(collectdCmd)

	collectdCmd.Flags().StringVar(&collectdFlags.ingestAddress, "ingest", "", "override collector.ingest_address")
	collectdCmd.Flags().StringVar(&collectdFlags.controlAddress, "control", "", "override collector.control_address")
	collectdCmd.Flags().StringVar(&collectdFlags.statusAddress, "status", "", "override status.address")
	collectdCmd.Flags().StringVar(&collectdFlags.window, "window", "", "override collector.window, e.g. 60s")
}

func runCollectd(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	if err := applyCollectdFlags(cfg); err != nil {
		return err
	}

	pid, err := pidfile.Acquire(cfg.Collector.PIDFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := pid.Release(); err != nil {
			log.Warn("Failed to release pid file", slog.Any("err", err))
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	collector := metrics.NewCollector(metrics.NewStore(cfg.WindowDuration(), nil), log)

	servers, err := newCollectorServers(cfg, collector, log)
	if err != nil {
		return err
	}
	for _, srv := range servers {
		if err := srv.Listen(); err != nil {
			return fmt.Errorf("listen %s on %s: %w", srv.name, srv.Addr(), err)
		}
		log.Info("Listening", slog.String("endpoint", srv.name), slog.String("addr", srv.Addr()))
	}

	collector.Start(ctx)

	sigs := make(chan os.Signal, 8)
	signal.Notify(sigs, metrics.Signals...)
	defer signal.Stop(sigs)
	go metrics.RelaySignals(ctx, sigs, collector, log)

	log.Info("Collector started",
		slog.Int("pid", os.Getpid()),
		slog.String("window", cfg.WindowDuration().String()))

	err = serve(ctx, servers, collector.Done(), log)
	cancel()
	<-collector.Done()

	log.Info("Collector stopped")
	return err
}

func applyCollectdFlags(cfg *config.Config) error {
	if collectdFlags.ingestAddress != "" {
		cfg.Collector.IngestAddress = collectdFlags.ingestAddress
	}
	if collectdFlags.controlAddress != "" {
		cfg.Collector.ControlAddress = collectdFlags.controlAddress
	}
	if collectdFlags.statusAddress != "" {
		cfg.Status.Address = collectdFlags.statusAddress
	}
	if collectdFlags.window != "" {
		cfg.Collector.Window = collectdFlags.window
	}

	return cfg.Validate()
}

type server interface {
	Listen() error
	Start() error
	Shutdown(ctx context.Context) error
	Addr() string
}

type namedServer struct {
	server
	name string
}

// newCollectorServers builds the ingest and control endpoints and, when
// status.address is set, the in-process status server.
func newCollectorServers(cfg *config.Config, collector *metrics.Collector, log *slog.Logger) ([]namedServer, error) {
	ingest, err := transport.NewIngestServer(cfg.Collector.IngestAddress, collector, log)
	if err != nil {
		return nil, fmt.Errorf("ingest server: %w", err)
	}

	control, err := transport.NewControlServer(cfg.Collector.ControlAddress, collector, log)
	if err != nil {
		return nil, fmt.Errorf("control server: %w", err)
	}

	servers := []namedServer{
		{server: ingest, name: "ingest"},
		{server: control, name: "control"},
	}

	if cfg.Status.Address == "" {
		return servers, nil
	}

	router, err := setupStatusRouter(log, collector, cfg)
	if err != nil {
		return nil, err
	}

	status, err := httpserver.New(cfg.Status.Address, router)
	if err != nil {
		return nil, fmt.Errorf("status server: %w", err)
	}

	return append(servers, namedServer{server: status, name: "status"}), nil
}

// serve runs every server until one fails, ctx is cancelled or stopped is
// closed, then shuts all of them down.
func serve(ctx context.Context, servers []namedServer, stopped <-chan struct{}, log *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		g.Go(func() error {
			if err := srv.Start(); err != nil {
				return fmt.Errorf("%s server: %w", srv.name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-stopped:
		case <-gctx.Done():
		}

		log.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var errs error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = errors.Join(errs, fmt.Errorf("%s server: %w", srv.name, err))
			}
		}
		return errs
	})

	return g.Wait()
}
