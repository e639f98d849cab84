package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/gstats/internal/circuitbreaker"
	"github.com/angeloszaimis/gstats/internal/httpserver"
	"github.com/angeloszaimis/gstats/internal/metrics"
	"github.com/angeloszaimis/gstats/internal/transport"
)

var statusFlags struct {
	listen  string
	control string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Serve /_status and /metrics for a remote collector",
	Long: `Run a standalone HTTP relay. Every GET /_status sends QUERY to the
collector's control endpoint and returns the reply verbatim. Callers outside
status.allowed_addresses get 403.

/metrics also exports gstats_collector_breaker_state. SIGHUP closes every
breaker so the next request dials the collector again.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusFlags.listen, "listen", "l", "", "override status.address")
	statusCmd.Flags().StringVar(&statusFlags.control, "control", "", "override collector.control_address")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	if statusFlags.listen != "" {
		cfg.Status.Address = statusFlags.listen
	}
	if statusFlags.control != "" {
		cfg.Collector.ControlAddress = statusFlags.control
	}
	if cfg.Status.Address == "" {
		return errors.New("status.address is empty")
	}

	client := transport.NewClient(cfg.QueryTimeout(),
		circuitbreaker.NewRegistry(cfg.Tracker.BreakerThreshold, cfg.BreakerReset()))
	defer client.Close()

	router, err := setupStatusRouter(log,
		transport.NewControlQuerier(client, cfg.Collector.ControlAddress), cfg,
		metrics.NewBreakerExporter(client.Breakers()))
	if err != nil {
		return err
	}

	srv, err := httpserver.New(cfg.Status.Address, router)
	if err != nil {
		return fmt.Errorf("status server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go resetBreakersOnHangup(ctx, hup, client.Breakers(), log)

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Start()
	}()

	log.Info("Status relay started",
		slog.String("addr", cfg.Status.Address),
		slog.String("collector", cfg.Collector.ControlAddress))

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
		return nil
	case err := <-srvErrCh:
		return err
	}
}

// resetBreakersOnHangup forgets every breaker state on each signal from sigs.
func resetBreakersOnHangup(ctx context.Context, sigs <-chan os.Signal, breakers *circuitbreaker.Registry, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			log.Info("Resetting collector circuit breakers", slog.Int("endpoints", len(breakers.Stats())))
			breakers.Reset()
		}
	}
}
