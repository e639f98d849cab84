package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/gstats/config"
	"github.com/angeloszaimis/gstats/internal/circuitbreaker"
	"github.com/angeloszaimis/gstats/internal/tracker"
	"github.com/angeloszaimis/gstats/internal/transport"
	"github.com/angeloszaimis/gstats/pkg/logger"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "gstats",
	Short: "Request-latency statistics collector",
	Long: `gstats aggregates request start and end events reported by worker
processes into per-namespace counts and latency distributions over a sliding
time window, and serves them on demand.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: ./config/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)
	return cfg, log, nil
}

// newTracker wires a tracker to a breaker-guarded transport client. The
// caller owns the client and closes it on exit.
func newTracker(cfg *config.Config, log *slog.Logger) (*tracker.Tracker, *transport.Client) {
	breakers := circuitbreaker.NewRegistry(cfg.Tracker.BreakerThreshold, cfg.BreakerReset())
	client := transport.NewClient(cfg.AckTimeout(), breakers)

	return tracker.New(client, log, tracker.WithTimeout(cfg.AckTimeout())), client
}
