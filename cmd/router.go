package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angeloszaimis/gstats/config"
	"github.com/angeloszaimis/gstats/internal/handler"
	"github.com/angeloszaimis/gstats/internal/metrics"
)

// setupStatusRouter serves /_status and /metrics, both answered from source.
// extra collectors are added to the /metrics registry.
func setupStatusRouter(log *slog.Logger, source metrics.Querier, cfg *config.Config, extra ...prometheus.Collector) (http.Handler, error) {
	allowed, err := handler.NewAllowList(cfg.Status.AllowedAddresses)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	if err := registry.Register(metrics.NewExporter(source, cfg.QueryTimeout(), log)); err != nil {
		return nil, fmt.Errorf("register exporter: %w", err)
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, c := range extra {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	exporter := promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})

	status := handler.NewStatusHandler(log, source, allowed, cfg.QueryTimeout())
	return handler.NewStatusMux(status, exporter), nil
}
