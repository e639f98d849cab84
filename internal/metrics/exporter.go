package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Querier returns the raw reply to a QUERY control command.
type Querier interface {
	Query(ctx context.Context) ([]byte, error)
}

// Exporter exposes collector reports as Prometheus metrics. Every scrape goes
// through the control path, so the collector's store is never read from the
// scraping goroutine.
type Exporter struct {
	source  Querier
	timeout time.Duration
	logger  *slog.Logger

	up         *prometheus.Desc
	started    *prometheus.Desc
	finished   *prometheus.Desc
	processing *prometheus.Desc
	avg        *prometheus.Desc
	std        *prometheus.Desc
}

var _ prometheus.Collector = (*Exporter)(nil)

func NewExporter(source Querier, timeout time.Duration, logger *slog.Logger) *Exporter {
	labels := []string{"namespace"}

	return &Exporter{
		source:  source,
		timeout: timeout,
		logger:  logger,
		up: prometheus.NewDesc("gstats_up",
			"Whether the last query to the collector succeeded.", nil, nil),
		started: prometheus.NewDesc("gstats_requests_started_total",
			"Requests started since the last reset.", labels, nil),
		finished: prometheus.NewDesc("gstats_requests_finished_total",
			"Requests finished since the last reset.", labels, nil),
		processing: prometheus.NewDesc("gstats_requests_processing",
			"Started minus finished requests.", labels, nil),
		avg: prometheus.NewDesc("gstats_request_duration_avg_milliseconds",
			"Mean latency of requests finished within the window.", labels, nil),
		std: prometheus.NewDesc("gstats_request_duration_std_milliseconds",
			"Population standard deviation of latencies within the window.", labels, nil),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.up
	ch <- e.started
	ch <- e.finished
	ch <- e.processing
	ch <- e.avg
	ch <- e.std
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	report, err := e.fetch(ctx)
	if err != nil {
		e.logger.Warn("Failed to query collector", slog.Any("err", err))
		ch <- prometheus.MustNewConstMetric(e.up, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(e.up, prometheus.GaugeValue, 1)

	for namespace, snap := range report {
		ch <- prometheus.MustNewConstMetric(e.started, prometheus.CounterValue, float64(snap.Started), namespace)
		ch <- prometheus.MustNewConstMetric(e.finished, prometheus.CounterValue, float64(snap.Finished), namespace)
		ch <- prometheus.MustNewConstMetric(e.processing, prometheus.GaugeValue, float64(snap.Processing), namespace)
		ch <- prometheus.MustNewConstMetric(e.avg, prometheus.GaugeValue, snap.ProcessingTime.Avg, namespace)
		ch <- prometheus.MustNewConstMetric(e.std, prometheus.GaugeValue, snap.ProcessingTime.Std, namespace)
	}
}

func (e *Exporter) fetch(ctx context.Context) (Report, error) {
	body, err := e.source.Query(ctx)
	if err != nil {
		return nil, err
	}

	return DecodeReport(body)
}
