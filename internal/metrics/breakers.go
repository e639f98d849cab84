package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angeloszaimis/gstats/internal/circuitbreaker"
)

// BreakerStats reports the breaker state of every collector endpoint dialed so far.
type BreakerStats interface {
	Stats() map[string]circuitbreaker.State
}

// BreakerExporter publishes breaker states as a gauge per endpoint:
// 0 closed, 1 open, 2 half-open.
type BreakerExporter struct {
	source BreakerStats
	state  *prometheus.Desc
}

var _ prometheus.Collector = (*BreakerExporter)(nil)

func NewBreakerExporter(source BreakerStats) *BreakerExporter {
	return &BreakerExporter{
		source: source,
		state: prometheus.NewDesc("gstats_collector_breaker_state",
			"Circuit breaker state per collector endpoint (0 closed, 1 open, 2 half-open).",
			[]string{"endpoint"}, nil),
	}
}

func (e *BreakerExporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.state
}

func (e *BreakerExporter) Collect(ch chan<- prometheus.Metric) {
	for endpoint, state := range e.source.Stats() {
		ch <- prometheus.MustNewConstMetric(e.state, prometheus.GaugeValue, float64(state), endpoint)
	}
}
