package metrics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angeloszaimis/gstats/internal/circuitbreaker"
	"github.com/angeloszaimis/gstats/internal/metrics"
)

var _ = Describe("BreakerExporter", func() {
	const (
		ingest  = "ws://127.0.0.1:2345/ingest"
		control = "ws://127.0.0.1:2346/control"
	)

	It("should export one gauge per known endpoint", func() {
		breakers := circuitbreaker.NewRegistry(1, time.Minute)
		breakers.GetBreaker(ingest)
		breakers.GetBreaker(control).RecordFailure()

		registry := prometheus.NewRegistry()
		registry.MustRegister(metrics.NewBreakerExporter(breakers))

		families, err := registry.Gather()
		Expect(err).NotTo(HaveOccurred())
		Expect(families).To(HaveLen(1))
		Expect(families[0].GetName()).To(Equal("gstats_collector_breaker_state"))

		states := map[string]float64{}
		for _, m := range families[0].GetMetric() {
			states[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
		}
		Expect(states).To(Equal(map[string]float64{
			ingest:  float64(circuitbreaker.StateClosed),
			control: float64(circuitbreaker.StateOpen),
		}))
	})

	It("should export nothing before any endpoint is dialed", func() {
		registry := prometheus.NewRegistry()
		registry.MustRegister(metrics.NewBreakerExporter(circuitbreaker.NewRegistry(1, time.Minute)))

		families, err := registry.Gather()
		Expect(err).NotTo(HaveOccurred())
		Expect(families).To(BeEmpty())
	})
})
