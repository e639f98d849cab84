package metrics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/gstats/internal/metrics"
)

var _ = Describe("Store", func() {
	var (
		store *metrics.Store
		now   time.Time
	)

	BeforeEach(func() {
		now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		store = metrics.NewStore(time.Minute, func() time.Time { return now })
	})

	Describe("NewStore", func() {
		It("should start without namespaces", func() {
			Expect(store.Assemble()).To(BeEmpty())
			Expect(store.Namespaces()).To(Equal(0))
		})

		It("should default to the wall clock", func() {
			s := metrics.NewStore(time.Minute, nil)
			s.Collect("my_app", metrics.Started, 0)
			Expect(s.Assemble()["my_app"].Started).To(Equal(int64(1)))
		})
	})

	Describe("Collect", func() {
		It("should create a namespace on first use", func() {
			store.Collect("my_app", metrics.Started, 0)

			report := store.Assemble()
			Expect(report).To(HaveKey("my_app"))
			Expect(report["my_app"].Started).To(Equal(int64(1)))
			Expect(report["my_app"].Finished).To(Equal(int64(0)))
			Expect(report["my_app"].Processing).To(Equal(int64(1)))
		})

		It("should keep namespaces separate", func() {
			store.Collect("a", metrics.Started, 0)
			store.Collect("b", metrics.Started, 0)
			store.Collect("b", metrics.Finished, 5)

			report := store.Assemble()
			Expect(report["a"].Processing).To(Equal(int64(1)))
			Expect(report["b"].Processing).To(Equal(int64(0)))
			Expect(report["b"].ProcessingTime.Avg).To(Equal(5.0))
		})
	})

	Describe("Assemble", func() {
		It("should report zeros for a namespace without finished samples", func() {
			store.Collect("idle", metrics.Started, 0)

			snap := store.Assemble()["idle"]
			Expect(snap.ProcessingTime.Avg).To(Equal(0.0))
			Expect(snap.ProcessingTime.Std).To(Equal(0.0))
		})

		It("should compute mean and population standard deviation", func() {
			for _, v := range []float64{10, 20, 30} {
				store.Collect("my_app", metrics.Started, 0)
				store.Collect("my_app", metrics.Finished, v)
			}

			snap := store.Assemble()["my_app"]
			Expect(snap.Started).To(Equal(int64(3)))
			Expect(snap.Finished).To(Equal(int64(3)))
			Expect(snap.Processing).To(Equal(int64(0)))
			Expect(snap.ProcessingTime.Avg).To(BeNumerically("~", 20, 1e-9))
			Expect(snap.ProcessingTime.Std).To(BeNumerically("~", 8.165, 0.001))
		})

		It("should only average latencies still inside the window", func() {
			store.Collect("my_app", metrics.Finished, 1000)
			now = now.Add(2 * time.Minute)
			store.Collect("my_app", metrics.Finished, 10)

			snap := store.Assemble()["my_app"]
			Expect(snap.Finished).To(Equal(int64(2)))
			Expect(snap.ProcessingTime.Avg).To(Equal(10.0))
			Expect(snap.ProcessingTime.Std).To(Equal(0.0))
		})

		It("should keep lifetime counts when starts fall out of the window", func() {
			store.Collect("my_app", metrics.Started, 0)
			now = now.Add(time.Hour)
			store.Collect("my_app", metrics.Started, 0)
			store.Collect("my_app", metrics.Finished, 3)

			snap := store.Assemble()["my_app"]
			Expect(snap.Started).To(Equal(int64(2)))
			Expect(snap.Processing).To(Equal(int64(1)))
		})

		It("should return an independent report", func() {
			store.Collect("my_app", metrics.Started, 0)
			first := store.Assemble()
			store.Collect("my_app", metrics.Started, 0)

			Expect(first["my_app"].Started).To(Equal(int64(1)))
			Expect(store.Assemble()["my_app"].Started).To(Equal(int64(2)))
		})
	})

	Describe("Reset", func() {
		It("should clear every namespace", func() {
			store.Collect("a", metrics.Started, 0)
			store.Collect("b", metrics.Finished, 12)

			store.Reset()

			report := store.Assemble()
			Expect(report).To(BeEmpty())
			Expect(report["a"]).To(Equal(metrics.Snapshot{}))
			Expect(report["b"]).To(Equal(metrics.Snapshot{}))
		})

		It("should let namespaces be recreated", func() {
			store.Collect("a", metrics.Started, 0)
			store.Reset()
			store.Collect("a", metrics.Finished, 7)

			snap := store.Assemble()["a"]
			Expect(snap.Started).To(Equal(int64(0)))
			Expect(snap.Finished).To(Equal(int64(1)))
			Expect(snap.Processing).To(Equal(int64(-1)))
		})
	})

	Describe("Kind.String", func() {
		It("should name each kind", func() {
			Expect(metrics.Started.String()).To(Equal("started"))
			Expect(metrics.Finished.String()).To(Equal("finished"))
			Expect(metrics.Kind(9).String()).To(Equal("unknown"))
		})
	})
})
