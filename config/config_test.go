package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/gstats/config"
)

var _ = Describe("Config", func() {
	var (
		tempDir string
		origDir string
	)

	BeforeEach(func() {
		var err error
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())

		Expect(os.Chdir(tempDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tempDir)
	})

	writeConfig := func(content string) string {
		configPath := filepath.Join(tempDir, "config.yaml")
		Expect(os.WriteFile(configPath, []byte(content), 0o644)).To(Succeed())
		return configPath
	}

	Describe("Load", func() {
		Context("without a config file", func() {
			It("should use defaults", func() {
				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Server.Environment).To(Equal(config.EnvDev))
				Expect(cfg.Collector.IngestAddress).To(Equal("127.0.0.1:2345"))
				Expect(cfg.Collector.ControlAddress).To(Equal("127.0.0.1:2346"))
				Expect(cfg.WindowDuration()).To(Equal(time.Minute))
				Expect(cfg.Status.AllowedAddresses).To(ConsistOf("127.0.0.1"))
				Expect(cfg.Tracker.Prefix).To(Equal("my_app"))
				Expect(cfg.AckTimeout()).To(Equal(250 * time.Millisecond))
				Expect(cfg.BreakerReset()).To(Equal(5 * time.Second))
				Expect(cfg.QueryTimeout()).To(Equal(2 * time.Second))
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelInfo))
			})

			It("should fail for an explicit path that does not exist", func() {
				_, err := config.Load(filepath.Join(tempDir, "missing.yaml"))
				Expect(err).To(HaveOccurred())
			})
		})

		Context("with a valid config file", func() {
			BeforeEach(func() {
				writeConfig(`
server:
  environment: "prod"

collector:
  ingest_address: "0.0.0.0:5555"
  control_address: "127.0.0.1:5556"
  window: "5m"

status:
  address: ""
  allowed_addresses: ["127.0.0.1", "10.0.0.0/8"]

tracker:
  prefix: "billing"
  ack_timeout: "1s"

logging:
  level: "debug"
`)
			})

			It("should load configuration from the working directory", func() {
				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Server.Environment).To(Equal(config.EnvProd))
				Expect(cfg.Collector.IngestAddress).To(Equal("0.0.0.0:5555"))
				Expect(cfg.WindowDuration()).To(Equal(5 * time.Minute))
				Expect(cfg.Status.Address).To(BeEmpty())
				Expect(cfg.Status.AllowedAddresses).To(ConsistOf("127.0.0.1", "10.0.0.0/8"))
				Expect(cfg.Tracker.Prefix).To(Equal("billing"))
				Expect(cfg.AckTimeout()).To(Equal(time.Second))
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelDebug))
			})

			It("should load an explicit path", func() {
				cfg, err := config.Load(filepath.Join(tempDir, "config.yaml"))
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Tracker.Prefix).To(Equal("billing"))
			})
		})

		Context("with environment variables", func() {
			AfterEach(func() {
				os.Unsetenv("GSTATS_COLLECTOR_WINDOW")
				os.Unsetenv("GSTATS_TRACKER_PREFIX")
			})

			It("should let the environment override defaults", func() {
				os.Setenv("GSTATS_COLLECTOR_WINDOW", "30s")
				os.Setenv("GSTATS_TRACKER_PREFIX", "search")

				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.WindowDuration()).To(Equal(30 * time.Second))
				Expect(cfg.Tracker.Prefix).To(Equal("search"))
			})
		})

		Context("with invalid values", func() {
			It("should reject an unknown environment", func() {
				writeConfig("server:\n  environment: \"qa\"\n")
				_, err := config.Load("")
				Expect(err).To(HaveOccurred())
			})

			It("should reject a malformed window", func() {
				writeConfig("collector:\n  window: \"soon\"\n")
				_, err := config.Load("")
				Expect(err).To(HaveOccurred())
			})

			It("should reject a zero window", func() {
				writeConfig("collector:\n  window: \"0s\"\n")
				_, err := config.Load("")
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Validate", func() {
		var cfg *config.Config

		BeforeEach(func() {
			var err error
			cfg, err = config.Load("")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should accept the defaults", func() {
			Expect(cfg.Validate()).To(Succeed())
		})

		DescribeTable("should reject",
			func(mutate func(*config.Config)) {
				mutate(cfg)
				Expect(cfg.Validate()).NotTo(Succeed())
			},
			Entry("an ingest address without a port", func(c *config.Config) { c.Collector.IngestAddress = "localhost" }),
			Entry("a malformed control address", func(c *config.Config) { c.Collector.ControlAddress = "a:b:c" }),
			Entry("an invalid allowed address", func(c *config.Config) { c.Status.AllowedAddresses = []string{"not-an-ip"} }),
			Entry("an invalid CIDR", func(c *config.Config) { c.Status.AllowedAddresses = []string{"10.0.0.0/99"} }),
			Entry("a zero breaker threshold", func(c *config.Config) { c.Tracker.BreakerThreshold = 0 }),
			Entry("an empty prefix", func(c *config.Config) { c.Tracker.Prefix = "" }),
			Entry("an unknown log level", func(c *config.Config) { c.Logging.Level = "trace" }),
			Entry("an empty pid file", func(c *config.Config) { c.Collector.PIDFile = "" }),
		)
	})
})
