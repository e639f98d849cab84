package config

import (
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/gstats/internal/httpserver"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// EnvPrefix namespaces the environment variables read by Load,
// e.g. GSTATS_COLLECTOR_WINDOW.
const EnvPrefix = "GSTATS"

type ServerConfig struct {
	Environment string `mapstructure:"environment"`
}

type CollectorConfig struct {
	IngestAddress  string `mapstructure:"ingest_address"`
	ControlAddress string `mapstructure:"control_address"`
	Window         string `mapstructure:"window"`
	PIDFile        string `mapstructure:"pid_file"`
}

type StatusConfig struct {
	Address          string   `mapstructure:"address"`
	AllowedAddresses []string `mapstructure:"allowed_addresses"`
	QueryTimeout     string   `mapstructure:"query_timeout"`
}

type TrackerConfig struct {
	CollectorAddress string `mapstructure:"collector_address"`
	Prefix           string `mapstructure:"prefix"`
	AckTimeout       string `mapstructure:"ack_timeout"`
	BreakerThreshold int    `mapstructure:"breaker_threshold"`
	BreakerReset     string `mapstructure:"breaker_reset"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Collector CollectorConfig `mapstructure:"collector"`
	Status    StatusConfig    `mapstructure:"status"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("collector.ingest_address", "127.0.0.1:2345")
	v.SetDefault("collector.control_address", "127.0.0.1:2346")
	v.SetDefault("collector.window", "60s")
	v.SetDefault("collector.pid_file", "gstats-collectd.pid")
	v.SetDefault("status.address", "127.0.0.1:8090")
	v.SetDefault("status.allowed_addresses", []string{"127.0.0.1"})
	v.SetDefault("status.query_timeout", "2s")
	v.SetDefault("tracker.collector_address", "127.0.0.1:2345")
	v.SetDefault("tracker.prefix", "my_app")
	v.SetDefault("tracker.ack_timeout", "250ms")
	v.SetDefault("tracker.breaker_threshold", 3)
	v.SetDefault("tracker.breaker_reset", "5s")
	v.SetDefault("logging.level", LogLevelInfo)
}

// Load reads the configuration. With an empty path it looks for config.yaml
// in ./config and the working directory and falls back to defaults when none
// exists; an explicit path must exist. Environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Debug("config file not found, using defaults and environment variables")
	} else {
		slog.Debug("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Collector,
			validation.By(func(value interface{}) error {
				cc, ok := value.(CollectorConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CollectorConfig")
				}
				return validation.ValidateStruct(&cc,
					validation.Field(&cc.IngestAddress, validation.Required, validation.By(httpserver.ValidateHostPort)),
					validation.Field(&cc.ControlAddress, validation.Required, validation.By(httpserver.ValidateHostPort)),
					validation.Field(&cc.Window, validation.Required, validation.By(validatePositiveDuration)),
					validation.Field(&cc.PIDFile, validation.Required),
				)
			}),
		),
		validation.Field(&c.Status,
			validation.By(func(value interface{}) error {
				sc, ok := value.(StatusConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a StatusConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Address, validation.By(httpserver.ValidateHostPort)),
					validation.Field(&sc.AllowedAddresses, validation.Each(validation.By(validateAllowedAddress))),
					validation.Field(&sc.QueryTimeout, validation.Required, validation.By(validatePositiveDuration)),
				)
			}),
		),
		validation.Field(&c.Tracker,
			validation.By(func(value interface{}) error {
				tc, ok := value.(TrackerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a TrackerConfig")
				}
				return validation.ValidateStruct(&tc,
					validation.Field(&tc.CollectorAddress, validation.Required),
					validation.Field(&tc.Prefix, validation.Required),
					validation.Field(&tc.AckTimeout, validation.Required, validation.By(validatePositiveDuration)),
					validation.Field(&tc.BreakerThreshold, validation.Required, validation.Min(1)),
					validation.Field(&tc.BreakerReset, validation.Required, validation.By(validatePositiveDuration)),
				)
			}),
		),
	)
}

// WindowDuration returns the parsed collector window.
func (c *Config) WindowDuration() time.Duration {
	return mustDuration(c.Collector.Window)
}

// QueryTimeout returns the parsed status query timeout.
func (c *Config) QueryTimeout() time.Duration {
	return mustDuration(c.Status.QueryTimeout)
}

// AckTimeout returns the parsed tracker acknowledgment timeout.
func (c *Config) AckTimeout() time.Duration {
	return mustDuration(c.Tracker.AckTimeout)
}

// BreakerReset returns the parsed circuit breaker reset timeout.
func (c *Config) BreakerReset() time.Duration {
	return mustDuration(c.Tracker.BreakerReset)
}

// mustDuration is only used on validated values; an unparsable string yields 0.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func validatePositiveDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 250ms, 2s, 5m)")
	}

	if d <= 0 {
		return validation.NewError("validation_nonpositive_duration", "must be greater than zero")
	}

	return nil
}

func validateAllowedAddress(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if strings.Contains(addr, "/") {
		if _, _, err := net.ParseCIDR(addr); err != nil {
			return validation.NewError("validation_invalid_cidr", "must be a valid CIDR block")
		}
		return nil
	}

	return is.IP.Validate(addr)
}
