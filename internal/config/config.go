package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"infbench/internal/runner"
)

// EnvPrefix is prepended to every environment override, e.g. INFBENCH_REQUESTS.
const EnvPrefix = "INFBENCH"

// Config holds all application configuration
type Config struct {
	Gateway  string        `mapstructure:"gateway" validate:"required,url"`
	Requests int           `mapstructure:"requests" validate:"min=0"`
	Threads  int           `mapstructure:"threads" validate:"min=1"`
	Workers  []string      `mapstructure:"workers" validate:"dive,url"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`

	PayloadTemplate string `mapstructure:"payload_template"`

	CacheTest CacheTestConfig `mapstructure:"cache_test"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`

	TUI bool `mapstructure:"tui"`
}

// CacheTestConfig holds the cache effectiveness experiment settings
type CacheTestConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests" validate:"min=1"`
	Pause    time.Duration `mapstructure:"pause" validate:"min=0"`
}

// ProbeConfig holds the system statistics probe settings
type ProbeConfig struct {
	Disabled bool          `mapstructure:"disabled"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// MetricsConfig holds the prometheus endpoint settings
type MetricsConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=json text"` // "json" or "text"
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("gateway", "http://localhost:8000")
	v.SetDefault("requests", 1000)
	v.SetDefault("threads", 10)
	v.SetDefault("workers", []string{"http://localhost:8001", "http://localhost:8002", "http://localhost:8003"})
	v.SetDefault("timeout", runner.DefaultTimeout)
	v.SetDefault("payload_template", "")

	v.SetDefault("cache_test.enabled", false)
	v.SetDefault("cache_test.requests", 100)
	v.SetDefault("cache_test.pause", time.Second)

	v.SetDefault("probe.disabled", false)
	v.SetDefault("probe.timeout", 5*time.Second)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")

	v.SetDefault("tui", false)
}

// Load reads an optional config file, the environment and whatever flags
// were bound to v, then validates the result.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".infbench")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Runner converts the configuration into the load driver's settings.
func (c *Config) Runner() runner.Config {
	return runner.Config{
		GatewayURL:      c.Gateway,
		Requests:        c.Requests,
		Workers:         c.Threads,
		Timeout:         c.Timeout,
		PayloadTemplate: c.PayloadTemplate,
	}
}
