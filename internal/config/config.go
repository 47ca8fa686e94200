package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. PRICELENS_SERVER_ADDR.
const EnvPrefix = "PRICELENS"

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr            string        `yaml:"addr" envconfig:"addr" validate:"required"`
		ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"read_timeout" validate:"gte=0"`
		WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"write_timeout" validate:"gte=0"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"shutdown_timeout" validate:"gt=0"`
	} `yaml:"server" envconfig:"server"`
	DataSource struct {
		Provider   string        `yaml:"provider" envconfig:"provider" validate:"oneof=yahoo mock"`
		BaseURL    string        `yaml:"base_url" envconfig:"base_url" validate:"omitempty,url"`
		Proxy      string        `yaml:"proxy" envconfig:"proxy" validate:"omitempty,url"`
		Timeout    time.Duration `yaml:"timeout" envconfig:"timeout" validate:"gt=0"`
		MaxRetries *int          `yaml:"max_retries" envconfig:"max_retries" validate:"omitempty,gte=0,lte=10"`
		RatePerSec float64       `yaml:"rate_per_sec" envconfig:"rate_per_sec" validate:"gte=0"`
		Burst      int           `yaml:"burst" envconfig:"burst" validate:"gte=1"`
	} `yaml:"data_source" envconfig:"data_source"`
	Pipeline struct {
		FetchTimeout        time.Duration `yaml:"fetch_timeout" envconfig:"fetch_timeout" validate:"gt=0"`
		DefaultSymbol       string        `yaml:"default_symbol" envconfig:"default_symbol" validate:"required"`
		DefaultLookbackDays int           `yaml:"default_lookback_days" envconfig:"default_lookback_days" validate:"gte=1"`
	} `yaml:"pipeline" envconfig:"pipeline"`
	Cache struct {
		Backend  string        `yaml:"backend" envconfig:"backend" validate:"oneof=none memory redis"`
		TTL      time.Duration `yaml:"ttl" envconfig:"ttl" validate:"gte=0"`
		RedisURL string        `yaml:"redis_url" envconfig:"redis_url" validate:"required_if=Backend redis"`
		Prefix   string        `yaml:"prefix" envconfig:"prefix"`
	} `yaml:"cache" envconfig:"cache"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" envconfig:"sqlite_path"`
	} `yaml:"database" envconfig:"database"`
	Schedule struct {
		WarmupCron string   `yaml:"warmup_cron" envconfig:"warmup_cron"`
		Watchlist  []string `yaml:"watchlist" envconfig:"watchlist"`
	} `yaml:"schedule" envconfig:"schedule"`
	Logging struct {
		Level    string `yaml:"level" envconfig:"level" validate:"oneof=debug info warn error"`
		Encoding string `yaml:"encoding" envconfig:"encoding" validate:"oneof=json console"`
	} `yaml:"logging" envconfig:"logging"`
}

// Load reads .env, then the YAML file, then applies environment variable overrides and defaults.
// A missing .env or config file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if cfg.DataSource.Proxy == "" {
		cfg.DataSource.Proxy = os.Getenv("HTTPS_PROXY")
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	if c.DataSource.Timeout == 0 {
		c.DataSource.Timeout = 30 * time.Second
	}
	if c.DataSource.MaxRetries == nil {
		retries := 3
		c.DataSource.MaxRetries = &retries
	}
	if c.DataSource.RatePerSec == 0 {
		c.DataSource.RatePerSec = 2
	}
	if c.DataSource.Burst == 0 {
		c.DataSource.Burst = 2
	}
	if c.Pipeline.FetchTimeout == 0 {
		c.Pipeline.FetchTimeout = 45 * time.Second
	}
	if c.Pipeline.DefaultSymbol == "" {
		c.Pipeline.DefaultSymbol = "AAPL"
	}
	if c.Pipeline.DefaultLookbackDays == 0 {
		c.Pipeline.DefaultLookbackDays = 365
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 15 * time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = "json"
	}
}

// Validate checks every field constraint and reports all violations at once.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.ActualTag(), fe.Value()))
	}
	return errors.Join(errs...)
}
