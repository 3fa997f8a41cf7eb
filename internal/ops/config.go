// Package ops loads the process configuration. Values come from a yaml
// file with environment-variable overrides (e.g. POSTGRES_PASSWORD,
// BINANCE_SECRET_KEY), so secrets stay out of the file.
package ops

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

type Config struct {
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Binance   BinanceConfig   `mapstructure:"binance"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Rates     RatesConfig     `mapstructure:"rates"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type BinanceConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	SecretKey string        `mapstructure:"secret_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Wait        time.Duration `mapstructure:"wait"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RateLimit   float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	Burst       int           `mapstructure:"burst"`
}

type RatesConfig struct {
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	OutlierThreshold float64       `mapstructure:"outlier_threshold"`
	DecayFactor      float64       `mapstructure:"decay_factor"`
}

type ProfilingConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServerAddress string `mapstructure:"server_address"`
}

// Load reads the yaml config at path and applies env overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("binance.base_url", "https://api.binance.com")
	v.SetDefault("binance.timeout", 10*time.Second)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.wait", 500*time.Millisecond)
	v.SetDefault("retry.timeout", 10*time.Second)
	v.SetDefault("rates.cache_ttl", 30*time.Second)
	v.SetDefault("rates.outlier_threshold", 0.1)
	v.SetDefault("rates.decay_factor", 0.9)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrapf(err, "read config: %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Postgres.Database == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "postgres database is empty")
	}
	if c.Retry.MaxAttempts <= 0 {
		return errors.Wrapf(exception.ErrInvalidArgument, "retry max attempts: %d", c.Retry.MaxAttempts)
	}
	if c.Rates.OutlierThreshold <= 0 || c.Rates.DecayFactor <= 0 || c.Rates.DecayFactor > 1 {
		return errors.Wrapf(exception.ErrInvalidArgument,
			"rates thresholds, outlier: %v, decay: %v", c.Rates.OutlierThreshold, c.Rates.DecayFactor)
	}
	if c.Profiling.Enabled && c.Profiling.ServerAddress == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "profiling server address is empty")
	}
	return nil
}
