// Package config loads and validates sweep configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every configuration knob loaded via Viper.
type Config struct {
	Sweep   SweepConfig   `mapstructure:"sweep"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Output  OutputConfig  `mapstructure:"output"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SweepConfig governs the enumeration engine.
type SweepConfig struct {
	BaseURL                string  `mapstructure:"base_url"`
	UserAgent              string  `mapstructure:"user_agent"`
	Threads                int     `mapstructure:"threads"`
	IncludeShortCodes      bool    `mapstructure:"include_short_codes"`
	IncludeLongCodes       bool    `mapstructure:"include_long_codes"`
	BatchSize              int     `mapstructure:"batch_size"`
	InterBatchDelaySeconds float64 `mapstructure:"inter_batch_delay_seconds"`
	RatePerSecond          float64 `mapstructure:"rate_per_second"`
}

// HTTPConfig configures probe timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// OutputConfig sets the durable record store location.
type OutputConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig controls the optional metrics/health HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sweep.base_url", "https://instaud.io")
	v.SetDefault("sweep.user_agent", "instasweep/1.0 (+https://github.com/instasweep/instasweep)")
	v.SetDefault("sweep.threads", 15)
	v.SetDefault("sweep.include_short_codes", true)
	v.SetDefault("sweep.include_long_codes", true)
	v.SetDefault("sweep.batch_size", 500)
	v.SetDefault("sweep.inter_batch_delay_seconds", 0.5)
	v.SetDefault("sweep.rate_per_second", 0.0)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)
	v.SetDefault("output.path", "instaudio_results.csv")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9091)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Sweep.BaseURL == "" {
		return fmt.Errorf("sweep.base_url must be set")
	}
	if c.Sweep.UserAgent == "" {
		return fmt.Errorf("sweep.user_agent must be set")
	}
	if c.Sweep.Threads <= 0 {
		return fmt.Errorf("sweep.threads must be > 0")
	}
	if c.Sweep.BatchSize <= 0 {
		return fmt.Errorf("sweep.batch_size must be > 0")
	}
	if c.Sweep.InterBatchDelaySeconds < 0 {
		return fmt.Errorf("sweep.inter_batch_delay_seconds must be >= 0")
	}
	if c.Sweep.RatePerSecond < 0 {
		return fmt.Errorf("sweep.rate_per_second must be >= 0")
	}
	if !c.Sweep.IncludeShortCodes && !c.Sweep.IncludeLongCodes {
		return fmt.Errorf("at least one of sweep.include_short_codes and sweep.include_long_codes must be true")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path must be set")
	}
	if c.Metrics.Enabled && c.Metrics.Port <= 0 {
		return fmt.Errorf("metrics.port must be > 0 when metrics are enabled")
	}
	return nil
}

// InterBatchDelay returns the polite pause between batches.
func (c Config) InterBatchDelay() time.Duration {
	return time.Duration(c.Sweep.InterBatchDelaySeconds * float64(time.Second))
}

// RequestTimeout returns the per-probe HTTP timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the first retry delay.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the retry delay ceiling.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}
