package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. FETCHER_HTTP_USER_AGENT
const EnvPrefix = "FETCHER"

// Config represents the entire application configuration
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Transfer TransferConfig `mapstructure:"transfer"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
}

// HTTPConfig contains HTTP client configuration
type HTTPConfig struct {
	ConnectTimeout      string `mapstructure:"connect_timeout"`
	ReadTimeout         string `mapstructure:"read_timeout"`
	UserAgent           string `mapstructure:"user_agent"`
	MaxIdleConnsPerHost int    `mapstructure:"max_idle_conns_per_host"`
}

// TransferConfig contains transfer settings
type TransferConfig struct {
	Segments    int    `mapstructure:"segments"` // 0 = one per CPU, clamped to [2, 8]
	MaxAttempts int    `mapstructure:"max_attempts"`
	Backoff     string `mapstructure:"backoff"`
	ReserveMB   int    `mapstructure:"reserve_mb"` // free space kept on the destination volume

	// MaxRetryAfter caps how long a server Retry-After may delay a retry
	MaxRetryAfter string `mapstructure:"max_retry_after"`
}

// ProgressConfig contains progress throttling settings
type ProgressConfig struct {
	SegmentInterval string `mapstructure:"segment_interval"`
	StreamInterval  string `mapstructure:"stream_interval"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"` // empty disables transfer history
}

// Load loads configuration from configPath. An empty path uses defaults
// and environment overrides only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.connect_timeout", "5s")
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.user_agent", "artifact-fetcher/1.0")
	v.SetDefault("http.max_idle_conns_per_host", 16)
	v.SetDefault("transfer.segments", 0)
	v.SetDefault("transfer.max_attempts", 3)
	v.SetDefault("transfer.backoff", "500ms")
	v.SetDefault("transfer.reserve_mb", 0)
	v.SetDefault("transfer.max_retry_after", "30s")
	v.SetDefault("progress.segment_interval", "100ms")
	v.SetDefault("progress.stream_interval", "20ms")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("database.path", "")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	durations := map[string]string{
		"http.connect_timeout":      c.HTTP.ConnectTimeout,
		"http.read_timeout":         c.HTTP.ReadTimeout,
		"transfer.backoff":          c.Transfer.Backoff,
		"transfer.max_retry_after":  c.Transfer.MaxRetryAfter,
		"progress.segment_interval": c.Progress.SegmentInterval,
		"progress.stream_interval":  c.Progress.StreamInterval,
	}
	for key, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}

	if c.HTTP.MaxIdleConnsPerHost < 0 {
		return errors.New("http.max_idle_conns_per_host must not be negative")
	}

	// Out of range segment counts are clamped by the planner
	if c.Transfer.Segments < 0 {
		return errors.New("transfer.segments must not be negative")
	}
	if c.Transfer.MaxAttempts < 1 {
		return errors.New("transfer.max_attempts must be at least 1")
	}
	if c.Transfer.ReserveMB < 0 {
		return errors.New("transfer.reserve_mb must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// GetConnectTimeout returns the connect timeout as time.Duration
func (c *HTTPConfig) GetConnectTimeout() time.Duration {
	d, _ := time.ParseDuration(c.ConnectTimeout)
	if d == 0 {
		return 5 * time.Second
	}
	return d
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(c.ReadTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetBackoff returns the base retry backoff as time.Duration
func (c *TransferConfig) GetBackoff() time.Duration {
	d, _ := time.ParseDuration(c.Backoff)
	if d == 0 {
		return 500 * time.Millisecond
	}
	return d
}

// GetMaxRetryAfter returns the Retry-After cap as time.Duration
func (c *TransferConfig) GetMaxRetryAfter() time.Duration {
	d, _ := time.ParseDuration(c.MaxRetryAfter)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetReserveBytes returns the reserved free space in bytes
func (c *TransferConfig) GetReserveBytes() uint64 {
	if c.ReserveMB <= 0 {
		return 0
	}
	return uint64(c.ReserveMB) * 1024 * 1024
}

// GetSegmentInterval returns the segmented progress interval
func (c *ProgressConfig) GetSegmentInterval() time.Duration {
	d, _ := time.ParseDuration(c.SegmentInterval)
	if d == 0 {
		return 100 * time.Millisecond
	}
	return d
}

// GetStreamInterval returns the single-stream progress interval
func (c *ProgressConfig) GetStreamInterval() time.Duration {
	d, _ := time.ParseDuration(c.StreamInterval)
	if d == 0 {
		return 20 * time.Millisecond
	}
	return d
}
