// Package config loads and validates the gateway configuration from an
// optional YAML file and HLRGATE_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/smppware/hlrgate/internal/logger"
	"github.com/smppware/hlrgate/pkg/cache"
	"github.com/smppware/hlrgate/pkg/gateway"
	"github.com/smppware/hlrgate/pkg/hlr"
	"github.com/smppware/hlrgate/pkg/metrics"
	"github.com/smppware/hlrgate/pkg/store"
)

// Config is the complete gateway configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (HLRGATE_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// SMPP configures the SMPP listener and session behavior.
	SMPP gateway.Config `mapstructure:"smpp"`

	// HLR configures the lookup provider and the result cache policy.
	HLR HLRConfig `mapstructure:"hlr"`

	// Redis configures the cache backend.
	Redis RedisConfig `mapstructure:"redis"`

	// Database configures the optional lookup store.
	Database DatabaseConfig `mapstructure:"database"`

	// Warmup configures the startup cache preload from the store.
	Warmup WarmupConfig `mapstructure:"warmup"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// DLR configures delivery receipt timing.
	DLR DLRConfig `mapstructure:"dlr"`
}

// HLRConfig configures the HLR provider and lookup behavior.
type HLRConfig struct {
	// BaseURL is the provider endpoint without trailing slash.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// APIKey and APISecret are the provider credentials, embedded in the
	// lookup URL path.
	APIKey    string `mapstructure:"api_key" validate:"required"`
	APISecret string `mapstructure:"api_secret" validate:"required"`

	// Timeout bounds one provider request.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`

	// TimeoutPolicy is what happens to a submit when the provider times
	// out. Only "reject" is supported.
	TimeoutPolicy string `mapstructure:"timeout_policy" validate:"oneof=reject"`

	// CacheTTL is the lifetime of cached lookup results. 0 disables the
	// cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"min=0"`

	// MaxConcurrency caps in-flight provider requests across all sessions.
	MaxConcurrency int `mapstructure:"max_concurrency" validate:"min=1"`
}

// ClientConfig builds the provider client configuration.
func (c *HLRConfig) ClientConfig() hlr.ClientConfig {
	return hlr.ClientConfig{
		BaseURL:   c.BaseURL,
		APIKey:    c.APIKey,
		APISecret: c.APISecret,
		Timeout:   c.Timeout,
	}
}

// ResolverConfig builds the resolver configuration.
func (c *HLRConfig) ResolverConfig() hlr.ResolverConfig {
	return hlr.ResolverConfig{Concurrency: c.MaxConcurrency}
}

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	// URL is a redis:// connection URL.
	URL string `mapstructure:"url" validate:"required"`

	// MaxConnections caps the client connection pool.
	MaxConnections int `mapstructure:"max_connections" validate:"min=1"`
}

// CacheConfig builds the cache backend configuration. The TTL comes from
// the HLR section because it is a property of lookup results, not of the
// backend.
func (c *Config) CacheConfig() cache.RedisConfig {
	return cache.RedisConfig{
		URL:            c.Redis.URL,
		MaxConnections: c.Redis.MaxConnections,
		TTL:            c.HLR.CacheTTL,
	}
}

// DatabaseConfig configures the optional lookup store. When Enabled is
// false the gateway runs without persistence and without cache warmup.
type DatabaseConfig struct {
	Enabled bool `mapstructure:"enabled"`

	store.Config `mapstructure:",squash"`

	// Queue sizes the append queue between the submit path and the store.
	Queue store.QueueConfig `mapstructure:"queue"`
}

// WarmupConfig configures the startup cache preload.
type WarmupConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Days    int  `mapstructure:"days" validate:"min=1"`
	Limit   int  `mapstructure:"limit" validate:"min=1"`
}

// HLRWarmupConfig builds the warmup configuration for the hlr package.
func (c *WarmupConfig) HLRWarmupConfig() hlr.WarmupConfig {
	return hlr.WarmupConfig{Enabled: c.Enabled, Days: c.Days, Limit: c.Limit}
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format is the output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// LoggerConfig builds the logger configuration.
func (c *LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{Level: c.Level, Format: c.Format, Output: c.Output}
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Path    string `mapstructure:"path"`
}

// ServerConfig builds the metrics server configuration.
func (c *MetricsConfig) ServerConfig() metrics.ServerConfig {
	return metrics.ServerConfig{Enabled: c.Enabled, Port: c.Port, Path: c.Path}
}

// DLRConfig configures delivery receipt timing.
type DLRConfig struct {
	// Delay is how long an accepted message waits before its DELIVRD
	// receipt is emitted. 0 sends the receipt immediately after the
	// submit_sm_resp.
	Delay time.Duration `mapstructure:"delay" validate:"min=0"`

	// FlushTimeout is the ceiling a deliver_sm waits for the socket write
	// before continuing asynchronously.
	FlushTimeout time.Duration `mapstructure:"flush_timeout" validate:"min=0"`
}

// SMPPServerConfig builds the runtime SMPP server configuration, folding
// the DLR timing section into it.
func (c *Config) SMPPServerConfig() gateway.Config {
	cfg := c.SMPP
	cfg.DLRDelay = c.DLR.Delay
	cfg.FlushTimeout = c.DLR.FlushTimeout
	return cfg
}

// Load loads configuration from file, environment, and defaults.
//
// configPath may be empty, in which case the default location is searched
// and a missing file is not an error: the gateway is fully runnable from
// defaults plus environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable support, viper-level defaults,
// and the config file location.
//
// Registering defaults with viper (rather than only in ApplyDefaults) makes
// every key visible to AutomaticEnv, so HLRGATE_SMPP_PORT=2777 works even
// without a config file.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("HLRGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is not an error.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// configDecodeHooks returns the decode hooks for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook converts strings like "30s", "5m", "1h" to
// time.Duration. Raw integers are taken as nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory, following XDG.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "hlrgate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "hlrgate")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
