package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/smppware/hlrgate/pkg/store"
)

// setViperDefaults registers every configuration key with its default
// value. Keys registered here are resolvable from HLRGATE_* environment
// variables even when no config file is present.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("smpp.host", "0.0.0.0")
	v.SetDefault("smpp.port", 2776)
	v.SetDefault("smpp.system_id", "testuser")
	v.SetDefault("smpp.password", "testpass")
	v.SetDefault("smpp.max_connections", 0)
	v.SetDefault("smpp.max_requests_per_connection", 100)
	v.SetDefault("smpp.timeouts.idle", "0s")
	v.SetDefault("smpp.timeouts.shutdown", "30s")

	v.SetDefault("hlr.base_url", "https://api.tmtvelocity.com/live/json")
	v.SetDefault("hlr.api_key", "MyApiKey")
	v.SetDefault("hlr.api_secret", "MyApiSecret")
	v.SetDefault("hlr.timeout", "5s")
	v.SetDefault("hlr.timeout_policy", "reject")
	v.SetDefault("hlr.cache_ttl", "24h")
	v.SetDefault("hlr.max_concurrency", 100)

	v.SetDefault("redis.url", "redis://redis:6379/0")
	v.SetDefault("redis.max_connections", 30)

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.type", "postgres")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "smpp_hlr")
	v.SetDefault("database.postgres.user", "smpp_user")
	v.SetDefault("database.postgres.password", "password")
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 20)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.queue.depth", 1024)
	v.SetDefault("database.queue.workers", 4)
	v.SetDefault("database.queue.insert_timeout", "10s")

	v.SetDefault("warmup.enabled", true)
	v.SetDefault("warmup.days", 7)
	v.SetDefault("warmup.limit", 100000)

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9091)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("dlr.delay", "0s")
	v.SetDefault("dlr.flush_timeout", "30ms")
}

// ApplyDefaults fills in zero values with defaults. Covers configurations
// built programmatically, where the viper defaults never ran.
func ApplyDefaults(cfg *Config) {
	cfg.SMPP.ApplyDefaults()
	applyHLRDefaults(&cfg.HLR)
	applyRedisDefaults(&cfg.Redis)
	applyDatabaseDefaults(&cfg.Database)
	applyWarmupDefaults(&cfg.Warmup)
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyDLRDefaults(&cfg.DLR)
}

func applyHLRDefaults(cfg *HLRConfig) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tmtvelocity.com/live/json"
	}
	if cfg.APIKey == "" {
		cfg.APIKey = "MyApiKey"
	}
	if cfg.APISecret == "" {
		cfg.APISecret = "MyApiSecret"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.TimeoutPolicy == "" {
		cfg.TimeoutPolicy = "reject"
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = 100
	}
}

func applyRedisDefaults(cfg *RedisConfig) {
	if cfg.URL == "" {
		cfg.URL = "redis://redis:6379/0"
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 30
	}
}

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	cfg.Config.ApplyDefaults()
	if cfg.Queue.Depth == 0 {
		cfg.Queue.Depth = 1024
	}
	if cfg.Queue.Workers == 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Queue.InsertTimeout == 0 {
		cfg.Queue.InsertTimeout = 10 * time.Second
	}
	if cfg.Type == store.DatabaseTypePostgres && cfg.Postgres.Host == "" {
		cfg.Postgres.Host = "localhost"
	}
	if cfg.Type == store.DatabaseTypePostgres && cfg.Postgres.Database == "" {
		cfg.Postgres.Database = "smpp_hlr"
	}
	if cfg.Type == store.DatabaseTypePostgres && cfg.Postgres.User == "" {
		cfg.Postgres.User = "smpp_user"
	}
}

func applyWarmupDefaults(cfg *WarmupConfig) {
	if cfg.Days == 0 {
		cfg.Days = 7
	}
	if cfg.Limit == 0 {
		cfg.Limit = 100000
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9091
	}
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
}

func applyDLRDefaults(cfg *DLRConfig) {
	if cfg.FlushTimeout == 0 {
		cfg.FlushTimeout = 30 * time.Millisecond
	}
}

// GetDefaultConfig returns a configuration with every default applied.
// Warmup, database, and metrics are enabled by default, matching the
// production deployment shape.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Database.Enabled = true
	cfg.Warmup.Enabled = true
	cfg.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}
