package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smppware/hlrgate/pkg/store"
)

// isolateConfig points the default config location at an empty directory
// so tests never pick up a developer's real config file.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfig(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.SMPP.Host)
	assert.Equal(t, 2776, cfg.SMPP.Port)
	assert.Equal(t, "testuser", cfg.SMPP.SystemID)
	assert.Equal(t, "testpass", cfg.SMPP.Password)
	assert.Equal(t, 30*time.Second, cfg.SMPP.Timeouts.Shutdown)

	assert.Equal(t, "https://api.tmtvelocity.com/live/json", cfg.HLR.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.HLR.Timeout)
	assert.Equal(t, "reject", cfg.HLR.TimeoutPolicy)
	assert.Equal(t, 24*time.Hour, cfg.HLR.CacheTTL)
	assert.Equal(t, 100, cfg.HLR.MaxConcurrency)

	assert.Equal(t, "redis://redis:6379/0", cfg.Redis.URL)
	assert.Equal(t, 30, cfg.Redis.MaxConnections)

	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, store.DatabaseTypePostgres, cfg.Database.Type)
	assert.Equal(t, "smpp_hlr", cfg.Database.Postgres.Database)
	assert.Equal(t, 1024, cfg.Database.Queue.Depth)

	assert.True(t, cfg.Warmup.Enabled)
	assert.Equal(t, 7, cfg.Warmup.Days)
	assert.Equal(t, 100000, cfg.Warmup.Limit)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9091, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	assert.Equal(t, time.Duration(0), cfg.DLR.Delay)
	assert.Equal(t, 30*time.Millisecond, cfg.DLR.FlushTimeout)
}

func TestLoad_FromFile(t *testing.T) {
	isolateConfig(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
smpp:
  port: 12776
  system_id: gateway
  password: secret
  timeouts:
    idle: 90s
hlr:
  base_url: http://hlr.internal:8080/json
  timeout: 2s
  cache_ttl: 10m
redis:
  url: redis://localhost:6380/1
database:
  enabled: false
  type: sqlite
  sqlite:
    path: /tmp/hlrgate.db
logging:
  level: debug
  format: text
dlr:
  delay: 1500ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12776, cfg.SMPP.Port)
	assert.Equal(t, "gateway", cfg.SMPP.SystemID)
	assert.Equal(t, "secret", cfg.SMPP.Password)
	assert.Equal(t, 90*time.Second, cfg.SMPP.Timeouts.Idle)

	assert.Equal(t, "http://hlr.internal:8080/json", cfg.HLR.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.HLR.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.HLR.CacheTTL)

	assert.Equal(t, "redis://localhost:6380/1", cfg.Redis.URL)

	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, store.DatabaseTypeSQLite, cfg.Database.Type)
	assert.Equal(t, "/tmp/hlrgate.db", cfg.Database.SQLite.Path)

	// Normalized to uppercase on load.
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	assert.Equal(t, 1500*time.Millisecond, cfg.DLR.Delay)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolateConfig(t)
	t.Setenv("HLRGATE_SMPP_PORT", "2777")
	t.Setenv("HLRGATE_HLR_TIMEOUT", "2s")
	t.Setenv("HLRGATE_REDIS_URL", "redis://cache:6379/0")
	t.Setenv("HLRGATE_DATABASE_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2777, cfg.SMPP.Port)
	assert.Equal(t, 2*time.Second, cfg.HLR.Timeout)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	assert.False(t, cfg.Database.Enabled)
}

func TestLoad_MalformedFile(t *testing.T) {
	isolateConfig(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("smpp: [not: a map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingExplicitFileUsesDefaults(t *testing.T) {
	isolateConfig(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 2776, cfg.SMPP.Port)
}

func TestValidate_RejectsUnknownTimeoutPolicy(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.HLR.TimeoutPolicy = "accept"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TimeoutPolicy")
}

func TestValidate_RejectsBadLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "VERBOSE"

	assert.Error(t, Validate(cfg))
}

func TestValidate_RejectsBadBaseURL(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.HLR.BaseURL = "not a url"

	assert.Error(t, Validate(cfg))
}

func TestValidate_DatabaseCheckedOnlyWhenEnabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Database.Postgres.Host = ""

	assert.Error(t, Validate(cfg), "enabled database requires a host")

	cfg.Database.Enabled = false
	assert.NoError(t, Validate(cfg))
}

func TestSMPPServerConfig_FoldsDLRSection(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.DLR.Delay = 2 * time.Second
	cfg.DLR.FlushTimeout = 50 * time.Millisecond

	smpp := cfg.SMPPServerConfig()
	assert.Equal(t, 2*time.Second, smpp.DLRDelay)
	assert.Equal(t, 50*time.Millisecond, smpp.FlushTimeout)
	assert.Equal(t, cfg.SMPP.Port, smpp.Port)
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	require.NoError(t, Validate(cfg))
	assert.True(t, cfg.Database.Enabled)
	assert.True(t, cfg.Warmup.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
}
