package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "yahoo", cfg.DataSource.Provider)
	assert.Equal(t, "AAPL", cfg.Pipeline.DefaultSymbol)
	assert.Equal(t, 365, cfg.Pipeline.DefaultLookbackDays)
	require.NotNil(t, cfg.DataSource.MaxRetries)
	assert.Equal(t, 3, *cfg.DataSource.MaxRetries)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Database.SQLitePath)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  shutdown_timeout: 3s
data_source:
  provider: mock
  max_retries: 5
pipeline:
  default_symbol: MSFT
  fetch_timeout: 12s
cache:
  backend: none
schedule:
  warmup_cron: "0 0 6 * * 1-5"
  watchlist: [AAPL, MSFT]
logging:
  level: debug
  encoding: console
`)
	t.Setenv("HTTPS_PROXY", "")
	t.Setenv("PRICELENS_SERVER_ADDR", ":9100")
	t.Setenv("PRICELENS_CACHE_TTL", "90s")
	t.Setenv("PRICELENS_SCHEDULE_WATCHLIST", "SPY,QQQ")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Addr, "env overrides yaml")
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "mock", cfg.DataSource.Provider)
	require.NotNil(t, cfg.DataSource.MaxRetries)
	assert.Equal(t, 5, *cfg.DataSource.MaxRetries)
	assert.Equal(t, "MSFT", cfg.Pipeline.DefaultSymbol)
	assert.Equal(t, 12*time.Second, cfg.Pipeline.FetchTimeout)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, []string{"SPY", "QQQ"}, cfg.Schedule.Watchlist)
	assert.Equal(t, "0 0 6 * * 1-5", cfg.Schedule.WarmupCron)
	assert.Equal(t, "console", cfg.Logging.Encoding)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ProxyFallsBackToHTTPSProxy(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "http://proxy.local:3128")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://proxy.local:3128", cfg.DataSource.Proxy)
}

func TestLoad_ZeroRetriesIsKept(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "")
	cfg, err := Load(writeConfig(t, "data_source:\n  max_retries: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.DataSource.MaxRetries)
	assert.Equal(t, 0, *cfg.DataSource.MaxRetries)
	assert.NoError(t, cfg.Validate())

	t.Setenv("PRICELENS_DATA_SOURCE_MAX_RETRIES", "0")
	cfg, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg.DataSource.MaxRetries)
	assert.Equal(t, 0, *cfg.DataSource.MaxRetries)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	cfg.DataSource.Provider = "bloomberg"
	cfg.Cache.Backend = "redis"
	cfg.Logging.Level = "verbose"

	err = cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "Provider")
	assert.Contains(t, msg, "RedisURL")
	assert.Contains(t, msg, "Level")

	cfg.DataSource.Provider = "yahoo"
	cfg.Cache.RedisURL = "redis://localhost:6379/0"
	cfg.Logging.Level = "warn"
	assert.NoError(t, cfg.Validate())
}
