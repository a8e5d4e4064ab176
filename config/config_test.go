package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_Valid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[finnhub]
token = "abc"
write_timeout = "3s"
trade_symbols = ["AAPL", "BINANCE:BTCUSDT"]

[sizing]
records_per_symbol = 20

[nats]
enabled = true
`)

	require.NoError(t, Load(path))
	c := Get()

	assert.Equal(t, "abc", c.Finnhub.Token)
	assert.Equal(t, 3*time.Second, c.Finnhub.WriteTimeout)
	assert.Equal(t, []string{"AAPL", "BINANCE:BTCUSDT"}, c.Finnhub.TradeSymbols)
	assert.Equal(t, 20, c.Sizing.RecordsPerSymbol)
	// 未配置的字段保持默认值
	assert.Equal(t, 134, c.Sizing.RecordSize)
	assert.Equal(t, "wss://ws.finnhub.io", c.Finnhub.WSURL)
	assert.True(t, c.NATS.Enabled)
	assert.Equal(t, "nats://localhost:4222", c.NATS.Endpoint)
}

func TestLoad_TokenFromEnv(t *testing.T) {
	t.Setenv(TokenEnv, "from-env")
	path := writeConfig(t, "[finnhub]\n")

	require.NoError(t, Load(path))
	assert.Equal(t, "from-env", Get().Finnhub.Token)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, `
[finnhub]
ws_url = ""
proxy_enabled = true
proxy_addr = ""

[dedup]
ttl = "0s"
`)

	err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws_url")
	assert.Contains(t, err.Error(), "proxy_addr")
	assert.Contains(t, err.Error(), "dedup.ttl")

	_, err = decode(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestProxyAddr(t *testing.T) {
	c := Default()
	assert.Empty(t, c.ProxyAddr())

	c.Finnhub.ProxyEnabled = true
	assert.Equal(t, "127.0.0.1:7890", c.ProxyAddr())
}

func TestReloadIfNeeded(t *testing.T) {
	path := writeConfig(t, "[log]\nlevel = \"info\"\n")
	require.NoError(t, InitWithInterval(path, time.Hour))
	defer Stop()

	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0o644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	reloadIfNeeded()
	assert.Equal(t, "debug", Get().Logger.Level)

	// 重载失败时保留旧配置
	require.NoError(t, os.WriteFile(path, []byte("[log\n"), 0o644))
	later := future.Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	reloadIfNeeded()
	assert.Equal(t, "debug", Get().Logger.Level)
}
