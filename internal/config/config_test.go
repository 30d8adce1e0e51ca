package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/raykavin/kagiline/pkg/kagi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const sample = `
chart:
  pairs: [btcusdt, ETHUSDT]
  timeframe: 4h
  mode: absolute
  value: 150.5
  tick_size: "0.01"
  lookback: 100
feed:
  source: binance
  testnet: true
telegram:
  enabled: true
  token: secret
  users: [42]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kagiline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Chart.Pairs)
	require.Equal(t, "4h", cfg.Chart.Timeframe)
	require.Equal(t, 100, cfg.Chart.Lookback)
	require.Equal(t, 500, cfg.Chart.History)
	require.Equal(t, SourceBinance, cfg.Feed.Source)
	require.True(t, cfg.Feed.Testnet)
	require.Equal(t, []int{42}, cfg.Telegram.Users)
	require.Equal(t, DefaultStoragePath, cfg.Storage.Path)

	reversal, err := cfg.Reversal()
	require.NoError(t, err)
	require.Equal(t, kagi.ModeAbsoluteStep, reversal.Mode)
	require.True(t, decimal.RequireFromString("150.5").Equal(reversal.Value))
	require.True(t, decimal.RequireFromString("0.01").Equal(reversal.TickSize))

	tf, err := cfg.TimeframeDuration()
	require.NoError(t, err)
	require.Equal(t, "4h0m0s", tf.String())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("KAGILINE_CHART_VALUE", "2.5")
	t.Setenv("KAGILINE_STORAGE_PATH", "/tmp/other.db")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.Equal(t, "2.5", cfg.Chart.Value)
	require.Equal(t, "/tmp/other.db", cfg.Storage.Path)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	reversal, err := cfg.Reversal()
	require.NoError(t, err)
	require.Equal(t, kagi.ModePercentage, reversal.Mode)
	require.True(t, reversal.TickSize.IsZero())
}

func TestConfig_CSVTimeframe(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Feed.Source, cfg.Feed.CSVFile = SourceCSV, "bars.csv"
	require.NoError(t, cfg.Validate())
	require.Equal(t, "1h", cfg.CSVTimeframe())

	cfg.Feed.CSVTimeframe = "15m"
	require.NoError(t, cfg.Validate())
	require.Equal(t, "15m", cfg.CSVTimeframe())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no pairs", func(c *Config) { c.Chart.Pairs = nil }},
		{"bad timeframe", func(c *Config) { c.Chart.Timeframe = "soon" }},
		{"bad mode", func(c *Config) { c.Chart.Mode = "log" }},
		{"zero value", func(c *Config) { c.Chart.Value = "0" }},
		{"bad value", func(c *Config) { c.Chart.Value = "abc" }},
		{"negative tick", func(c *Config) { c.Chart.TickSize = "-0.1" }},
		{"negative lookback", func(c *Config) { c.Chart.Lookback = -1 }},
		{"csv without file", func(c *Config) { c.Feed.Source = SourceCSV; c.Feed.CSVFile = "" }},
		{"csv with two pairs", func(c *Config) {
			c.Feed.Source, c.Feed.CSVFile = SourceCSV, "bars.csv"
			c.Chart.Pairs = []string{"BTCUSDT", "ETHUSDT"}
		}},
		{"csv bad timeframe", func(c *Config) {
			c.Feed.Source, c.Feed.CSVFile, c.Feed.CSVTimeframe = SourceCSV, "bars.csv", "often"
		}},
		{"unknown source", func(c *Config) { c.Feed.Source = "kraken" }},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true }},
		{"mail without host", func(c *Config) { c.Mail.Enabled = true }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalid))
		})
	}
}
