// Package config loads the kagiline configuration with Viper
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raykavin/kagiline/pkg/kagi"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/xhit/go-str2duration/v2"
)

const (
	EnvPrefix          = "KAGILINE"
	DefaultStoragePath = "./kagiline.db"
)

const (
	SourceCSV     = "csv"
	SourceBinance = "binance"
)

var ErrInvalid = errors.New("invalid configuration")

// Config is the complete application configuration
type Config struct {
	Chart    ChartConfig    `mapstructure:"chart"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Plot     PlotConfig     `mapstructure:"plot"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Mail     MailConfig     `mapstructure:"mail"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ChartConfig describes which charts are built and their reversal rule
type ChartConfig struct {
	Pairs     []string `mapstructure:"pairs"`
	Timeframe string   `mapstructure:"timeframe"`
	Mode      string   `mapstructure:"mode"`
	Value     string   `mapstructure:"value"`
	// TickSize overrides the tick reported by the feed when set
	TickSize string `mapstructure:"tick_size"`
	Lookback int    `mapstructure:"lookback"`
	// History is the number of bars loaded when a chart starts cold
	History int `mapstructure:"history"`
}

// FeedConfig selects where bars come from
type FeedConfig struct {
	Source  string `mapstructure:"source"`
	CSVFile string `mapstructure:"csv_file"`
	// CSVTimeframe is the bar size of CSVFile; bars are aggregated into the
	// chart timeframe. Empty means the file already has the chart timeframe.
	CSVTimeframe string `mapstructure:"csv_timeframe"`
	Testnet      bool   `mapstructure:"testnet"`
	APIKey       string `mapstructure:"api_key"`
	APISecret    string `mapstructure:"api_secret"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type PlotConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	Users   []int  `mapstructure:"users"`
}

type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
	Password string `mapstructure:"password"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	TimeFormat string `mapstructure:"time_format"`
	Color      bool   `mapstructure:"color"`
	JSON       bool   `mapstructure:"json"`
}

// Load reads the configuration from path and KAGILINE_* environment
// variables. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// comma separated lists from the environment
	if len(cfg.Chart.Pairs) == 1 && strings.Contains(cfg.Chart.Pairs[0], ",") {
		cfg.Chart.Pairs = strings.Split(cfg.Chart.Pairs[0], ",")
	}
	for i, pair := range cfg.Chart.Pairs {
		cfg.Chart.Pairs[i] = strings.ToUpper(strings.TrimSpace(pair))
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chart.pairs", []string{"BTCUSDT"})
	v.SetDefault("chart.timeframe", "1h")
	v.SetDefault("chart.mode", kagi.ModePercentage.String())
	v.SetDefault("chart.value", "1")
	v.SetDefault("chart.tick_size", "")
	v.SetDefault("chart.lookback", 0)
	v.SetDefault("chart.history", 500)

	v.SetDefault("feed.source", SourceBinance)
	v.SetDefault("feed.csv_file", "")
	v.SetDefault("feed.csv_timeframe", "")
	v.SetDefault("feed.testnet", false)
	v.SetDefault("feed.api_key", "")
	v.SetDefault("feed.api_secret", "")

	v.SetDefault("storage.path", DefaultStoragePath)

	v.SetDefault("plot.enabled", false)
	v.SetDefault("plot.port", 8080)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.users", []int{})

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.to", "")
	v.SetDefault("mail.password", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.time_format", "2006-01-02 15:04:05")
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.json", false)
}

// TimeframeDuration parses the chart timeframe
func (c *Config) TimeframeDuration() (time.Duration, error) {
	return str2duration.ParseDuration(c.Chart.Timeframe)
}

// CSVTimeframe is the bar size of the CSV file
func (c *Config) CSVTimeframe() string {
	if c.Feed.CSVTimeframe == "" {
		return c.Chart.Timeframe
	}
	return c.Feed.CSVTimeframe
}

// Reversal builds the reversal rule of the charts. A zero tick size defers to
// the tick reported by the feed.
func (c *Config) Reversal() (kagi.ReversalConfig, error) {
	mode, err := kagi.ParseMode(c.Chart.Mode)
	if err != nil {
		return kagi.ReversalConfig{}, fmt.Errorf("%w: chart.mode: %w", ErrInvalid, err)
	}

	value, err := decimal.NewFromString(c.Chart.Value)
	if err != nil {
		return kagi.ReversalConfig{}, fmt.Errorf("%w: chart.value: %w", ErrInvalid, err)
	}

	tick := decimal.Zero
	if c.Chart.TickSize != "" {
		if tick, err = decimal.NewFromString(c.Chart.TickSize); err != nil {
			return kagi.ReversalConfig{}, fmt.Errorf("%w: chart.tick_size: %w", ErrInvalid, err)
		}
	}

	config := kagi.ReversalConfig{Mode: mode, Value: value, TickSize: tick}
	if err := config.Validate(); err != nil {
		return kagi.ReversalConfig{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return config, nil
}

// Validate checks that all configuration values are usable
func (c *Config) Validate() error {
	if len(c.Chart.Pairs) == 0 {
		return fmt.Errorf("%w: chart.pairs must contain at least one pair", ErrInvalid)
	}
	for _, pair := range c.Chart.Pairs {
		if pair == "" {
			return fmt.Errorf("%w: chart.pairs contains an empty pair", ErrInvalid)
		}
	}
	if tf, err := c.TimeframeDuration(); err != nil || tf <= 0 {
		return fmt.Errorf("%w: chart.timeframe %q", ErrInvalid, c.Chart.Timeframe)
	}
	if _, err := c.Reversal(); err != nil {
		return err
	}
	if c.Chart.Lookback < 0 {
		return fmt.Errorf("%w: chart.lookback must not be negative", ErrInvalid)
	}
	if c.Chart.History < 2 {
		return fmt.Errorf("%w: chart.history must be at least 2", ErrInvalid)
	}

	switch c.Feed.Source {
	case SourceCSV:
		if c.Feed.CSVFile == "" {
			return fmt.Errorf("%w: feed.csv_file is required for the csv source", ErrInvalid)
		}
		if len(c.Chart.Pairs) != 1 {
			return fmt.Errorf("%w: the csv source serves exactly one pair", ErrInvalid)
		}
		if _, err := str2duration.ParseDuration(c.CSVTimeframe()); err != nil {
			return fmt.Errorf("%w: feed.csv_timeframe %q", ErrInvalid, c.Feed.CSVTimeframe)
		}
	case SourceBinance:
	default:
		return fmt.Errorf("%w: feed.source must be one of: csv, binance", ErrInvalid)
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path is required", ErrInvalid)
	}

	if c.Plot.Enabled && (c.Plot.Port <= 0 || c.Plot.Port > 65535) {
		return fmt.Errorf("%w: plot.port out of range", ErrInvalid)
	}

	if c.Telegram.Enabled {
		if c.Telegram.Token == "" {
			return fmt.Errorf("%w: telegram.token is required when telegram is enabled", ErrInvalid)
		}
		if len(c.Telegram.Users) == 0 {
			return fmt.Errorf("%w: telegram.users is required when telegram is enabled", ErrInvalid)
		}
	}

	if c.Mail.Enabled && (c.Mail.Host == "" || c.Mail.From == "" || c.Mail.To == "") {
		return fmt.Errorf("%w: mail.host, mail.from and mail.to are required when mail is enabled", ErrInvalid)
	}

	validLogLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("%w: logging.level must be one of: trace, debug, info, warn, error", ErrInvalid)
	}
	return nil
}
