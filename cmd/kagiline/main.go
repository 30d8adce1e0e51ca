package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raykavin/kagiline"
	"github.com/raykavin/kagiline/internal/config"
	"github.com/raykavin/kagiline/pkg/core"
	"github.com/raykavin/kagiline/pkg/exchange"
	"github.com/raykavin/kagiline/pkg/exchange/binance"
	"github.com/raykavin/kagiline/pkg/logger"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "kagiline",
		Short:         "Kagi charts from closed price bars",
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (e.g. ./kagiline.yaml)")

	rootCmd.AddCommand(buildDownloadCmd(), buildBuildCmd(), buildFollowCmd(), buildShowCmd(), buildSweepCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// loadConfig reads and validates the configuration and builds its logger
func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	log, err := kagiline.NewLogger(cfg.Logging.Level, cfg.Logging.TimeFormat, cfg.Logging.Color, cfg.Logging.JSON)
	if err != nil {
		return nil, nil, err
	}
	kagiline.DefaultLog = log
	return cfg, log, nil
}

// initializeFeeder opens the configured bar source
func initializeFeeder(ctx context.Context, cfg *config.Config, log logger.Logger) (core.Feeder, error) {
	if cfg.Feed.Source == config.SourceCSV {
		reversal, err := cfg.Reversal()
		if err != nil {
			return nil, err
		}
		return exchange.NewCSVFeed(cfg.Chart.Timeframe, exchange.PairFeed{
			Pair:      cfg.Chart.Pairs[0],
			File:      cfg.Feed.CSVFile,
			Timeframe: cfg.CSVTimeframe(),
			TickSize:  reversal.TickSize.InexactFloat64(),
		})
	}

	return binance.NewSpot(ctx, log, binance.Config{
		APIKey:     cfg.Feed.APIKey,
		APISecret:  cfg.Feed.APISecret,
		UseTestnet: cfg.Feed.Testnet,
	})
}
