package main

import (
	"context"
	"time"

	"github.com/raykavin/kagiline/internal/config"
	"github.com/raykavin/kagiline/pkg/core"
	"github.com/raykavin/kagiline/pkg/indicator"
	"github.com/raykavin/kagiline/pkg/kagi"
	"github.com/raykavin/kagiline/pkg/report"
	"github.com/raykavin/kagiline/pkg/storage"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// Build command flags
var (
	atrPeriod     int
	atrMultiplier float64
	lookback      int
	noStore       bool
)

func buildBuildCmd() *cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build charts from history and print their statistics",
		RunE:  runBuild,
	}

	buildCmd.Flags().IntVar(&atrPeriod, "atr", 0, "Derive the reversal from the ATR of this period instead of chart.value")
	buildCmd.Flags().Float64Var(&atrMultiplier, "multiplier", 1, "ATR multiplier used with --atr")
	buildCmd.Flags().IntVarP(&lookback, "lookback", "l", 0, "Render only the last N bars (default chart.lookback)")
	buildCmd.Flags().BoolVar(&noStore, "no-store", false, "Do not persist the built charts")

	return buildCmd
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	feeder, err := initializeFeeder(ctx, cfg, log)
	if err != nil {
		return err
	}

	reversal, err := cfg.Reversal()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("lookback") {
		lookback = cfg.Chart.Lookback
	}

	var db *storage.BuntStorage
	if !noStore {
		if db, err = storage.FromFile(cfg.Storage.Path); err != nil {
			return err
		}
		defer db.Close()
	}

	summaries := make([]report.Summary, 0, len(cfg.Chart.Pairs))
	for _, pair := range cfg.Chart.Pairs {
		candles, err := history(ctx, cfg, feeder, pair)
		if err != nil {
			return err
		}
		candles = lo.Filter(candles, func(candle core.Candle, _ int) bool {
			return candle.IsComplete()
		})

		config := reversal
		if config.TickSize.IsZero() {
			if tick := feeder.AssetsInfo(pair).GetTickSize(); tick > 0 {
				config.TickSize = decimal.NewFromFloat(tick)
			}
		}
		if atrPeriod > 0 {
			config, err = indicator.SuggestReversal(candles, atrPeriod, atrMultiplier, config.Mode, config.TickSize.InexactFloat64())
			if err != nil {
				return err
			}
			log.WithField("pair", pair).Infof("volatility suggests a reversal of %s", config)
		}

		chart, err := kagi.NewChart(config, kagi.WithLookback(lookback))
		if err != nil {
			return err
		}
		samples, err := kagi.SamplesFromCandles(candles)
		if err != nil {
			return err
		}
		segments, err := chart.Build(samples)
		if err != nil {
			return err
		}
		log.WithField("pair", pair).Infof("built chart from %d candles, %d segments rendered", len(samples), len(segments))

		if db != nil {
			if err := store(db, storage.ChartKey{Pair: pair, Timeframe: cfg.Chart.Timeframe}, config, chart, segments); err != nil {
				return err
			}
		}
		summaries = append(summaries, report.Summarize(pair, segments, chart.State()))
	}

	return report.Write(cmd.OutOrStdout(), summaries)
}

// history loads the bars a chart is built from: the whole file for CSV, the
// most recent chart.history bars otherwise
func history(ctx context.Context, cfg *config.Config, feeder core.Feeder, pair string) ([]core.Candle, error) {
	if cfg.Feed.Source == config.SourceCSV {
		return feeder.CandlesByPeriod(ctx, pair, cfg.Chart.Timeframe, time.Time{}, time.Now())
	}
	return feeder.CandlesByLimit(ctx, pair, cfg.Chart.Timeframe, cfg.Chart.History)
}

// store replaces whatever was persisted for the chart
func store(db *storage.BuntStorage, key storage.ChartKey, config kagi.ReversalConfig, chart *kagi.Chart, segments []kagi.Segment) error {
	if err := db.Reset(key); err != nil {
		return err
	}
	if err := db.AppendSegments(key, segments); err != nil {
		return err
	}
	return db.SaveSnapshot(key, config, chart.Snapshot())
}
