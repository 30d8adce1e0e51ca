package main

import (
	"fmt"
	"time"

	"github.com/raykavin/kagiline"
	"github.com/raykavin/kagiline/pkg/backtesting"
	"github.com/raykavin/kagiline/pkg/exchange/binance"
	"github.com/spf13/cobra"
)

// Download command flags
var (
	pair       string
	days       int
	startDate  string
	endDate    string
	timeframe  string
	outputFile string
	testnet    bool
)

func buildDownloadCmd() *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download closed bars from Binance to CSV",
		RunE:  runDownload,
	}

	downloadCmd.Flags().StringVarP(&pair, "pair", "p", "", "Trading pair (e.g. BTCUSDT)")
	downloadCmd.Flags().IntVarP(&days, "days", "d", 0, "Number of days to download (default 30 days)")
	downloadCmd.Flags().StringVarP(&startDate, "start", "s", "", "Start date (e.g. 2021-12-01)")
	downloadCmd.Flags().StringVarP(&endDate, "end", "e", "", "End date (e.g. 2021-12-31)")
	downloadCmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "Timeframe (e.g. 1h)")
	downloadCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (e.g. ./btc.csv)")
	downloadCmd.Flags().BoolVar(&testnet, "testnet", false, "Use the Binance testnet")

	downloadCmd.MarkFlagRequired("pair")
	downloadCmd.MarkFlagRequired("timeframe")
	downloadCmd.MarkFlagRequired("output")

	return downloadCmd
}

func runDownload(cmd *cobra.Command, _ []string) error {
	log := kagiline.DefaultLog

	exc, err := binance.NewSpot(cmd.Context(), log, binance.Config{UseTestnet: testnet})
	if err != nil {
		return err
	}

	options, err := buildDownloadOptions()
	if err != nil {
		return err
	}

	stats, err := backtesting.NewDownloader(exc, log).Download(cmd.Context(), pair, timeframe, outputFile, options...)
	if err != nil {
		return err
	}

	log.WithFields(map[string]any{
		"written": stats.Written,
		"skipped": stats.Skipped,
		"missing": stats.Missing,
	}).Infof("saved %s %s bars to %s", pair, timeframe, outputFile)
	return nil
}

func buildDownloadOptions() ([]backtesting.Option, error) {
	var options []backtesting.Option

	if days > 0 {
		options = append(options, backtesting.WithDays(days))
	}

	if startDate != "" || endDate != "" {
		if startDate == "" || endDate == "" {
			return nil, fmt.Errorf("START and END dates must be provided together")
		}

		start, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start date format: %w", err)
		}

		end, err := time.Parse(dateLayout, endDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end date format: %w", err)
		}

		options = append(options, backtesting.WithInterval(start, end))
	}

	return options, nil
}
