package backtesting

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/raykavin/kagiline/pkg/core"
	"github.com/raykavin/kagiline/pkg/logger"
	"github.com/schollz/progressbar/v3"
	"github.com/xhit/go-str2duration/v2"
)

const batchSize = 500

var csvHeaders = []string{"time", "open", "close", "low", "high", "volume"}

// Downloader stores closed bars of a feeder as CSV, the format read by
// exchange.CSVFeed
type Downloader struct {
	feeder   core.Feeder
	log      logger.Logger
	progress io.Writer
}

func NewDownloader(feeder core.Feeder, log logger.Logger) Downloader {
	return Downloader{feeder: feeder, log: log, progress: os.Stderr}
}

// WithProgressOutput redirects the progress bar
func (d Downloader) WithProgressOutput(w io.Writer) Downloader {
	d.progress = w
	return d
}

// Parameters is the time range to download
type Parameters struct {
	Start time.Time
	End   time.Time
}

type Option func(*Parameters)

func WithInterval(start, end time.Time) Option {
	return func(parameters *Parameters) {
		parameters.Start = start
		parameters.End = end
	}
}

func WithDays(days int) Option {
	return func(parameters *Parameters) {
		parameters.End = time.Now().UTC()
		parameters.Start = parameters.End.AddDate(0, 0, -days)
	}
}

// Stats summarises a download
type Stats struct {
	Written    int
	Skipped    int
	Missing    int
	Expected   int
	Timeframe  time.Duration
	Start, End time.Time
}

// Download writes the bars of pair to outputPath
func (d Downloader) Download(ctx context.Context, pair, timeframe, outputPath string, options ...Option) (Stats, error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return Stats{}, err
	}
	defer file.Close()

	stats, err := d.Write(ctx, file, pair, timeframe, options...)
	if err != nil {
		return stats, err
	}
	return stats, file.Sync()
}

// Write streams the bars of pair as CSV. Bars still forming are skipped so
// every written row is a closed bar.
func (d Downloader) Write(ctx context.Context, w io.Writer, pair, timeframe string, options ...Option) (Stats, error) {
	interval, err := str2duration.ParseDuration(timeframe)
	if err != nil {
		return Stats{}, fmt.Errorf("invalid timeframe %q: %w", timeframe, err)
	}

	parameters := &Parameters{End: time.Now().UTC()}
	parameters.Start = parameters.End.AddDate(0, -1, 0)
	for _, option := range options {
		option(parameters)
	}
	start, end := parameters.Start.Truncate(interval), parameters.End
	if !start.Before(end) {
		return Stats{}, fmt.Errorf("empty interval %s - %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	stats := Stats{Expected: int(end.Sub(start) / interval), Timeframe: interval, Start: start, End: end}
	precision := d.feeder.AssetsInfo(pair).GetQuotePrecision()
	log := d.log.WithFields(map[string]any{"pair": pair, "timeframe": timeframe})
	log.Infof("downloading %d candles", stats.Expected)

	bar := progressbar.NewOptions(stats.Expected,
		progressbar.OptionSetWriter(d.progress),
		progressbar.OptionSetDescription(pair),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeaders); err != nil {
		return stats, err
	}

	span := interval * batchSize
	for batchStart := start; batchStart.Before(end); batchStart = batchStart.Add(span) {
		batchEnd := batchStart.Add(span - time.Millisecond)
		if batchEnd.After(end) {
			batchEnd = end
		}

		candles, err := d.feeder.CandlesByPeriod(ctx, pair, timeframe, batchStart, batchEnd)
		if err != nil {
			return stats, err
		}

		for _, candle := range candles {
			if !candle.IsComplete() {
				stats.Skipped++
				continue
			}
			if err := writer.Write(candle.ToSlice(precision)); err != nil {
				return stats, err
			}
			stats.Written++
		}

		if err := bar.Add(len(candles)); err != nil {
			log.WithError(err).Warn("progress bar")
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return stats, err
	}
	_ = bar.Finish()

	if missing := stats.Expected - stats.Written - stats.Skipped; missing > 0 {
		stats.Missing = missing
		log.Warnf("%d candles missing", missing)
	}
	log.Infof("wrote %d candles", stats.Written)
	return stats, nil
}
