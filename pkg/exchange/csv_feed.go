package exchange

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/raykavin/kagiline/pkg/core"
	"github.com/samber/lo"
	"github.com/xhit/go-str2duration/v2"
)

const defaultTickSize = 0.00000001

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrMalformedCSV     = errors.New("malformed csv")

	defaultHeaderMap = map[string]int{
		"time": 0, "open": 1, "close": 2, "low": 3, "high": 4, "volume": 5,
	}
)

// PairFeed describes a CSV file of bars for one pair
type PairFeed struct {
	Pair      string
	File      string
	Timeframe string
	TickSize  float64
}

// CSVFeed serves bars read from CSV files. History queries and the
// subscription share the same bars: CandlesByLimit hands out the oldest bars
// and the subscription replays what is left, as a live feed would.
type CSVFeed struct {
	Feeds               map[string]PairFeed
	CandlePairTimeFrame map[string][]core.Candle
}

// NewCSVFeed reads every file and aggregates its bars into targetTimeframe
func NewCSVFeed(targetTimeframe string, feeds ...PairFeed) (*CSVFeed, error) {
	csvFeed := &CSVFeed{
		Feeds:               make(map[string]PairFeed),
		CandlePairTimeFrame: make(map[string][]core.Candle),
	}

	for _, feed := range feeds {
		csvFeed.Feeds[feed.Pair] = feed

		candles, err := readCandlesFromCSV(feed)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", feed.File, err)
		}
		csvFeed.CandlePairTimeFrame[feedKey(feed.Pair, feed.Timeframe)] = candles

		if feed.Timeframe == targetTimeframe {
			continue
		}
		resampled, err := resample(candles, feed.Timeframe, targetTimeframe)
		if err != nil {
			return nil, err
		}
		csvFeed.CandlePairTimeFrame[feedKey(feed.Pair, targetTimeframe)] = resampled
	}

	return csvFeed, nil
}

// AssetsInfo reports the configured tick size of the pair
func (c CSVFeed) AssetsInfo(pair string) core.AssetInfo {
	asset, quote := SplitAssetQuote(pair)
	tick := c.Feeds[pair].TickSize
	if tick <= 0 {
		tick = defaultTickSize
	}
	return core.AssetInfo{
		BaseAsset:      asset,
		QuoteAsset:     quote,
		MaxPrice:       math.MaxFloat64,
		TickSize:       tick,
		QuotePrecision: precisionOf(tick),
	}
}

// Limit keeps only the bars within duration of the last bar of each series
func (c *CSVFeed) Limit(duration time.Duration) *CSVFeed {
	for key, candles := range c.CandlePairTimeFrame {
		if len(candles) == 0 {
			continue
		}

		start := candles[len(candles)-1].Time.Add(-duration)
		c.CandlePairTimeFrame[key] = lo.Filter(candles, func(candle core.Candle, _ int) bool {
			return candle.Time.After(start)
		})
	}
	return c
}

// CandlesByPeriod returns bars with start <= time <= end
func (c CSVFeed) CandlesByPeriod(_ context.Context, pair, timeframe string, start, end time.Time) ([]core.Candle, error) {
	return lo.Filter(c.CandlePairTimeFrame[feedKey(pair, timeframe)], func(candle core.Candle, _ int) bool {
		return !candle.Time.Before(start) && !candle.Time.After(end)
	}), nil
}

// CandlesByLimit returns the oldest limit bars and removes them from the feed
func (c *CSVFeed) CandlesByLimit(_ context.Context, pair, timeframe string, limit int) ([]core.Candle, error) {
	key := feedKey(pair, timeframe)
	if len(c.CandlePairTimeFrame[key]) < limit {
		return nil, fmt.Errorf("%w: %s has %d bars, %d requested", ErrInsufficientData, pair,
			len(c.CandlePairTimeFrame[key]), limit)
	}

	result := c.CandlePairTimeFrame[key][:limit]
	c.CandlePairTimeFrame[key] = c.CandlePairTimeFrame[key][limit:]
	return result, nil
}

// CandlesSubscription streams the remaining bars and closes both channels at
// the end of the file or when ctx is done
func (c CSVFeed) CandlesSubscription(ctx context.Context, pair, timeframe string) (chan core.Candle, chan error) {
	ccandle := make(chan core.Candle)
	cerr := make(chan error)
	candles := c.CandlePairTimeFrame[feedKey(pair, timeframe)]

	go func() {
		defer close(ccandle)
		defer close(cerr)

		for _, candle := range candles {
			select {
			case ccandle <- candle:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ccandle, cerr
}

func feedKey(pair, timeframe string) string {
	return fmt.Sprintf("%s--%s", pair, timeframe)
}

func readCandlesFromCSV(feed PairFeed) ([]core.Candle, error) {
	csvFile, err := os.Open(feed.File)
	if err != nil {
		return nil, err
	}
	defer csvFile.Close()

	lines, err := csv.NewReader(csvFile).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrMalformedCSV)
	}

	headers := defaultHeaderMap
	if _, err := strconv.ParseInt(lines[0][0], 10, 64); err != nil {
		headers = make(map[string]int, len(lines[0]))
		for index, header := range lines[0] {
			headers[header] = index
		}
		lines = lines[1:]
	}

	for _, column := range lo.Keys(defaultHeaderMap) {
		if _, ok := headers[column]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedCSV, column)
		}
	}

	candles := make([]core.Candle, 0, len(lines))
	for row, line := range lines {
		candle, err := parseCandle(line, headers, feed.Pair)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedCSV, row+1, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseCandle(line []string, headers map[string]int, pair string) (core.Candle, error) {
	field := func(name string) string {
		if index := headers[name]; index < len(line) {
			return line[index]
		}
		return ""
	}

	timestamp, err := strconv.ParseInt(field("time"), 10, 64)
	if err != nil {
		return core.Candle{}, err
	}

	candle := core.Candle{
		Pair:      pair,
		Time:      time.Unix(timestamp, 0).UTC(),
		UpdatedAt: time.Unix(timestamp, 0).UTC(),
		Complete:  true,
	}

	for name, target := range map[string]*float64{
		"open":   &candle.Open,
		"close":  &candle.Close,
		"low":    &candle.Low,
		"high":   &candle.High,
		"volume": &candle.Volume,
	} {
		if *target, err = strconv.ParseFloat(field(name), 64); err != nil {
			return core.Candle{}, fmt.Errorf("%s: %w", name, err)
		}
	}
	return candle, nil
}

// resample aggregates bars into buckets of the target timeframe aligned to the
// epoch. A bucket is emitted only once a source bar closes at its end, so a
// trailing partial bucket is dropped.
func resample(candles []core.Candle, sourceTimeframe, targetTimeframe string) ([]core.Candle, error) {
	source, err := str2duration.ParseDuration(sourceTimeframe)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", core.ErrInvalidPeriod, sourceTimeframe, err)
	}
	target, err := str2duration.ParseDuration(targetTimeframe)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", core.ErrInvalidPeriod, targetTimeframe, err)
	}
	if target < source || target%source != 0 {
		return nil, fmt.Errorf("%w: cannot resample %s into %s", core.ErrInvalidPeriod, sourceTimeframe, targetTimeframe)
	}

	result := make([]core.Candle, 0, len(candles)/int(target/source)+1)
	var current core.Candle
	open := false

	for _, candle := range candles {
		bucket := candle.Time.Truncate(target)

		if open && !current.Time.Equal(bucket) {
			// bucket was never closed: a gap in the source
			open = false
		}

		if !open {
			current = candle
			current.Time = bucket
			current.Complete = false
			open = true
		} else {
			current.High = math.Max(current.High, candle.High)
			current.Low = math.Min(current.Low, candle.Low)
			current.Close = candle.Close
			current.Volume += candle.Volume
			current.UpdatedAt = candle.UpdatedAt
		}

		if !candle.Time.Add(source).Before(bucket.Add(target)) {
			current.Complete = true
			result = append(result, current)
			open = false
		}
	}

	return result, nil
}

func precisionOf(tick float64) int {
	if tick <= 0 || tick >= 1 {
		return 0
	}
	return int(math.Round(-math.Log10(tick)))
}
