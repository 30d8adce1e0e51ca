package binance

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/jpillora/backoff"
	"github.com/raykavin/kagiline/pkg/core"
)

var ErrUnknownPair = errors.New("binance: unknown pair")

// Config holds the connection settings of the market data client
type Config struct {
	APIKey     string
	APISecret  string
	UseTestnet bool
}

// setupBackoffRetry paces websocket reconnects
func setupBackoffRetry() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}
}

// assetInfoFromSymbol reads precision and price limits from exchange info
func assetInfoFromSymbol(symbol binance.Symbol) core.AssetInfo {
	info := core.AssetInfo{
		BaseAsset:      symbol.BaseAsset,
		QuoteAsset:     symbol.QuoteAsset,
		QuotePrecision: symbol.QuotePrecision,
	}

	for _, filter := range symbol.Filters {
		if filter["filterType"] != string(binance.SymbolFilterTypePriceFilter) {
			continue
		}
		info.MinPrice = parseFilter(filter, "minPrice")
		info.MaxPrice = parseFilter(filter, "maxPrice")
		info.TickSize = parseFilter(filter, "tickSize")
	}
	if info.MaxPrice == 0 {
		info.MaxPrice = math.MaxFloat64
	}
	return info
}

func parseFilter(filter map[string]interface{}, key string) float64 {
	raw, ok := filter[key].(string)
	if !ok {
		return 0
	}
	value, _ := strconv.ParseFloat(raw, 64)
	return value
}

type ohlcv struct {
	open, close, high, low, volume string
}

func (o ohlcv) candle(pair string, openTime int64, complete bool) (core.Candle, error) {
	t := time.UnixMilli(openTime).UTC()
	candle := core.Candle{Pair: pair, Time: t, UpdatedAt: t, Complete: complete}

	for _, field := range []struct {
		name   string
		raw    string
		target *float64
	}{
		{"open", o.open, &candle.Open},
		{"close", o.close, &candle.Close},
		{"high", o.high, &candle.High},
		{"low", o.low, &candle.Low},
		{"volume", o.volume, &candle.Volume},
	} {
		value, err := strconv.ParseFloat(field.raw, 64)
		if err != nil {
			return core.Candle{}, fmt.Errorf("binance: %s %s at %s: %w", pair, field.name, t.Format(time.RFC3339), err)
		}
		*field.target = value
	}
	return candle, nil
}

func convertKlineToCandle(pair string, k binance.Kline) (core.Candle, error) {
	return ohlcv{k.Open, k.Close, k.High, k.Low, k.Volume}.candle(pair, k.OpenTime, true)
}

func convertWsKlineToCandle(pair string, k binance.WsKline) (core.Candle, error) {
	return ohlcv{k.Open, k.Close, k.High, k.Low, k.Volume}.candle(pair, k.StartTime, k.IsFinal)
}
