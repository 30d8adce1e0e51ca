package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/raykavin/kagiline/pkg/core"
	"github.com/raykavin/kagiline/pkg/logger"
	"github.com/samber/lo"
)

const klinesPageSize = 1000

var intervals = []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "8h", "12h", "1d", "3d", "1w", "1M"}

// Spot is a read-only Binance spot market data feeder
type Spot struct {
	client     *binance.Client
	assetsInfo map[string]core.AssetInfo
	log        logger.Logger
}

// NewSpot pings the exchange and loads the price filters of every symbol
func NewSpot(ctx context.Context, log logger.Logger, config Config) (*Spot, error) {
	binance.WebsocketKeepalive = true
	binance.UseTestnet = config.UseTestnet

	spot := &Spot{
		client:     binance.NewClient(config.APIKey, config.APISecret),
		assetsInfo: make(map[string]core.AssetInfo),
		log:        log.WithField("exchange", "binance"),
	}

	if err := spot.client.NewPingService().Do(ctx); err != nil {
		return nil, fmt.Errorf("binance ping fail: %w", err)
	}

	exchangeInfo, err := spot.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", err)
	}
	for _, symbol := range exchangeInfo.Symbols {
		spot.assetsInfo[symbol.Symbol] = assetInfoFromSymbol(symbol)
	}

	spot.log.Infof("loaded %d spot symbols", len(spot.assetsInfo))
	return spot, nil
}

// AssetsInfo returns the price filters of the pair
func (s *Spot) AssetsInfo(pair string) core.AssetInfo {
	return s.assetsInfo[pair]
}

func (s *Spot) validate(pair, period string) error {
	if pair == "" {
		return core.ErrEmptyPair
	}
	if !lo.Contains(intervals, period) {
		return fmt.Errorf("%w: %q", core.ErrInvalidPeriod, period)
	}
	if _, ok := s.assetsInfo[pair]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPair, pair)
	}
	return nil
}

// CandlesByLimit returns the last limit closed bars
func (s *Spot) CandlesByLimit(ctx context.Context, pair, period string, limit int) ([]core.Candle, error) {
	if err := s.validate(pair, period); err != nil {
		return nil, err
	}

	// one extra: the newest kline is still forming
	data, err := s.client.NewKlinesService().
		Symbol(pair).
		Interval(period).
		Limit(limit + 1).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		data = data[:len(data)-1]
	}

	candles := make([]core.Candle, 0, len(data))
	for _, kline := range data {
		candle, err := convertKlineToCandle(pair, *kline)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// CandlesByPeriod returns bars opened within [start, end], paging through the
// kline endpoint. A bar still open at the time of the call is marked incomplete.
func (s *Spot) CandlesByPeriod(ctx context.Context, pair, period string, start, end time.Time) ([]core.Candle, error) {
	if err := s.validate(pair, period); err != nil {
		return nil, err
	}

	var candles []core.Candle
	from := start.UnixMilli()
	for from <= end.UnixMilli() {
		data, err := s.client.NewKlinesService().
			Symbol(pair).
			Interval(period).
			StartTime(from).
			EndTime(end.UnixMilli()).
			Limit(klinesPageSize).
			Do(ctx)
		if err != nil {
			return nil, err
		}

		now := time.Now().UnixMilli()
		for _, kline := range data {
			candle, err := convertKlineToCandle(pair, *kline)
			if err != nil {
				return nil, err
			}
			candle.Complete = kline.CloseTime < now
			candles = append(candles, candle)
		}

		if len(data) < klinesPageSize {
			break
		}
		from = data[len(data)-1].OpenTime + 1
	}
	return candles, nil
}

// CandlesSubscription streams kline updates, reconnecting with backoff when
// the websocket drops. Both channels close once ctx is done.
func (s *Spot) CandlesSubscription(ctx context.Context, pair, period string) (chan core.Candle, chan error) {
	ccandle := make(chan core.Candle)
	cerr := make(chan error)
	retry := setupBackoffRetry()

	report := func(err error) {
		select {
		case cerr <- err:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(ccandle)
		defer close(cerr)

		for {
			done, stop, err := binance.WsKlineServe(pair, period, func(event *binance.WsKlineEvent) {
				retry.Reset()
				candle, err := convertWsKlineToCandle(pair, event.Kline)
				if err != nil {
					report(err)
					return
				}
				select {
				case ccandle <- candle:
				case <-ctx.Done():
				}
			}, report)

			if err != nil {
				report(fmt.Errorf("binance websocket %s %s: %w", pair, period, err))
			} else {
				select {
				case <-ctx.Done():
					close(stop)
					<-done
					return
				case <-done:
				}
			}

			wait := retry.Duration()
			s.log.WithField("pair", pair).Warnf("kline stream closed, reconnecting in %s", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}()

	return ccandle, cerr
}
