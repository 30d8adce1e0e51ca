package core

import (
	"context"
	"time"
)

// Feeder supplies closed bars for a pair and timeframe. The last bar of a
// period query may still be forming; consumers must honour Candle.Complete.
type Feeder interface {
	AssetsInfo(pair string) AssetInfo
	CandlesByPeriod(ctx context.Context, pair, period string, start, end time.Time) ([]Candle, error)
	CandlesByLimit(ctx context.Context, pair, period string, limit int) ([]Candle, error)
	CandlesSubscription(ctx context.Context, pair, timeframe string) (chan Candle, chan error)
}

type Notifier interface {
	Notify(string)
	OnError(err error)
}
