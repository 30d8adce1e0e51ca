package kagiline

import (
	"context"
	"errors"
	"time"

	"github.com/raykavin/kagiline/pkg/core"
	"github.com/raykavin/kagiline/pkg/feed"
	"github.com/raykavin/kagiline/pkg/kagi"
	"github.com/raykavin/kagiline/pkg/storage"
	"github.com/samber/lo"
)

// load restores the chart of a pair from storage and catches up with the
// bars it missed, or builds it from history when nothing usable is stored
func (t *Tracker) load(ctx context.Context, pair string) error {
	key := storage.ChartKey{Pair: pair, Timeframe: t.settings.Timeframe}
	config := t.reversal(pair)
	log := t.log.WithFields(map[string]any{"pair": pair, "timeframe": t.settings.Timeframe})

	c := &tracked{key: key, config: config}
	t.charts[pair] = c

	options := []kagi.ChartOption{
		kagi.WithLookback(t.settings.Lookback),
		kagi.WithSink(func(segment kagi.Segment) {
			// the sink runs under c.mu
			t.segmentFeed.Publish(feed.Event{Pair: pair, Segment: segment, Live: c.live})
		}),
	}

	snapshot, err := t.storage.Snapshot(key, config)
	switch {
	case err == nil && !snapshot.LastSample.IsZero():
		if c.chart, err = kagi.RestoreChart(config, snapshot, options...); err != nil {
			return err
		}
		log.Infof("restored chart at %s after %d bars", snapshot.LastSample.Format(time.RFC3339), snapshot.Samples)
		return t.catchUp(ctx, c, snapshot.LastSample)

	case err == nil:
	case errors.Is(err, storage.ErrConfigMismatch), errors.Is(err, storage.ErrUnknownVersion):
		log.Warnf("discarding stored chart: %v", err)
		if err := t.storage.Reset(key); err != nil {
			return err
		}
	case !errors.Is(err, storage.ErrNotFound):
		return err
	}

	if c.chart, err = kagi.NewChart(config, options...); err != nil {
		return err
	}
	return t.preload(ctx, c)
}

// preload builds a fresh chart from the most recent history
func (t *Tracker) preload(ctx context.Context, c *tracked) error {
	candles, err := t.feeder.CandlesByLimit(ctx, c.key.Pair, t.settings.Timeframe, t.settings.History)
	if err != nil {
		return err
	}
	t.log.WithField("pair", c.key.Pair).Infof("building chart from %d candles", len(candles))
	return t.build(c, candles, c.chart.Build)
}

// catchUp applies the bars closed since the snapshot was taken. The
// lookback does not apply: the chart was drawn before.
func (t *Tracker) catchUp(ctx context.Context, c *tracked, last time.Time) error {
	candles, err := t.missed(ctx, c.key.Pair, last, time.Now())
	if err != nil {
		return err
	}
	if len(candles) > 0 {
		t.log.WithField("pair", c.key.Pair).Infof("catching up %d candles", len(candles))
	}
	return t.build(c, candles, c.chart.Append)
}

// missed fetches the bars closed after last and before end
func (t *Tracker) missed(ctx context.Context, pair string, last, end time.Time) ([]core.Candle, error) {
	candles, err := t.feeder.CandlesByPeriod(ctx, pair, t.settings.Timeframe, last.Add(t.timeframe), end)
	if err != nil {
		return nil, err
	}
	return lo.Filter(candles, func(candle core.Candle, _ int) bool {
		return candle.Time.After(last) && candle.Time.Before(end)
	}), nil
}

func (t *Tracker) build(c *tracked, candles []core.Candle, apply func([]kagi.Sample) ([]kagi.Segment, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return t.applyCandles(c, candles, apply)
}

// applyCandles feeds the complete candles to the chart and persists the
// result. Callers hold c.mu.
func (t *Tracker) applyCandles(c *tracked, candles []core.Candle, apply func([]kagi.Sample) ([]kagi.Segment, error)) error {
	samples, err := kagi.SamplesFromCandles(lo.Filter(candles, func(candle core.Candle, _ int) bool {
		return candle.IsComplete()
	}))
	if err != nil {
		return err
	}

	segments, err := apply(samples)
	if err != nil {
		return err
	}
	return t.persist(c, segments)
}

// onCandle applies a live closed bar. It runs on the data feed goroutine of
// the bar's pair, so bars of one chart never race.
func (t *Tracker) onCandle(ctx context.Context, candle core.Candle) {
	c, ok := t.charts[candle.Pair]
	if !ok {
		return
	}
	log := t.log.WithFields(map[string]any{"pair": candle.Pair, "time": candle.Time})

	sample, err := kagi.SampleFromCandle(candle)
	if err != nil {
		log.WithError(err).Warn("skipping candle")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t.backfill(ctx, c, candle.Time)

	segments, err := c.chart.Feed(sample)
	if errors.Is(err, kagi.ErrInputOrdering) {
		// replayed or duplicated bars after a reconnect or a catch-up
		log.Debug("skipping candle already applied")
		return
	}
	if err != nil {
		log.WithError(err).Error("failed to apply candle")
		return
	}

	if err := t.persist(c, segments); err != nil {
		log.WithError(err).Error("failed to persist chart")
		t.notifyError(err)
	}
}

// backfill applies the bars a live feed skipped before the bar at next, such
// as those closed between the catch-up and the subscription connecting.
// Callers hold c.mu.
func (t *Tracker) backfill(ctx context.Context, c *tracked, next time.Time) {
	last := c.chart.Snapshot().LastSample
	if last.IsZero() || !next.After(last.Add(t.timeframe)) {
		return
	}

	log := t.log.WithFields(map[string]any{"pair": c.key.Pair, "from": last, "to": next})
	candles, err := t.missed(ctx, c.key.Pair, last, next)
	if err != nil {
		log.WithError(err).Warn("failed to backfill gap")
		return
	}
	if len(candles) == 0 {
		return
	}

	log.Infof("backfilling %d candles", len(candles))
	if err := t.applyCandles(c, candles, c.chart.Append); err != nil {
		log.WithError(err).Error("failed to backfill gap")
		t.notifyError(err)
	}
}

// persist journals new segments and replaces the snapshot. Callers hold c.mu.
func (t *Tracker) persist(c *tracked, segments []kagi.Segment) error {
	if err := t.storage.AppendSegments(c.key, segments); err != nil {
		return err
	}
	return t.storage.SaveSnapshot(c.key, c.config, c.chart.Snapshot())
}
