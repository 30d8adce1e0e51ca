package kagiline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raykavin/kagiline/pkg/core"
	"github.com/raykavin/kagiline/pkg/exchange"
	"github.com/raykavin/kagiline/pkg/feed"
	"github.com/raykavin/kagiline/pkg/kagi"
	"github.com/raykavin/kagiline/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	start  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closes = []float64{100, 102, 104, 101, 98, 101, 97, 103, 105, 99, 96, 100}
)

func reversal() kagi.ReversalConfig {
	return kagi.ReversalConfig{
		Mode:     kagi.ModeAbsoluteStep,
		Value:    decimal.NewFromInt(1),
		TickSize: decimal.RequireFromString("0.01"),
	}
}

func csvFeed(t *testing.T, prices []float64) *exchange.CSVFeed {
	t.Helper()
	var b strings.Builder
	b.WriteString("time,open,close,low,high,volume\n")
	for i, price := range prices {
		fmt.Fprintf(&b, "%d,%g,%g,%g,%g,1\n", start.Add(time.Duration(i)*time.Hour).Unix(), price, price, price, price)
	}
	file := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(file, []byte(b.String()), 0o600))

	feeder, err := exchange.NewCSVFeed("1h", exchange.PairFeed{Pair: "BTCUSDT", File: file, Timeframe: "1h", TickSize: 0.01})
	require.NoError(t, err)
	return feeder
}

func replay(t *testing.T, prices []float64) (kagi.State, []kagi.Segment) {
	t.Helper()
	policy, err := kagi.NewPolicy(reversal())
	require.NoError(t, err)

	samples := make([]kagi.Sample, len(prices))
	for i, price := range prices {
		samples[i], err = kagi.NewSample(start.Add(time.Duration(i)*time.Hour), price)
		require.NoError(t, err)
	}
	return kagi.Replay(samples, policy)
}

type collector struct {
	sync.Mutex
	segments []kagi.Segment
}

func (c *collector) OnEvent(event feed.Event) {
	c.Lock()
	defer c.Unlock()
	c.segments = append(c.segments, event.Segment)
}

type errorNotifier struct {
	collector
	messages []string
	errs     []error
	started  bool
	stopped  bool
}

func (n *errorNotifier) Notify(text string) { n.messages = append(n.messages, text) }
func (n *errorNotifier) OnError(err error)  { n.errs = append(n.errs, err) }
func (n *errorNotifier) Start()             { n.started = true }
func (n *errorNotifier) Stop()              { n.stopped = true }

func settings(history int) Settings {
	return Settings{
		Pairs:     []string{"btcusdt"},
		Timeframe: "1h",
		Reversal:  reversal(),
		History:   history,
	}
}

func TestNewTracker_InvalidSettings(t *testing.T) {
	db, err := storage.FromMemory()
	require.NoError(t, err)
	feeder := csvFeed(t, closes)

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"no pairs", func(s *Settings) { s.Pairs = nil }},
		{"unknown quote", func(s *Settings) { s.Pairs = []string{"FOOBAR"} }},
		{"timeframe", func(s *Settings) { s.Timeframe = "later" }},
		{"history", func(s *Settings) { s.History = 1 }},
		{"reversal", func(s *Settings) { s.Reversal.Value = decimal.Zero }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := settings(3)
			tt.mutate(&s)
			_, err := NewTracker(s, feeder, WithStorage(db))
			require.ErrorIs(t, err, ErrInvalidSettings)
		})
	}
}

func TestTracker_Run(t *testing.T) {
	db, err := storage.FromMemory()
	require.NoError(t, err)

	sink := &collector{}
	notifier := &errorNotifier{}
	tracker, err := NewTracker(settings(3), csvFeed(t, closes),
		WithStorage(db), WithSync(), WithSegmentSubscription(sink.OnEvent), WithNotifier(notifier))
	require.NoError(t, err)

	require.NoError(t, tracker.Run(context.Background()))

	wantState, wantSegments := replay(t, closes)
	state, ok := tracker.State("BTCUSDT")
	require.True(t, ok)
	require.True(t, wantState.Equal(state), "%s != %s", wantState, state)

	require.True(t, kagi.SegmentsEqual(wantSegments, sink.segments))
	// notifiers only see segments of bars that closed after the chart was built
	_, preloaded := replay(t, closes[:3])
	require.True(t, kagi.SegmentsEqual(wantSegments[len(preloaded):], notifier.segments))
	require.True(t, notifier.started)
	require.True(t, notifier.stopped)
	require.Empty(t, notifier.errs)

	key := storage.ChartKey{Pair: "BTCUSDT", Timeframe: "1h"}
	records, err := db.Segments(key)
	require.NoError(t, err)
	require.Len(t, records, len(wantSegments))

	snapshot, err := db.Snapshot(key, reversal())
	require.NoError(t, err)
	require.Equal(t, len(closes), snapshot.Samples)
	require.Equal(t, start.Add(time.Duration(len(closes)-1)*time.Hour), snapshot.LastSample.UTC())

	require.Contains(t, tracker.Status(), "BTCUSDT 1h")
	_, ok = tracker.State("ETHUSDT")
	require.False(t, ok)
}

func TestTracker_ColdStartNotifiesNothing(t *testing.T) {
	db, err := storage.FromMemory()
	require.NoError(t, err)

	sink := &collector{}
	notifier := &errorNotifier{}
	tracker, err := NewTracker(settings(len(closes)), csvFeed(t, closes),
		WithStorage(db), WithSync(), WithSegmentSubscription(sink.OnEvent), WithNotifier(notifier))
	require.NoError(t, err)
	require.NoError(t, tracker.Run(context.Background()))

	_, wantSegments := replay(t, closes)
	require.True(t, kagi.SegmentsEqual(wantSegments, sink.segments))
	require.Empty(t, notifier.segments)
}

func TestTracker_Restore(t *testing.T) {
	db, err := storage.FromMemory()
	require.NoError(t, err)

	first, err := NewTracker(settings(3), csvFeed(t, closes[:7]), WithStorage(db), WithSync())
	require.NoError(t, err)
	require.NoError(t, first.Run(context.Background()))

	// the second run sees the whole file again; applied bars are skipped
	sink := &collector{}
	second, err := NewTracker(settings(3), csvFeed(t, closes), WithStorage(db), WithSync(),
		WithSegmentSubscription(sink.OnEvent))
	require.NoError(t, err)
	require.NoError(t, second.Run(context.Background()))

	wantState, wantSegments := replay(t, closes)
	state, _ := second.State("BTCUSDT")
	require.True(t, wantState.Equal(state), "%s != %s", wantState, state)

	_, before := replay(t, closes[:7])
	require.True(t, kagi.SegmentsEqual(wantSegments[len(before):], sink.segments))

	records, err := db.Segments(storage.ChartKey{Pair: "BTCUSDT", Timeframe: "1h"})
	require.NoError(t, err)
	require.Len(t, records, len(wantSegments))
}

func TestTracker_RestoreCatchesUpBeyondLookback(t *testing.T) {
	db, err := storage.FromMemory()
	require.NoError(t, err)

	first, err := NewTracker(settings(3), csvFeed(t, closes[:3]), WithStorage(db), WithSync())
	require.NoError(t, err)
	require.NoError(t, first.Run(context.Background()))

	s := settings(3)
	s.Lookback = 2
	sink := &collector{}
	notifier := &errorNotifier{}
	second, err := NewTracker(s, csvFeed(t, closes), WithStorage(db), WithSync(),
		WithSegmentSubscription(sink.OnEvent), WithNotifier(notifier))
	require.NoError(t, err)
	require.NoError(t, second.Run(context.Background()))

	_, wantSegments := replay(t, closes)
	_, before := replay(t, closes[:3])
	require.True(t, kagi.SegmentsEqual(wantSegments[len(before):], sink.segments))
	require.Empty(t, notifier.segments)

	records, err := db.Segments(storage.ChartKey{Pair: "BTCUSDT", Timeframe: "1h"})
	require.NoError(t, err)
	require.Len(t, records, len(wantSegments))
}

// lateFeed loses the first bars of its stream, like a subscription that
// connects after some bars have closed
type lateFeed struct {
	*exchange.CSVFeed
	lost int
}

func (f lateFeed) CandlesSubscription(ctx context.Context, pair, timeframe string) (chan core.Candle, chan error) {
	candles, errs := f.CSVFeed.CandlesSubscription(ctx, pair, timeframe)
	out := make(chan core.Candle)
	go func() {
		defer close(out)
		lost := 0
		for candle := range candles {
			if lost < f.lost {
				lost++
				continue
			}
			select {
			case out <- candle:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errs
}

func TestTracker_BackfillsGap(t *testing.T) {
	db, err := storage.FromMemory()
	require.NoError(t, err)

	sink := &collector{}
	tracker, err := NewTracker(settings(3), lateFeed{CSVFeed: csvFeed(t, closes), lost: 2},
		WithStorage(db), WithSync(), WithSegmentSubscription(sink.OnEvent))
	require.NoError(t, err)
	require.NoError(t, tracker.Run(context.Background()))

	wantState, wantSegments := replay(t, closes)
	state, _ := tracker.State("BTCUSDT")
	require.True(t, wantState.Equal(state), "%s != %s", wantState, state)
	require.True(t, kagi.SegmentsEqual(wantSegments, sink.segments))

	records, err := db.Segments(storage.ChartKey{Pair: "BTCUSDT", Timeframe: "1h"})
	require.NoError(t, err)
	require.Len(t, records, len(wantSegments))
}

func TestTracker_ConfigChangeRebuilds(t *testing.T) {
	db, err := storage.FromMemory()
	require.NoError(t, err)

	first, err := NewTracker(settings(3), csvFeed(t, closes), WithStorage(db), WithSync())
	require.NoError(t, err)
	require.NoError(t, first.Run(context.Background()))

	s := settings(3)
	s.Reversal.Value = decimal.NewFromInt(5)
	second, err := NewTracker(s, csvFeed(t, closes), WithStorage(db), WithSync())
	require.NoError(t, err)
	require.NoError(t, second.Run(context.Background()))

	key := storage.ChartKey{Pair: "BTCUSDT", Timeframe: "1h"}
	_, err = db.Snapshot(key, reversal())
	require.ErrorIs(t, err, storage.ErrConfigMismatch)

	snapshot, err := db.Snapshot(key, s.Reversal)
	require.NoError(t, err)
	require.Equal(t, len(closes), snapshot.Samples)
}

func TestTracker_TickSizeFromFeeder(t *testing.T) {
	db, err := storage.FromMemory()
	require.NoError(t, err)

	s := settings(3)
	s.Reversal.TickSize = decimal.Zero
	tracker, err := NewTracker(s, csvFeed(t, closes), WithStorage(db))
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("0.01").Equal(tracker.reversal("BTCUSDT").TickSize))
}
