// Package kagiline maintains Kagi charts for a set of pairs from a feed of
// closed bars, persisting them and fanning new segments out to consumers.
package kagiline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/raykavin/kagiline/pkg/core"
	"github.com/raykavin/kagiline/pkg/exchange"
	"github.com/raykavin/kagiline/pkg/feed"
	"github.com/raykavin/kagiline/pkg/kagi"
	"github.com/raykavin/kagiline/pkg/logger"
	"github.com/raykavin/kagiline/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/xhit/go-str2duration/v2"
)

// DefaultLog is the default logger instance
var DefaultLog logger.Logger

const (
	defaultDatabase = "kagiline.db"
	defaultHistory  = 500
	// a single sample emits at most this many segments
	maxSegmentsPerSample = 4
)

var ErrInvalidSettings = errors.New("invalid settings")

// Storage persists charts between runs
type Storage interface {
	SaveSnapshot(key storage.ChartKey, config kagi.ReversalConfig, snapshot kagi.Snapshot) error
	Snapshot(key storage.ChartKey, config kagi.ReversalConfig) (kagi.Snapshot, error)
	AppendSegments(key storage.ChartKey, segments []kagi.Segment) error
	Reset(key storage.ChartKey) error
}

// Settings describes the charts a Tracker maintains
type Settings struct {
	Pairs     []string
	Timeframe string
	// Reversal applies to every pair. A zero TickSize is replaced by the
	// tick size the feeder reports for each pair.
	Reversal kagi.ReversalConfig
	// History is the number of bars loaded when a chart starts cold
	History int
	// Lookback limits how many of the most recent bars are rendered on start
	Lookback int
}

type tracked struct {
	mu     sync.Mutex
	key    storage.ChartKey
	config kagi.ReversalConfig
	chart  *kagi.Chart
	// live is set once the chart is loaded; guarded by mu
	live bool
}

// Tracker owns one kagi.Chart per pair. Bars of each pair are applied by that
// pair's data feed goroutine; segments leave through a bounded feed.Feed.
type Tracker struct {
	settings  Settings
	timeframe time.Duration
	feeder    core.Feeder
	storage   Storage
	log       logger.Logger

	dataFeed    *exchange.DataFeedSubscription
	segmentFeed *feed.Feed
	capacity    int

	consumers []feed.Consumer
	notifiers []core.Notifier
	services  []service
	charts    map[string]*tracked

	sync bool
}

// NewTracker validates settings and prepares a tracker. Charts are created by Run.
func NewTracker(settings Settings, feeder core.Feeder, options ...Option) (*Tracker, error) {
	if err := validateSettings(&settings); err != nil {
		return nil, err
	}

	timeframe, err := str2duration.ParseDuration(settings.Timeframe)
	if err != nil || timeframe <= 0 {
		return nil, fmt.Errorf("%w: timeframe %q", ErrInvalidSettings, settings.Timeframe)
	}

	tracker := &Tracker{
		settings:  settings,
		timeframe: timeframe,
		feeder:    feeder,
		log:       DefaultLog,
		charts:    make(map[string]*tracked),
	}

	for _, option := range options {
		option(tracker)
	}

	if err := initializeStorage(tracker); err != nil {
		return nil, err
	}

	if tracker.capacity <= 0 {
		tracker.capacity = feed.DefaultCapacity + maxSegmentsPerSample*tracker.rendered()
	}
	tracker.dataFeed = exchange.NewDataFeed(feeder, tracker.log)
	tracker.segmentFeed = feed.NewFeed(tracker.capacity)

	for _, consumer := range tracker.consumers {
		tracker.subscribe(consumer)
	}
	for _, notifier := range tracker.notifiers {
		tracker.register(notifier)
	}

	return tracker, nil
}

// validateSettings ensures every pair splits into asset and quote
func validateSettings(settings *Settings) error {
	if len(settings.Pairs) == 0 {
		return fmt.Errorf("%w: no pairs", ErrInvalidSettings)
	}
	for i, pair := range settings.Pairs {
		pair = strings.ToUpper(pair)
		asset, quote := exchange.SplitAssetQuote(pair)
		if asset == "" || quote == "" {
			return fmt.Errorf("%w: invalid pair: %s", ErrInvalidSettings, pair)
		}
		settings.Pairs[i] = pair
	}
	if settings.History == 0 {
		settings.History = defaultHistory
	}
	if settings.History < 2 || settings.Lookback < 0 {
		return fmt.Errorf("%w: history %d lookback %d", ErrInvalidSettings, settings.History, settings.Lookback)
	}
	if err := settings.Reversal.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return nil
}

// initializeStorage opens the default database when no storage was given
func initializeStorage(tracker *Tracker) error {
	if tracker.storage != nil {
		return nil
	}
	db, err := storage.FromFile(defaultDatabase)
	if err != nil {
		return err
	}
	tracker.storage = db
	return nil
}

// rendered is the most bars a chart renders on start
func (t *Tracker) rendered() int {
	if t.settings.Lookback > 0 && t.settings.Lookback < t.settings.History {
		return t.settings.Lookback
	}
	return t.settings.History
}

// reversal completes the configured rule with the pair's tick size
func (t *Tracker) reversal(pair string) kagi.ReversalConfig {
	config := t.settings.Reversal
	if config.TickSize.IsZero() {
		if tick := t.feeder.AssetsInfo(pair).GetTickSize(); tick > 0 {
			config.TickSize = decimal.NewFromFloat(tick)
		}
	}
	return config
}

// Run restores or builds every chart, then applies live bars until ctx is
// done. With WithSync it returns once the feeder has no more bars.
func (t *Tracker) Run(ctx context.Context) error {
	t.segmentFeed.Start()
	defer t.segmentFeed.Stop()

	for _, pair := range t.settings.Pairs {
		if err := t.load(ctx, pair); err != nil {
			return fmt.Errorf("%s: %w", pair, err)
		}
		c := t.charts[pair]
		c.mu.Lock()
		c.live = true
		c.mu.Unlock()

		t.dataFeed.Subscribe(pair, t.settings.Timeframe, func(candle core.Candle) {
			t.onCandle(ctx, candle)
		}, true)
	}

	for _, s := range t.services {
		s.Start()
		defer s.Stop()
	}

	t.log.WithField("feeds", strings.Join(t.dataFeed.Keys(), ",")).
		Infof("tracking %d charts on %s", len(t.charts), t.settings.Timeframe)

	t.dataFeed.Start(ctx, t.sync)
	if !t.sync {
		<-ctx.Done()
	}

	if dropped := t.segmentFeed.Dropped(); dropped > 0 {
		t.log.Warnf("%d segments dropped by slow consumers", dropped)
	}
	return nil
}

// State returns the current state of a pair's chart
func (t *Tracker) State(pair string) (kagi.State, bool) {
	c, ok := t.charts[pair]
	if !ok {
		return kagi.State{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chart.State(), true
}

// Status describes every chart, one line per pair
func (t *Tracker) Status() string {
	pairs := make([]string, 0, len(t.charts))
	for pair := range t.charts {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	var sb strings.Builder
	for _, pair := range pairs {
		c := t.charts[pair]
		c.mu.Lock()
		state, snapshot := c.chart.State(), c.chart.Snapshot()
		c.mu.Unlock()

		fmt.Fprintf(&sb, "%s %s [%s]: %s", pair, t.settings.Timeframe, c.config, state)
		if !snapshot.LastSample.IsZero() {
			fmt.Fprintf(&sb, " last bar %s", snapshot.LastSample.UTC().Format(time.RFC3339))
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return "no charts"
	}
	return sb.String()
}
