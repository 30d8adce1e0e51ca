package exchange

import (
	"context"
	"strings"
	"sync"

	"github.com/StudioSol/set"
	"github.com/raykavin/kagiline/pkg/core"
	"github.com/raykavin/kagiline/pkg/logger"
)

// DataFeed holds the channels of one pair and timeframe subscription
type DataFeed struct {
	Data chan core.Candle
	Err  chan error
}

// DataFeedConsumer receives bars of one pair and timeframe
type DataFeedConsumer func(core.Candle)

type subscription struct {
	onCandleClose bool
	consumer      DataFeedConsumer
}

// DataFeedSubscription fans bars from a feeder out to consumers. Each pair and
// timeframe is processed by its own goroutine, so consumers of one series see
// bars in order and never concurrently.
type DataFeedSubscription struct {
	feeder                  core.Feeder
	Feeds                   *set.LinkedHashSetString
	DataFeeds               map[string]*DataFeed
	SubscriptionsByDataFeed map[string][]subscription
	log                     logger.Logger
	mu                      sync.RWMutex
}

func NewDataFeed(feeder core.Feeder, log logger.Logger) *DataFeedSubscription {
	return &DataFeedSubscription{
		feeder:                  feeder,
		Feeds:                   set.NewLinkedHashSetString(),
		DataFeeds:               make(map[string]*DataFeed),
		SubscriptionsByDataFeed: make(map[string][]subscription),
		log:                     log,
	}
}

func splitFeedKey(key string) (pair, timeframe string) {
	pair, timeframe, found := strings.Cut(key, "--")
	if !found {
		return "", ""
	}
	return pair, timeframe
}

// Subscribe registers consumer for the pair and timeframe. With onCandleClose
// only complete bars are delivered.
func (d *DataFeedSubscription) Subscribe(pair, timeframe string, consumer DataFeedConsumer, onCandleClose bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := feedKey(pair, timeframe)
	d.Feeds.Add(key)
	d.SubscriptionsByDataFeed[key] = append(d.SubscriptionsByDataFeed[key], subscription{
		onCandleClose: onCandleClose,
		consumer:      consumer,
	})
}

// Connect opens one feeder subscription per registered series
func (d *DataFeedSubscription) Connect(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key := range d.Feeds.Iter() {
		if _, ok := d.DataFeeds[key]; ok {
			continue
		}
		pair, timeframe := splitFeedKey(key)
		ccandle, cerr := d.feeder.CandlesSubscription(ctx, pair, timeframe)
		d.DataFeeds[key] = &DataFeed{Data: ccandle, Err: cerr}
	}
	d.log.Infof("connected %d data feeds", len(d.DataFeeds))
}

// Start connects and processes every series. With loadSync it returns once
// all feeds are exhausted, otherwise immediately.
func (d *DataFeedSubscription) Start(ctx context.Context, loadSync bool) {
	d.Connect(ctx)

	var wg sync.WaitGroup
	d.mu.RLock()
	for key, feed := range d.DataFeeds {
		wg.Add(1)
		go d.processFeed(key, feed, &wg)
	}
	d.mu.RUnlock()

	if loadSync {
		wg.Wait()
	}
}

func (d *DataFeedSubscription) processFeed(key string, feed *DataFeed, wg *sync.WaitGroup) {
	defer wg.Done()

	data, errs := feed.Data, feed.Err
	for data != nil || errs != nil {
		select {
		case candle, ok := <-data:
			if !ok {
				data = nil
				continue
			}

			d.mu.RLock()
			subscriptions := d.SubscriptionsByDataFeed[key]
			d.mu.RUnlock()

			for _, sub := range subscriptions {
				if sub.onCandleClose && !candle.Complete {
					continue
				}
				sub.consumer(candle)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				d.log.WithError(err).Errorf("data feed %s", key)
			}
		}
	}
}

// Keys lists the subscribed series in subscription order
func (d *DataFeedSubscription) Keys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	keys := make([]string, 0)
	for key := range d.Feeds.Iter() {
		keys = append(keys, key)
	}
	return keys
}
