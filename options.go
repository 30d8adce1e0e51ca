package kagiline

import (
	"github.com/raykavin/kagiline/pkg/core"
	"github.com/raykavin/kagiline/pkg/feed"
	"github.com/raykavin/kagiline/pkg/logger"
)

// Option is a functional option for configuring a Tracker
type Option func(*Tracker)

// WithStorage sets the storage, by default a local file called kagiline.db
func WithStorage(storage Storage) Option {
	return func(t *Tracker) {
		t.storage = storage
	}
}

// WithLogger replaces DefaultLog
func WithLogger(log logger.Logger) Option {
	return func(t *Tracker) {
		t.log = log
	}
}

// WithLogLevel sets the log level of the tracker's logger
func WithLogLevel(level logger.Level) Option {
	return func(t *Tracker) {
		t.log.SetLevel(level)
	}
}

// WithSync makes Run return once the feeder is exhausted, for CSV replays
func WithSync() Option {
	return func(t *Tracker) {
		t.sync = true
	}
}

// WithFeedCapacity bounds the segment queue of each pair
func WithFeedCapacity(capacity int) Option {
	return func(t *Tracker) {
		t.capacity = capacity
	}
}

// WithNotifier registers a notifier, currently email and telegram are supported
func WithNotifier(notifier core.Notifier) Option {
	return func(t *Tracker) {
		t.notifiers = append(t.notifiers, notifier)
	}
}

// WithSegmentSubscription subscribes a consumer to the segments of every pair
func WithSegmentSubscription(consumer feed.Consumer) Option {
	return func(t *Tracker) {
		t.consumers = append(t.consumers, consumer)
	}
}
