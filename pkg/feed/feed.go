package feed

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/raykavin/kagiline/pkg/kagi"
	"github.com/samber/lo"
)

const DefaultCapacity = 256

// Event is a rendered segment tagged with the pair it belongs to. Live is
// false for segments drawn from history while a chart is loaded.
type Event struct {
	Pair    string       `json:"pair"`
	Segment kagi.Segment `json:"segment"`
	Live    bool         `json:"live"`
}

// Consumer handles events of one pair, in publication order
type Consumer func(Event)

type queue struct {
	events    chan Event
	consumers []Consumer
}

// Feed is a bounded, per-pair segment queue between the charts and their
// consumers. Publish never blocks: when a pair's queue is full the event is
// dropped and counted.
type Feed struct {
	mu       sync.RWMutex
	wg       sync.WaitGroup
	capacity int
	queues   map[string]*queue
	started  bool
	dropped  atomic.Uint64
}

func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{
		capacity: capacity,
		queues:   make(map[string]*queue),
	}
}

// Subscribe registers consumer for the pair. Subscriptions must happen
// before Start.
func (f *Feed) Subscribe(pair string, consumer Consumer) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, ok := f.queues[pair]
	if !ok {
		q = &queue{events: make(chan Event, f.capacity)}
		f.queues[pair] = q
	}
	q.consumers = append(q.consumers, consumer)
}

// Publish enqueues the event and reports whether it was accepted.
// Events for pairs without subscribers are discarded without counting.
func (f *Feed) Publish(event Event) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	q, ok := f.queues[event.Pair]
	if !ok {
		return false
	}

	select {
	case q.events <- event:
		return true
	default:
		f.dropped.Add(1)
		return false
	}
}

// PublishAll enqueues segments of a pair in order
func (f *Feed) PublishAll(pair string, segments []kagi.Segment) {
	for _, segment := range segments {
		f.Publish(Event{Pair: pair, Segment: segment})
	}
}

// Start launches one delivery goroutine per pair
func (f *Feed) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started {
		return
	}
	f.started = true

	for _, q := range f.queues {
		f.wg.Add(1)
		go f.deliver(q)
	}
}

func (f *Feed) deliver(q *queue) {
	defer f.wg.Done()
	for event := range q.events {
		for _, consumer := range q.consumers {
			consumer(event)
		}
	}
}

// Stop closes every queue and waits until queued events are delivered
func (f *Feed) Stop() {
	f.mu.Lock()
	for pair, q := range f.queues {
		close(q.events)
		delete(f.queues, pair)
	}
	f.mu.Unlock()

	f.wg.Wait()
}

// Dropped returns how many events were rejected by full queues
func (f *Feed) Dropped() uint64 {
	return f.dropped.Load()
}

// Pairs lists the pairs with at least one subscriber
func (f *Feed) Pairs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	pairs := lo.Keys(f.queues)
	sort.Strings(pairs)
	return pairs
}
