package kagiline

import (
	"github.com/raykavin/kagiline/pkg/core"
	"github.com/raykavin/kagiline/pkg/feed"
)

// service is a notifier with a lifecycle, such as the telegram bot
type service interface {
	Start()
	Stop()
}

type eventNotifier interface {
	OnEvent(event feed.Event)
}

// Subscribe hands the segments of every pair to consumer. It must be called
// before Run.
func (t *Tracker) Subscribe(consumers ...feed.Consumer) {
	for _, consumer := range consumers {
		t.consumers = append(t.consumers, consumer)
		t.subscribe(consumer)
	}
}

// AddNotifier registers a notifier after construction, for notifiers that
// need the tracker themselves. It must be called before Run.
func (t *Tracker) AddNotifier(notifier core.Notifier) {
	t.notifiers = append(t.notifiers, notifier)
	t.register(notifier)
}

func (t *Tracker) subscribe(consumer feed.Consumer) {
	for _, pair := range t.settings.Pairs {
		t.segmentFeed.Subscribe(pair, consumer)
	}
}

// register subscribes notifiers that understand segments to live ones only,
// and starts the notifiers with a lifecycle together with the tracker
func (t *Tracker) register(notifier core.Notifier) {
	if n, ok := notifier.(eventNotifier); ok {
		t.subscribe(liveOnly(n.OnEvent))
	}
	if s, ok := notifier.(service); ok {
		t.services = append(t.services, s)
	}
}

// liveOnly drops the segments drawn from history while charts load
func liveOnly(consumer feed.Consumer) feed.Consumer {
	return func(event feed.Event) {
		if event.Live {
			consumer(event)
		}
	}
}

// notifyError reports err to every notifier
func (t *Tracker) notifyError(err error) {
	for _, notifier := range t.notifiers {
		notifier.OnError(err)
	}
}
