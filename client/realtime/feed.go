package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Chandru6607/6g-dashboard/internal/logging"
	"github.com/Chandru6607/6g-dashboard/model"
)

// Feed capacities.
const (
	FeedEventCapacity = 50
	FeedAlertCapacity = 30
)

// Feed collects the telemetry stream and alerts from a Client.
type Feed struct {
	client *Client
	events *Ring[model.TelemetryEvent]
	alerts *Ring[model.Alert]
	subs   []Subscription
}

// NewFeed subscribes to telemetry:event, system:alert and alert:new.
func NewFeed(c *Client) *Feed {
	f := &Feed{
		client: c,
		events: NewRing[model.TelemetryEvent](FeedEventCapacity),
		alerts: NewRing[model.Alert](FeedAlertCapacity),
	}
	f.subs = append(f.subs,
		c.On(model.EventTelemetryEvent, decodeInto(c.log, f.events.Push)),
		c.On(model.EventSystemAlert, decodeInto(c.log, f.alerts.Push)),
		c.On(model.EventAlertNew, decodeInto(c.log, f.alerts.Push)),
	)
	return f
}

// Events returns recent telemetry events, newest first.
func (f *Feed) Events() []model.TelemetryEvent { return f.events.Items() }

// Alerts returns recent alerts, newest first.
func (f *Feed) Alerts() []model.Alert { return f.alerts.Items() }

// Close unsubscribes the feed.
func (f *Feed) Close() {
	for _, sub := range f.subs {
		f.client.Off(sub)
	}
	f.subs = nil
}

// Latest holds the most recent payload of one event.
type Latest[T any] struct {
	client *Client
	sub    Subscription

	mu      sync.RWMutex
	value   T
	updates chan struct{}
}

// Watch subscribes to event and keeps its latest decoded payload, starting
// from initial.
func Watch[T any](c *Client, event string, initial T) *Latest[T] {
	l := &Latest[T]{client: c, value: initial, updates: make(chan struct{}, 1)}
	l.sub = c.On(event, decodeInto(c.log, l.set))
	return l
}

// Get returns the current value.
func (l *Latest[T]) Get() T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value
}

// Updates signals after each new value. Signals coalesce.
func (l *Latest[T]) Updates() <-chan struct{} { return l.updates }

// Close unsubscribes.
func (l *Latest[T]) Close() { l.client.Off(l.sub) }

func (l *Latest[T]) set(v T) {
	l.mu.Lock()
	l.value = v
	l.mu.Unlock()
	select {
	case l.updates <- struct{}{}:
	default:
	}
}

func decodeInto[T any](log logging.Logger, fn func(T)) Handler {
	return func(data json.RawMessage) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			log.Warn(context.Background(), "dropping undecodable payload", logging.Err(err))
			return
		}
		fn(v)
	}
}
