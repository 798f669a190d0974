// Package eventbus provides implementations of the EventBus interface.
package eventbus

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/ports"
)

// ErrBusClosed is returned by Close when the bus was already closed.
var ErrBusClosed = errors.New("event bus already closed")

// SyncEventBus delivers events to handlers synchronously, in subscription
// order, on the publisher's goroutine.
//
// Thread-safety: safe for concurrent Publish/Subscribe/Unsubscribe. The
// subscriber list is copied before delivery, so handlers may subscribe or
// unsubscribe from inside a callback.
type SyncEventBus struct {
	logger *slog.Logger

	subscribers    map[domain.EventType][]subscription
	allSubscribers []subscription
	index          map[domain.SubscriptionID]domain.EventType // "" for wildcard

	mu     sync.RWMutex
	closed bool
}

type subscription struct {
	id      domain.SubscriptionID
	filter  ports.EventFilter
	handler domain.EventHandler
}

// NewSyncEventBus creates a new synchronous event bus.
func NewSyncEventBus(logger *slog.Logger) *SyncEventBus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SyncEventBus{
		logger:      logger,
		subscribers: make(map[domain.EventType][]subscription),
		index:       make(map[domain.SubscriptionID]domain.EventType),
	}
}

// Publish delivers an event to type subscribers first, then to wildcard ones.
//
// Panics in handlers are recovered and logged, and do not stop delivery to
// the remaining handlers. Publishing on a closed bus is a no-op.
func (bus *SyncEventBus) Publish(event domain.Event) {
	if event == nil {
		return
	}

	bus.mu.RLock()
	if bus.closed {
		bus.mu.RUnlock()
		return
	}
	targets := make([]subscription, 0, len(bus.subscribers[event.Type()])+len(bus.allSubscribers))
	targets = append(targets, bus.subscribers[event.Type()]...)
	targets = append(targets, bus.allSubscribers...)
	bus.mu.RUnlock()

	for _, sub := range targets {
		if sub.filter != nil && !sub.filter(event) {
			continue
		}
		bus.deliver(sub, event)
	}
}

func (bus *SyncEventBus) deliver(sub subscription, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			bus.logger.Error("event handler panicked",
				slog.Any("panic", r),
				slog.String("event_type", string(event.Type())),
				slog.String("subscription", string(sub.id)))
		}
	}()

	sub.handler(event)
}

// Subscribe registers a handler for events of the specified type.
func (bus *SyncEventBus) Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID {
	return bus.SubscribeFiltered(eventType, nil, handler)
}

// SubscribeFiltered registers a handler that only sees events passing filter.
// A nil filter accepts everything.
func (bus *SyncEventBus) SubscribeFiltered(eventType domain.EventType, filter ports.EventFilter, handler domain.EventHandler) domain.SubscriptionID {
	if handler == nil {
		panic("event handler cannot be nil")
	}
	if eventType == "" {
		panic("event type cannot be empty; use SubscribeAll")
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()

	if bus.closed {
		panic("cannot subscribe to closed event bus")
	}

	id := domain.SubscriptionID("sub-" + uuid.NewString())
	bus.subscribers[eventType] = append(bus.subscribers[eventType], subscription{
		id:      id,
		filter:  filter,
		handler: handler,
	})
	bus.index[id] = eventType

	bus.logger.Debug("subscribed",
		slog.String("event_type", string(eventType)),
		slog.String("subscription", string(id)))

	return id
}

// SubscribeAll registers a handler that receives all events regardless of type.
func (bus *SyncEventBus) SubscribeAll(handler domain.EventHandler) domain.SubscriptionID {
	if handler == nil {
		panic("event handler cannot be nil")
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()

	if bus.closed {
		panic("cannot subscribe to closed event bus")
	}

	id := domain.SubscriptionID("sub-all-" + uuid.NewString())
	bus.allSubscribers = append(bus.allSubscribers, subscription{id: id, handler: handler})
	bus.index[id] = ""

	return id
}

// Unsubscribe removes a previously registered handler, keeping the order of
// the remaining ones. Unknown IDs are a no-op.
func (bus *SyncEventBus) Unsubscribe(id domain.SubscriptionID) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	eventType, ok := bus.index[id]
	if !ok {
		return
	}
	delete(bus.index, id)

	if eventType == "" {
		bus.allSubscribers = without(bus.allSubscribers, id)
		return
	}

	remaining := without(bus.subscribers[eventType], id)
	if len(remaining) == 0 {
		delete(bus.subscribers, eventType)
		return
	}
	bus.subscribers[eventType] = remaining
}

// without returns subs minus the given id, in a new slice so that in-flight
// Publish copies stay valid.
func without(subs []subscription, id domain.SubscriptionID) []subscription {
	out := make([]subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.id != id {
			out = append(out, sub)
		}
	}
	return out
}

// HasSubscribers returns true if anything would receive an event of this type.
func (bus *SyncEventBus) HasSubscribers(eventType domain.EventType) bool {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	return len(bus.subscribers[eventType]) > 0 || len(bus.allSubscribers) > 0
}

// Close shuts down the bus and drops every subscription.
func (bus *SyncEventBus) Close() error {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	if bus.closed {
		return ErrBusClosed
	}

	bus.closed = true
	bus.subscribers = make(map[domain.EventType][]subscription)
	bus.allSubscribers = nil
	bus.index = make(map[domain.SubscriptionID]domain.EventType)

	return nil
}

// SubscriberCount returns the number of active subscriptions.
func (bus *SyncEventBus) SubscriberCount() int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	return len(bus.index)
}

// Verify that SyncEventBus implements the FilteringEventBus interface
var _ ports.FilteringEventBus = (*SyncEventBus)(nil)
