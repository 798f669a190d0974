// Package ports define the EventBus interface for event-driven communication.
// The event bus decouples the lyrics service from the views that render it.
package ports

import (
	"github.com/tejashwikalptaru/beatstage/internal/domain"
)

// EventBus is the interface for publishing and subscribing to events.
//
// Thread-safety: Implementations must be thread-safe. The lyrics poller
// publishes from its own goroutine while the UI subscribes from the main one.
//
// Example usage:
//
//	subID := bus.Subscribe(domain.EventActiveLineChanged, func(event domain.Event) {
//	    e := event.(domain.ActiveLineChangedEvent)
//	    view.ScrollToLine(e.Index)
//	})
//	defer bus.Unsubscribe(subID)
type EventBus interface {
	// Publish publishes an event to all subscribers of that event type.
	// Handlers must return quickly; publishers may hold no locks while calling.
	Publish(event domain.Event)

	// Subscribe registers a handler for events of the specified type.
	// Each subscription gets a unique SubscriptionID.
	Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID

	// Unsubscribe removes a previously registered event handler.
	// Unknown IDs are a no-op.
	Unsubscribe(id domain.SubscriptionID)

	// SubscribeAll registers a handler that receives all events regardless of type.
	SubscribeAll(handler domain.EventHandler) domain.SubscriptionID

	// HasSubscribers returns true if there are any active subscriptions for the given event type.
	HasSubscribers(eventType domain.EventType) bool

	// Close shuts down the event bus and cleans up resources.
	Close() error
}

// EventFilter is a function that determines if an event should be delivered to a subscriber.
type EventFilter func(event domain.Event) bool

// FilteringEventBus extends EventBus with filtered subscriptions.
type FilteringEventBus interface {
	EventBus

	// SubscribeFiltered registers a handler with a filter function.
	// The handler is only called for events that pass the filter.
	//
	// Example: only handle state changes for one track
	//	bus.SubscribeFiltered(domain.EventLyricsStateChanged, func(e domain.Event) bool {
	//	    return e.(domain.LyricsStateChangedEvent).TrackID == trackID
	//	}, handle)
	SubscribeFiltered(eventType domain.EventType, filter EventFilter, handler domain.EventHandler) domain.SubscriptionID
}
