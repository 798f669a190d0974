package eventbus

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/logger"
)

// TestNewSyncEventBus tests event bus creation.
func TestNewSyncEventBus(t *testing.T) {
	bus := NewSyncEventBus(nil)

	if bus == nil {
		t.Fatal("NewSyncEventBus returned nil")
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", bus.SubscriberCount())
	}
	if bus.closed {
		t.Error("New event bus should not be closed")
	}
}

// TestPublishSubscribe tests basic publish/subscribe functionality.
func TestPublishSubscribe(t *testing.T) {
	bus := NewSyncEventBus(logger.NewTestLogger())
	defer bus.Close()

	var received domain.Event
	var callCount int

	subID := bus.Subscribe(domain.EventActiveLineChanged, func(event domain.Event) {
		received = event
		callCount++
	})
	if !strings.HasPrefix(string(subID), "sub-") {
		t.Fatalf("Unexpected subscription ID %q", subID)
	}

	seg := domain.LyricSegment{Text: "hello", Start: 1, End: 2}
	bus.Publish(domain.NewActiveLineChangedEvent("track-1", 3, 2, seg))

	if callCount != 1 {
		t.Fatalf("Expected handler to be called once, got %d", callCount)
	}

	e, ok := received.(domain.ActiveLineChangedEvent)
	if !ok {
		t.Fatalf("Expected ActiveLineChangedEvent, got %T", received)
	}
	if e.TrackID != "track-1" || e.Index != 3 || e.Previous != 2 || e.Segment.Text != "hello" {
		t.Errorf("Unexpected event payload: %+v", e)
	}
}

// TestSubscriptionIDsAreUnique tests that every subscription gets its own ID.
func TestSubscriptionIDsAreUnique(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	seen := make(map[domain.SubscriptionID]bool)
	for range 50 {
		id := bus.Subscribe(domain.EventLyricsPolled, func(domain.Event) {})
		if seen[id] {
			t.Fatalf("Duplicate subscription ID %q", id)
		}
		seen[id] = true
	}
}

// TestDeliveryOrder tests that handlers run in subscription order.
func TestDeliveryOrder(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var order []int
	for i := range 3 {
		bus.Subscribe(domain.EventPlaybackToggled, func(domain.Event) {
			order = append(order, i)
		})
	}
	bus.SubscribeAll(func(domain.Event) {
		order = append(order, 99)
	})

	bus.Publish(domain.NewPlaybackToggledEvent(true))

	want := []int{0, 1, 2, 99}
	if len(order) != len(want) {
		t.Fatalf("Expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, order)
		}
	}
}

// TestUnsubscribe tests unsubscribing handlers.
func TestUnsubscribe(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var callCount int32
	subID := bus.Subscribe(domain.EventSeekRequested, func(domain.Event) {
		atomic.AddInt32(&callCount, 1)
	})

	bus.Publish(domain.NewSeekRequestedEvent(10))
	bus.Unsubscribe(subID)
	bus.Publish(domain.NewSeekRequestedEvent(20))

	if atomic.LoadInt32(&callCount) != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
	if bus.HasSubscribers(domain.EventSeekRequested) {
		t.Error("Expected no subscribers after unsubscribe")
	}

	// Unknown and repeated IDs are no-ops
	bus.Unsubscribe(subID)
	bus.Unsubscribe("sub-nope")
}

// TestUnsubscribeDuringPublish tests that a handler can remove itself.
func TestUnsubscribeDuringPublish(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var first, second int
	var id domain.SubscriptionID
	id = bus.Subscribe(domain.EventLyricsPolled, func(domain.Event) {
		first++
		bus.Unsubscribe(id)
	})
	bus.Subscribe(domain.EventLyricsPolled, func(domain.Event) {
		second++
	})

	bus.Publish(domain.NewLyricsPolledEvent("t", domain.LyricsProcessing, nil))
	bus.Publish(domain.NewLyricsPolledEvent("t", domain.LyricsProcessing, nil))

	if first != 1 || second != 2 {
		t.Errorf("Expected first=1 second=2, got first=%d second=%d", first, second)
	}
}

// TestSubscribeFiltered tests filtered delivery.
func TestSubscribeFiltered(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var got []string
	bus.SubscribeFiltered(domain.EventLyricsStateChanged, func(e domain.Event) bool {
		return e.(domain.LyricsStateChangedEvent).TrackID == "wanted"
	}, func(e domain.Event) {
		got = append(got, e.(domain.LyricsStateChangedEvent).TrackID)
	})

	bus.Publish(domain.NewLyricsStateChangedEvent("other", domain.StateLoading, nil, nil))
	bus.Publish(domain.NewLyricsStateChangedEvent("wanted", domain.StateCompleted, nil, nil))

	if len(got) != 1 || got[0] != "wanted" {
		t.Errorf("Expected only the wanted track, got %v", got)
	}
}

// TestHasSubscribersWithWildcard tests that wildcard subscribers count for every type.
func TestHasSubscribersWithWildcard(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	if bus.HasSubscribers(domain.EventTrackSelected) {
		t.Fatal("Expected no subscribers")
	}

	id := bus.SubscribeAll(func(domain.Event) {})
	if !bus.HasSubscribers(domain.EventTrackSelected) {
		t.Error("Wildcard subscriber should count")
	}

	bus.Unsubscribe(id)
	if bus.HasSubscribers(domain.EventTrackSelected) {
		t.Error("Expected no subscribers after wildcard unsubscribe")
	}
}

// TestHandlerPanic tests that a panicking handler does not stop delivery.
func TestHandlerPanic(t *testing.T) {
	bus := NewSyncEventBus(logger.NewTestLogger())
	defer bus.Close()

	var called bool
	bus.Subscribe(domain.EventTrackSelected, func(domain.Event) {
		panic("boom")
	})
	bus.Subscribe(domain.EventTrackSelected, func(domain.Event) {
		called = true
	})

	bus.Publish(domain.NewTrackSelectedEvent(domain.Track{ID: "1"}))

	if !called {
		t.Error("Second handler should be called after first panicked")
	}
}

// TestClose tests closing the event bus.
func TestClose(t *testing.T) {
	bus := NewSyncEventBus(nil)

	var called bool
	bus.Subscribe(domain.EventTrackSelected, func(domain.Event) {
		called = true
	})

	if err := bus.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := bus.Close(); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Expected ErrBusClosed, got %v", err)
	}

	bus.Publish(domain.NewTrackSelectedEvent(domain.Track{ID: "1"}))
	if called {
		t.Error("Handler should not be called after close")
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers after close, got %d", bus.SubscriberCount())
	}

	defer func() {
		if recover() == nil {
			t.Error("Subscribe on closed bus should panic")
		}
	}()
	bus.Subscribe(domain.EventTrackSelected, func(domain.Event) {})
}

// TestNilEventAndHandler tests nil handling.
func TestNilEventAndHandler(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	bus.Publish(nil)

	defer func() {
		if recover() == nil {
			t.Error("Subscribe with nil handler should panic")
		}
	}()
	bus.Subscribe(domain.EventTrackSelected, nil)
}

// TestConcurrentPublishAndSubscribe tests the bus under concurrent use.
func TestConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var received int64
	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := bus.Subscribe(domain.EventLyricsPolled, func(domain.Event) {
				atomic.AddInt64(&received, 1)
			})
			for range 20 {
				bus.Publish(domain.NewLyricsPolledEvent("t", domain.LyricsProcessing, nil))
			}
			bus.Unsubscribe(id)
		}()
	}

	wg.Wait()

	if atomic.LoadInt64(&received) == 0 {
		t.Error("Expected some events to be delivered")
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", bus.SubscriberCount())
	}
}
