package eventbus

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/logger"
)

// TestNewSyncEventBus tests event bus creation.
func TestNewSyncEventBus(t *testing.T) {
	bus := NewSyncEventBus(logger.NewTestLogger())

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
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var received domain.Event
	var callCount int

	subID := bus.Subscribe(domain.EventBeatDetected, func(event domain.Event) {
		received = event
		callCount++
	})

	if subID == "" {
		t.Fatal("Subscribe returned empty subscription ID")
	}

	bus.Publish(domain.NewBeatDetectedEvent(42, 128))

	if callCount != 1 {
		t.Errorf("Expected handler to be called once, got %d", callCount)
	}

	if received == nil {
		t.Fatal("Handler did not receive event")
	}

	if received.Type() != domain.EventBeatDetected {
		t.Errorf("Expected EventBeatDetected, got %s", received.Type())
	}

	beat := received.(domain.BeatDetectedEvent)
	if beat.FrameIndex != 42 || beat.BPM != 128 {
		t.Errorf("Unexpected event payload: frame %d bpm %v", beat.FrameIndex, beat.BPM)
	}
}

// TestMultipleSubscribersOrder tests that handlers run in subscription order.
func TestMultipleSubscribersOrder(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var order []int
	for i := 1; i <= 3; i++ {
		n := i
		bus.Subscribe(domain.EventChainSwapped, func(event domain.Event) {
			order = append(order, n)
		})
	}

	bus.Publish(domain.NewChainSwappedEvent(2, 10))

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("Expected delivery order [1 2 3], got %v", order)
	}
}

// TestUnsubscribe tests unsubscribing handlers.
func TestUnsubscribe(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var callCount int32
	subID := bus.Subscribe(domain.EventEngineStarted, func(event domain.Event) {
		atomic.AddInt32(&callCount, 1)
	})

	bus.Publish(domain.NewEngineStartedEvent(64, 48, 60))
	if atomic.LoadInt32(&callCount) != 1 {
		t.Errorf("Expected 1 call before unsubscribe, got %d", callCount)
	}

	bus.Unsubscribe(subID)
	bus.Publish(domain.NewEngineStartedEvent(64, 48, 60))

	if atomic.LoadInt32(&callCount) != 1 {
		t.Errorf("Expected 1 call after unsubscribe, got %d", callCount)
	}
	if bus.HasSubscribers(domain.EventEngineStarted) {
		t.Error("Expected no subscribers after unsubscribe")
	}
}

// TestUnsubscribeKeepsOrder tests that removing a middle handler preserves the others' order.
func TestUnsubscribeKeepsOrder(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var order []string
	bus.Subscribe(domain.EventNodeFailed, func(event domain.Event) { order = append(order, "a") })
	mid := bus.Subscribe(domain.EventNodeFailed, func(event domain.Event) { order = append(order, "b") })
	bus.Subscribe(domain.EventNodeFailed, func(event domain.Event) { order = append(order, "c") })

	bus.Unsubscribe(mid)
	bus.Publish(domain.NewNodeFailedEvent(domain.NewNodeProcessingError("n1", "blur", 3, false, errors.New("boom"))))

	if len(order) != 2 || order[0] != "a" || order[1] != "c" {
		t.Errorf("Expected [a c], got %v", order)
	}
}

// TestUnsubscribeInvalidID tests unsubscribing with invalid ID (should be no-op).
func TestUnsubscribeInvalidID(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	bus.Unsubscribe("invalid-id")
	bus.Unsubscribe("")
}

// TestSubscribeAll tests wildcard subscriptions.
func TestSubscribeAll(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var receivedEvents []domain.Event
	var mu sync.Mutex

	bus.SubscribeAll(func(event domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		receivedEvents = append(receivedEvents, event)
	})

	bus.Publish(domain.NewEngineStartedEvent(10, 10, 60))
	bus.Publish(domain.NewBeatDetectedEvent(1, 0))
	bus.Publish(domain.NewEngineResizedEvent(20, 20))

	mu.Lock()
	defer mu.Unlock()

	if len(receivedEvents) != 3 {
		t.Errorf("Expected 3 events, got %d", len(receivedEvents))
	}
}

// TestSubscribeFiltered tests that filters decide delivery.
func TestSubscribeFiltered(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var hits []string
	bus.SubscribeFiltered(domain.EventNodeFailed, func(e domain.Event) bool {
		return e.(domain.NodeFailedEvent).Err.NodeID == "wanted"
	}, func(e domain.Event) {
		hits = append(hits, e.(domain.NodeFailedEvent).Err.NodeID)
	})

	bus.Publish(domain.NewNodeFailedEvent(domain.NewNodeProcessingError("other", "bump", 1, false, errors.New("x"))))
	bus.Publish(domain.NewNodeFailedEvent(domain.NewNodeProcessingError("wanted", "bump", 2, true, errors.New("y"))))

	if len(hits) != 1 || hits[0] != "wanted" {
		t.Errorf("Expected only the wanted node, got %v", hits)
	}
}

// TestHasSubscribers tests the HasSubscribers method.
func TestHasSubscribers(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	if bus.HasSubscribers(domain.EventFramePresented) {
		t.Error("Expected no subscribers initially")
	}

	bus.Subscribe(domain.EventFramePresented, func(event domain.Event) {})

	if !bus.HasSubscribers(domain.EventFramePresented) {
		t.Error("Expected subscribers after subscription")
	}

	if bus.HasSubscribers(domain.EventBeatDetected) {
		t.Error("Expected no subscribers for different event type")
	}
}

// TestHasSubscribersWithWildcard tests HasSubscribers with wildcard subscriptions.
func TestHasSubscribersWithWildcard(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	bus.SubscribeAll(func(event domain.Event) {})

	if !bus.HasSubscribers(domain.EventFramePresented) {
		t.Error("Expected subscribers (wildcard) for EventFramePresented")
	}
	if !bus.HasSubscribers(domain.EventPerfUpdated) {
		t.Error("Expected subscribers (wildcard) for EventPerfUpdated")
	}
}

// TestHandlerPanic tests that panicking handlers don't crash the bus.
func TestHandlerPanic(t *testing.T) {
	bus := NewSyncEventBus(logger.NewTestLogger())
	defer bus.Close()

	var callCount int32

	bus.Subscribe(domain.EventBeatDetected, func(event domain.Event) {
		panic("test panic")
	})
	bus.Subscribe(domain.EventBeatDetected, func(event domain.Event) {
		atomic.AddInt32(&callCount, 1)
	})

	bus.Publish(domain.NewBeatDetectedEvent(0, 0))

	if atomic.LoadInt32(&callCount) != 1 {
		t.Errorf("Expected normal handler to be called despite panic, got %d calls", callCount)
	}
	if bus.PanicCount() != 1 {
		t.Errorf("Expected 1 recovered panic, got %d", bus.PanicCount())
	}
}

// TestClose tests closing the event bus.
func TestClose(t *testing.T) {
	bus := NewSyncEventBus(nil)

	handler := func(event domain.Event) {}
	bus.Subscribe(domain.EventEngineStopped, handler)
	bus.SubscribeAll(handler)

	if bus.SubscriberCount() == 0 {
		t.Error("Expected subscribers before close")
	}

	if err := bus.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}

	if bus.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers after close, got %d", bus.SubscriberCount())
	}

	bus.Publish(domain.NewEngineStoppedEvent(5, nil))

	if bus.HasSubscribers(domain.EventEngineStopped) {
		t.Error("Closed bus should report no subscribers")
	}

	if err := bus.Close(); err == nil {
		t.Error("Expected error when closing already closed bus")
	}
}

// TestConcurrentPublish tests concurrent event publishing (race condition test).
func TestConcurrentPublish(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var eventCount int32
	bus.Subscribe(domain.EventFramePresented, func(event domain.Event) {
		atomic.AddInt32(&eventCount, 1)
	})

	const numGoroutines = 10
	const eventsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				bus.Publish(domain.NewFramePresentedEvent(domain.FrameInfo{Index: uint64(j)}))
			}
		}()
	}

	wg.Wait()

	expectedCount := int32(numGoroutines * eventsPerGoroutine)
	if atomic.LoadInt32(&eventCount) != expectedCount {
		t.Errorf("Expected %d events, got %d", expectedCount, eventCount)
	}
}

// TestConcurrentSubscribe tests concurrent subscriptions (race condition test).
func TestConcurrentSubscribe(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	const numGoroutines = 10
	const subscriptionsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	handler := func(event domain.Event) {}

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < subscriptionsPerGoroutine; j++ {
				bus.Subscribe(domain.EventPerfUpdated, handler)
			}
		}()
	}

	wg.Wait()

	expectedCount := numGoroutines * subscriptionsPerGoroutine
	if bus.SubscriberCount() != expectedCount {
		t.Errorf("Expected %d subscribers, got %d", expectedCount, bus.SubscriberCount())
	}
}

// TestNilEvent tests publishing nil event (should be no-op).
func TestNilEvent(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var callCount int32
	bus.SubscribeAll(func(event domain.Event) {
		atomic.AddInt32(&callCount, 1)
	})

	bus.Publish(nil)

	if atomic.LoadInt32(&callCount) != 0 {
		t.Errorf("Handler should not be called for nil event, got %d calls", callCount)
	}
}

// TestNilHandler tests that subscribing with nil handler panics.
func TestNilHandler(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when subscribing with nil handler")
		}
	}()

	bus.Subscribe(domain.EventBeatDetected, nil)
}
