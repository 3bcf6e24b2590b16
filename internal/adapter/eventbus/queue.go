package eventbus

import (
	"sync"

	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/ports"
)

// Queue collects events raised while a frame is in flight and publishes them
// on Flush, after the frame has been handed to the sink. Handlers therefore
// never run in the middle of a chain application.
type Queue struct {
	bus ports.EventBus

	mu      sync.Mutex
	pending []domain.Event
	limit   int
	dropped uint64
}

// NewQueue creates a queue that publishes to bus. limit caps the number of
// pending events; extra events are counted and discarded. A limit of 0 means 256.
func NewQueue(bus ports.EventBus, limit int) *Queue {
	if limit <= 0 {
		limit = 256
	}
	return &Queue{
		bus:     bus,
		pending: make([]domain.Event, 0, 16),
		limit:   limit,
	}
}

// Wants reports whether anybody listens for the event type.
func (q *Queue) Wants(eventType domain.EventType) bool {
	return q.bus != nil && q.bus.HasSubscribers(eventType)
}

// Push appends an event. Nil events are ignored.
func (q *Queue) Push(event domain.Event) {
	if event == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) >= q.limit {
		q.dropped++
		return
	}
	q.pending = append(q.pending, event)
}

// Flush publishes every pending event in push order and returns how many were published.
func (q *Queue) Flush() int {
	q.mu.Lock()
	events := q.pending
	q.pending = make([]domain.Event, 0, cap(events))
	q.mu.Unlock()

	if q.bus == nil {
		return 0
	}
	for _, event := range events {
		q.bus.Publish(event)
	}
	return len(events)
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Dropped returns how many events were discarded because the queue was full.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
