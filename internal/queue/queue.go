// internal/queue/queue.go
package queue

import (
	"sync"

	"github.com/rs/zerolog"

	"webmon-sdk/internal/event"
	"webmon-sdk/internal/metrics"
)

// Queue is the single shared store between capture and transport: a
// bounded FIFO of pending events. When full, the head (oldest) is evicted
// to admit the newcomer; freshness beats age for every kind equally, and
// overflow is a warning, not an error.
//
// All methods are safe for concurrent use; flush paths must call Drain to
// take a snapshot before awaiting the network (single-writer discipline).
type Queue struct {
	mu       sync.Mutex
	events   []*event.Event
	capacity int

	log     zerolog.Logger
	metrics *metrics.Metrics
}

const DefaultCapacity = 1000

func New(capacity int, log zerolog.Logger, m *metrics.Metrics) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		events:   make([]*event.Event, 0, capacity),
		capacity: capacity,
		log:      log,
		metrics:  m,
	}
}

// Enqueue appends e, evicting the oldest entry first if the queue is at
// capacity.
func (q *Queue) Enqueue(e *event.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) >= q.capacity {
		// oldest-drop: shift the head out, keep the backing array bounded
		dropped := q.events[0]
		copy(q.events, q.events[1:])
		q.events = q.events[:len(q.events)-1]

		q.metrics.Add(&q.metrics.EventsDroppedOverflowTotal, 1)
		q.log.Warn().
			Str("dropped_event_id", dropped.EventID).
			Str("dropped_type", string(dropped.Type)).
			Int("capacity", q.capacity).
			Msg("queue full, dropping oldest event")
	}
	q.events = append(q.events, e)
}

// Drain removes and returns the first n events (all of them when n <= 0
// or n exceeds the current size). Order is preserved. An empty queue
// drains to an empty slice, never nil-panics.
func (q *Queue) Drain(n int) []*event.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 || n > len(q.events) {
		n = len(q.events)
	}
	out := make([]*event.Event, n)
	copy(out, q.events[:n])
	copy(q.events, q.events[n:])
	q.events = q.events[:len(q.events)-n]
	return out
}

// Size reports the number of pending events.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Snapshot returns a copy of the pending events without removing them,
// oldest first.
func (q *Queue) Snapshot() []*event.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*event.Event, len(q.events))
	copy(out, q.events)
	return out
}

// Capacity reports the configured bound.
func (q *Queue) Capacity() int { return q.capacity }
