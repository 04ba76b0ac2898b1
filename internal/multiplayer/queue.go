package multiplayer

import (
	"sync"

	"github.com/vovakirdan/duel2048/internal/duel"
)

// EventQueue buffers peer events for a front end. It never blocks the peer
// loop: when the buffer is full the oldest event is dropped.
type EventQueue struct {
	events   chan Event
	done     chan struct{}
	doneOnce sync.Once
}

// NewEventQueue creates a queue. size controls how many events can be
// buffered before dropping.
func NewEventQueue(size int) *EventQueue {
	if size < 1 {
		size = 64 // Default buffer size
	}
	return &EventQueue{
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
}

// Send queues an event.
// If the buffer is full, old events are dropped to prevent blocking.
func (q *EventQueue) Send(evt Event) {
	select {
	case <-q.done:
		return
	default:
	}

	select {
	case q.events <- evt:
	default:
		// Buffer full, drop oldest and retry
		select {
		case <-q.events:
		default:
		}
		select {
		case q.events <- evt:
		default:
		}
	}
}

// Actuate implements duel.Actuator.
func (q *EventQueue) Actuate(a duel.Actuation) {
	q.Send(ActuationEvent{Actuation: a})
}

// Events returns the channel to receive events from.
func (q *EventQueue) Events() <-chan Event {
	return q.events
}

// Done returns a channel closed by Close.
func (q *EventQueue) Done() <-chan struct{} {
	return q.done
}

// Close stops accepting events.
// Safe to call multiple times.
func (q *EventQueue) Close() {
	q.doneOnce.Do(func() {
		close(q.done)
	})
}
