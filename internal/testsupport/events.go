package testsupport

import (
	"sync"

	"strikearr/internal/notifications"
)

// EventRecorder is a synchronous notifications.Emitter.
type EventRecorder struct {
	mu     sync.Mutex
	events []notifications.Event
}

// Dispatch records event.
func (r *EventRecorder) Dispatch(event notifications.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns every recorded event in dispatch order.
func (r *EventRecorder) Events() []notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notifications.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in dispatch order.
func (r *EventRecorder) Types() []notifications.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notifications.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// Reset discards recorded events.
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
