package recorder

import "sync"

// Recorder is a trace event sink. Implementations must be safe for use by
// multiple goroutines.
type Recorder interface {
	RecordEvent(e Event) error
	GetEvents() []Event
	Clear()
}

type InMemoryRecorder struct {
	mu     sync.Mutex
	events []Event
}

func NewInMemoryRecorder() *InMemoryRecorder {
	return &InMemoryRecorder{events: []Event{}}
}

func (r *InMemoryRecorder) RecordEvent(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// GetEvents returns a copy of the recorded events.
func (r *InMemoryRecorder) GetEvents() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *InMemoryRecorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = []Event{}
}
