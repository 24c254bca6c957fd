package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"vfi-client/internal/domain"
)

// EventType classifies what a job reported.
type EventType string

const (
	EventTypeState    EventType = "state"
	EventTypeProgress EventType = "progress"
	EventTypeFrame    EventType = "frame"
	EventTypeResult   EventType = "result"
	EventTypeError    EventType = "error"
)

// Event is one sequenced job notification. Only the fields relevant to Type are set.
type Event struct {
	Seq         int64           `json:"seq"`
	Timestamp   time.Time       `json:"timestamp"`
	JobID       string          `json:"jobId"`
	Type        EventType       `json:"type"`
	State       domain.JobState `json:"state,omitempty"`
	Message     string          `json:"message,omitempty"`
	Progress    float64         `json:"progress,omitempty"`
	Position    int             `json:"position,omitempty"`
	ContentType string          `json:"contentType,omitempty"`
	FramePath   string          `json:"framePath,omitempty"`
	RemotePath  string          `json:"remotePath,omitempty"`
	Frames      int             `json:"frames,omitempty"`
}

// EventBus keeps a bounded history of job events. Readers either poll with
// Since or block in Wait until something newer than their cursor arrives.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	changed   chan struct{}
}

// NewEventBus creates a bus keeping at most maxEvents (500 when <= 0).
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		changed:   make(chan struct{}),
	}
}

// Publish assigns the next sequence number, stores the event and wakes waiters.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if len(b.events) == b.maxEvents {
		copy(b.events, b.events[1:])
		b.events = b.events[:len(b.events)-1]
	}
	b.events = append(b.events, event)

	wake := b.changed
	b.changed = make(chan struct{})
	b.mu.Unlock()

	close(wake)
	return event
}

// Since returns retained events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sinceLocked(seq)
}

// Wait blocks until events newer than seq exist or ctx ends, then returns them.
func (b *EventBus) Wait(ctx context.Context, seq int64) ([]Event, error) {
	for {
		b.mu.RLock()
		events := b.sinceLocked(seq)
		changed := b.changed
		b.mu.RUnlock()
		if len(events) > 0 {
			return events, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// LastSeq returns the sequence of the most recent event, or 0.
func (b *EventBus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}

// sinceLocked relies on events being stored in ascending Seq order.
func (b *EventBus) sinceLocked(seq int64) []Event {
	i := sort.Search(len(b.events), func(i int) bool { return b.events[i].Seq > seq })
	if i == len(b.events) {
		return nil
	}
	return append([]Event(nil), b.events[i:]...)
}
