package sink

import (
	"chat-presence/domain/event"
	"context"
	"sync"
)

// Timeline keeps the most recent broadcasts in memory for the inspect page.
type Timeline struct {
	mu       sync.RWMutex
	capacity int
	entries  []event.Broadcast
}

func NewTimeline(capacity int) *Timeline {
	return &Timeline{capacity: max(capacity, 1)}
}

func (t *Timeline) Consume(_ context.Context, b event.Broadcast) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, b)
	if len(t.entries) > t.capacity {
		t.entries = t.entries[len(t.entries)-t.capacity:]
	}
	return nil
}

// Recent returns the kept broadcasts, newest first.
func (t *Timeline) Recent() []event.Broadcast {
	t.mu.RLock()
	defer t.mu.RUnlock()
	recent := make([]event.Broadcast, 0, len(t.entries))
	for i := len(t.entries) - 1; i >= 0; i-- {
		recent = append(recent, t.entries[i])
	}
	return recent
}

func (t *Timeline) Name() string { return "timeline" }
