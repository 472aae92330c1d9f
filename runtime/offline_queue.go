package runtime

import (
	"chat-presence/domain"
	"sort"
)

// OfflineQueue holds undelivered private messages per recipient, oldest first.
// Growth is unbounded: entries only leave the queue through Drain or Remove.
type OfflineQueue struct {
	queues map[string][]domain.OfflineEntry
}

func NewOfflineQueue() *OfflineQueue {
	return &OfflineQueue{queues: make(map[string][]domain.OfflineEntry)}
}

// Restore rebuilds the per-recipient queues from persisted entries.
func (q *OfflineQueue) Restore(entries []domain.OfflineEntry) {
	sorted := append([]domain.OfflineEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })
	q.queues = make(map[string][]domain.OfflineEntry)
	for _, e := range sorted {
		q.Enqueue(e)
	}
}

func (q *OfflineQueue) Enqueue(e domain.OfflineEntry) {
	q.queues[e.Recipient] = append(q.queues[e.Recipient], e)
}

// Peek returns a copy of the queued entries without consuming them.
func (q *OfflineQueue) Peek(recipient string) []domain.OfflineEntry {
	return append([]domain.OfflineEntry{}, q.queues[recipient]...)
}

// Drain removes and returns every queued entry of recipient.
// The result is never nil so it encodes as an empty list.
func (q *OfflineQueue) Drain(recipient string) []domain.OfflineEntry {
	entries := q.queues[recipient]
	delete(q.queues, recipient)
	if entries == nil {
		return []domain.OfflineEntry{}
	}
	return entries
}

// Remove drops the n oldest entries of recipient.
func (q *OfflineQueue) Remove(recipient string, n int) {
	entries := q.queues[recipient]
	if n >= len(entries) {
		delete(q.queues, recipient)
		return
	}
	q.queues[recipient] = append([]domain.OfflineEntry(nil), entries[n:]...)
}

func (q *OfflineQueue) Len(recipient string) int {
	return len(q.queues[recipient])
}

// Pending counts queued entries per recipient.
func (q *OfflineQueue) Pending() map[string]int {
	pending := make(map[string]int, len(q.queues))
	for recipient, entries := range q.queues {
		pending[recipient] = len(entries)
	}
	return pending
}
