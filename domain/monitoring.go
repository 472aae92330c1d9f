package domain

import (
	"time"
)

// Snapshot is a point-in-time copy of the engine tables.
// It shares no memory with the live tables and can be read freely.
type Snapshot struct {
	Users          []User
	Channels       []string
	Messages       int
	OfflinePending map[string]int
	TakenAt        time.Time
}

func (s Snapshot) OnlineCount() int {
	count := 0
	for _, u := range s.Users {
		if u.Online {
			count++
		}
	}
	return count
}

func (s Snapshot) PendingCount() int {
	total := 0
	for _, n := range s.OfflinePending {
		total += n
	}
	return total
}
