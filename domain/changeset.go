package domain

// Changeset lists every record a single request writes.
// It is committed atomically before the in-memory tables change.
type Changeset struct {
	Users    []User
	Channels []Channel
	Messages []Message
	Enqueued []OfflineEntry
	Drained  []OfflineEntry
}

func (c Changeset) Empty() bool {
	return len(c.Users) == 0 &&
		len(c.Channels) == 0 &&
		len(c.Messages) == 0 &&
		len(c.Enqueued) == 0 &&
		len(c.Drained) == 0
}
