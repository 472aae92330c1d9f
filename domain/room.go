package domain

// DefaultChannel is seeded when no default set is configured.
const DefaultChannel = "general"

// Channel is a named broadcast topic. Membership is implicit:
// every user may publish to and subscribe to every existing channel.
type Channel struct {
	Name string
	Seq  uint64
}
