// Package domain contains core concepts of the chat system.
// This file defines User presence records and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// User is a row of the presence table.
// Users are registered implicitly on their first login and are never deleted.
type User struct {
	Name     string
	Online   bool
	LastSeen time.Time
	// Seq records registration order so listings stay stable across restarts.
	Seq uint64
}

// WithPresence returns a copy of the user with a new presence state.
// LastSeen is refreshed on every transition.
func (u User) WithPresence(online bool, at time.Time) User {
	u.Online = online
	u.LastSeen = at
	return u
}
