package runtime

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"sort"
	"time"
)

// Presence is the presence table: user name to online state and last-seen time.
// It is owned by the Router; Login and Logout only compute the resulting
// record, the table changes when the Router calls Apply after a durable commit.
type Presence struct {
	users           map[string]domain.User
	order           []string
	rejectDuplicate bool
}

func NewPresence(rejectDuplicate bool) *Presence {
	return &Presence{
		users:           make(map[string]domain.User),
		rejectDuplicate: rejectDuplicate,
	}
}

// Restore replaces the table with persisted users, ordered by registration.
func (p *Presence) Restore(users []domain.User) {
	sorted := append([]domain.User(nil), users...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })
	p.users = make(map[string]domain.User, len(sorted))
	p.order = p.order[:0]
	for _, u := range sorted {
		p.Apply(u)
	}
}

// Login returns the record of name once logged in.
// Unseen users come back with a zero Seq and must be numbered by the caller.
func (p *Presence) Login(name string, at time.Time) (domain.User, error) {
	u, ok := p.users[name]
	if !ok {
		return domain.User{Name: name, Online: true, LastSeen: at}, nil
	}
	if u.Online && p.rejectDuplicate {
		return domain.User{}, errors.ErrAlreadyLoggedIn
	}
	return u.WithPresence(true, at), nil
}

// Logout returns the record of name once logged out, false for unknown users.
func (p *Presence) Logout(name string, at time.Time) (domain.User, bool) {
	u, ok := p.users[name]
	if !ok {
		return domain.User{}, false
	}
	return u.WithPresence(false, at), true
}

func (p *Presence) Apply(u domain.User) {
	if _, ok := p.users[u.Name]; !ok {
		p.order = append(p.order, u.Name)
	}
	p.users[u.Name] = u
}

func (p *Presence) IsOnline(name string) bool {
	return p.users[name].Online
}

// Names lists every known user, online or not, in registration order.
func (p *Presence) Names() []string {
	return append([]string{}, p.order...)
}

func (p *Presence) OnlineNames() []string {
	online := []string{}
	for _, name := range p.order {
		if p.users[name].Online {
			online = append(online, name)
		}
	}
	return online
}

func (p *Presence) All() []domain.User {
	users := make([]domain.User, 0, len(p.order))
	for _, name := range p.order {
		users = append(users, p.users[name])
	}
	return users
}
