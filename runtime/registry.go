package runtime

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"sort"
	"strings"
)

type set map[string]struct{}

// ChannelRegistry tracks the known channels.
// Default channels are always listed first, the rest in creation order.
type ChannelRegistry struct {
	channels  map[string]domain.Channel
	defaults  []string
	isDefault set
}

func NewChannelRegistry(defaults []string) *ChannelRegistry {
	isDefault := make(set, len(defaults))
	for _, name := range defaults {
		isDefault[name] = struct{}{}
	}
	return &ChannelRegistry{
		channels:  make(map[string]domain.Channel),
		defaults:  defaults,
		isDefault: isDefault,
	}
}

// Restore replaces the registry content with persisted channels.
func (r *ChannelRegistry) Restore(channels []domain.Channel) {
	r.channels = make(map[string]domain.Channel, len(channels))
	for _, ch := range channels {
		r.Add(ch)
	}
}

// Missing returns the default channels that do not exist yet.
func (r *ChannelRegistry) Missing() []string {
	var missing []string
	for _, name := range r.defaults {
		if !r.Exists(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Create validates a new channel name and returns the channel to add.
// The registry itself is unchanged until Add.
func (r *ChannelRegistry) Create(name string) (domain.Channel, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Channel{}, errors.ErrMissingChannel
	}
	if r.Exists(name) {
		return domain.Channel{}, errors.ErrChannelExists
	}
	return domain.Channel{Name: name}, nil
}

func (r *ChannelRegistry) Add(ch domain.Channel) {
	r.channels[ch.Name] = ch
}

func (r *ChannelRegistry) Exists(name string) bool {
	_, ok := r.channels[name]
	return ok
}

func (r *ChannelRegistry) List() []string {
	names := make([]string, 0, len(r.channels))
	for _, name := range r.defaults {
		if r.Exists(name) {
			names = append(names, name)
		}
	}

	others := make([]domain.Channel, 0, len(r.channels))
	for name, ch := range r.channels {
		if _, ok := r.isDefault[name]; !ok {
			others = append(others, ch)
		}
	}
	sort.Slice(others, func(i, j int) bool { return others[i].Seq < others[j].Seq })
	for _, ch := range others {
		names = append(names, ch.Name)
	}
	return names
}
