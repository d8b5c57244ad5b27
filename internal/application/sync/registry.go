package sync

import (
	"sort"
	"strings"
	"sync"

	"github.com/channelsync/backend/internal/domain/channel"
)

// AdapterRegistry maps a channel type to the factory that builds its
// adapter. It is a pure lookup table with no network or persistence
// side effects; registration is case-insensitive on the type.
//
// The registry is owned by whichever orchestrator is constructed with
// it; there is no package-level singleton.
type AdapterRegistry struct {
	mu        sync.RWMutex
	factories map[channel.ChannelType]channel.AdapterFactory
}

// NewAdapterRegistry creates an empty registry
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{
		factories: make(map[channel.ChannelType]channel.AdapterFactory),
	}
}

// Register adds or replaces the factory for a channel type
func (r *AdapterRegistry) Register(channelType string, factory channel.AdapterFactory) error {
	t, ok := channel.ParseChannelType(channelType)
	if !ok {
		return channel.ErrUnknownChannelType
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = factory
	return nil
}

// Get returns the factory for a channel type
func (r *AdapterRegistry) Get(channelType string) (channel.AdapterFactory, bool) {
	t := channel.ChannelType(strings.ToLower(strings.TrimSpace(channelType)))
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[t]
	return f, ok
}

// Has reports whether a factory is registered for the type
func (r *AdapterRegistry) Has(channelType string) bool {
	_, ok := r.Get(channelType)
	return ok
}

// List returns the registered channel types in stable order
func (r *AdapterRegistry) List() []channel.ChannelType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]channel.ChannelType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// AdapterFor builds an adapter for the given channel using its
// registered factory.
func (r *AdapterRegistry) AdapterFor(ch *channel.Channel) (channel.Adapter, error) {
	factory, ok := r.Get(string(ch.Type))
	if !ok {
		return nil, channel.ErrAdapterNotRegistered
	}
	return factory(ch)
}
