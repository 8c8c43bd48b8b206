// Package session tracks the game channels of the bot: one live
// GameChannel per chat channel, created on first use and evicted when its
// game ends.
package session

import (
	"sort"
	"sync"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
)

// Factory builds a GameChannel for a channel seen for the first time.
type Factory func(reg *Registry, channel chat.Channel) *GameChannel

// Observer is notified when the registry grows or shrinks and when a
// game finishes.
type Observer interface {
	SessionCreated(channel chat.Channel)
	SessionEvicted(channel chat.Channel)
	GameFinished(result Result)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) SessionCreated(chat.Channel) {}
func (NopObserver) SessionEvicted(chat.Channel) {}
func (NopObserver) GameFinished(Result)         {}

// Registry maps channel IDs to game channels.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	channels map[chat.ChannelID]*GameChannel
	factory  Factory
	observer Observer
}

// NewRegistry creates an empty Registry.
//
// Precondition: factory must be non-nil. observer may be nil.
func NewRegistry(factory Factory, observer Observer) *Registry {
	return &Registry{
		channels: make(map[chat.ChannelID]*GameChannel),
		factory:  factory,
		observer: observer,
	}
}

// GetOrCreate returns the game channel for channel, creating it on first use.
//
// Precondition: channel.Kind should be chat.KindText; callers filter other kinds.
// Postcondition: Repeated calls with the same channel ID return the same
// instance until it is evicted. Lookup and insert are one atomic step.
func (r *Registry) GetOrCreate(channel chat.Channel) *GameChannel {
	r.mu.Lock()
	if gc, ok := r.channels[channel.ID]; ok {
		r.mu.Unlock()
		return gc
	}
	gc := r.factory(r, channel)
	r.channels[channel.ID] = gc
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.SessionCreated(channel)
	}
	return gc
}

// Get returns the game channel for id without creating one.
//
// Postcondition: Returns (channel, true) if found, or (nil, false) otherwise.
func (r *Registry) Get(id chat.ChannelID) (*GameChannel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gc, ok := r.channels[id]
	return gc, ok
}

// Evict removes gc if it is still the registered game channel for its
// channel.
//
// Postcondition: Returns true if gc was removed. A stale instance never
// evicts its successor.
func (r *Registry) Evict(gc *GameChannel) bool {
	r.mu.Lock()
	current, ok := r.channels[gc.Channel().ID]
	if !ok || current != gc {
		r.mu.Unlock()
		return false
	}
	delete(r.channels, gc.Channel().ID)
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.SessionEvicted(gc.Channel())
	}
	return true
}

// Len returns the number of live game channels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// Channels returns the IDs of all live game channels, sorted.
func (r *Registry) Channels() []chat.ChannelID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chat.ChannelID, 0, len(r.channels))
	for id := range r.channels {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Shutdown cancels every live game channel and empties the registry.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	all := make([]*GameChannel, 0, len(r.channels))
	for _, gc := range r.channels {
		all = append(all, gc)
	}
	r.mu.Unlock()

	for _, gc := range all {
		gc.Close()
	}
}
