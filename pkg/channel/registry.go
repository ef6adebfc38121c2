package channel

import (
	"sync"

	"flightd/pkg/protocol"
)

// Registry maps a channel id to the execution unit currently running that
// channel's loop. Entries appear when a channel starts and disappear when
// it is killed, so the companion entry comes and goes with its power state.
type Registry struct {
	mu    sync.Mutex
	chans map[protocol.ChannelID]*Channel
}

func NewRegistry() *Registry {
	return &Registry{chans: make(map[protocol.ChannelID]*Channel)}
}

func (r *Registry) Register(c *Channel) {
	r.mu.Lock()
	r.chans[c.ID()] = c
	r.mu.Unlock()
}

func (r *Registry) Deregister(id protocol.ChannelID) {
	r.mu.Lock()
	delete(r.chans, id)
	r.mu.Unlock()
}

// Lookup returns the running channel for an id, if any.
func (r *Registry) Lookup(id protocol.ChannelID) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chans[id]
	return c, ok
}

// Enqueue places a packet on a channel's inbound queue. It reports false
// when no channel with that id is running.
func (r *Registry) Enqueue(id protocol.ChannelID, p protocol.Packet) bool {
	c, ok := r.Lookup(id)
	if !ok {
		return false
	}
	c.Enqueue(p)
	return true
}
