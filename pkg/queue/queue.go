// Package queue provides the mutex-guarded packet FIFOs shared between
// channel loops and the router.
package queue

import (
	"sync"

	"flightd/pkg/protocol"
)

// Queue is a FIFO of packets, safe for concurrent producers and a single
// consumer. The lock scope is strictly the push or pop; it is never held
// across transmits. Pure FIFO, no priority reordering, no silent drops.
type Queue struct {
	mu    sync.Mutex
	items []protocol.Packet
}

func New() *Queue {
	return &Queue{}
}

// Push appends a packet. It never fails; producers are rate-limited by
// their loop yields, so the queue stays unbounded.
func (q *Queue) Push(p protocol.Packet) {
	q.mu.Lock()
	q.items = append(q.items, p)
	q.mu.Unlock()
}

// TryPop removes and returns the oldest packet, or reports empty without
// blocking.
func (q *Queue) TryPop() (protocol.Packet, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return protocol.Packet{}, false
	}
	p := q.items[0]
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return p, true
}

// Len reports the current depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain discards every queued packet and reports how many were dropped.
// Used by channels flushing their inbound queue on shutdown.
func (q *Queue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}
