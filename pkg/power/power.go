// Package power tracks and drives the companion computer's power state.
package power

import "sync"

// Control is the power-enable line capability. Sequencing logic depends
// only on this interface; hardware-backed adapters live with the board
// support code.
type Control interface {
	Assert()
	Deassert()
	// Read reports the line's current level, true for asserted.
	Read() bool
}

// SimPin is an in-memory Control for tests and desk runs.
type SimPin struct {
	mu   sync.Mutex
	high bool
}

func NewSimPin() *SimPin { return &SimPin{} }

func (p *SimPin) Assert() {
	p.mu.Lock()
	p.high = true
	p.mu.Unlock()
}

func (p *SimPin) Deassert() {
	p.mu.Lock()
	p.high = false
	p.mu.Unlock()
}

func (p *SimPin) Read() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.high
}
