// Package router owns the main dispatch loop: it pulls one packet per
// cycle from the central queue and hands it to the handler keyed by
// destination class and packet type.
package router

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"flightd/pkg/channel"
	"flightd/pkg/engine"
	"flightd/pkg/power"
	"flightd/pkg/protocol"
	"flightd/pkg/queue"
)

// Handler processes one packet addressed to the flight computer itself.
type Handler func(r *Router, p protocol.Packet)

// Config wires the router to the shared queue and its collaborators.
type Config struct {
	Central   *queue.Queue
	Registry  *channel.Registry
	Sequencer *power.Sequencer
	Beacon    *BeaconGenerator
	// Pin backs the switch-status report for the companion computer.
	Pin power.Control
	// Hub is the optional observability tap; every dispatched packet is
	// published to it.
	Hub  *engine.Hub
	Poll time.Duration
}

// Router is the top-level loop. It is one peer among the channel units,
// yielding once per cycle like every other loop, not a supervisor.
type Router struct {
	cfg  Config
	self map[protocol.PacketType]Handler
	log  *log.Entry
}

func New(cfg Config) *Router {
	if cfg.Poll <= 0 {
		cfg.Poll = 100 * time.Millisecond
	}
	r := &Router{
		cfg: cfg,
		log: log.WithField("source", "main"),
	}
	// Inner dispatch level: packet type, for packets addressed to the
	// flight computer. The outer level (destination class) is dispatch().
	r.self = map[protocol.PacketType]Handler{
		protocol.TypePing:          (*Router).handlePing,
		protocol.TypeCommunicate:   (*Router).handleCommunicate,
		protocol.TypeSwitchCommand: (*Router).handleSwitchCommand,
		protocol.TypeSwitchStatus:  (*Router).handleSwitchStatus,
		protocol.TypeSendBeacon:    (*Router).handleSendBeacon,
	}
	return r
}

// Run executes cycles until the context is cancelled, yielding once per
// cycle.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		r.Cycle()
		time.Sleep(r.cfg.Poll)
	}
}

// Cycle performs one main-loop iteration: a beacon check, then at most one
// packet popped and dispatched. Queued packets are worked off one per
// cycle in arrival order.
func (r *Router) Cycle() {
	r.cfg.Beacon.MaybeBeacon(time.Now())
	p, ok := r.cfg.Central.TryPop()
	if !ok {
		return
	}
	r.dispatch(p)
}

func (r *Router) dispatch(p protocol.Packet) {
	if r.cfg.Hub != nil {
		r.cfg.Hub.Publish(engine.Event{Packet: p, At: time.Now()})
	}
	switch p.NodeDest {
	case protocol.NodeGround:
		r.routeToGround(p)
	case protocol.NodeCompanion:
		r.cfg.Sequencer.EnsurePowered()
		r.forward(protocol.ChanCompanion, p)
	case protocol.NodeFlight:
		h, ok := r.self[p.Type]
		if !ok {
			r.log.WithField("type", p.Type.String()).Debug("dropping unhandled type")
			return
		}
		h(r, p)
	default:
		r.log.WithField("dest", p.NodeDest.String()).Debug("dropping packet with no route")
	}
}

// routeToGround selects the egress link by the packet's channel-out hint.
// Only the radio link is wired as a ground path.
func (r *Router) routeToGround(p protocol.Packet) {
	switch p.ChanOut {
	case protocol.ChanRadio:
		r.forward(protocol.ChanRadio, p)
	default:
		r.log.WithField("chan", p.ChanOut.String()).Debug("no ground egress for channel")
	}
}

func (r *Router) forward(id protocol.ChannelID, p protocol.Packet) {
	if !r.cfg.Registry.Enqueue(id, p) {
		r.log.WithField("chan", id.String()).Warn("destination channel not running")
	}
}

func (r *Router) handlePing(p protocol.Packet) {
	r.routeToGround(protocol.NewPong(p))
}

func (r *Router) handleCommunicate(p protocol.Packet) {
	r.forward(protocol.ChanPDU, p)
}

// handleSwitchCommand interprets the argument byte for commands targeting
// the companion computer; everything else belongs to the power unit.
func (r *Router) handleSwitchCommand(p protocol.Packet) {
	if p.Target() != protocol.SwitchCompanion {
		r.forward(protocol.ChanPDU, p)
		return
	}
	switch p.SwitchArg() {
	case protocol.SwitchArgDirect:
		// Direct command for the companion itself, forwarded verbatim.
		r.forward(protocol.ChanCompanion, p)
	case protocol.SwitchArgOn:
		r.cfg.Sequencer.PowerOn()
	default:
		r.cfg.Sequencer.EnsurePowered()
	}
}

func (r *Router) handleSwitchStatus(p protocol.Packet) {
	if p.Target() != protocol.SwitchCompanion {
		r.forward(protocol.ChanPDU, p)
		return
	}
	state := byte(0)
	if r.cfg.Pin.Read() {
		state = 1
	}
	r.forward(protocol.ChanRadio, protocol.Packet{
		Type:     protocol.TypeResponse,
		NodeOrig: protocol.NodeFlight,
		NodeDest: p.NodeOrig,
		ChanOut:  protocol.ChanRadio,
		Data:     []byte{state},
	})
}

func (r *Router) handleSendBeacon(p protocol.Packet) {
	r.cfg.Beacon.EmitNow()
	r.RequestSwitchRefresh()
}

// RequestSwitchRefresh queries the power unit for the state of every
// switch. Also invoked by the sequencer when the bus is too low to power
// the companion.
func (r *Router) RequestSwitchRefresh() {
	r.forward(protocol.ChanPDU, protocol.NewSwitchRefresh())
}
