package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"flightd/pkg/channel"
	"flightd/pkg/protocol"
)

// simEndpoint plays the far end of a loopback link so the full routing
// loop runs on a desk with no hardware attached.
type simEndpoint func(ctx context.Context, t *channel.Loopback)

const simPoll = 20 * time.Millisecond

// simPDUEndpoint answers switch-status queries with a canned switch map
// and acknowledges everything else addressed to the power unit.
func simPDUEndpoint(ctx context.Context, t *channel.Loopback) {
	simLog := log.WithField("source", "sim-pdu")
	states := map[protocol.Switch]byte{
		protocol.SwitchCompanion: 0,
		protocol.SwitchRadio:     1,
		protocol.SwitchHeater:    0,
		protocol.SwitchBurnwire:  0,
		protocol.SwitchRail5V:    1,
		protocol.SwitchRail12V:   0,
	}

	runEndpoint(ctx, t, func(p protocol.Packet) []protocol.Packet {
		switch p.Type {
		case protocol.TypeSwitchStatus:
			return []protocol.Packet{switchReport(p, states)}
		case protocol.TypeSwitchCommand:
			if p.Target() != protocol.SwitchAll {
				if p.SwitchArg() == protocol.SwitchArgOn {
					states[p.Target()] = 1
				} else if p.SwitchArg() == protocol.SwitchArgOff {
					states[p.Target()] = 0
				}
			}
			return []protocol.Packet{switchReport(p, states)}
		case protocol.TypeCommunicate:
			return []protocol.Packet{{
				Type:     protocol.TypeResponse,
				NodeOrig: protocol.NodeFlight,
				NodeDest: p.NodeOrig,
				ChanOut:  protocol.ChanRadio,
				Data:     []byte{0x01},
			}}
		default:
			simLog.WithField("type", p.Type.String()).Debug("ignoring packet")
			return nil
		}
	})
}

// switchReport encodes one state byte per switch, in switch-id order.
func switchReport(query protocol.Packet, states map[protocol.Switch]byte) protocol.Packet {
	target := query.Target()
	var data []byte
	if target == protocol.SwitchAll {
		for sw := protocol.SwitchCompanion; sw <= protocol.SwitchRail12V; sw++ {
			data = append(data, byte(sw), states[sw])
		}
	} else {
		data = []byte{byte(target), states[target]}
	}
	return protocol.Packet{
		Type:     protocol.TypeResponse,
		NodeOrig: query.NodeDest,
		NodeDest: query.NodeOrig,
		ChanOut:  protocol.ChanRadio,
		Data:     data,
	}
}

// simCompanionEndpoint acknowledges pings and goes quiet after a halt,
// like a single-board computer shutting down.
func simCompanionEndpoint(ctx context.Context, t *channel.Loopback) {
	halted := false
	runEndpoint(ctx, t, func(p protocol.Packet) []protocol.Packet {
		if halted {
			return nil
		}
		switch p.Type {
		case protocol.TypeHalt:
			halted = true
			return nil
		case protocol.TypePing:
			return []protocol.Packet{{
				Type:     protocol.TypePong,
				NodeOrig: protocol.NodeCompanion,
				NodeDest: p.NodeOrig,
				ChanOut:  protocol.ChanRadio,
				Data:     []byte("Pong"),
			}}
		default:
			return nil
		}
	})
}

// runEndpoint is the shared poll loop: deframe incoming bytes, let the
// handler produce replies, write them back.
func runEndpoint(ctx context.Context, t *channel.Loopback, handle func(protocol.Packet) []protocol.Packet) {
	var framer protocol.Framer
	buf := make([]byte, 512)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := t.Read(buf)
		if err != nil {
			return
		}
		for _, body := range framer.Feed(buf[:n]) {
			p, err := protocol.DecodeFrame(body)
			if err != nil {
				continue
			}
			for _, reply := range handle(p) {
				frame, err := reply.EncodeFrame()
				if err != nil {
					continue
				}
				_, _ = t.Write(frame)
			}
		}
		time.Sleep(simPoll)
	}
}
