package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"flightd/pkg/protocol"
)

const maxLogLines = 200

type model struct {
	listen    string
	station   *station
	events    <-chan tea.Msg
	connected string
	lines     []string
}

func newModel(listen string, s *station, events <-chan tea.Msg) model {
	return model{
		listen:  listen,
		station: s,
		events:  events,
	}
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

func (m model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case connectedMsg:
		m.connected = msg.remote
		m = m.appendLine("link up: " + msg.remote)
		return m, waitForEvent(m.events)
	case disconnectedMsg:
		m.connected = ""
		m = m.appendLine("link down")
		return m, waitForEvent(m.events)
	case packetMsg:
		m = m.appendLine(describePacket(msg.packet))
		return m, waitForEvent(m.events)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "p":
		return m.uplink("ping", protocol.Packet{
			Type:     protocol.TypePing,
			NodeOrig: protocol.NodeGround,
			NodeDest: protocol.NodeFlight,
			ChanOut:  protocol.ChanRadio,
		}), nil
	case "b":
		return m.uplink("beacon request", protocol.Packet{
			Type:     protocol.TypeSendBeacon,
			NodeOrig: protocol.NodeGround,
			NodeDest: protocol.NodeFlight,
			ChanOut:  protocol.ChanRadio,
		}), nil
	case "o":
		return m.uplink("companion on", protocol.Packet{
			Type:     protocol.TypeSwitchCommand,
			NodeOrig: protocol.NodeGround,
			NodeDest: protocol.NodeFlight,
			ChanOut:  protocol.ChanRadio,
			Data:     []byte{byte(protocol.SwitchCompanion), protocol.SwitchArgOn},
		}), nil
	case "f":
		// Off intent is addressed to the companion node so its own
		// channel runs the graceful shutdown.
		return m.uplink("companion off", protocol.Packet{
			Type:     protocol.TypeSwitchCommand,
			NodeOrig: protocol.NodeGround,
			NodeDest: protocol.NodeCompanion,
			ChanOut:  protocol.ChanRadio,
			Data:     []byte{byte(protocol.SwitchCompanion), protocol.SwitchArgOff},
		}), nil
	case "s":
		return m.uplink("companion status", protocol.Packet{
			Type:     protocol.TypeSwitchStatus,
			NodeOrig: protocol.NodeGround,
			NodeDest: protocol.NodeFlight,
			ChanOut:  protocol.ChanRadio,
			Data:     []byte{byte(protocol.SwitchCompanion)},
		}), nil
	case "a":
		return m.uplink("all switch states", protocol.Packet{
			Type:     protocol.TypeSwitchStatus,
			NodeOrig: protocol.NodeGround,
			NodeDest: protocol.NodeFlight,
			ChanOut:  protocol.ChanRadio,
			Data:     []byte{byte(protocol.SwitchAll)},
		}), nil
	}
	return m, nil
}

func (m model) uplink(what string, p protocol.Packet) model {
	if m.station.send(p) {
		return m.appendLine("sent " + what)
	}
	return m.appendLine("cannot send " + what + ": no link")
}

func (m model) appendLine(line string) model {
	stamped := time.Now().Format("15:04:05") + "  " + line
	lines := append(m.lines, stamped)
	if len(lines) > maxLogLines {
		lines = lines[len(lines)-maxLogLines:]
	}
	m.lines = lines
	return m
}

func describePacket(p protocol.Packet) string {
	switch p.Type {
	case protocol.TypePong:
		return fmt.Sprintf("pong from %s: %q", p.NodeOrig, string(p.Data))
	case protocol.TypeBeacon:
		if data, err := protocol.ParseBeacon(p.Data); err == nil {
			return fmt.Sprintf("beacon %+v", data)
		}
		return "beacon " + hex.EncodeToString(p.Data)
	case protocol.TypeResponse:
		return fmt.Sprintf("response from %s: %s", p.NodeOrig, hex.EncodeToString(p.Data))
	default:
		return fmt.Sprintf("%s from %s: %s", p.Type, p.NodeOrig, hex.EncodeToString(p.Data))
	}
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString("groundctl listening on " + m.listen + "\n")
	if m.connected != "" {
		b.WriteString("link: " + m.connected + "\n")
	} else {
		b.WriteString("link: down\n")
	}
	b.WriteString("\n")

	start := 0
	if len(m.lines) > 20 {
		start = len(m.lines) - 20
	}
	for _, line := range m.lines[start:] {
		b.WriteString(line + "\n")
	}

	b.WriteString("\n[p]ing  [b]eacon  companion [o]n/[s]tatus/o[f]f  [a]ll switches  [q]uit\n")
	return b.String()
}
