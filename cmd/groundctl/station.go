package main

import (
	"net"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"flightd/pkg/protocol"
)

// station owns the TCP side of the console: it accepts the flight
// software's radio-link connection, deframes downlink bytes and frames
// uplink commands.
type station struct {
	ln     net.Listener
	events chan<- tea.Msg

	mu   sync.Mutex
	conn net.Conn
}

type connectedMsg struct{ remote string }

type disconnectedMsg struct{ err error }

type packetMsg struct{ packet protocol.Packet }

func newStation(ln net.Listener, events chan<- tea.Msg) *station {
	return &station{ln: ln, events: events}
}

func (s *station) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.conn = conn
		s.mu.Unlock()
		s.events <- connectedMsg{remote: conn.RemoteAddr().String()}
		go s.readLoop(conn)
	}
}

func (s *station) readLoop(conn net.Conn) {
	var framer protocol.Framer
	buf := make([]byte, 512)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.mu.Unlock()
			s.events <- disconnectedMsg{err: err}
			return
		}
		for _, body := range framer.Feed(buf[:n]) {
			p, err := protocol.DecodeFrame(body)
			if err != nil {
				continue
			}
			s.events <- packetMsg{packet: p}
		}
	}
}

// send frames and uplinks one packet. Reports false when no link is up.
func (s *station) send(p protocol.Packet) bool {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return false
	}
	frame, err := p.EncodeFrame()
	if err != nil {
		return false
	}
	_, err = conn.Write(frame)
	return err == nil
}
