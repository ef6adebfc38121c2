package channel

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// Transport is the byte boundary a channel owns. Read is a short poll: it
// may return zero bytes when nothing arrived within the poll window, and
// must never block for longer than that window.
type Transport interface {
	Open() error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// SerialTransport drives a fixed-configuration serial link.
type SerialTransport struct {
	device string
	baud   int
	poll   time.Duration
	port   *serial.Port
}

func NewSerial(device string, baud int, poll time.Duration) *SerialTransport {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	return &SerialTransport{device: device, baud: baud, poll: poll}
}

func (s *SerialTransport) Open() error {
	port, err := serial.OpenPort(&serial.Config{
		Name:        s.device,
		Baud:        s.baud,
		ReadTimeout: s.poll,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", s.device, err)
	}
	s.port = port
	return nil
}

func (s *SerialTransport) Read(p []byte) (int, error) {
	if s.port == nil {
		return 0, fmt.Errorf("serial port not open")
	}
	n, err := s.port.Read(p)
	if err == io.EOF {
		// Poll window elapsed with nothing to read.
		return n, nil
	}
	return n, err
}

func (s *SerialTransport) Write(p []byte) (int, error) {
	if s.port == nil {
		return 0, fmt.Errorf("serial port not open")
	}
	return s.port.Write(p)
}

func (s *SerialTransport) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// TCPTransport dials a remote link endpoint, used for radio-over-TCP bench
// setups. A broken connection is redialed lazily on the next poll, rate
// limited by the reconnect interval.
type TCPTransport struct {
	addr        string
	dialTimeout time.Duration
	readTimeout time.Duration
	reconnect   time.Duration

	mu       sync.Mutex
	conn     net.Conn
	lastDial time.Time
}

func NewTCP(addr string, readTimeout time.Duration) *TCPTransport {
	if readTimeout <= 0 {
		readTimeout = 50 * time.Millisecond
	}
	return &TCPTransport{
		addr:        addr,
		dialTimeout: 5 * time.Second,
		readTimeout: readTimeout,
		reconnect:   time.Second,
	}
}

func (t *TCPTransport) Open() error {
	return t.redial()
}

func (t *TCPTransport) redial() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}
	if since := time.Since(t.lastDial); since < t.reconnect && !t.lastDial.IsZero() {
		return fmt.Errorf("link %s down, redial pending", t.addr)
	}
	t.lastDial = time.Now()
	conn, err := net.DialTimeout("tcp", t.addr, t.dialTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.addr, err)
	}
	t.conn = conn
	return nil
}

func (t *TCPTransport) current() net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

func (t *TCPTransport) drop(c net.Conn) {
	t.mu.Lock()
	if t.conn == c {
		t.conn = nil
	}
	t.mu.Unlock()
	_ = c.Close()
}

func (t *TCPTransport) Read(p []byte) (int, error) {
	conn := t.current()
	if conn == nil {
		if err := t.redial(); err != nil {
			return 0, err
		}
		conn = t.current()
	}
	_ = conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	n, err := conn.Read(p)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return n, nil
		}
		t.drop(conn)
		return n, err
	}
	return n, nil
}

func (t *TCPTransport) Write(p []byte) (int, error) {
	conn := t.current()
	if conn == nil {
		if err := t.redial(); err != nil {
			return 0, err
		}
		conn = t.current()
	}
	n, err := conn.Write(p)
	if err != nil {
		t.drop(conn)
	}
	return n, err
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Loopback is an in-memory duplex transport. Writes land in the peer's
// read buffer. Used by tests and the desk simulator.
type Loopback struct {
	mu     sync.Mutex
	buf    []byte
	peer   *Loopback
	closed bool
}

// NewLoopbackPair returns two connected endpoints.
func NewLoopbackPair() (*Loopback, *Loopback) {
	a := &Loopback{}
	b := &Loopback{}
	a.peer = b
	b.peer = a
	return a, b
}

func (l *Loopback) Open() error { return nil }

func (l *Loopback) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, io.ErrClosedPipe
	}
	if len(l.buf) == 0 {
		return 0, nil
	}
	n := copy(p, l.buf)
	l.buf = l.buf[n:]
	return n, nil
}

func (l *Loopback) Write(p []byte) (int, error) {
	l.peer.mu.Lock()
	defer l.peer.mu.Unlock()
	if l.peer.closed {
		return 0, io.ErrClosedPipe
	}
	l.peer.buf = append(l.peer.buf, p...)
	return len(p), nil
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}
