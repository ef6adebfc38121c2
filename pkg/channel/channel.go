// Package channel implements the independent execution units that own the
// physical links: each channel drains its inbound queue onto its transport
// and feeds received frames into the central routing queue.
package channel

import (
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"flightd/pkg/protocol"
	"flightd/pkg/queue"
)

const defaultPoll = 50 * time.Millisecond

// Intercept runs against every inbound packet before transmission. A true
// return means the packet was consumed by the channel itself.
type Intercept func(c *Channel, p protocol.Packet) bool

// Config wires a channel to its transport and the shared routing queue.
type Config struct {
	ID        protocol.ChannelID
	Name      string
	Transport Transport
	Poll      time.Duration
	Central   *queue.Queue
	Registry  *Registry
	Intercept Intercept
}

// Channel is one execution unit owning one transport and its inbound
// queue. The loop contract: check the kill flag at the top, drain inbound,
// poll the transport, then yield for one poll interval. Cancellation takes
// effect only at the top of the loop, so stop latency is bounded by one
// iteration.
type Channel struct {
	cfg     Config
	inbound *queue.Queue
	framer  protocol.Framer
	kill    atomic.Bool
	done    chan struct{}
	readBuf []byte
	log     *log.Entry
}

func New(cfg Config) *Channel {
	if cfg.Poll <= 0 {
		cfg.Poll = defaultPoll
	}
	if cfg.Name == "" {
		cfg.Name = cfg.ID.String()
	}
	return &Channel{
		cfg:     cfg,
		inbound: queue.New(),
		done:    make(chan struct{}),
		readBuf: make([]byte, 512),
		log:     log.WithField("source", cfg.Name),
	}
}

func (c *Channel) ID() protocol.ChannelID { return c.cfg.ID }

// Inbound exposes the channel's outbound-to-transport queue. Producers are
// the router and reply logic; the only consumer is the channel loop.
func (c *Channel) Inbound() *queue.Queue { return c.inbound }

// Enqueue places a packet for transmission over this channel's transport.
func (c *Channel) Enqueue(p protocol.Packet) { c.inbound.Push(p) }

// Start opens the transport, registers the channel and launches its loop.
func (c *Channel) Start() error {
	if err := c.cfg.Transport.Open(); err != nil {
		return fmt.Errorf("%s channel setup: %w", c.cfg.Name, err)
	}
	c.log.Info("channel starting")
	c.cfg.Registry.Register(c)
	go c.loop()
	return nil
}

// Kill requests cooperative termination. The loop observes the flag at its
// next top-of-loop check.
func (c *Channel) Kill() { c.kill.Store(true) }

// Done closes when the loop has flushed, deregistered and exited.
func (c *Channel) Done() <-chan struct{} { return c.done }

func (c *Channel) loop() {
	for {
		if c.kill.Load() {
			break
		}
		c.handleQueue()
		c.receive()
		time.Sleep(c.cfg.Poll)
	}
	if n := c.inbound.Drain(); n > 0 {
		c.log.WithField("dropped", n).Debug("flushed inbound queue")
	}
	c.cfg.Registry.Deregister(c.cfg.ID)
	_ = c.cfg.Transport.Close()
	c.log.Info("channel stopped")
	close(c.done)
}

// handleQueue drains the inbound queue, applying the variant's intercept
// rule before forwarding each packet to the transport.
func (c *Channel) handleQueue() {
	for {
		p, ok := c.inbound.TryPop()
		if !ok {
			return
		}
		if c.cfg.Intercept != nil && c.cfg.Intercept(c, p) {
			continue
		}
		c.Transmit(p)
	}
}

// Transmit frames and writes one packet. Failures are logged and the
// packet abandoned; the loop never blocks on a bad link.
func (c *Channel) Transmit(p protocol.Packet) {
	frame, err := p.EncodeFrame()
	if err != nil {
		c.log.WithError(err).Warn("failed to frame packet")
		return
	}
	c.log.WithFields(log.Fields{
		"type": p.Type.String(),
		"dest": p.NodeDest.String(),
	}).Debugf("forwarding: % x", frame)
	n, err := c.cfg.Transport.Write(frame)
	if err != nil {
		c.log.WithError(err).Warn("transmit failed")
		return
	}
	if n != len(frame) {
		c.log.WithFields(log.Fields{"sent": n, "want": len(frame)}).Warn("partial transmit")
	}
}

// receive polls the transport and pushes every complete frame onto the
// central routing queue.
func (c *Channel) receive() {
	n, err := c.cfg.Transport.Read(c.readBuf)
	if err != nil {
		c.log.WithError(err).Debug("transport read failed")
		c.framer.Reset()
		return
	}
	if n == 0 {
		return
	}
	for _, body := range c.framer.Feed(c.readBuf[:n]) {
		p, err := protocol.DecodeFrame(body)
		if err != nil {
			c.log.WithError(err).Debugf("dropped frame: %s", hex.EncodeToString(body))
			continue
		}
		c.cfg.Central.Push(p)
	}
}
