package channel

import (
	"time"

	"flightd/pkg/power"
	"flightd/pkg/protocol"
	"flightd/pkg/queue"
)

// CompanionConfig extends the generic channel wiring with the power
// capability the shutdown sequence needs.
type CompanionConfig struct {
	Transport     Transport
	Poll          time.Duration
	Central       *queue.Queue
	Registry      *Registry
	Pin           power.Control
	ShutdownGrace time.Duration
	// OnShutdown runs after the power-down sequence completes, before the
	// loop exits. Optional.
	OnShutdown func()
}

// NewCompanion builds the companion-computer channel. It intercepts a
// switch-command addressed to the companion with the off argument and runs
// the graceful power-down sequence instead of forwarding it.
func NewCompanion(cfg CompanionConfig) *Channel {
	return New(Config{
		ID:        protocol.ChanCompanion,
		Name:      "companion",
		Transport: cfg.Transport,
		Poll:      cfg.Poll,
		Central:   cfg.Central,
		Registry:  cfg.Registry,
		Intercept: func(c *Channel, p protocol.Packet) bool {
			if p.Type != protocol.TypeSwitchCommand {
				return false
			}
			if p.Target() != protocol.SwitchCompanion || p.SwitchArg() != protocol.SwitchArgOff {
				return false
			}
			shutDownCompanion(c, p, cfg)
			return true
		},
	})
}

// shutDownCompanion substitutes a halt command, transmits it, waits the
// grace period for the companion to turn itself off, then cuts power,
// empties the queue and kills the channel.
func shutDownCompanion(c *Channel, p protocol.Packet, cfg CompanionConfig) {
	p.Type = protocol.TypeHalt
	p.NodeDest = protocol.NodeCompanion
	c.Transmit(p)

	// Give the companion time to shut down cleanly before cutting power.
	time.Sleep(cfg.ShutdownGrace)
	cfg.Pin.Deassert()

	if n := c.Inbound().Drain(); n > 0 {
		c.log.WithField("dropped", n).Info("discarded packets queued during shutdown")
	}
	if cfg.OnShutdown != nil {
		cfg.OnShutdown()
	}
	c.log.Info("killing companion channel")
	c.Kill()
}
