package power

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// State of the companion computer as tracked by the sequencer.
type State uint8

const (
	Off State = iota
	PoweringUp
	Running
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case PoweringUp:
		return "powering-up"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

// Config supplies the sequencer's collaborators. Present reports the
// companion link's presence signal, BusVoltage the battery bus level,
// Start launches and registers the companion channel, Refresh requests a
// power-unit switch-state update.
type Config struct {
	Pin        Control
	Present    func() bool
	BusVoltage func() float64
	Start      func() error
	Refresh    func()
	MinVoltage float64
	BootGrace  time.Duration
}

// Sequencer drives the companion computer power state machine.
type Sequencer struct {
	cfg   Config
	mu    sync.Mutex
	state State
	log   *log.Entry
}

func NewSequencer(cfg Config) *Sequencer {
	if cfg.MinVoltage <= 0 {
		cfg.MinVoltage = 7.0
	}
	return &Sequencer{
		cfg: cfg,
		log: log.WithField("source", "power"),
	}
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EnsurePowered checks the presence signal and, when the companion is not
// yet communicating, powers it on if the bus voltage allows. An
// insufficient bus defers the decision to the next cycle by requesting a
// switch-state refresh instead.
func (s *Sequencer) EnsurePowered() {
	if s.cfg.Present() {
		s.mu.Lock()
		if s.state == PoweringUp {
			s.state = Running
		}
		s.mu.Unlock()
		return
	}

	v := s.cfg.BusVoltage()
	if v >= s.cfg.MinVoltage {
		s.PowerOn()
		return
	}
	s.log.WithField("bus_voltage", v).Debug("bus too low to power companion")
	if s.cfg.Refresh != nil {
		s.cfg.Refresh()
	}
}

// PowerOn asserts the enable line, starts the companion channel and blocks
// for the boot grace period. Repeated calls inside the grace window are
// no-ops: the power-up happens exactly once.
func (s *Sequencer) PowerOn() {
	s.mu.Lock()
	if s.state == PoweringUp || s.state == Running {
		s.mu.Unlock()
		return
	}
	s.state = PoweringUp
	s.mu.Unlock()

	s.log.Info("turning on companion computer")
	s.cfg.Pin.Assert()
	if err := s.cfg.Start(); err != nil {
		// Feature stays unavailable until the next ensure-powered call.
		s.log.WithError(err).Warn("failed to start companion channel")
		s.cfg.Pin.Deassert()
		s.mu.Lock()
		s.state = Off
		s.mu.Unlock()
		return
	}

	// Unconditional boot grace: no early exit if the companion responds
	// sooner, no monitored deadline if it never does.
	time.Sleep(s.cfg.BootGrace)

	s.mu.Lock()
	s.state = Running
	s.mu.Unlock()
}

// NotifyShutdown records that the companion channel has powered the
// companion down and deregistered itself.
func (s *Sequencer) NotifyShutdown() {
	s.mu.Lock()
	s.state = Off
	s.mu.Unlock()
}
