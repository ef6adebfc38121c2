package router

import (
	"time"

	log "github.com/sirupsen/logrus"

	"flightd/pkg/protocol"
	"flightd/pkg/sensors"
)

// BeaconConfig wires the generator to its sensor collaborators and the
// routing path.
type BeaconConfig struct {
	Interval time.Duration
	Deployed bool
	Sensors  []sensors.Sensor
	// Emit places a beacon packet into the routing path.
	Emit func(protocol.Packet)
	// Refresh requests a power-unit switch-state update after each pass.
	Refresh func()
}

// BeaconGenerator polls the sensor drivers on a fixed interval while
// deployment mode is on and turns each reading into a telemetry packet
// toward ground.
type BeaconGenerator struct {
	cfg     BeaconConfig
	last    time.Time
	started time.Time
	log     *log.Entry
}

func NewBeaconGenerator(cfg BeaconConfig) *BeaconGenerator {
	now := time.Now()
	return &BeaconGenerator{
		cfg:     cfg,
		last:    now,
		started: now,
		log:     log.WithField("source", "beacon"),
	}
}

// Setup initializes every sensor driver once at boot. Failures are logged
// and the sensor is still polled later; a dead driver just keeps erroring.
func (b *BeaconGenerator) Setup() {
	for _, s := range b.cfg.Sensors {
		if !s.Setup() {
			b.log.WithField("sensor", s.Name()).Warn("failed to setup sensor")
		}
	}
}

// MaybeBeacon emits a beacon pass when deployment mode is on and at least
// one interval elapsed since the previous pass. At most one pass per
// interval, regardless of how often it is called.
func (b *BeaconGenerator) MaybeBeacon(now time.Time) bool {
	if !b.cfg.Deployed {
		return false
	}
	if now.Sub(b.last) < b.cfg.Interval {
		return false
	}
	b.log.Debug("deployment beacons sending")
	b.last = now
	b.EmitNow()
	if b.cfg.Refresh != nil {
		b.cfg.Refresh()
	}
	return true
}

// EmitNow reads every sensor and emits one beacon packet per reading.
// A failed reading is logged and omitted; the pass continues.
func (b *BeaconGenerator) EmitNow() {
	elapsed := time.Since(b.started)
	for _, s := range b.cfg.Sensors {
		reading, err := s.Read(elapsed)
		if err != nil {
			b.log.WithField("sensor", s.Name()).WithError(err).Warn("failed to read sensor")
			continue
		}
		b.cfg.Emit(protocol.Packet{
			Type:     protocol.TypeBeacon,
			NodeOrig: protocol.NodeFlight,
			NodeDest: protocol.NodeGround,
			ChanOut:  protocol.ChanRadio,
			Data:     reading.Payload,
		})
	}
}
