package router_test

import (
	"errors"
	"testing"
	"time"

	"flightd/pkg/channel"
	"flightd/pkg/power"
	"flightd/pkg/protocol"
	"flightd/pkg/queue"
	"flightd/pkg/router"
	"flightd/pkg/sensors"
)

// harness builds a router with stub channels registered but not running,
// so forwarded packets can be inspected on each channel's inbound queue.
type harness struct {
	central   *queue.Queue
	radio     *channel.Channel
	pdu       *channel.Channel
	companion *channel.Channel
	pin       *power.SimPin
	starts    int
	rtr       *router.Router
}

func newHarness(t *testing.T, beacon *router.BeaconGenerator) *harness {
	t.Helper()
	h := &harness{
		central: queue.New(),
		pin:     power.NewSimPin(),
	}
	reg := channel.NewRegistry()
	stub := func(id protocol.ChannelID) *channel.Channel {
		c := channel.New(channel.Config{ID: id, Central: h.central, Registry: reg})
		reg.Register(c)
		return c
	}
	h.radio = stub(protocol.ChanRadio)
	h.pdu = stub(protocol.ChanPDU)
	h.companion = stub(protocol.ChanCompanion)

	seq := power.NewSequencer(power.Config{
		Pin:        h.pin,
		Present:    func() bool { return true },
		BusVoltage: func() float64 { return 8.0 },
		Start:      func() error { h.starts++; return nil },
	})
	if beacon == nil {
		beacon = router.NewBeaconGenerator(router.BeaconConfig{})
	}
	h.rtr = router.New(router.Config{
		Central:   h.central,
		Registry:  reg,
		Sequencer: seq,
		Beacon:    beacon,
		Pin:       h.pin,
	})
	return h
}

func popOne(t *testing.T, q *queue.Queue) protocol.Packet {
	t.Helper()
	p, ok := q.TryPop()
	if !ok {
		t.Fatalf("expected a packet, queue empty")
	}
	return p
}

func TestPingAnsweredWithPong(t *testing.T) {
	h := newHarness(t, nil)
	h.central.Push(protocol.Packet{
		Type:     protocol.TypePing,
		NodeOrig: protocol.NodeGround,
		NodeDest: protocol.NodeFlight,
		ChanOut:  protocol.ChanRadio,
	})
	h.rtr.Cycle()

	pong := popOne(t, h.radio.Inbound())
	if pong.Type != protocol.TypePong {
		t.Fatalf("type: %v", pong.Type)
	}
	if pong.NodeDest != protocol.NodeGround || pong.NodeOrig != protocol.NodeFlight {
		t.Fatalf("addressing: %+v", pong)
	}
}

func TestGroundRoutingUsesRadioHint(t *testing.T) {
	h := newHarness(t, nil)
	h.central.Push(protocol.Packet{
		Type:     protocol.TypeText,
		NodeDest: protocol.NodeGround,
		ChanOut:  protocol.ChanRadio,
	})
	h.rtr.Cycle()
	popOne(t, h.radio.Inbound())

	// No ground egress over the power unit link: the packet is dropped.
	h.central.Push(protocol.Packet{
		Type:     protocol.TypeText,
		NodeDest: protocol.NodeGround,
		ChanOut:  protocol.ChanPDU,
	})
	h.rtr.Cycle()
	if h.radio.Inbound().Len() != 0 || h.pdu.Inbound().Len() != 0 {
		t.Fatalf("packet with non-radio hint must be dropped")
	}
}

func TestCompanionDestForwarded(t *testing.T) {
	h := newHarness(t, nil)
	h.central.Push(protocol.Packet{
		Type:     protocol.TypeText,
		NodeDest: protocol.NodeCompanion,
		Data:     []byte("run"),
	})
	h.rtr.Cycle()

	p := popOne(t, h.companion.Inbound())
	if string(p.Data) != "run" {
		t.Fatalf("payload: %q", p.Data)
	}
}

func TestSwitchCommandForCompanion(t *testing.T) {
	h := newHarness(t, nil)

	// Direct argument: forwarded verbatim to the companion channel.
	h.central.Push(protocol.Packet{
		Type:     protocol.TypeSwitchCommand,
		NodeDest: protocol.NodeFlight,
		Data:     []byte{byte(protocol.SwitchCompanion), protocol.SwitchArgDirect},
	})
	h.rtr.Cycle()
	p := popOne(t, h.companion.Inbound())
	if p.Type != protocol.TypeSwitchCommand || p.SwitchArg() != protocol.SwitchArgDirect {
		t.Fatalf("unexpected packet: %+v", p)
	}

	// On argument: power sequencing, nothing forwarded.
	h.central.Push(protocol.Packet{
		Type:     protocol.TypeSwitchCommand,
		NodeDest: protocol.NodeFlight,
		Data:     []byte{byte(protocol.SwitchCompanion), protocol.SwitchArgOn},
	})
	h.rtr.Cycle()
	if h.starts != 1 {
		t.Fatalf("companion start called %d times, want 1", h.starts)
	}
	if !h.pin.Read() {
		t.Fatalf("enable line not asserted")
	}
	if h.companion.Inbound().Len() != 0 {
		t.Fatalf("on command must not be forwarded")
	}
}

func TestSwitchCommandForOtherSwitchGoesToPDU(t *testing.T) {
	h := newHarness(t, nil)
	h.central.Push(protocol.Packet{
		Type:     protocol.TypeSwitchCommand,
		NodeDest: protocol.NodeFlight,
		Data:     []byte{byte(protocol.SwitchHeater), 1},
	})
	h.rtr.Cycle()

	p := popOne(t, h.pdu.Inbound())
	if p.Target() != protocol.SwitchHeater {
		t.Fatalf("target: %v", p.Target())
	}
}

func TestSwitchStatusReportsPinState(t *testing.T) {
	h := newHarness(t, nil)
	h.pin.Assert()
	h.central.Push(protocol.Packet{
		Type:     protocol.TypeSwitchStatus,
		NodeOrig: protocol.NodeGround,
		NodeDest: protocol.NodeFlight,
		Data:     []byte{byte(protocol.SwitchCompanion)},
	})
	h.rtr.Cycle()

	resp := popOne(t, h.radio.Inbound())
	if resp.Type != protocol.TypeResponse {
		t.Fatalf("type: %v", resp.Type)
	}
	if resp.NodeDest != protocol.NodeGround {
		t.Fatalf("dest: %v", resp.NodeDest)
	}
	if len(resp.Data) != 1 || resp.Data[0] != 1 {
		t.Fatalf("state payload: % x", resp.Data)
	}
}

func TestOnePacketPerCycle(t *testing.T) {
	h := newHarness(t, nil)
	for i := 0; i < 3; i++ {
		h.central.Push(protocol.Packet{
			Type:     protocol.TypeText,
			NodeDest: protocol.NodeGround,
			ChanOut:  protocol.ChanRadio,
		})
	}
	h.rtr.Cycle()
	if h.central.Len() != 2 {
		t.Fatalf("central queue at %d after one cycle, want 2", h.central.Len())
	}
	h.rtr.Cycle()
	h.rtr.Cycle()
	if h.central.Len() != 0 || h.radio.Inbound().Len() != 3 {
		t.Fatalf("queues: central=%d radio=%d", h.central.Len(), h.radio.Inbound().Len())
	}
}

func TestUnroutablePacketsDropped(t *testing.T) {
	h := newHarness(t, nil)
	h.central.Push(protocol.Packet{Type: protocol.TypeText, NodeDest: protocol.NodeID(0x7F)})
	h.central.Push(protocol.Packet{Type: protocol.PacketType(0x99), NodeDest: protocol.NodeFlight})
	h.rtr.Cycle()
	h.rtr.Cycle()
	if h.radio.Inbound().Len()+h.pdu.Inbound().Len()+h.companion.Inbound().Len() != 0 {
		t.Fatalf("unroutable packets must not be forwarded")
	}
}

// fakeSensor emits a fixed payload, or an error when failing is set.
type fakeSensor struct {
	name    string
	failing bool
	reads   int
}

func (f *fakeSensor) Name() string { return f.name }
func (f *fakeSensor) Setup() bool  { return true }
func (f *fakeSensor) Read(time.Duration) (sensors.Reading, error) {
	f.reads++
	if f.failing {
		return sensors.Reading{}, errors.New("sensor offline")
	}
	return sensors.Reading{Kind: protocol.BeaconTemperature, Payload: []byte{byte(protocol.BeaconTemperature), 0x01}}, nil
}

func TestBeaconIntervalGating(t *testing.T) {
	emitted := 0
	gen := router.NewBeaconGenerator(router.BeaconConfig{
		Interval: time.Minute,
		Deployed: true,
		Sensors:  []sensors.Sensor{&fakeSensor{name: "temp"}},
		Emit:     func(protocol.Packet) { emitted++ },
	})

	base := time.Now()
	if gen.MaybeBeacon(base.Add(time.Second)) {
		t.Fatalf("beacon fired before the interval elapsed")
	}
	if !gen.MaybeBeacon(base.Add(time.Minute + time.Second)) {
		t.Fatalf("beacon did not fire after the interval")
	}
	if gen.MaybeBeacon(base.Add(time.Minute + 2*time.Second)) {
		t.Fatalf("beacon fired twice within one interval")
	}
	if !gen.MaybeBeacon(base.Add(2*time.Minute + 2*time.Second)) {
		t.Fatalf("beacon did not fire in the next interval")
	}
	if emitted != 2 {
		t.Fatalf("emitted %d packets, want 2", emitted)
	}
}

func TestBeaconSilentWhenNotDeployed(t *testing.T) {
	gen := router.NewBeaconGenerator(router.BeaconConfig{
		Interval: time.Millisecond,
		Deployed: false,
		Sensors:  []sensors.Sensor{&fakeSensor{name: "temp"}},
		Emit:     func(protocol.Packet) { t.Fatal("must not emit") },
	})
	if gen.MaybeBeacon(time.Now().Add(time.Hour)) {
		t.Fatalf("beacon fired outside deployment mode")
	}
}

func TestBeaconSkipsFailedSensor(t *testing.T) {
	bad := &fakeSensor{name: "imu", failing: true}
	good := &fakeSensor{name: "temp"}
	emitted := 0
	gen := router.NewBeaconGenerator(router.BeaconConfig{
		Sensors: []sensors.Sensor{bad, good},
		Emit:    func(protocol.Packet) { emitted++ },
	})
	gen.EmitNow()
	if bad.reads != 1 || good.reads != 1 {
		t.Fatalf("reads: bad=%d good=%d", bad.reads, good.reads)
	}
	if emitted != 1 {
		t.Fatalf("emitted %d packets, want 1", emitted)
	}
}

func TestSendBeaconCommand(t *testing.T) {
	emitted := 0
	gen := router.NewBeaconGenerator(router.BeaconConfig{
		Sensors: []sensors.Sensor{&fakeSensor{name: "temp"}},
		Emit:    func(protocol.Packet) { emitted++ },
	})
	h := newHarness(t, gen)
	h.central.Push(protocol.Packet{
		Type:     protocol.TypeSendBeacon,
		NodeOrig: protocol.NodeGround,
		NodeDest: protocol.NodeFlight,
	})
	h.rtr.Cycle()

	if emitted != 1 {
		t.Fatalf("emitted %d packets, want 1", emitted)
	}
	// The command also refreshes the power unit's switch state.
	refresh := popOne(t, h.pdu.Inbound())
	if refresh.Type != protocol.TypeSwitchStatus || refresh.Target() != protocol.SwitchAll {
		t.Fatalf("unexpected refresh packet: %+v", refresh)
	}
}
