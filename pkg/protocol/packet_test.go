package protocol_test

import (
	"bytes"
	"testing"

	"flightd/pkg/protocol"
)

func TestPacketRoundTrip(t *testing.T) {
	p := protocol.Packet{
		Type:     protocol.TypeSwitchCommand,
		NodeOrig: protocol.NodeGround,
		NodeDest: protocol.NodeFlight,
		ChanOut:  protocol.ChanRadio,
		Data:     []byte{byte(protocol.SwitchCompanion), protocol.SwitchArgOn},
	}
	raw, err := p.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := protocol.Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != p.Type || got.NodeOrig != p.NodeOrig || got.NodeDest != p.NodeDest || got.ChanOut != p.ChanOut {
		t.Fatalf("header mismatch: %+v", got)
	}
	if !bytes.Equal(got.Data, p.Data) {
		t.Fatalf("payload mismatch: % x", got.Data)
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	p := protocol.Packet{Type: protocol.TypePing, NodeOrig: protocol.NodeGround, NodeDest: protocol.NodeFlight}
	raw, err := p.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw[0] ^= 0xFF
	if _, err := protocol.Decode(raw); err == nil {
		t.Fatalf("expected crc error")
	}
	if _, err := protocol.Decode(raw[:3]); err == nil {
		t.Fatalf("expected short-packet error")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	p := protocol.Packet{
		Type:     protocol.TypeBeacon,
		NodeOrig: protocol.NodeFlight,
		NodeDest: protocol.NodeGround,
		ChanOut:  protocol.ChanRadio,
		// Payload containing SLIP control bytes must survive framing.
		Data: []byte{0xC0, 0xDB, 0x00},
	}
	frame, err := p.EncodeFrame()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var framer protocol.Framer
	bodies := framer.Feed(frame)
	if len(bodies) != 1 {
		t.Fatalf("got %d frames, want 1", len(bodies))
	}
	got, err := protocol.DecodeFrame(bodies[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got.Data, p.Data) {
		t.Fatalf("payload mismatch: % x", got.Data)
	}
}

func TestNewPongAddressing(t *testing.T) {
	ping := protocol.Packet{
		Type:     protocol.TypePing,
		NodeOrig: protocol.NodeGround,
		NodeDest: protocol.NodeFlight,
		ChanOut:  protocol.ChanRadio,
	}
	pong := protocol.NewPong(ping)
	if pong.Type != protocol.TypePong {
		t.Fatalf("type: %v", pong.Type)
	}
	if pong.NodeDest != ping.NodeOrig || pong.NodeOrig != protocol.NodeFlight {
		t.Fatalf("addressing: %+v", pong)
	}
	if string(pong.Data) != "Pong" {
		t.Fatalf("payload: %q", pong.Data)
	}
}

func TestBeaconRoundTrip(t *testing.T) {
	in := protocol.IMUBeacon{AccelX: 0.5, GyroZ: -1.25}
	payload, err := protocol.EncodeBeacon(protocol.BeaconIMU, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := protocol.ParseBeacon(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := out.(protocol.IMUBeacon)
	if !ok {
		t.Fatalf("unexpected type %T", out)
	}
	if got != in {
		t.Fatalf("mismatch: %+v != %+v", got, in)
	}
}

func TestBeaconUnknownKindStaysRaw(t *testing.T) {
	out, err := protocol.ParseBeacon([]byte{0x7F, 0x01, 0x02})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, ok := out.(protocol.RawBeacon)
	if !ok {
		t.Fatalf("unexpected type %T", out)
	}
	if raw.Kind != protocol.BeaconKind(0x7F) || len(raw.Payload) != 2 {
		t.Fatalf("unexpected raw beacon: %+v", raw)
	}
}

func TestBeaconSizeMismatch(t *testing.T) {
	if _, err := protocol.ParseBeacon([]byte{byte(protocol.BeaconIMU), 0x01}); err == nil {
		t.Fatalf("expected size mismatch error")
	}
}
