package protocol_test

import (
	"bytes"
	"testing"

	"flightd/pkg/protocol"
)

func TestSlipRoundTrip(t *testing.T) {
	data := []byte{0x01, 0xC0, 0x02, 0xDB, 0x03, 0x00}
	frame := protocol.SlipEncode(data)

	if frame[0] != 0xC0 || frame[len(frame)-1] != 0xC0 {
		t.Fatalf("frame not delimited: % x", frame)
	}
	decoded, err := protocol.SlipDecode(frame[1 : len(frame)-1])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatalf("roundtrip mismatch: got % x want % x", decoded, data)
	}
}

func TestSlipDecodeInvalidEscape(t *testing.T) {
	if _, err := protocol.SlipDecode([]byte{0xDB, 0x01}); err == nil {
		t.Fatalf("expected error for invalid escape")
	}
	if _, err := protocol.SlipDecode([]byte{0x01, 0xDB}); err == nil {
		t.Fatalf("expected error for trailing escape")
	}
}

func TestFramerSplitChunks(t *testing.T) {
	data := []byte{0x11, 0x22, 0x33}
	frame := protocol.SlipEncode(data)

	var framer protocol.Framer
	var bodies [][]byte
	// Feed one byte at a time to force resynchronization logic.
	for _, b := range frame {
		bodies = append(bodies, framer.Feed([]byte{b})...)
	}
	if len(bodies) != 1 {
		t.Fatalf("got %d frames, want 1", len(bodies))
	}
	decoded, err := protocol.SlipDecode(bodies[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatalf("frame body mismatch: got % x want % x", decoded, data)
	}
}

func TestFramerDiscardsLeadingGarbage(t *testing.T) {
	var framer protocol.Framer
	stream := append([]byte{0xAA, 0xBB}, protocol.SlipEncode([]byte{0x42})...)
	bodies := framer.Feed(stream)
	if len(bodies) != 1 {
		t.Fatalf("got %d frames, want 1", len(bodies))
	}
	decoded, err := protocol.SlipDecode(bodies[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decoded) != 1 || decoded[0] != 0x42 {
		t.Fatalf("unexpected body: % x", decoded)
	}
}

func TestFramerBackToBackFrames(t *testing.T) {
	var framer protocol.Framer
	stream := append(protocol.SlipEncode([]byte{0x01}), protocol.SlipEncode([]byte{0x02})...)
	bodies := framer.Feed(stream)
	if len(bodies) != 2 {
		t.Fatalf("got %d frames, want 2", len(bodies))
	}
}
