package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"flightd/pkg/engine"
	"flightd/pkg/logger"
	"flightd/pkg/protocol"
)

func consumeOne(t *testing.T, ev engine.Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	writer := logger.NewJSONLWriter(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan engine.Event, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		writer.Consume(ctx, ch)
	}()

	ch <- ev
	close(ch)
	wg.Wait()

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatalf("expected output line")
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("json unmarshal failed: %v", err)
	}
	return rec
}

func TestJSONLWriterTextPacket(t *testing.T) {
	rec := consumeOne(t, engine.Event{
		Packet: protocol.Packet{
			Type:     protocol.TypeText,
			NodeOrig: protocol.NodeFlight,
			NodeDest: protocol.NodeGround,
			ChanOut:  protocol.ChanRadio,
			Data:     []byte("hi"),
		},
		At: time.Date(2026, 2, 5, 16, 0, 0, 0, time.UTC),
	})

	if rec["type"] != "text" {
		t.Fatalf("unexpected type: %v", rec["type"])
	}
	if rec["orig"] != "flight" || rec["dest"] != "ground" {
		t.Fatalf("unexpected addressing: %v -> %v", rec["orig"], rec["dest"])
	}
	if rec["chan_out"] != "radio" {
		t.Fatalf("unexpected chan_out: %v", rec["chan_out"])
	}
	if rec["payload_hex"] != "6869" {
		t.Fatalf("unexpected payload_hex: %v", rec["payload_hex"])
	}
	if rec["text"] != "hi" {
		t.Fatalf("unexpected text: %v", rec["text"])
	}
	tsValue, ok := rec["ts"].(string)
	if !ok || tsValue == "" {
		t.Fatalf("missing ts field")
	}
	if _, err := time.Parse(time.RFC3339Nano, tsValue); err != nil {
		t.Fatalf("invalid ts format: %v", err)
	}
}

func TestJSONLWriterDecodesBeacon(t *testing.T) {
	payload, err := protocol.EncodeBeacon(protocol.BeaconTemperature, protocol.TemperatureBeacon{
		Sensor:  2,
		Celsius: 21.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := consumeOne(t, engine.Event{
		Packet: protocol.Packet{
			Type:     protocol.TypeBeacon,
			NodeOrig: protocol.NodeFlight,
			NodeDest: protocol.NodeGround,
			ChanOut:  protocol.ChanRadio,
			Data:     payload,
		},
		At: time.Now(),
	})

	data, ok := rec["data"].(map[string]any)
	if !ok {
		t.Fatalf("beacon data not decoded: %v", rec["data"])
	}
	if data["sensor"] != float64(2) {
		t.Fatalf("unexpected sensor: %v", data["sensor"])
	}
	if data["celsius"] != 21.5 {
		t.Fatalf("unexpected celsius: %v", data["celsius"])
	}
}
