// Package logger archives routed traffic as JSON lines, one record per
// packet seen by the router.
package logger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"time"

	"flightd/pkg/engine"
	"flightd/pkg/protocol"
)

type JSONLWriter struct {
	enc *json.Encoder
}

type jsonRecord struct {
	TS         string `json:"ts"`
	Type       string `json:"type"`
	Orig       string `json:"orig"`
	Dest       string `json:"dest"`
	ChanOut    string `json:"chan_out,omitempty"`
	PayloadHex string `json:"payload_hex,omitempty"`
	Data       any    `json:"data,omitempty"`
	Text       string `json:"text,omitempty"`
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc}
}

func (j *JSONLWriter) Consume(ctx context.Context, in <-chan engine.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			_ = j.enc.Encode(record(ev))
		}
	}
}

func record(ev engine.Event) jsonRecord {
	p := ev.Packet
	rec := jsonRecord{
		TS:         ev.At.UTC().Format(time.RFC3339Nano),
		Type:       p.Type.String(),
		Orig:       p.NodeOrig.String(),
		Dest:       p.NodeDest.String(),
		PayloadHex: hex.EncodeToString(p.Data),
	}
	if p.ChanOut != protocol.ChanNone {
		rec.ChanOut = p.ChanOut.String()
	}
	switch p.Type {
	case protocol.TypeBeacon:
		if data, err := protocol.ParseBeacon(p.Data); err == nil {
			rec.Data = data
		}
	case protocol.TypeText, protocol.TypePong:
		rec.Text = string(p.Data)
	}
	return rec
}
