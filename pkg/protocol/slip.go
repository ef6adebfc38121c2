package protocol

import "fmt"

// SLIP framing constants (RFC 1055).
const (
	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD
)

// SlipEncode wraps raw bytes in a SLIP frame, escaping END and ESC bytes
// and delimiting the frame on both sides.
func SlipEncode(data []byte) []byte {
	out := make([]byte, 0, len(data)+2)
	out = append(out, slipEnd)
	for _, b := range data {
		switch b {
		case slipEnd:
			out = append(out, slipEsc, slipEscEnd)
		case slipEsc:
			out = append(out, slipEsc, slipEscEsc)
		default:
			out = append(out, b)
		}
	}
	return append(out, slipEnd)
}

// SlipDecode unescapes a frame body (the bytes between two END delimiters).
func SlipDecode(body []byte) ([]byte, error) {
	out := make([]byte, 0, len(body))
	esc := false
	for i, b := range body {
		if esc {
			switch b {
			case slipEscEnd:
				out = append(out, slipEnd)
			case slipEscEsc:
				out = append(out, slipEsc)
			default:
				return nil, fmt.Errorf("invalid escape 0x%02x at %d", b, i)
			}
			esc = false
			continue
		}
		switch b {
		case slipEsc:
			esc = true
		case slipEnd:
			return nil, fmt.Errorf("unescaped delimiter inside frame at %d", i)
		default:
			out = append(out, b)
		}
	}
	if esc {
		return nil, fmt.Errorf("frame ends mid-escape")
	}
	return out, nil
}

// Framer finds frame boundaries in a continuous byte stream. Feed it read
// chunks of any size; it returns the escaped bodies of every frame
// completed so far. Bytes before the first delimiter are discarded, which
// gives resynchronization after a torn frame.
type Framer struct {
	buf    []byte
	synced bool
}

func (f *Framer) Feed(chunk []byte) [][]byte {
	var frames [][]byte
	for _, b := range chunk {
		if b == slipEnd {
			if f.synced && len(f.buf) > 0 {
				body := append([]byte(nil), f.buf...)
				frames = append(frames, body)
			}
			f.buf = f.buf[:0]
			f.synced = true
			continue
		}
		if f.synced {
			f.buf = append(f.buf, b)
		}
	}
	return frames
}

// Reset drops any partial frame, e.g. after reopening a transport.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.synced = false
}
