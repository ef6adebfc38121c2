package protocol

import "fmt"

// PacketType identifies the command or data kind carried by a packet.
// The set is closed but extensible: dispatch of existing kinds must not
// change when a new kind is added.
type PacketType uint8

const (
	TypeNone          PacketType = 0x00
	TypePing          PacketType = 0x01
	TypePong          PacketType = 0x02
	TypeHalt          PacketType = 0x03
	TypeCommunicate   PacketType = 0x10
	TypeSwitchCommand PacketType = 0x11
	TypeSwitchStatus  PacketType = 0x12
	TypeResponse      PacketType = 0x13
	TypeSendBeacon    PacketType = 0x20
	TypeBeacon        PacketType = 0x21
	TypeText          PacketType = 0xFE
)

func (t PacketType) String() string {
	switch t {
	case TypePing:
		return "ping"
	case TypePong:
		return "pong"
	case TypeHalt:
		return "halt"
	case TypeCommunicate:
		return "communicate"
	case TypeSwitchCommand:
		return "switch-command"
	case TypeSwitchStatus:
		return "switch-status"
	case TypeResponse:
		return "response"
	case TypeSendBeacon:
		return "send-beacon"
	case TypeBeacon:
		return "beacon"
	case TypeText:
		return "text"
	default:
		return fmt.Sprintf("type-0x%02x", uint8(t))
	}
}

// NodeID is a logical endpoint identifier, not a physical address.
type NodeID uint8

const (
	NodeNone      NodeID = 0x00
	NodeGround    NodeID = 0x01
	NodeFlight    NodeID = 0x02
	NodeCompanion NodeID = 0x03
)

func (n NodeID) String() string {
	switch n {
	case NodeGround:
		return "ground"
	case NodeFlight:
		return "flight"
	case NodeCompanion:
		return "companion"
	default:
		return fmt.Sprintf("node-0x%02x", uint8(n))
	}
}

// ChannelID selects the physical link that should carry a packet.
type ChannelID uint8

const (
	ChanNone      ChannelID = 0x00
	ChanRadio     ChannelID = 0x01
	ChanPDU       ChannelID = 0x02
	ChanCompanion ChannelID = 0x03
)

func (c ChannelID) String() string {
	switch c {
	case ChanRadio:
		return "radio"
	case ChanPDU:
		return "pdu"
	case ChanCompanion:
		return "companion"
	default:
		return fmt.Sprintf("chan-0x%02x", uint8(c))
	}
}

// Packet is the envelope routed between every component. Header fields
// must be fully set before a packet is enqueued anywhere.
type Packet struct {
	Type     PacketType
	NodeOrig NodeID
	NodeDest NodeID
	ChanOut  ChannelID
	Data     []byte
}

const (
	headerLen = 5
	crcLen    = 2
	// MaxPayload is bounded by the one-byte length field.
	MaxPayload = 255
)

// Target reports the sub-device a switch command or status query addresses.
func (p Packet) Target() Switch {
	if len(p.Data) == 0 {
		return SwitchAll
	}
	return Switch(p.Data[0])
}

// SwitchArg reports the argument byte of a switch command.
func (p Packet) SwitchArg() uint8 {
	if len(p.Data) < 2 {
		return SwitchArgDirect
	}
	return p.Data[1]
}

// Encode serializes header, payload and trailing CRC-16.
func (p Packet) Encode() ([]byte, error) {
	if len(p.Data) > MaxPayload {
		return nil, fmt.Errorf("payload too long: %d bytes", len(p.Data))
	}
	out := make([]byte, 0, headerLen+len(p.Data)+crcLen)
	out = append(out,
		byte(p.Type),
		byte(p.NodeOrig),
		byte(p.NodeDest),
		byte(p.ChanOut),
		byte(len(p.Data)),
	)
	out = append(out, p.Data...)
	crc := crc16(out)
	out = append(out, byte(crc&0xFF), byte(crc>>8))
	return out, nil
}

// Decode is the inverse of Encode. It rejects short buffers, length
// mismatches and CRC failures.
func Decode(raw []byte) (Packet, error) {
	if len(raw) < headerLen+crcLen {
		return Packet{}, fmt.Errorf("packet too short: %d bytes", len(raw))
	}
	body := raw[:len(raw)-crcLen]
	want := uint16(raw[len(raw)-2]) | uint16(raw[len(raw)-1])<<8
	if got := crc16(body); got != want {
		return Packet{}, fmt.Errorf("crc mismatch: got 0x%04x want 0x%04x", got, want)
	}
	dataLen := int(body[4])
	if len(body) != headerLen+dataLen {
		return Packet{}, fmt.Errorf("length field %d does not match body %d", dataLen, len(body)-headerLen)
	}
	p := Packet{
		Type:     PacketType(body[0]),
		NodeOrig: NodeID(body[1]),
		NodeDest: NodeID(body[2]),
		ChanOut:  ChannelID(body[3]),
	}
	if dataLen > 0 {
		p.Data = append([]byte(nil), body[headerLen:]...)
	}
	return p, nil
}

// EncodeFrame serializes and SLIP-wraps the packet for transmission.
func (p Packet) EncodeFrame() ([]byte, error) {
	raw, err := p.Encode()
	if err != nil {
		return nil, err
	}
	return SlipEncode(raw), nil
}

// DecodeFrame unwraps a SLIP frame body and deserializes the packet.
func DecodeFrame(body []byte) (Packet, error) {
	raw, err := SlipDecode(body)
	if err != nil {
		return Packet{}, err
	}
	return Decode(raw)
}

// NewPong builds the reply to a ping, addressed back to the origin and
// carrying the incoming packet's egress hint.
func NewPong(ping Packet) Packet {
	return Packet{
		Type:     TypePong,
		NodeOrig: NodeFlight,
		NodeDest: ping.NodeOrig,
		ChanOut:  ping.ChanOut,
		Data:     []byte("Pong"),
	}
}

// NewSwitchRefresh builds the switch-state query sent to the power unit
// after every beacon pass, addressing the All wildcard.
func NewSwitchRefresh() Packet {
	return Packet{
		Type:     TypeSwitchStatus,
		NodeOrig: NodeGround,
		NodeDest: NodeFlight,
		ChanOut:  ChanRadio,
		Data:     []byte{byte(SwitchAll)},
	}
}

// CCITT polynomial, init 0xFFFF.
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
