package ground

// Wire messages exchanged with ground-support clients. Every message is a
// JSON text frame with an "op" discriminator.

const (
	OpHello  = "hello"
	OpRecord = "record"
	OpInject = "inject"
)

// HelloMsg is sent once per connection.
type HelloMsg struct {
	Op        string `json:"op"`
	Name      string `json:"name"`
	SessionID string `json:"session_id"`
}

// RecordMsg mirrors one routed packet.
type RecordMsg struct {
	Op         string `json:"op"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	Orig       string `json:"orig"`
	Dest       string `json:"dest"`
	ChanOut    string `json:"chan_out,omitempty"`
	PayloadHex string `json:"payload_hex,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// InjectMsg carries a hex-encoded packet (header+payload+CRC, no SLIP)
// to be pushed onto the central routing queue. Ground test path.
type InjectMsg struct {
	Op       string `json:"op"`
	FrameHex string `json:"frame_hex"`
}
