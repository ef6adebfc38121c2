package channel

import (
	"time"

	"flightd/pkg/protocol"
	"flightd/pkg/queue"
)

// NewPDU builds the power-distribution-unit channel.
func NewPDU(t Transport, poll time.Duration, central *queue.Queue, reg *Registry) *Channel {
	return New(Config{
		ID:        protocol.ChanPDU,
		Name:      "pdu",
		Transport: t,
		Poll:      poll,
		Central:   central,
		Registry:  reg,
	})
}
