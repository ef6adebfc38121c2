package channel

import (
	"time"

	"flightd/pkg/protocol"
	"flightd/pkg/queue"
)

// NewRadio builds the radio-link channel, the only ground egress path
// currently wired.
func NewRadio(t Transport, poll time.Duration, central *queue.Queue, reg *Registry) *Channel {
	return New(Config{
		ID:        protocol.ChanRadio,
		Name:      "radio",
		Transport: t,
		Poll:      poll,
		Central:   central,
		Registry:  reg,
	})
}
