// Package sensors defines the collaborator interface the beacon generator
// polls, plus simulated drivers for desk runs. Real hardware drivers
// implement the same interface elsewhere.
package sensors

import (
	"time"

	"flightd/pkg/protocol"
)

// Reading is one encoded beacon payload produced by a sensor poll.
type Reading struct {
	Kind    protocol.BeaconKind
	Payload []byte
}

// Sensor is the driver contract: Setup once at boot, Read on every beacon
// pass. Read failures are logged by the caller and never fatal.
type Sensor interface {
	Name() string
	Setup() bool
	Read(elapsed time.Duration) (Reading, error)
}
