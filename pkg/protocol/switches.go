package protocol

import "fmt"

// Switch names a power-distribution-unit load. Values appear as the first
// payload byte of switch-command and switch-status packets.
type Switch uint8

const (
	SwitchAll       Switch = 0x00
	SwitchCompanion Switch = 0x01
	SwitchRadio     Switch = 0x02
	SwitchHeater    Switch = 0x03
	SwitchBurnwire  Switch = 0x04
	SwitchRail5V    Switch = 0x05
	SwitchRail12V   Switch = 0x06
)

// Switch-command argument byte values.
const (
	SwitchArgDirect uint8 = 0 // forward verbatim as a direct command
	SwitchArgOff    uint8 = 1 // shutdown intent, consumed by the owning channel
	SwitchArgOn     uint8 = 2 // power up
)

func (s Switch) String() string {
	switch s {
	case SwitchAll:
		return "all"
	case SwitchCompanion:
		return "companion"
	case SwitchRadio:
		return "radio"
	case SwitchHeater:
		return "heater"
	case SwitchBurnwire:
		return "burnwire"
	case SwitchRail5V:
		return "5v-rail"
	case SwitchRail12V:
		return "12v-rail"
	default:
		return fmt.Sprintf("switch-0x%02x", uint8(s))
	}
}
