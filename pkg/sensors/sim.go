package sensors

import (
	"math"
	"sync"
	"time"

	"flightd/pkg/protocol"
)

// The simulated drivers synthesize slow sinusoidal signals so bench runs
// produce plausible, non-constant telemetry.

type SimIMU struct{}

func (SimIMU) Name() string { return "imu" }
func (SimIMU) Setup() bool  { return true }

func (SimIMU) Read(elapsed time.Duration) (Reading, error) {
	t := elapsed.Seconds()
	payload, err := protocol.EncodeBeacon(protocol.BeaconIMU, protocol.IMUBeacon{
		AccelX: float32(0.02 * math.Sin(2*math.Pi*0.23*t)),
		AccelY: float32(0.02 * math.Sin(2*math.Pi*0.31*t+math.Pi/3)),
		AccelZ: float32(9.81 + 0.01*math.Sin(2*math.Pi*0.17*t)),
		GyroX:  float32(0.5 * math.Sin(2*math.Pi*0.11*t)),
		GyroY:  float32(0.5 * math.Sin(2*math.Pi*0.13*t)),
		GyroZ:  float32(0.5 * math.Sin(2*math.Pi*0.07*t)),
	})
	return Reading{Kind: protocol.BeaconIMU, Payload: payload}, err
}

type SimMagnetometer struct{}

func (SimMagnetometer) Name() string { return "magnetometer" }
func (SimMagnetometer) Setup() bool  { return true }

func (SimMagnetometer) Read(elapsed time.Duration) (Reading, error) {
	t := elapsed.Seconds()
	payload, err := protocol.EncodeBeacon(protocol.BeaconMagnetometer, protocol.MagnetometerBeacon{
		FieldX: float32(22.0 * math.Cos(2*math.Pi*t/5400)),
		FieldY: float32(22.0 * math.Sin(2*math.Pi*t/5400)),
		FieldZ: float32(-38.0),
	})
	return Reading{Kind: protocol.BeaconMagnetometer, Payload: payload}, err
}

// SimCurrent simulates the battery-board current sensor. It doubles as the
// bus voltage source the power sequencer consults.
type SimCurrent struct {
	mu    sync.Mutex
	volts float64
}

func NewSimCurrent(volts float64) *SimCurrent {
	return &SimCurrent{volts: volts}
}

func (s *SimCurrent) Name() string { return "current" }
func (s *SimCurrent) Setup() bool  { return true }

// SetBusVoltage adjusts the simulated battery level.
func (s *SimCurrent) SetBusVoltage(v float64) {
	s.mu.Lock()
	s.volts = v
	s.mu.Unlock()
}

// BusVoltage reports the simulated battery bus level in volts.
func (s *SimCurrent) BusVoltage() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volts
}

func (s *SimCurrent) Read(elapsed time.Duration) (Reading, error) {
	t := elapsed.Seconds()
	payload, err := protocol.EncodeBeacon(protocol.BeaconCurrent, protocol.CurrentBeacon{
		Sensor:     0,
		BusVoltage: float32(s.BusVoltage()),
		CurrentmA:  float32(180 + 20*math.Sin(2*math.Pi*0.05*t)),
	})
	return Reading{Kind: protocol.BeaconCurrent, Payload: payload}, err
}

type SimGPS struct{}

func (SimGPS) Name() string { return "gps" }
func (SimGPS) Setup() bool  { return true }

func (SimGPS) Read(elapsed time.Duration) (Reading, error) {
	// One orbit every 93 minutes on a fixed ground track.
	phase := 2 * math.Pi * elapsed.Seconds() / 5580
	payload, err := protocol.EncodeBeacon(protocol.BeaconGPS, protocol.GPSBeacon{
		Latitude:   float32(51.6 * math.Sin(phase)),
		Longitude:  float32(math.Mod(phase*180/math.Pi, 360) - 180),
		Altitude:   408000,
		Satellites: 9,
	})
	return Reading{Kind: protocol.BeaconGPS, Payload: payload}, err
}

type SimTemperature struct{}

func (SimTemperature) Name() string { return "temperature" }
func (SimTemperature) Setup() bool  { return true }

func (SimTemperature) Read(elapsed time.Duration) (Reading, error) {
	t := elapsed.Seconds()
	payload, err := protocol.EncodeBeacon(protocol.BeaconTemperature, protocol.TemperatureBeacon{
		Sensor:  0,
		Celsius: float32(18 + 12*math.Sin(2*math.Pi*t/5580)),
	})
	return Reading{Kind: protocol.BeaconTemperature, Payload: payload}, err
}
