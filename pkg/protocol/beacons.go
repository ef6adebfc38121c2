package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// BeaconKind identifies the sensor a beacon payload came from. It is the
// first payload byte of every TypeBeacon packet.
type BeaconKind uint8

const (
	BeaconIMU          BeaconKind = 0x01
	BeaconMagnetometer BeaconKind = 0x02
	BeaconCurrent      BeaconKind = 0x03
	BeaconGPS          BeaconKind = 0x04
	BeaconTemperature  BeaconKind = 0x05
)

func (k BeaconKind) String() string {
	switch k {
	case BeaconIMU:
		return "imu"
	case BeaconMagnetometer:
		return "magnetometer"
	case BeaconCurrent:
		return "current"
	case BeaconGPS:
		return "gps"
	case BeaconTemperature:
		return "temperature"
	default:
		return fmt.Sprintf("beacon-0x%02x", uint8(k))
	}
}

// IMUBeacon mirrors the packed little-endian sensor layout.
type IMUBeacon struct {
	AccelX float32 `json:"accel_x"`
	AccelY float32 `json:"accel_y"`
	AccelZ float32 `json:"accel_z"`
	GyroX  float32 `json:"gyro_x"`
	GyroY  float32 `json:"gyro_y"`
	GyroZ  float32 `json:"gyro_z"`
}

type MagnetometerBeacon struct {
	FieldX float32 `json:"field_x"`
	FieldY float32 `json:"field_y"`
	FieldZ float32 `json:"field_z"`
}

type CurrentBeacon struct {
	Sensor     uint8   `json:"sensor"`
	BusVoltage float32 `json:"bus_voltage"`
	CurrentmA  float32 `json:"current_ma"`
}

type GPSBeacon struct {
	Latitude   float32 `json:"latitude"`
	Longitude  float32 `json:"longitude"`
	Altitude   float32 `json:"altitude"`
	Satellites uint8   `json:"satellites"`
}

type TemperatureBeacon struct {
	Sensor  uint8   `json:"sensor"`
	Celsius float32 `json:"celsius"`
}

var (
	beaconMu       sync.RWMutex
	beaconRegistry = map[BeaconKind]reflect.Type{}
)

func init() {
	RegisterBeacon(BeaconIMU, reflect.TypeOf(IMUBeacon{}))
	RegisterBeacon(BeaconMagnetometer, reflect.TypeOf(MagnetometerBeacon{}))
	RegisterBeacon(BeaconCurrent, reflect.TypeOf(CurrentBeacon{}))
	RegisterBeacon(BeaconGPS, reflect.TypeOf(GPSBeacon{}))
	RegisterBeacon(BeaconTemperature, reflect.TypeOf(TemperatureBeacon{}))
}

// RawBeacon preserves unknown beacon payloads for downstream consumers.
type RawBeacon struct {
	Kind    BeaconKind
	Payload []byte
}

func (rb RawBeacon) MarshalJSON() ([]byte, error) {
	type rawBeaconJSON struct {
		Kind       string `json:"kind"`
		PayloadHex string `json:"payload_hex"`
	}
	return json.Marshal(rawBeaconJSON{
		Kind:       fmt.Sprintf("0x%02x", uint8(rb.Kind)),
		PayloadHex: hex.EncodeToString(rb.Payload),
	})
}

// RegisterBeacon maps a beacon kind to a struct type.
func RegisterBeacon(kind BeaconKind, t reflect.Type) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	beaconMu.Lock()
	beaconRegistry[kind] = t
	beaconMu.Unlock()
}

// EncodeBeacon builds a beacon payload: kind byte followed by the packed
// little-endian struct.
func EncodeBeacon(kind BeaconKind, v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(kind))
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, fmt.Errorf("encode beacon %s: %w", kind, err)
	}
	return buf.Bytes(), nil
}

// ParseBeacon decodes a beacon payload into a registered Go type. Unknown
// kinds come back as RawBeacon rather than an error.
func ParseBeacon(payload []byte) (any, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty beacon payload")
	}
	kind := BeaconKind(payload[0])
	body := payload[1:]

	beaconMu.RLock()
	t, ok := beaconRegistry[kind]
	beaconMu.RUnlock()
	if !ok {
		return RawBeacon{Kind: kind, Payload: append([]byte(nil), body...)}, nil
	}

	val := reflect.New(t).Interface()
	size := binary.Size(reflect.ValueOf(val).Elem().Interface())
	if size < 0 {
		return nil, fmt.Errorf("unsupported type size for beacon %s", kind)
	}
	if len(body) != size {
		return nil, fmt.Errorf("payload size %d does not match type size %d for beacon %s", len(body), size, kind)
	}

	if err := binary.Read(bytes.NewReader(body), binary.LittleEndian, val); err != nil {
		return nil, err
	}
	return reflect.ValueOf(val).Elem().Interface(), nil
}
