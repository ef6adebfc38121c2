// Package config loads the flight daemon's TOML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const DefaultConfigPath = "flightd.toml"

type Config struct {
	Links  LinksConfig  `toml:"links"`
	Beacon BeaconConfig `toml:"beacon"`
	Power  PowerConfig  `toml:"power"`
	Bridge BridgeConfig `toml:"bridge"`
	Log    LogConfig    `toml:"log"`
}

type LinksConfig struct {
	Radio     LinkConfig `toml:"radio"`
	PDU       LinkConfig `toml:"pdu"`
	Companion LinkConfig `toml:"companion"`
}

// LinkConfig selects one transport per link: a serial device when Device
// is set, a TCP endpoint when Addr is set, a loopback otherwise (sim).
type LinkConfig struct {
	Device string `toml:"device,omitempty"`
	Baud   int    `toml:"baud,omitempty"`
	Addr   string `toml:"addr,omitempty"`
	Poll   string `toml:"poll"`
}

type BeaconConfig struct {
	Interval string `toml:"interval"`
	Deployed bool   `toml:"deployed"`
}

type PowerConfig struct {
	MinVoltage    float64 `toml:"min_voltage"`
	BootGrace     string  `toml:"boot_grace"`
	ShutdownGrace string  `toml:"shutdown_grace"`
}

type BridgeConfig struct {
	Enabled bool   `toml:"enabled"`
	WSAddr  string `toml:"ws_addr"`
	SendBuf int    `toml:"send_buf"`
}

type LogConfig struct {
	Level     string `toml:"level"`
	JSONLPath string `toml:"jsonl_path,omitempty"`
}

func Default() Config {
	return Config{
		Links: LinksConfig{
			Radio:     LinkConfig{Baud: 57600, Poll: "50ms"},
			PDU:       LinkConfig{Baud: 115200, Poll: "50ms"},
			Companion: LinkConfig{Baud: 9600, Poll: "100ms"},
		},
		Beacon: BeaconConfig{
			Interval: "20s",
			Deployed: true,
		},
		Power: PowerConfig{
			MinVoltage:    7.0,
			BootGrace:     "5s",
			ShutdownGrace: "20s",
		},
		Bridge: BridgeConfig{
			Enabled: false,
			WSAddr:  "127.0.0.1:8765",
			SendBuf: 64,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func Load(path string) (Config, error) {
	cfg, exists, err := LoadOrDefault(path)
	if err != nil {
		return Config{}, err
	}
	if !exists {
		return Config{}, os.ErrNotExist
	}
	return cfg, nil
}

// LoadOrDefault reads the file when present, otherwise returns defaults.
func LoadOrDefault(path string) (Config, bool, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, false, nil
		}
		return Config{}, false, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, true, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, true, err
	}
	return cfg, true, nil
}

func (cfg *Config) Validate() error {
	for name, link := range map[string]LinkConfig{
		"radio": cfg.Links.Radio, "pdu": cfg.Links.PDU, "companion": cfg.Links.Companion,
	} {
		if link.Device != "" && link.Baud <= 0 {
			return fmt.Errorf("links.%s: baud required with device", name)
		}
		if link.Device != "" && link.Addr != "" {
			return fmt.Errorf("links.%s: device and addr are mutually exclusive", name)
		}
		if _, err := time.ParseDuration(link.Poll); err != nil {
			return fmt.Errorf("links.%s.poll: %w", name, err)
		}
	}
	if _, err := time.ParseDuration(cfg.Beacon.Interval); err != nil {
		return fmt.Errorf("beacon.interval: %w", err)
	}
	if cfg.Power.MinVoltage <= 0 {
		return fmt.Errorf("power.min_voltage must be positive")
	}
	if _, err := time.ParseDuration(cfg.Power.BootGrace); err != nil {
		return fmt.Errorf("power.boot_grace: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Power.ShutdownGrace); err != nil {
		return fmt.Errorf("power.shutdown_grace: %w", err)
	}
	return nil
}

func (cfg *Config) normalize() {
	def := Default()
	normalizeLink(&cfg.Links.Radio, def.Links.Radio)
	normalizeLink(&cfg.Links.PDU, def.Links.PDU)
	normalizeLink(&cfg.Links.Companion, def.Links.Companion)
	if cfg.Beacon.Interval == "" {
		cfg.Beacon.Interval = def.Beacon.Interval
	}
	if cfg.Power.MinVoltage == 0 {
		cfg.Power.MinVoltage = def.Power.MinVoltage
	}
	if cfg.Power.BootGrace == "" {
		cfg.Power.BootGrace = def.Power.BootGrace
	}
	if cfg.Power.ShutdownGrace == "" {
		cfg.Power.ShutdownGrace = def.Power.ShutdownGrace
	}
	if cfg.Bridge.WSAddr == "" {
		cfg.Bridge.WSAddr = def.Bridge.WSAddr
	}
	if cfg.Bridge.SendBuf <= 0 {
		cfg.Bridge.SendBuf = def.Bridge.SendBuf
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}

func normalizeLink(link *LinkConfig, def LinkConfig) {
	if link.Poll == "" {
		link.Poll = def.Poll
	}
	if link.Device != "" && link.Baud == 0 {
		link.Baud = def.Baud
	}
}

// Duration helpers; Validate guarantees these parse.

func (l LinkConfig) PollDuration() time.Duration {
	d, _ := time.ParseDuration(l.Poll)
	return d
}

func (b BeaconConfig) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(b.Interval)
	return d
}

func (p PowerConfig) BootGraceDuration() time.Duration {
	d, _ := time.ParseDuration(p.BootGrace)
	return d
}

func (p PowerConfig) ShutdownGraceDuration() time.Duration {
	d, _ := time.ParseDuration(p.ShutdownGrace)
	return d
}
