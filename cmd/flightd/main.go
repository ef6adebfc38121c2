package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	"flightd/pkg/bridge/ground"
	"flightd/pkg/channel"
	"flightd/pkg/config"
	"flightd/pkg/engine"
	"flightd/pkg/logger"
	"flightd/pkg/power"
	"flightd/pkg/protocol"
	"flightd/pkg/queue"
	"flightd/pkg/router"
	"flightd/pkg/sensors"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		return runServer([]string{}, stdout, stderr)
	}

	switch args[0] {
	case "run":
		return runServer(args[1:], stdout, stderr)
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintln(stderr, "unknown command:", args[0])
		printUsage(stderr)
		return 2
	}
}

func runServer(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", config.DefaultConfigPath, "TOML config path")
	sim := fs.Bool("sim", false, "loopback links with simulated endpoints")
	logLevel := fs.String("log-level", "", "override log.level from config")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, _, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(stderr, "invalid log level:", err)
		return 2
	}
	log.SetLevel(level)
	log.SetOutput(stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	mainLog := log.WithField("source", "main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	central := queue.New()
	reg := channel.NewRegistry()
	pin := power.NewSimPin()

	current := sensors.NewSimCurrent(7.4)
	sensorList := []sensors.Sensor{
		sensors.SimIMU{},
		sensors.SimMagnetometer{},
		current,
		sensors.SimGPS{},
		sensors.SimTemperature{},
	}

	radioT, err := linkTransport(ctx, cfg.Links.Radio, *sim, nil)
	if err != nil {
		fmt.Fprintln(stderr, "radio link:", err)
		return 1
	}
	pduT, err := linkTransport(ctx, cfg.Links.PDU, *sim, simPDUEndpoint)
	if err != nil {
		fmt.Fprintln(stderr, "pdu link:", err)
		return 1
	}

	radio := channel.NewRadio(radioT, cfg.Links.Radio.PollDuration(), central, reg)
	pdu := channel.NewPDU(pduT, cfg.Links.PDU.PollDuration(), central, reg)

	// The companion channel is transient: a fresh transport and channel
	// per power-up.
	var seq *power.Sequencer
	startCompanion := func() error {
		t, err := linkTransport(ctx, cfg.Links.Companion, *sim, simCompanionEndpoint)
		if err != nil {
			return err
		}
		c := channel.NewCompanion(channel.CompanionConfig{
			Transport:     t,
			Poll:          cfg.Links.Companion.PollDuration(),
			Central:       central,
			Registry:      reg,
			Pin:           pin,
			ShutdownGrace: cfg.Power.ShutdownGraceDuration(),
			OnShutdown:    func() { seq.NotifyShutdown() },
		})
		return c.Start()
	}

	// Refresh is late-bound: the sequencer needs the router and the
	// router needs the sequencer.
	var rtr *router.Router
	refresh := func() {
		if rtr != nil {
			rtr.RequestSwitchRefresh()
		}
	}

	seq = power.NewSequencer(power.Config{
		Pin: pin,
		Present: func() bool {
			_, ok := reg.Lookup(protocol.ChanCompanion)
			return ok && pin.Read()
		},
		BusVoltage: current.BusVoltage,
		Start:      startCompanion,
		Refresh:    refresh,
		MinVoltage: cfg.Power.MinVoltage,
		BootGrace:  cfg.Power.BootGraceDuration(),
	})

	beacon := router.NewBeaconGenerator(router.BeaconConfig{
		Interval: cfg.Beacon.IntervalDuration(),
		Deployed: cfg.Beacon.Deployed,
		Sensors:  sensorList,
		Emit:     central.Push,
		Refresh:  refresh,
	})
	beacon.Setup()

	hub := engine.NewHub()
	go hub.Run(ctx)

	var archive io.Writer = stdout
	if cfg.Log.JSONLPath != "" {
		file, err := os.Create(cfg.Log.JSONLPath)
		if err != nil {
			fmt.Fprintln(stderr, "failed to open jsonl file:", err)
			return 1
		}
		defer file.Close()
		archive = file
	}
	go logger.NewJSONLWriter(archive).Consume(ctx, hub.Subscribe())

	if cfg.Bridge.Enabled {
		srv := ground.NewServer(ground.Config{
			WSAddr:  cfg.Bridge.WSAddr,
			SendBuf: cfg.Bridge.SendBuf,
		}, hub, central.Push)
		go func() {
			if err := srv.Run(ctx); err != nil {
				mainLog.WithError(err).Warn("ground bridge stopped")
			}
		}()
	}

	if err := radio.Start(); err != nil {
		mainLog.WithError(err).Error("failed to start radio channel")
	}
	if err := pdu.Start(); err != nil {
		mainLog.WithError(err).Error("failed to start pdu channel")
	}

	rtr = router.New(router.Config{
		Central:   central,
		Registry:  reg,
		Sequencer: seq,
		Beacon:    beacon,
		Pin:       pin,
		Hub:       hub,
	})

	mainLog.Info("flight software setup complete")
	rtr.Run(ctx)
	return 0
}

// linkTransport selects a transport per the link config: serial device,
// TCP endpoint, or a loopback with an optional simulated far end.
func linkTransport(ctx context.Context, link config.LinkConfig, sim bool, endpoint simEndpoint) (channel.Transport, error) {
	switch {
	case !sim && link.Device != "":
		return channel.NewSerial(link.Device, link.Baud, link.PollDuration()), nil
	case !sim && link.Addr != "":
		return channel.NewTCP(link.Addr, link.PollDuration()), nil
	case sim || (link.Device == "" && link.Addr == ""):
		near, far := channel.NewLoopbackPair()
		if endpoint != nil {
			go endpoint(ctx, far)
		}
		return near, nil
	default:
		return nil, fmt.Errorf("no transport configured")
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  flightd run [--config flightd.toml] [--sim] [--log-level debug]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run    start the flight packet router")
}
