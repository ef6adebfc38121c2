// groundctl is the operator console: it terminates a flightd radio link
// over TCP and offers key-driven commands with a scrolling log of decoded
// downlink traffic.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("groundctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	listen := fs.String("listen", "127.0.0.1:19030", "address the flightd radio link dials")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(stderr, "listen:", err)
		return 1
	}
	defer ln.Close()

	events := make(chan tea.Msg, 64)
	station := newStation(ln, events)
	go station.acceptLoop()

	program := tea.NewProgram(newModel(*listen, station, events))
	if _, err := program.Run(); err != nil {
		fmt.Fprintln(stderr, "console:", err)
		return 1
	}
	return 0
}
