// framedump decodes SLIP frames from stdin (hex, one frame per line) and
// prints the packets they carry. Handy against serial captures.
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"flightd/pkg/protocol"
)

func main() {
	os.Exit(run(os.Stdin, os.Stdout, os.Stderr))
}

func run(stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	var framer protocol.Framer
	scanner := bufio.NewScanner(stdin)
	failures := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.ReplaceAll(line, " ", "")
		if line == "" {
			continue
		}
		raw, err := hex.DecodeString(line)
		if err != nil {
			fmt.Fprintln(stderr, "bad hex:", err)
			failures++
			continue
		}
		for _, body := range framer.Feed(raw) {
			p, err := protocol.DecodeFrame(body)
			if err != nil {
				fmt.Fprintln(stderr, "bad frame:", err)
				failures++
				continue
			}
			printPacket(stdout, p)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(stderr, "read:", err)
		return 1
	}
	if failures > 0 {
		return 1
	}
	return 0
}

func printPacket(w io.Writer, p protocol.Packet) {
	fmt.Fprintf(w, "%-14s %s -> %s", p.Type, p.NodeOrig, p.NodeDest)
	if p.ChanOut != protocol.ChanNone {
		fmt.Fprintf(w, " via %s", p.ChanOut)
	}
	if len(p.Data) > 0 {
		fmt.Fprintf(w, "  %s", hex.EncodeToString(p.Data))
	}
	if p.Type == protocol.TypeBeacon {
		if data, err := protocol.ParseBeacon(p.Data); err == nil {
			fmt.Fprintf(w, "  %+v", data)
		}
	}
	fmt.Fprintln(w)
}
