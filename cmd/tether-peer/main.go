// Command tether-peer runs a simulated TETHER peer.
//
// It serves an attribute table over TCP, optionally advertises itself
// via mDNS, and accepts console commands to mutate attributes so that
// notification fan-out can be exercised against a live monitor.
//
// Usage:
//
//	tether-peer [flags]
//
// Flags:
//
//	-listen string   Listen address (default ":7420")
//	-peer-id string  Peer identity to serve (default "sim-peer-1")
//	-name string     Human-readable peer name
//	-psk string      Require this pre-shared key from initiators
//	-advertise       Advertise the peer via mDNS
//
// Console commands:
//
//	list                  Show the attribute table
//	set <handle> <value>  Update an attribute (notifies subscribers)
//	push <handle> <value> Push a notification without changing the value
//	quit                  Exit
//
// Examples:
//
//	# Serve on the default port and advertise on the local network
//	tether-peer -peer-id sensor-42 -advertise
//
//	# Require authentication
//	tether-peer -peer-id sensor-42 -psk greenhouse-key
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/tether-protocol/tether-go/pkg/discovery"
	"github.com/tether-protocol/tether-go/pkg/link"
	"github.com/tether-protocol/tether-go/pkg/netlink"
)

var flags struct {
	listen    string
	peerID    string
	name      string
	psk       string
	advertise bool
}

func init() {
	flag.StringVar(&flags.listen, "listen", ":7420", "Listen address")
	flag.StringVar(&flags.peerID, "peer-id", "sim-peer-1", "Peer identity to serve")
	flag.StringVar(&flags.name, "name", "", "Human-readable peer name")
	flag.StringVar(&flags.psk, "psk", "", "Require this pre-shared key from initiators")
	flag.BoolVar(&flags.advertise, "advertise", false, "Advertise the peer via mDNS")
}

func main() {
	flag.Parse()

	cfg := netlink.ServerConfig{}
	if flags.psk != "" {
		cfg.PSK = []byte(flags.psk)
	}

	srv := netlink.NewServer(cfg)
	seedAttributes(srv)

	ln, err := net.Listen("tcp", flags.listen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.Serve(ctx, ln); err != nil {
			stdlog.Printf("Serve: %v", err)
		}
	}()
	stdlog.Printf("Serving peer %q on %s", flags.peerID, ln.Addr())

	if flags.advertise {
		adv := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{})
		info := &discovery.PeerInfo{
			PeerID:       flags.peerID,
			Version:      netlink.ProtocolVersion,
			Name:         flags.name,
			RequiresAuth: flags.psk != "",
			Port:         listenPort(ln),
		}
		if err := adv.Advertise(info); err != nil {
			fmt.Fprintf(os.Stderr, "Error: mDNS advertise failed: %v\n", err)
			os.Exit(1)
		}
		defer adv.Stop()
		stdlog.Printf("Advertising as %q via mDNS", flags.peerID)
	}

	go console(cancel, srv)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		stdlog.Printf("Received signal: %v", sig)
	case <-ctx.Done():
	}

	stdlog.Println("Shutting down...")
	srv.Close()
}

// seedAttributes populates the table with a small sensor-like layout.
func seedAttributes(srv *netlink.Server) {
	srv.AddAttribute(0x0010, 1, "temperature", link.AttrRead|link.AttrNotify, []byte("21.5"))
	srv.AddAttribute(0x0011, 1, "humidity", link.AttrRead|link.AttrNotify, []byte("40"))
	srv.AddAttribute(0x0020, 2, "mode", link.AttrRead|link.AttrWrite, []byte("auto"))
	srv.AddAttribute(0x0021, 2, "setpoint", link.AttrRead|link.AttrWrite|link.AttrNotify, []byte("20.0"))
}

// attrRows mirrors seedAttributes for the list command.
var attrRows = []struct {
	handle link.Handle
	label  string
}{
	{0x0010, "temperature"},
	{0x0011, "humidity"},
	{0x0020, "mode"},
	{0x0021, "setpoint"},
}

// console reads commands from stdin until EOF or quit.
func console(cancel context.CancelFunc, srv *netlink.Server) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Commands: list, set <handle> <value>, push <handle> <value>, quit")

	for scanner.Scan() {
		parts := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(parts) == 0 {
			continue
		}

		switch strings.ToLower(parts[0]) {
		case "list", "l":
			for _, row := range attrRows {
				fmt.Printf("  0x%04X  %s\n", uint16(row.handle), row.label)
			}

		case "set":
			if len(parts) != 3 {
				fmt.Println("Usage: set <handle> <value>")
				continue
			}
			h, err := parseHandle(parts[1])
			if err != nil {
				fmt.Printf("Invalid handle: %v\n", err)
				continue
			}
			if err := srv.SetValue(h, []byte(parts[2])); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Printf("0x%04X = %q\n", uint16(h), parts[2])

		case "push":
			if len(parts) != 3 {
				fmt.Println("Usage: push <handle> <value>")
				continue
			}
			h, err := parseHandle(parts[1])
			if err != nil {
				fmt.Printf("Invalid handle: %v\n", err)
				continue
			}
			srv.Push(h, []byte(parts[2]))
			fmt.Printf("pushed 0x%04X\n", uint16(h))

		case "quit", "exit", "q":
			cancel()
			return

		case "help", "?":
			fmt.Println("Commands: list, set <handle> <value>, push <handle> <value>, quit")

		default:
			fmt.Printf("Unknown command: %s\n", parts[0])
		}
	}
	cancel()
}

func parseHandle(s string) (link.Handle, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}
	return link.Handle(v), nil
}

// listenPort extracts the bound port for mDNS advertisement.
func listenPort(ln net.Listener) uint16 {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		return uint16(addr.Port)
	}
	return discovery.DefaultPort
}
