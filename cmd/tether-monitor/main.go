// Command tether-monitor supervises a link to one TETHER peer.
//
// It keeps the connection alive through drops and restarts, relays the
// peer's notifications, and offers an interactive console for reads,
// writes, and link management.
//
// Usage:
//
//	tether-monitor [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-peer string       Peer identity to supervise
//	-address string    Peer address (host:port); overrides discovery
//	-discover          Resolve the peer via mDNS on every attempt
//	-psk string        Pre-shared key for the handshake
//	-event-log string  Event log file path
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-backoff           Pace retries with exponential backoff
//
// Examples:
//
//	# Supervise a peer at a fixed address
//	tether-monitor -peer sensor-42 -address 10.0.0.5:7420
//
//	# Find the peer on the local network, keep an event log
//	tether-monitor -peer sensor-42 -discover -event-log sensor.tlog
//
//	# Everything from a config file
//	tether-monitor -config peer.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tether-protocol/tether-go/cmd/tether-monitor/interactive"
	"github.com/tether-protocol/tether-go/pkg/config"
	"github.com/tether-protocol/tether-go/pkg/log"
)

var flags struct {
	configFile string
	peer       string
	address    string
	discover   bool
	psk        string
	eventLog   string
	logLevel   string
	backoff    bool
}

func init() {
	flag.StringVar(&flags.configFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&flags.peer, "peer", "", "Peer identity to supervise")
	flag.StringVar(&flags.address, "address", "", "Peer address (host:port); overrides discovery")
	flag.BoolVar(&flags.discover, "discover", false, "Resolve the peer via mDNS on every attempt")
	flag.StringVar(&flags.psk, "psk", "", "Pre-shared key for the handshake")
	flag.StringVar(&flags.eventLog, "event-log", "", "Event log file path")
	flag.StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&flags.backoff, "backoff", false, "Pace retries with exponential backoff")
}

func main() {
	flag.Parse()

	cfg, err := buildConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	slogger := newSlogger(flags.logLevel)

	sup, closeLog, err := cfg.Build(log.NewSlogAdapter(slogger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := sup.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	console, err := interactive.New(sup)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Redirect log output through readline to avoid interfering with input
	stdlog.SetOutput(console.Stdout())
	go console.Run(ctx, cancel)

	// Wait for shutdown signal or context cancellation
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		stdlog.Printf("Received signal: %v", sig)
	case <-ctx.Done():
		// Cancelled by the interactive quit command
	}

	stdlog.Println("Shutting down...")
	sup.Close(nil)
	stdlog.Println("Goodbye!")
}

// buildConfig merges the config file with command-line flags. Flags
// win.
func buildConfig() (*config.Config, error) {
	var cfg *config.Config

	if flags.configFile != "" {
		loaded, err := config.Load(flags.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = &config.Config{}
	}

	if flags.peer != "" {
		cfg.Peer = flags.peer
	}
	if flags.address != "" {
		cfg.Transport.Address = flags.address
		cfg.Transport.Discover = false
	}
	if flags.discover {
		cfg.Transport.Discover = true
		cfg.Transport.Address = ""
	}
	if flags.psk != "" {
		cfg.Transport.PSK = flags.psk
	}
	if flags.eventLog != "" {
		cfg.Log.File = flags.eventLog
	}
	if flags.backoff {
		cfg.Backoff.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newSlogger builds the structured logger for supervisor events.
func newSlogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
