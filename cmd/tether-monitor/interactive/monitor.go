// Package interactive provides the interactive command-line interface
// for tether-monitor.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/tether-protocol/tether-go/pkg/link"
	"github.com/tether-protocol/tether-go/pkg/supervisor"
)

// Monitor handles interactive mode for tether-monitor.
type Monitor struct {
	sup *supervisor.Supervisor
	rl  *readline.Instance
}

// New creates a new interactive monitor handler.
func New(sup *supervisor.Supervisor) (*Monitor, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tether> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Monitor{sup: sup, rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline
// input. Use this for log output to avoid interfering with the
// command prompt.
func (m *Monitor) Stdout() io.Writer {
	return m.rl.Stdout()
}

// Run starts the interactive command loop.
func (m *Monitor) Run(ctx context.Context, cancel context.CancelFunc) {
	defer m.rl.Close()

	// Stream relayed notifications behind the prompt.
	sub := m.sup.Subscribe()
	defer sub.Cancel()
	go func() {
		for n := range sub.C() {
			fmt.Fprintf(m.rl.Stdout(), "notify 0x%04X: %q\n", uint16(n.Handle), n.Payload)
		}
	}()

	m.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := m.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(m.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			m.printHelp()

		case "status", "st":
			m.cmdStatus()

		case "start":
			m.cmdStart()

		case "stop":
			m.cmdStop()

		case "topology", "topo", "t":
			m.cmdTopology(ctx)

		case "read", "r":
			m.cmdRead(ctx, args)

		case "write", "w":
			m.cmdWrite(ctx, args)

		case "notify", "n":
			m.cmdNotify(ctx, args)

		case "params", "p":
			m.cmdParams(ctx, args)

		case "rssi":
			m.cmdRSSI(ctx)

		case "quit", "exit", "q":
			fmt.Fprintln(m.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(m.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (m *Monitor) printHelp() {
	fmt.Fprintln(m.rl.Stdout(), `
TETHER Monitor Commands:
  Lifecycle:
    status                  - Show supervisor status
    start                   - Start the attempt loop
    stop                    - Cancel the current attempt (loop keeps running)

  Peer operations (require a connected link):
    topology                - Show the peer's attribute layout
    read <handle>           - Read an attribute (handle in hex or decimal)
    write <handle> <value> [unacked] - Write an attribute
    notify <handle> on|off  - Enable/disable notifications
    params <interval> <timeout> [latency] - Request link parameters
    rssi                    - Read signal strength

  Other:
    help                    - Show this help
    quit                    - Exit`)
}

func (m *Monitor) cmdStatus() {
	st := m.sup.Status()
	fmt.Fprintf(m.rl.Stdout(), "peer:     %s\n", m.sup.Peer())
	fmt.Fprintf(m.rl.Stdout(), "phase:    %s\n", st.Phase)
	if st.Err != nil {
		fmt.Fprintf(m.rl.Stdout(), "cause:    %v\n", st.Err)
	}
	fmt.Fprintf(m.rl.Stdout(), "running:  %t\n", m.sup.Running())
	fmt.Fprintf(m.rl.Stdout(), "attempts: %d\n", m.sup.AttemptCount())
}

func (m *Monitor) cmdStart() {
	started, err := m.sup.Start()
	switch {
	case err != nil:
		fmt.Fprintf(m.rl.Stdout(), "Error: %v\n", err)
	case started:
		fmt.Fprintln(m.rl.Stdout(), "Attempt loop started")
	default:
		fmt.Fprintln(m.rl.Stdout(), "Already running")
	}
}

func (m *Monitor) cmdStop() {
	m.sup.Stop()
	fmt.Fprintln(m.rl.Stdout(), "Current attempt stopped")
}

func (m *Monitor) cmdTopology(ctx context.Context) {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	topo, err := m.sup.DiscoverTopology(opCtx)
	if err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Error: %v\n", err)
		return
	}

	for _, g := range topo.Groups {
		label := g.Label
		if label == "" {
			label = "(unnamed)"
		}
		fmt.Fprintf(m.rl.Stdout(), "group %d: %s\n", g.ID, label)
		for _, a := range g.Attributes {
			fmt.Fprintf(m.rl.Stdout(), "  0x%04X  %s\n", uint16(a.Handle), flagString(a.Flags))
		}
	}
}

func (m *Monitor) cmdRead(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(m.rl.Stdout(), "Usage: read <handle>")
		return
	}
	h, err := parseHandle(args[0])
	if err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Invalid handle: %v\n", err)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	data, err := m.sup.Read(opCtx, h)
	if err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(m.rl.Stdout(), "0x%04X = %q\n", uint16(h), data)
}

func (m *Monitor) cmdWrite(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(m.rl.Stdout(), "Usage: write <handle> <value> [unacked]")
		return
	}
	h, err := parseHandle(args[0])
	if err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Invalid handle: %v\n", err)
		return
	}

	mode := link.WriteAcked
	if len(args) > 2 && strings.EqualFold(args[2], "unacked") {
		mode = link.WriteUnacked
	}

	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := m.sup.Write(opCtx, h, []byte(args[1]), mode); err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(m.rl.Stdout(), "OK")
}

func (m *Monitor) cmdNotify(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(m.rl.Stdout(), "Usage: notify <handle> on|off")
		return
	}
	h, err := parseHandle(args[0])
	if err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Invalid handle: %v\n", err)
		return
	}

	var enable bool
	switch strings.ToLower(args[1]) {
	case "on", "1", "true":
		enable = true
	case "off", "0", "false":
		enable = false
	default:
		fmt.Fprintln(m.rl.Stdout(), "Usage: notify <handle> on|off")
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	enabled, err := m.sup.SetNotify(opCtx, h, enable)
	if err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(m.rl.Stdout(), "notify 0x%04X: %t\n", uint16(h), enabled)
}

func (m *Monitor) cmdParams(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(m.rl.Stdout(), "Usage: params <interval> <timeout> [latency]")
		return
	}
	interval, err := time.ParseDuration(args[0])
	if err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Invalid interval: %v\n", err)
		return
	}
	timeout, err := time.ParseDuration(args[1])
	if err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Invalid timeout: %v\n", err)
		return
	}

	p := link.Params{Interval: interval, Timeout: timeout}
	if len(args) > 2 {
		lat, err := strconv.ParseUint(args[2], 10, 16)
		if err != nil {
			fmt.Fprintf(m.rl.Stdout(), "Invalid latency: %v\n", err)
			return
		}
		p.Latency = uint16(lat)
	}

	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	granted, err := m.sup.RequestParameterChange(opCtx, p)
	if err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(m.rl.Stdout(), "granted: interval=%s timeout=%s latency=%d\n",
		granted.Interval, granted.Timeout, granted.Latency)
}

func (m *Monitor) cmdRSSI(ctx context.Context) {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rssi, err := m.sup.ReadSignalStrength(opCtx)
	if err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(m.rl.Stdout(), "%d dBm\n", rssi)
}

// parseHandle accepts decimal and 0x-prefixed hex handles.
func parseHandle(s string) (link.Handle, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}
	return link.Handle(v), nil
}

func flagString(f link.AttrFlags) string {
	var parts []string
	if f&link.AttrRead != 0 {
		parts = append(parts, "read")
	}
	if f&link.AttrWrite != 0 {
		parts = append(parts, "write")
	}
	if f&link.AttrNotify != 0 {
		parts = append(parts, "notify")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "|")
}
