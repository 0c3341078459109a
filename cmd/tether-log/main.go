// Command tether-log is a tool for viewing and analyzing TETHER event
// log files.
//
// Log files are created by tether-monitor with the -event-log flag or
// by any program using the event logging infrastructure.
//
// Usage:
//
//	tether-log <command> [flags] <file.tlog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSONL
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	tether-log view sensor.tlog
//
//	# View only state transitions
//	tether-log view -category state sensor.tlog
//
//	# Export to JSONL
//	tether-log export sensor.tlog > sensor.jsonl
//
//	# Show statistics
//	tether-log stats sensor.tlog
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tether-protocol/tether-go/pkg/log"
)

const usage = `tether-log - TETHER Event Log Analyzer

Usage:
  tether-log <command> [flags] <file.tlog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSONL
  stats    Show statistics about the log file

Use "tether-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// parseFilter builds a log.Filter from common flag values.
func parseFilter(supervisorID, peerID, category, timeStart, timeEnd string) (log.Filter, error) {
	filter := log.Filter{
		SupervisorID: supervisorID,
		PeerID:       peerID,
	}

	if category != "" {
		c, err := parseCategoryFlag(category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	if timeStart != "" {
		ts, err := time.Parse(time.RFC3339, timeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start: %w", err)
		}
		filter.TimeStart = &ts
	}
	if timeEnd != "" {
		te, err := time.Parse(time.RFC3339, timeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end: %w", err)
		}
		filter.TimeEnd = &te
	}

	return filter, nil
}

func parseCategoryFlag(s string) (log.Category, error) {
	switch s {
	case "state":
		return log.CategoryState, nil
	case "attempt":
		return log.CategoryAttempt, nil
	case "notification":
		return log.CategoryNotification, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category: %s (use: state, attempt, notification, error)", s)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `tether-log view - View log file in human-readable format

Usage:
  tether-log view [flags] <file.tlog>

Flags:
`)
		fs.PrintDefaults()
	}

	supervisorID := fs.String("supervisor-id", "", "Filter by supervisor ID")
	peerID := fs.String("peer", "", "Filter by peer identity")
	category := fs.String("category", "", "Filter by category (state, attempt, notification, error)")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	filter, err := parseFilter(*supervisorID, *peerID, *category, *timeStart, *timeEnd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := forEachEvent(fs.Arg(0), filter, func(e log.Event) error {
		fmt.Println(formatEvent(e))
		return nil
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `tether-log export - Export log file to JSONL

Usage:
  tether-log export [flags] <file.tlog>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	var out io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	if err := forEachEvent(fs.Arg(0), log.Filter{}, func(e log.Event) error {
		return enc.Encode(e)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `tether-log stats - Show statistics about the log file

Usage:
  tether-log stats <file.tlog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	var (
		total      int
		byCategory = make(map[log.Category]int)
		first      time.Time
		last       time.Time
		attempts   uint64
		connected  int
	)

	err := forEachEvent(fs.Arg(0), log.Filter{}, func(e log.Event) error {
		total++
		byCategory[e.Category]++
		if first.IsZero() || e.Timestamp.Before(first) {
			first = e.Timestamp
		}
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
		if e.Attempt != nil {
			if e.Attempt.Number > attempts {
				attempts = e.Attempt.Number
			}
			if e.Attempt.Connected {
				connected++
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("events:    %d\n", total)
	if total > 0 {
		fmt.Printf("span:      %s .. %s\n", first.Format(time.RFC3339), last.Format(time.RFC3339))
	}
	for _, c := range []log.Category{log.CategoryState, log.CategoryAttempt, log.CategoryNotification, log.CategoryError} {
		if n := byCategory[c]; n > 0 {
			fmt.Printf("%-10s %d\n", c.String()+":", n)
		}
	}
	fmt.Printf("attempts:  %d (%d reached connected)\n", attempts, connected)
}

// forEachEvent streams matching events from a log file.
func forEachEvent(path string, filter log.Filter, fn func(log.Event) error) error {
	r, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return err
	}
	defer r.Close()

	for {
		event, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// formatEvent renders one event as a single line.
func formatEvent(e log.Event) string {
	ts := e.Timestamp.Format("15:04:05.000")
	prefix := fmt.Sprintf("%s [%s] %-12s", ts, shortID(e.SupervisorID), e.Category)

	switch {
	case e.StateChange != nil:
		s := fmt.Sprintf("%s %s -> %s", prefix, e.StateChange.OldState, e.StateChange.NewState)
		if e.StateChange.Reason != "" {
			s += " (" + e.StateChange.Reason + ")"
		}
		return s
	case e.Attempt != nil:
		outcome := "failed"
		if e.Attempt.Connected {
			outcome = "connected"
		}
		s := fmt.Sprintf("%s #%d %s", prefix, e.Attempt.Number, outcome)
		if e.Attempt.Failure != "" {
			s += ": " + e.Attempt.Failure
		}
		return s
	case e.Notification != nil:
		return fmt.Sprintf("%s handle=0x%04X size=%d", prefix, e.Notification.Handle, e.Notification.Size)
	case e.Error != nil:
		s := prefix + " " + e.Error.Message
		if e.Error.Context != "" {
			s += " (" + e.Error.Context + ")"
		}
		return s
	default:
		return prefix
	}
}

// shortID abbreviates a UUID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
