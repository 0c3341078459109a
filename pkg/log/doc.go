// Package log provides structured lifecycle logging for TETHER.
//
// This package defines the Logger interface and Event types for
// capturing supervisor lifecycle events: state transitions, attempt
// outcomes, relayed notifications, and errors. It is separate from
// operational logging (slog) - the event trace is a complete
// machine-readable record for debugging and analysis.
//
// # Basic Usage
//
// Components accept a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.EventLogger, _ = log.NewFileLogger("/var/log/tether/peer.tlog")
//
//	// Both: use MultiLogger
//	cfg.EventLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events (integer map keys,
// canonical ordering, nanosecond timestamps) with .tlog extension.
// Reader streams events back, optionally filtered.
package log
