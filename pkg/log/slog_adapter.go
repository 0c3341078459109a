package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes lifecycle events to an slog.Logger.
// Useful for development when you want to see supervisor events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("supervisor_id", event.SupervisorID),
		slog.String("category", event.Category.String()),
	}

	if event.PeerID != "" {
		attrs = append(attrs, slog.String("peer_id", event.PeerID))
	}

	// Add type-specific attributes
	switch {
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Attempt != nil:
		attrs = append(attrs,
			slog.Uint64("attempt", event.Attempt.Number),
			slog.Bool("connected", event.Attempt.Connected),
		)
		if event.Attempt.Failure != "" {
			attrs = append(attrs, slog.String("failure", event.Attempt.Failure))
		}
	case event.Notification != nil:
		attrs = append(attrs,
			slog.Uint64("handle", uint64(event.Notification.Handle)),
			slog.Int("size", event.Notification.Size),
		)
	case event.Error != nil:
		attrs = append(attrs, slog.String("error_msg", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "tether", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
