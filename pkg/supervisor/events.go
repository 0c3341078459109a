package supervisor

import (
	"github.com/tether-protocol/tether-go/pkg/link"
)

// Event is a lifecycle event delivered to Config.OnEvent.
// It is one of ConnectedEvent or DisconnectedEvent.
type Event interface {
	isEvent()
}

// ConnectedEvent is emitted exactly once per successful attempt,
// immediately after the link becomes usable (and after the CONNECTED
// phase is published).
type ConnectedEvent struct {
	// Link is the newly established link. Valid until the next
	// DisconnectedEvent for the same attempt.
	Link link.Link
}

func (ConnectedEvent) isEvent() {}

// DisconnectedEvent is emitted exactly once per completed attempt
// iteration, whether the attempt failed outright or succeeded and
// then dropped.
type DisconnectedEvent struct {
	// WasConnected indicates whether the attempt reached the
	// connected phase before ending.
	WasConnected bool

	// Attempt is the attempt counter value for this iteration.
	// Counting starts at 1 and never resets.
	Attempt uint64
}

func (DisconnectedEvent) isEvent() {}
