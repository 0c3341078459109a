package supervisor

// Phase represents the supervisor lifecycle phase.
type Phase uint8

const (
	// PhaseDisconnected indicates no link is held.
	PhaseDisconnected Phase = iota

	// PhaseConnecting indicates a connection attempt is in flight.
	PhaseConnecting

	// PhaseConnected indicates a link is held and usable.
	PhaseConnected

	// PhaseDisconnecting indicates a previously held link is being
	// torn down.
	PhaseDisconnecting

	// PhaseCancelled indicates the supervisor has been closed and
	// will never attempt again. Terminal.
	PhaseCancelled
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "DISCONNECTED"
	case PhaseConnecting:
		return "CONNECTING"
	case PhaseConnected:
		return "CONNECTED"
	case PhaseDisconnecting:
		return "DISCONNECTING"
	case PhaseCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Status is the published lifecycle state: the current phase plus the
// cause that produced it, if any.
type Status struct {
	// Phase is the current lifecycle phase.
	Phase Phase

	// Err is the cause behind the phase. Nil on clean transitions;
	// set on attempt failures (PhaseDisconnected) and on cancellation
	// (PhaseCancelled) when a cause was given.
	Err error
}
