package link

import (
	"context"
	"time"
)

// PeerID is an opaque peer identity understood by a Connector.
// Its format depends on the transport (an address, a discovery name,
// a platform device identifier).
type PeerID string

// String returns the peer identity as a string.
func (p PeerID) String() string { return string(p) }

// Handle addresses a single attribute on the peer.
type Handle uint16

// WriteMode selects the acknowledgement behavior of a write.
type WriteMode uint8

const (
	// WriteAcked waits for the peer to acknowledge the write.
	WriteAcked WriteMode = iota

	// WriteUnacked sends the write without waiting for acknowledgement.
	WriteUnacked
)

// String returns a human-readable write mode name.
func (m WriteMode) String() string {
	switch m {
	case WriteAcked:
		return "ACKED"
	case WriteUnacked:
		return "UNACKED"
	default:
		return "UNKNOWN"
	}
}

// AttrFlags describes the operations an attribute supports.
type AttrFlags uint8

const (
	// AttrRead indicates the attribute can be read.
	AttrRead AttrFlags = 1 << iota

	// AttrWrite indicates the attribute can be written.
	AttrWrite

	// AttrNotify indicates the attribute can push notifications.
	AttrNotify
)

// Attribute describes a single addressable attribute on the peer.
type Attribute struct {
	// Handle addresses the attribute in read/write/notify operations.
	Handle Handle

	// Flags lists the supported operations.
	Flags AttrFlags
}

// Group is a named collection of attributes exposed by the peer.
type Group struct {
	// ID identifies the group on the peer.
	ID uint16

	// Label is an optional human-readable group name.
	Label string

	// Attributes lists the attributes in this group.
	Attributes []Attribute
}

// Topology is the full attribute layout of a peer as reported by
// DiscoverTopology.
type Topology struct {
	// Groups lists the peer's attribute groups.
	Groups []Group
}

// Params are the tunable parameters of an established link.
type Params struct {
	// Interval is the requested exchange interval.
	Interval time.Duration

	// Latency is the number of intervals the peer may skip.
	Latency uint16

	// Timeout is the supervision timeout after which the link is
	// considered lost.
	Timeout time.Duration
}

// Notification is an inbound asynchronous message from the peer.
type Notification struct {
	// Handle identifies the attribute that produced the notification.
	Handle Handle

	// Payload is the notification value.
	Payload []byte

	// Timestamp is when the notification was received locally.
	Timestamp time.Time
}

// Link is an established session with a single peer.
//
// All request/response methods honor context cancellation. The
// notification channel is closed when the link is lost or torn down;
// channel closure is the authoritative link-loss signal.
type Link interface {
	// DiscoverTopology retrieves the peer's attribute layout.
	DiscoverTopology(ctx context.Context) (*Topology, error)

	// Read reads the current value of an attribute.
	Read(ctx context.Context, h Handle) ([]byte, error)

	// Write writes a value to an attribute using the given mode.
	Write(ctx context.Context, h Handle, data []byte, mode WriteMode) error

	// SetNotify enables or disables notifications for an attribute.
	// It returns the resulting enabled state.
	SetNotify(ctx context.Context, h Handle, enabled bool) (bool, error)

	// RequestParameterChange asks the peer to adopt new link
	// parameters and returns the parameters actually in effect.
	RequestParameterChange(ctx context.Context, p Params) (Params, error)

	// ReadSignalStrength reports the current signal strength in dBm.
	ReadSignalStrength(ctx context.Context) (int, error)

	// Notifications returns the inbound notification stream. The
	// channel is safe to receive from immediately after connect and
	// is closed exactly once, when the link is lost or torn down.
	Notifications() <-chan Notification

	// Disconnect tears the link down. It returns once teardown has
	// completed or the context expires. Safe to call more than once.
	Disconnect(ctx context.Context) error
}

// Connector produces Links for a peer identity.
//
// Connect blocks until a link is established, the attempt fails, or
// the context is cancelled. Failures are reported as RejectedError
// (do not retry) or ConnectFailedError (safe to retry).
type Connector interface {
	Connect(ctx context.Context, peer PeerID) (Link, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, peer PeerID) (Link, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context, peer PeerID) (Link, error) {
	return f(ctx, peer)
}

// Compile-time interface satisfaction check.
var _ Connector = ConnectorFunc(nil)
