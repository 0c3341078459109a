package netlink

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/tether-protocol/tether-go/pkg/link"
)

// ProtocolVersion is the netlink wire protocol version.
const ProtocolVersion = 1

// Kind identifies the envelope body.
type Kind uint8

const (
	// KindHello opens a connection (initiator to peer).
	KindHello Kind = iota + 1

	// KindHelloAck answers a hello (peer to initiator).
	KindHelloAck

	// KindRequest carries an operation request (initiator to peer).
	KindRequest

	// KindResponse answers a request (peer to initiator).
	KindResponse

	// KindNotify pushes an attribute notification (peer to initiator).
	KindNotify
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindHello:
		return "HELLO"
	case KindHelloAck:
		return "HELLO_ACK"
	case KindRequest:
		return "REQUEST"
	case KindResponse:
		return "RESPONSE"
	case KindNotify:
		return "NOTIFY"
	default:
		return "UNKNOWN"
	}
}

// Op identifies a request operation.
type Op uint8

const (
	// OpTopology requests the peer's attribute layout.
	OpTopology Op = iota + 1

	// OpRead reads an attribute value.
	OpRead

	// OpWrite writes an attribute value.
	OpWrite

	// OpSetNotify enables or disables notifications for an attribute.
	OpSetNotify

	// OpParams requests a link parameter change.
	OpParams

	// OpSignal reads the current signal strength.
	OpSignal
)

// String returns a human-readable operation name.
func (o Op) String() string {
	switch o {
	case OpTopology:
		return "TOPOLOGY"
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpSetNotify:
		return "SET_NOTIFY"
	case OpParams:
		return "PARAMS"
	case OpSignal:
		return "SIGNAL"
	default:
		return "UNKNOWN"
	}
}

// Status is the outcome code of a response.
type Status uint8

const (
	// StatusOK indicates success.
	StatusOK Status = iota

	// StatusUnknownHandle indicates the request addressed a handle the
	// peer does not expose.
	StatusUnknownHandle

	// StatusNotSupported indicates the attribute does not support the
	// requested operation.
	StatusNotSupported

	// StatusBadRequest indicates a malformed request.
	StatusBadRequest

	// StatusInternal indicates a peer-side failure.
	StatusInternal
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusUnknownHandle:
		return "UNKNOWN_HANDLE"
	case StatusNotSupported:
		return "NOT_SUPPORTED"
	case StatusBadRequest:
		return "BAD_REQUEST"
	case StatusInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess reports whether the status indicates success.
func (s Status) IsSuccess() bool { return s == StatusOK }

// Envelope is the single top-level wire message. Exactly one body
// field matching Kind is set.
type Envelope struct {
	// Kind identifies the body.
	Kind Kind `cbor:"1,keyasint"`

	// ID correlates requests with responses. Zero for hello,
	// hello-ack, and notify messages.
	ID uint32 `cbor:"2,keyasint,omitempty"`

	Hello    *Hello    `cbor:"3,keyasint,omitempty"`
	HelloAck *HelloAck `cbor:"4,keyasint,omitempty"`
	Request  *Request  `cbor:"5,keyasint,omitempty"`
	Response *Response `cbor:"6,keyasint,omitempty"`
	Notify   *Notify   `cbor:"7,keyasint,omitempty"`
}

// Hello opens a connection.
type Hello struct {
	// Version is the sender's protocol version.
	Version uint8 `cbor:"1,keyasint"`

	// Peer is the peer identity the initiator believes it is
	// connecting to.
	Peer string `cbor:"2,keyasint"`

	// Nonce is random per-connection salt for the authentication
	// proof. Present only when a pre-shared key is in use.
	Nonce []byte `cbor:"3,keyasint,omitempty"`

	// Proof authenticates the initiator. See Authenticate.
	Proof []byte `cbor:"4,keyasint,omitempty"`
}

// HelloAck answers a hello.
type HelloAck struct {
	// Version is the responder's protocol version.
	Version uint8 `cbor:"1,keyasint"`

	// Accepted reports whether the connection may proceed. A refusal
	// is permanent: the initiator must not retry.
	Accepted bool `cbor:"2,keyasint"`

	// Reason explains a refusal.
	Reason string `cbor:"3,keyasint,omitempty"`
}

// Request carries one operation.
type Request struct {
	// Op selects the operation.
	Op Op `cbor:"1,keyasint"`

	// Handle addresses the target attribute for read, write, and
	// set-notify operations.
	Handle uint16 `cbor:"2,keyasint,omitempty"`

	// Data is the value to write.
	Data []byte `cbor:"3,keyasint,omitempty"`

	// Unacked requests a write without acknowledgement.
	Unacked bool `cbor:"4,keyasint,omitempty"`

	// Enable is the set-notify target state.
	Enable *bool `cbor:"5,keyasint,omitempty"`

	// Params is the requested parameter change.
	Params *WireParams `cbor:"6,keyasint,omitempty"`
}

// Response answers one request.
type Response struct {
	// Status is the outcome code.
	Status Status `cbor:"1,keyasint"`

	// Message explains a non-OK status.
	Message string `cbor:"2,keyasint,omitempty"`

	// Data is the read value.
	Data []byte `cbor:"3,keyasint,omitempty"`

	// Topology is the attribute layout (topology responses).
	Topology *WireTopology `cbor:"4,keyasint,omitempty"`

	// Enabled is the resulting notify state (set-notify responses).
	Enabled *bool `cbor:"5,keyasint,omitempty"`

	// Params are the parameters actually in effect (params responses).
	Params *WireParams `cbor:"6,keyasint,omitempty"`

	// Signal is the signal strength in dBm (signal responses).
	Signal *int16 `cbor:"7,keyasint,omitempty"`
}

// Notify pushes one attribute notification.
type Notify struct {
	// Handle identifies the attribute that produced the notification.
	Handle uint16 `cbor:"1,keyasint"`

	// Payload is the notification value.
	Payload []byte `cbor:"2,keyasint,omitempty"`
}

// WireParams is the wire form of link.Params.
type WireParams struct {
	IntervalMS uint32 `cbor:"1,keyasint"`
	Latency    uint16 `cbor:"2,keyasint,omitempty"`
	TimeoutMS  uint32 `cbor:"3,keyasint"`
}

// ToLink converts wire parameters to link.Params.
func (p *WireParams) ToLink() link.Params {
	return link.Params{
		Interval: time.Duration(p.IntervalMS) * time.Millisecond,
		Latency:  p.Latency,
		Timeout:  time.Duration(p.TimeoutMS) * time.Millisecond,
	}
}

// ParamsToWire converts link.Params to the wire form.
func ParamsToWire(p link.Params) *WireParams {
	return &WireParams{
		IntervalMS: uint32(p.Interval / time.Millisecond),
		Latency:    p.Latency,
		TimeoutMS:  uint32(p.Timeout / time.Millisecond),
	}
}

// WireTopology is the wire form of link.Topology.
type WireTopology struct {
	Groups []WireGroup `cbor:"1,keyasint,omitempty"`
}

// WireGroup is the wire form of link.Group.
type WireGroup struct {
	ID         uint16          `cbor:"1,keyasint"`
	Label      string          `cbor:"2,keyasint,omitempty"`
	Attributes []WireAttribute `cbor:"3,keyasint,omitempty"`
}

// WireAttribute is the wire form of link.Attribute.
type WireAttribute struct {
	Handle uint16 `cbor:"1,keyasint"`
	Flags  uint8  `cbor:"2,keyasint"`
}

// ToLink converts a wire topology to link.Topology.
func (t *WireTopology) ToLink() *link.Topology {
	out := &link.Topology{Groups: make([]link.Group, 0, len(t.Groups))}
	for _, g := range t.Groups {
		group := link.Group{ID: g.ID, Label: g.Label}
		for _, a := range g.Attributes {
			group.Attributes = append(group.Attributes, link.Attribute{
				Handle: link.Handle(a.Handle),
				Flags:  link.AttrFlags(a.Flags),
			})
		}
		out.Groups = append(out.Groups, group)
	}
	return out
}

// TopologyToWire converts link.Topology to the wire form.
func TopologyToWire(t *link.Topology) *WireTopology {
	out := &WireTopology{Groups: make([]WireGroup, 0, len(t.Groups))}
	for _, g := range t.Groups {
		group := WireGroup{ID: g.ID, Label: g.Label}
		for _, a := range g.Attributes {
			group.Attributes = append(group.Attributes, WireAttribute{
				Handle: uint16(a.Handle),
				Flags:  uint8(a.Flags),
			})
		}
		out.Groups = append(out.Groups, group)
	}
	return out
}

// encMode is the CBOR encoder mode for netlink messages.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for netlink messages.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Lenient decoding for forward compatibility.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// ErrInvalidEnvelope indicates an envelope whose body does not match
// its kind.
var ErrInvalidEnvelope = errors.New("invalid envelope")

// Validate checks that exactly the body matching Kind is present.
func (e *Envelope) Validate() error {
	var ok bool
	switch e.Kind {
	case KindHello:
		ok = e.Hello != nil
	case KindHelloAck:
		ok = e.HelloAck != nil
	case KindRequest:
		ok = e.Request != nil && e.ID != 0
	case KindResponse:
		ok = e.Response != nil && e.ID != 0
	case KindNotify:
		ok = e.Notify != nil
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidEnvelope, e.Kind)
	}
	if !ok {
		return fmt.Errorf("%w: missing %s body", ErrInvalidEnvelope, e.Kind)
	}
	return nil
}

// EncodeEnvelope validates and encodes an envelope.
func EncodeEnvelope(e *Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return Marshal(e)
}

// DecodeEnvelope decodes and validates an envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
