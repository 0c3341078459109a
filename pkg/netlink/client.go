package netlink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tether-protocol/tether-go/pkg/link"
)

// Client errors.
var (
	// ErrRequestTimeout indicates a request was not answered in time.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrHandshakeFailed indicates the hello/ack exchange failed.
	ErrHandshakeFailed = errors.New("handshake failed")
)

// DefaultRequestTimeout bounds a single request/response exchange.
const DefaultRequestTimeout = 30 * time.Second

// defaultNotifyBuffer is the inbound notification buffer capacity.
const defaultNotifyBuffer = 64

// StatusError is a non-OK response from the peer.
type StatusError struct {
	Status  Status
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Status, e.Message)
	}
	return e.Status.String()
}

// netLink is an established netlink session. It implements link.Link.
type netLink struct {
	conn           net.Conn
	framer         *Framer
	requestTimeout time.Duration

	nextID atomic.Uint32

	// pending maps request IDs to response channels. nil after close.
	pendingMu sync.Mutex
	pending   map[uint32]chan *Response

	notifs chan link.Notification

	closeOnce sync.Once
	closed    chan struct{}
}

var _ link.Link = (*netLink)(nil)

func newNetLink(conn net.Conn, maxMessageSize uint32, requestTimeout time.Duration, notifyBuffer int) *netLink {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	if notifyBuffer <= 0 {
		notifyBuffer = defaultNotifyBuffer
	}
	return &netLink{
		conn:           conn,
		framer:         NewFramerWithMaxSize(conn, maxMessageSize),
		requestTimeout: requestTimeout,
		pending:        make(map[uint32]chan *Response),
		notifs:         make(chan link.Notification, notifyBuffer),
		closed:         make(chan struct{}),
	}
}

// handshake runs the initiator side of the hello/ack exchange. The
// context bounds the whole exchange via a connection deadline.
func (l *netLink) handshake(ctx context.Context, peer link.PeerID, psk []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := l.conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set handshake deadline: %w", err)
		}
		defer l.conn.SetDeadline(time.Time{})
	}

	hello := &Hello{
		Version: ProtocolVersion,
		Peer:    peer.String(),
	}
	if psk != nil {
		nonce, err := newNonce()
		if err != nil {
			return err
		}
		proof, err := Authenticate(psk, nonce)
		if err != nil {
			return err
		}
		hello.Nonce = nonce
		hello.Proof = proof
	}

	data, err := EncodeEnvelope(&Envelope{Kind: KindHello, Hello: hello})
	if err != nil {
		return err
	}
	if err := l.framer.WriteFrame(data); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	payload, err := l.framer.ReadFrame()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	env, err := DecodeEnvelope(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if env.Kind != KindHelloAck {
		return fmt.Errorf("%w: expected HELLO_ACK, got %s", ErrHandshakeFailed, env.Kind)
	}

	ack := env.HelloAck
	if !ack.Accepted {
		// A refusal is authoritative: the peer will never accept this
		// hello, so retrying is pointless.
		reason := ack.Reason
		if reason == "" {
			reason = "connection refused by peer"
		}
		return &link.RejectedError{Cause: errors.New(reason)}
	}
	if ack.Version != ProtocolVersion {
		return &link.RejectedError{
			Cause: fmt.Errorf("protocol version mismatch: peer speaks %d, want %d", ack.Version, ProtocolVersion),
		}
	}

	return nil
}

// start launches the read loop. Called once, after a successful
// handshake.
func (l *netLink) start() {
	go l.readLoop()
}

// readLoop is the single reader of the connection. It dispatches
// responses to waiting requests and pushes notifications into the
// stream until the connection fails or is closed.
func (l *netLink) readLoop() {
	defer l.shutdown()

	for {
		payload, err := l.framer.ReadFrame()
		if err != nil {
			return
		}
		env, err := DecodeEnvelope(payload)
		if err != nil {
			// Undecodable traffic: the stream is unusable.
			return
		}

		switch env.Kind {
		case KindResponse:
			l.dispatch(env.ID, env.Response)
		case KindNotify:
			n := link.Notification{
				Handle:    link.Handle(env.Notify.Handle),
				Payload:   env.Notify.Payload,
				Timestamp: time.Now(),
			}
			select {
			case l.notifs <- n:
			default:
				// Receiver is not keeping up; shed the notification
				// rather than stall the read loop.
			}
		default:
			// Unexpected kinds after the handshake are ignored.
		}
	}
}

// dispatch routes a response to the request waiting for it.
func (l *netLink) dispatch(id uint32, resp *Response) {
	l.pendingMu.Lock()
	ch, ok := l.pending[id]
	if ok {
		delete(l.pending, id)
	}
	l.pendingMu.Unlock()

	if ok {
		ch <- resp // buffered, never blocks
	}
}

// shutdown tears the session down exactly once: the connection is
// closed, pending requests fail, and the notification stream closes
// (the link-loss signal).
func (l *netLink) shutdown() {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.conn.Close()

		l.pendingMu.Lock()
		for id, ch := range l.pending {
			close(ch)
			delete(l.pending, id)
		}
		l.pendingMu.Unlock()

		close(l.notifs)
	})
}

// roundTrip sends one request and waits for its response.
func (l *netLink) roundTrip(ctx context.Context, req *Request) (*Response, error) {
	select {
	case <-l.closed:
		return nil, link.ErrLinkClosed
	default:
	}

	id := l.nextID.Add(1)
	respCh := make(chan *Response, 1)

	l.pendingMu.Lock()
	l.pending[id] = respCh
	l.pendingMu.Unlock()

	defer func() {
		l.pendingMu.Lock()
		delete(l.pending, id)
		l.pendingMu.Unlock()
	}()

	data, err := EncodeEnvelope(&Envelope{Kind: KindRequest, ID: id, Request: req})
	if err != nil {
		return nil, err
	}
	if err := l.framer.WriteFrame(data); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(l.requestTimeout):
		return nil, ErrRequestTimeout
	case resp, ok := <-respCh:
		if !ok {
			return nil, link.ErrLinkClosed
		}
		if !resp.Status.IsSuccess() {
			return nil, &StatusError{Status: resp.Status, Message: resp.Message}
		}
		return resp, nil
	}
}

// DiscoverTopology retrieves the peer's attribute layout.
func (l *netLink) DiscoverTopology(ctx context.Context) (*link.Topology, error) {
	resp, err := l.roundTrip(ctx, &Request{Op: OpTopology})
	if err != nil {
		return nil, err
	}
	if resp.Topology == nil {
		return nil, fmt.Errorf("topology response has no layout")
	}
	return resp.Topology.ToLink(), nil
}

// Read reads the current value of an attribute.
func (l *netLink) Read(ctx context.Context, h link.Handle) ([]byte, error) {
	resp, err := l.roundTrip(ctx, &Request{Op: OpRead, Handle: uint16(h)})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Write writes a value to an attribute. Unacked writes still travel
// as request/response on this transport; the mode is forwarded so the
// peer can honor it.
func (l *netLink) Write(ctx context.Context, h link.Handle, data []byte, mode link.WriteMode) error {
	_, err := l.roundTrip(ctx, &Request{
		Op:      OpWrite,
		Handle:  uint16(h),
		Data:    data,
		Unacked: mode == link.WriteUnacked,
	})
	return err
}

// SetNotify enables or disables notifications for an attribute.
func (l *netLink) SetNotify(ctx context.Context, h link.Handle, enabled bool) (bool, error) {
	resp, err := l.roundTrip(ctx, &Request{Op: OpSetNotify, Handle: uint16(h), Enable: &enabled})
	if err != nil {
		return false, err
	}
	if resp.Enabled == nil {
		return enabled, nil
	}
	return *resp.Enabled, nil
}

// RequestParameterChange asks the peer to adopt new link parameters.
func (l *netLink) RequestParameterChange(ctx context.Context, p link.Params) (link.Params, error) {
	resp, err := l.roundTrip(ctx, &Request{Op: OpParams, Params: ParamsToWire(p)})
	if err != nil {
		return link.Params{}, err
	}
	if resp.Params == nil {
		return p, nil
	}
	return resp.Params.ToLink(), nil
}

// ReadSignalStrength reports the current signal strength in dBm.
func (l *netLink) ReadSignalStrength(ctx context.Context) (int, error) {
	resp, err := l.roundTrip(ctx, &Request{Op: OpSignal})
	if err != nil {
		return 0, err
	}
	if resp.Signal == nil {
		return 0, fmt.Errorf("signal response has no value")
	}
	return int(*resp.Signal), nil
}

// Notifications returns the inbound notification stream.
func (l *netLink) Notifications() <-chan link.Notification {
	return l.notifs
}

// Disconnect tears the session down. Closing the connection is the
// teardown on this transport; the peer observes EOF.
func (l *netLink) Disconnect(ctx context.Context) error {
	l.shutdown()
	return nil
}
