package netlink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/tether-protocol/tether-go/pkg/link"
)

// Server errors.
var (
	// ErrServerClosed indicates the server has been closed.
	ErrServerClosed = errors.New("server is closed")

	// ErrUnknownAttribute indicates an operation addressed a handle
	// the server does not expose.
	ErrUnknownAttribute = errors.New("unknown attribute")
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	// PSK, if set, requires initiators to present a valid proof.
	PSK []byte

	// MaxMessageSize caps frame payloads in both directions. Defaults
	// to DefaultMaxMessageSize.
	MaxMessageSize uint32

	// SignalStrength is the value reported for signal strength reads.
	// Defaults to -60 dBm.
	SignalStrength int

	// Params are the link parameters granted to parameter change
	// requests. Zero values grant whatever the initiator asked for.
	Params link.Params
}

// serverAttr is one attribute in the server's table.
type serverAttr struct {
	flags link.AttrFlags
	value []byte
	label string
	group uint16
}

// serverConn is one accepted session.
type serverConn struct {
	conn   net.Conn
	framer *Framer

	// notifyOn tracks which handles this session wants pushes for.
	mu       sync.Mutex
	notifyOn map[uint16]bool
}

// Server is the peer side of the netlink protocol: it accepts
// sessions and serves a table of attributes. Attribute writes and
// Push calls fan out as notifications to sessions that enabled them.
type Server struct {
	cfg ServerConfig

	mu     sync.Mutex
	attrs  map[uint16]*serverAttr
	conns  map[*serverConn]struct{}
	closed bool

	wg sync.WaitGroup
}

// NewServer creates a server with an empty attribute table.
func NewServer(cfg ServerConfig) *Server {
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}
	if cfg.SignalStrength == 0 {
		cfg.SignalStrength = -60
	}
	return &Server{
		cfg:   cfg,
		attrs: make(map[uint16]*serverAttr),
		conns: make(map[*serverConn]struct{}),
	}
}

// AddAttribute adds an attribute to the table. Group and label are
// reported in topology discovery.
func (s *Server) AddAttribute(h link.Handle, group uint16, label string, flags link.AttrFlags, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs[uint16(h)] = &serverAttr{
		flags: flags,
		value: value,
		label: label,
		group: group,
	}
}

// SetValue updates an attribute value and notifies subscribed
// sessions.
func (s *Server) SetValue(h link.Handle, value []byte) error {
	s.mu.Lock()
	attr, ok := s.attrs[uint16(h)]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownAttribute
	}
	attr.value = value
	s.mu.Unlock()

	s.Push(h, value)
	return nil
}

// Push sends a notification for a handle to every session that
// enabled notifications for it.
func (s *Server) Push(h link.Handle, payload []byte) {
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	data, err := EncodeEnvelope(&Envelope{
		Kind:   KindNotify,
		Notify: &Notify{Handle: uint16(h), Payload: payload},
	})
	if err != nil {
		return
	}

	for _, c := range conns {
		c.mu.Lock()
		enabled := c.notifyOn[uint16(h)]
		c.mu.Unlock()
		if !enabled {
			continue
		}
		// A dead session is cleaned up by its own handler loop.
		_ = c.framer.WriteFrame(data)
	}
}

// Serve accepts sessions until the listener fails or ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(conn)
		}()
	}
}

// Close stops serving: open sessions are dropped and their handlers
// joined.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conns := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.conn.Close()
	}
	s.wg.Wait()
}

// ServeConn runs the protocol on one established connection. It
// returns when the session ends.
func (s *Server) ServeConn(conn net.Conn) error {
	defer conn.Close()

	sc := &serverConn{
		conn:     conn,
		framer:   NewFramerWithMaxSize(conn, s.cfg.MaxMessageSize),
		notifyOn: make(map[uint16]bool),
	}

	if err := s.handshake(sc); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.conns[sc] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, sc)
		s.mu.Unlock()
	}()

	for {
		payload, err := sc.framer.ReadFrame()
		if err != nil {
			return err
		}
		env, err := DecodeEnvelope(payload)
		if err != nil {
			return err
		}
		if env.Kind != KindRequest {
			continue
		}

		resp := s.handle(sc, env.Request)
		data, err := EncodeEnvelope(&Envelope{Kind: KindResponse, ID: env.ID, Response: resp})
		if err != nil {
			return err
		}
		if err := sc.framer.WriteFrame(data); err != nil {
			return err
		}
	}
}

// handshake runs the responder side of the hello/ack exchange.
func (s *Server) handshake(sc *serverConn) error {
	payload, err := sc.framer.ReadFrame()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	env, err := DecodeEnvelope(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if env.Kind != KindHello {
		return fmt.Errorf("%w: expected HELLO, got %s", ErrHandshakeFailed, env.Kind)
	}

	ack := &HelloAck{Version: ProtocolVersion, Accepted: true}

	switch {
	case env.Hello.Version != ProtocolVersion:
		ack.Accepted = false
		ack.Reason = fmt.Sprintf("unsupported protocol version %d", env.Hello.Version)
	case s.cfg.PSK != nil && !VerifyProof(s.cfg.PSK, env.Hello.Nonce, env.Hello.Proof):
		ack.Accepted = false
		ack.Reason = "authentication failed"
	}

	data, err := EncodeEnvelope(&Envelope{Kind: KindHelloAck, HelloAck: ack})
	if err != nil {
		return err
	}
	if err := sc.framer.WriteFrame(data); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	if !ack.Accepted {
		return fmt.Errorf("%w: %s", ErrHandshakeFailed, ack.Reason)
	}
	return nil
}

// handle executes one request against the attribute table.
func (s *Server) handle(sc *serverConn, req *Request) *Response {
	switch req.Op {
	case OpTopology:
		return &Response{Status: StatusOK, Topology: s.topology()}

	case OpRead:
		s.mu.Lock()
		attr, ok := s.attrs[req.Handle]
		if !ok {
			s.mu.Unlock()
			return &Response{Status: StatusUnknownHandle}
		}
		if attr.flags&link.AttrRead == 0 {
			s.mu.Unlock()
			return &Response{Status: StatusNotSupported, Message: "attribute is not readable"}
		}
		value := attr.value
		s.mu.Unlock()
		return &Response{Status: StatusOK, Data: value}

	case OpWrite:
		s.mu.Lock()
		attr, ok := s.attrs[req.Handle]
		if !ok {
			s.mu.Unlock()
			return &Response{Status: StatusUnknownHandle}
		}
		if attr.flags&link.AttrWrite == 0 {
			s.mu.Unlock()
			return &Response{Status: StatusNotSupported, Message: "attribute is not writable"}
		}
		attr.value = req.Data
		s.mu.Unlock()
		s.Push(link.Handle(req.Handle), req.Data)
		return &Response{Status: StatusOK}

	case OpSetNotify:
		if req.Enable == nil {
			return &Response{Status: StatusBadRequest, Message: "missing enable flag"}
		}
		s.mu.Lock()
		attr, ok := s.attrs[req.Handle]
		s.mu.Unlock()
		if !ok {
			return &Response{Status: StatusUnknownHandle}
		}
		if attr.flags&link.AttrNotify == 0 {
			return &Response{Status: StatusNotSupported, Message: "attribute does not notify"}
		}
		sc.mu.Lock()
		sc.notifyOn[req.Handle] = *req.Enable
		sc.mu.Unlock()
		enabled := *req.Enable
		return &Response{Status: StatusOK, Enabled: &enabled}

	case OpParams:
		if req.Params == nil {
			return &Response{Status: StatusBadRequest, Message: "missing parameters"}
		}
		granted := s.cfg.Params
		if granted == (link.Params{}) {
			granted = req.Params.ToLink()
		}
		return &Response{Status: StatusOK, Params: ParamsToWire(granted)}

	case OpSignal:
		signal := int16(s.cfg.SignalStrength)
		return &Response{Status: StatusOK, Signal: &signal}

	default:
		return &Response{Status: StatusBadRequest, Message: fmt.Sprintf("unknown operation %d", req.Op)}
	}
}

// topology builds the wire topology from the attribute table.
func (s *Server) topology() *WireTopology {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make(map[uint16]*WireGroup)
	for handle, attr := range s.attrs {
		g, ok := groups[attr.group]
		if !ok {
			g = &WireGroup{ID: attr.group, Label: attr.label}
			groups[attr.group] = g
		}
		g.Attributes = append(g.Attributes, WireAttribute{
			Handle: handle,
			Flags:  uint8(attr.flags),
		})
	}

	topo := &WireTopology{}
	for _, g := range groups {
		topo.Groups = append(topo.Groups, *g)
	}
	return topo
}
