package netlink

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/tether-protocol/tether-go/pkg/link"
)

// DefaultHandshakeTimeout bounds the hello/ack exchange.
const DefaultHandshakeTimeout = 10 * time.Second

// Resolver maps a peer identity to a network address.
type Resolver interface {
	Resolve(ctx context.Context, peer link.PeerID) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, peer link.PeerID) (string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, peer link.PeerID) (string, error) {
	return f(ctx, peer)
}

// AddressResolver treats the peer identity itself as a host:port
// address. The default when no Resolver is configured. A malformed
// identity can never resolve, so it is reported as a rejection.
func AddressResolver() Resolver {
	return ResolverFunc(func(ctx context.Context, peer link.PeerID) (string, error) {
		host, port, err := net.SplitHostPort(peer.String())
		if err != nil {
			return "", &link.RejectedError{
				Cause: fmt.Errorf("peer %q is not a host:port address: %w", peer, err),
			}
		}
		return net.JoinHostPort(host, port), nil
	})
}

// Connector establishes netlink sessions. It implements
// link.Connector; the zero value is usable for peers whose identity is
// a host:port address.
type Connector struct {
	// Resolver maps peer identities to dialable addresses. Defaults to
	// AddressResolver.
	Resolver Resolver

	// Dialer establishes the TCP connection.
	Dialer net.Dialer

	// PSK, if set, authenticates the connection during the handshake.
	PSK []byte

	// HandshakeTimeout bounds the hello/ack exchange. Defaults to
	// DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// RequestTimeout bounds each request/response exchange on the
	// established link. Defaults to DefaultRequestTimeout.
	RequestTimeout time.Duration

	// MaxMessageSize caps frame payloads in both directions. Defaults
	// to DefaultMaxMessageSize.
	MaxMessageSize uint32

	// NotifyBuffer is the inbound notification buffer capacity.
	NotifyBuffer int
}

var _ link.Connector = (*Connector)(nil)

// Connect resolves, dials, and handshakes a session with the peer.
//
// Failure classification follows the retry contract: a peer refusal
// during the handshake is a RejectedError (do not retry); dial and
// handshake transport failures are ConnectFailedError (retry). A
// resolver decides the class of its own failures; unclassified
// resolution errors default to retryable.
func (c *Connector) Connect(ctx context.Context, peer link.PeerID) (link.Link, error) {
	resolver := c.Resolver
	if resolver == nil {
		resolver = AddressResolver()
	}

	addr, err := resolver.Resolve(ctx, peer)
	if err != nil {
		if link.IsRejected(err) || link.IsConnectFailed(err) {
			return nil, err
		}
		return nil, &link.ConnectFailedError{Cause: err}
	}

	conn, err := c.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &link.ConnectFailedError{Cause: err}
	}

	maxSize := c.MaxMessageSize
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	l := newNetLink(conn, maxSize, c.RequestTimeout, c.NotifyBuffer)

	hsTimeout := c.HandshakeTimeout
	if hsTimeout <= 0 {
		hsTimeout = DefaultHandshakeTimeout
	}
	hsCtx, cancel := context.WithTimeout(ctx, hsTimeout)
	defer cancel()

	if err := l.handshake(hsCtx, peer, c.PSK); err != nil {
		conn.Close()
		if link.IsRejected(err) {
			return nil, err
		}
		return nil, &link.ConnectFailedError{Cause: err}
	}

	l.start()
	return l, nil
}

// ConnectConn runs the initiator side of the protocol over an existing
// connection, skipping resolution and dialing. Useful for tests and
// custom transports.
func (c *Connector) ConnectConn(ctx context.Context, peer link.PeerID, conn net.Conn) (link.Link, error) {
	maxSize := c.MaxMessageSize
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	l := newNetLink(conn, maxSize, c.RequestTimeout, c.NotifyBuffer)

	hsTimeout := c.HandshakeTimeout
	if hsTimeout <= 0 {
		hsTimeout = DefaultHandshakeTimeout
	}
	hsCtx, cancel := context.WithTimeout(ctx, hsTimeout)
	defer cancel()

	if err := l.handshake(hsCtx, peer, c.PSK); err != nil {
		conn.Close()
		if link.IsRejected(err) {
			return nil, err
		}
		return nil, &link.ConnectFailedError{Cause: err}
	}

	l.start()
	return l, nil
}
