package netlink

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tether-protocol/tether-go/pkg/link"
	"github.com/tether-protocol/tether-go/pkg/supervisor"
)

// newTestServer builds a server with a small attribute table.
func newTestServer(cfg ServerConfig) *Server {
	srv := NewServer(cfg)
	srv.AddAttribute(0x10, 1, "environment", link.AttrRead|link.AttrNotify, []byte("21.5"))
	srv.AddAttribute(0x11, 1, "environment", link.AttrRead|link.AttrWrite, []byte("auto"))
	srv.AddAttribute(0x20, 2, "control", link.AttrWrite, nil)
	return srv
}

// dialPipe connects a client link to srv over an in-memory pipe.
func dialPipe(t *testing.T, srv *Server, c *Connector) link.Link {
	t.Helper()

	clientConn, serverConn := net.Pipe()
	go srv.ServeConn(serverConn)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	l, err := c.ConnectConn(ctx, "pipe-peer", clientConn)
	require.NoError(t, err)
	return l
}

func TestConnectAndOperations(t *testing.T) {
	srv := newTestServer(ServerConfig{SignalStrength: -48})
	defer srv.Close()

	l := dialPipe(t, srv, &Connector{RequestTimeout: 3 * time.Second})
	defer l.Disconnect(context.Background())

	ctx := context.Background()

	topo, err := l.DiscoverTopology(ctx)
	require.NoError(t, err)
	assert.Len(t, topo.Groups, 2)

	data, err := l.Read(ctx, 0x10)
	require.NoError(t, err)
	assert.Equal(t, []byte("21.5"), data)

	err = l.Write(ctx, 0x11, []byte("manual"), link.WriteAcked)
	require.NoError(t, err)
	data, err = l.Read(ctx, 0x11)
	require.NoError(t, err)
	assert.Equal(t, []byte("manual"), data)

	enabled, err := l.SetNotify(ctx, 0x10, true)
	require.NoError(t, err)
	assert.True(t, enabled)

	granted, err := l.RequestParameterChange(ctx, link.Params{
		Interval: 30 * time.Millisecond,
		Timeout:  2 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Millisecond, granted.Interval)

	rssi, err := l.ReadSignalStrength(ctx)
	require.NoError(t, err)
	assert.Equal(t, -48, rssi)
}

func TestOperationStatusErrors(t *testing.T) {
	srv := newTestServer(ServerConfig{})
	defer srv.Close()

	l := dialPipe(t, srv, &Connector{RequestTimeout: 3 * time.Second})
	defer l.Disconnect(context.Background())

	ctx := context.Background()

	// Unknown handle.
	_, err := l.Read(ctx, 0xFFFF)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, StatusUnknownHandle, statusErr.Status)

	// Write to a read-only attribute.
	err = l.Write(ctx, 0x10, []byte("x"), link.WriteAcked)
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, StatusNotSupported, statusErr.Status)

	// Notify on an attribute without notify support.
	_, err = l.SetNotify(ctx, 0x11, true)
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, StatusNotSupported, statusErr.Status)
}

func TestNotificationDelivery(t *testing.T) {
	srv := newTestServer(ServerConfig{})
	defer srv.Close()

	l := dialPipe(t, srv, &Connector{RequestTimeout: 3 * time.Second})
	defer l.Disconnect(context.Background())

	ctx := context.Background()

	// No push before notifications are enabled.
	srv.Push(0x10, []byte("early"))

	_, err := l.SetNotify(ctx, 0x10, true)
	require.NoError(t, err)

	require.NoError(t, srv.SetValue(0x10, []byte("22.0")))

	select {
	case n := <-l.Notifications():
		assert.Equal(t, link.Handle(0x10), n.Handle)
		assert.Equal(t, []byte("22.0"), n.Payload)
	case <-time.After(3 * time.Second):
		t.Fatal("notification not delivered")
	}

	// Disabling stops delivery.
	_, err = l.SetNotify(ctx, 0x10, false)
	require.NoError(t, err)
	srv.Push(0x10, []byte("silenced"))

	select {
	case n, ok := <-l.Notifications():
		if ok {
			t.Fatalf("unexpected notification after disable: %+v", n)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLinkLossClosesStream(t *testing.T) {
	srv := newTestServer(ServerConfig{})

	l := dialPipe(t, srv, &Connector{RequestTimeout: 3 * time.Second})

	// Dropping the server ends the session from the peer side.
	srv.Close()

	select {
	case _, ok := <-l.Notifications():
		assert.False(t, ok, "stream must close on link loss")
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not close on link loss")
	}

	// Operations on the dead link fail.
	_, err := l.Read(context.Background(), 0x10)
	assert.ErrorIs(t, err, link.ErrLinkClosed)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	srv := newTestServer(ServerConfig{})
	defer srv.Close()

	l := dialPipe(t, srv, &Connector{RequestTimeout: 3 * time.Second})

	require.NoError(t, l.Disconnect(context.Background()))
	require.NoError(t, l.Disconnect(context.Background()))

	_, ok := <-l.Notifications()
	assert.False(t, ok, "stream must close on disconnect")
}

func TestHandshakeWithPSK(t *testing.T) {
	psk := []byte("tether-test-key")
	srv := newTestServer(ServerConfig{PSK: psk})
	defer srv.Close()

	// Matching key connects.
	l := dialPipe(t, srv, &Connector{PSK: psk, RequestTimeout: 3 * time.Second})
	_, err := l.Read(context.Background(), 0x10)
	require.NoError(t, err)
	l.Disconnect(context.Background())

	// Wrong key is refused permanently.
	clientConn, serverConn := net.Pipe()
	go srv.ServeConn(serverConn)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	bad := &Connector{PSK: []byte("wrong key")}
	_, err = bad.ConnectConn(ctx, "pipe-peer", clientConn)
	require.Error(t, err)
	assert.True(t, link.IsRejected(err), "authentication failure must be a rejection, got %v", err)
}

func TestAddressResolver(t *testing.T) {
	r := AddressResolver()
	ctx := context.Background()

	addr, err := r.Resolve(ctx, "127.0.0.1:7420")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7420", addr)

	_, err = r.Resolve(ctx, "not-an-address")
	assert.Error(t, err)
}

// End to end: a supervisor keeps a netlink session alive and relays
// its notifications across a reconnect.
func TestSupervisorOverNetlink(t *testing.T) {
	srv := newTestServer(ServerConfig{})
	defer srv.Close()

	c := &Connector{RequestTimeout: 3 * time.Second}
	connector := link.ConnectorFunc(func(ctx context.Context, peer link.PeerID) (link.Link, error) {
		clientConn, serverConn := net.Pipe()
		go srv.ServeConn(serverConn)
		return c.ConnectConn(ctx, peer, clientConn)
	})

	s := supervisor.New(connector, supervisor.Config{Peer: "pipe-peer"})
	defer s.Close(nil)

	sub := s.Subscribe()

	_, err := s.Start()
	require.NoError(t, err)

	waitConnected := func() {
		t.Helper()
		deadline := time.Now().Add(3 * time.Second)
		for s.Status().Phase != supervisor.PhaseConnected {
			if time.Now().After(deadline) {
				t.Fatal("supervisor did not connect")
			}
			time.Sleep(2 * time.Millisecond)
		}
	}

	waitConnected()

	ctx := context.Background()
	_, err = s.SetNotify(ctx, 0x10, true)
	require.NoError(t, err)
	require.NoError(t, srv.SetValue(0x10, []byte("23.1")))

	select {
	case n := <-sub.C():
		assert.Equal(t, []byte("23.1"), n.Payload)
	case <-time.After(3 * time.Second):
		t.Fatal("notification not relayed")
	}

	// Kill the session; the supervisor reconnects and the same
	// subscription keeps working.
	firstAttempts := s.AttemptCount()
	s.Stop()
	assert.Greater(t, s.AttemptCount(), firstAttempts)

	waitConnected()
	_, err = s.SetNotify(ctx, 0x10, true)
	require.NoError(t, err)
	require.NoError(t, srv.SetValue(0x10, []byte("23.9")))

	select {
	case n := <-sub.C():
		assert.Equal(t, []byte("23.9"), n.Payload)
	case <-time.After(3 * time.Second):
		t.Fatal("notification not relayed after reconnect")
	}
}
