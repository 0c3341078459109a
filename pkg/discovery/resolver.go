package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/tether-protocol/tether-go/pkg/link"
	"github.com/tether-protocol/tether-go/pkg/netlink"
)

// DefaultResolveTimeout bounds a single browse-and-resolve pass.
const DefaultResolveTimeout = 5 * time.Second

// Resolver resolves peer identities to dialable addresses by browsing
// the local network. It plugs into netlink.Connector, so the address
// is looked up fresh on every connection attempt.
type Resolver struct {
	// Browser performs the mDNS lookups. Defaults to a browser on all
	// interfaces.
	Browser *MDNSBrowser

	// Timeout bounds each lookup. Defaults to DefaultResolveTimeout.
	Timeout time.Duration
}

var _ netlink.Resolver = (*Resolver)(nil)

// Resolve browses for the peer and returns the first usable
// address:port. An identity that does not appear within the timeout
// resolves to an error; the caller decides whether to retry.
func (r *Resolver) Resolve(ctx context.Context, peer link.PeerID) (string, error) {
	browser := r.Browser
	if browser == nil {
		browser = NewMDNSBrowser(BrowserConfig{})
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}

	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	svc, err := browser.FindPeer(lookupCtx, peer.String())
	if err != nil {
		return "", err
	}

	if len(svc.Addresses) == 0 {
		return "", fmt.Errorf("%w: %s advertised no addresses", ErrPeerNotFound, peer)
	}

	port := svc.PeerInfo.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(svc.Addresses[0], strconv.Itoa(int(port))), nil
}
