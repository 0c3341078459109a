package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSAdvertiser advertises a TETHER peer via zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config}
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise starts advertising the peer. An existing advertisement is
// replaced.
func (a *MDNSAdvertiser) Advertise(info *PeerInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	instanceName := fmt.Sprintf("TETHER-%s", info.PeerID)
	if err := ValidateInstanceName(instanceName); err != nil {
		return err
	}

	txtStrings := TXTRecordsToStrings(EncodePeerTXT(info))

	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTLSeconds > 0 {
		opts = append(opts, zeroconf.TTL(a.config.TTLSeconds))
	}

	server, err := zeroconf.Register(
		instanceName,
		ServiceType,
		Domain,
		port,
		txtStrings,
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register peer service: %w", err)
	}

	a.server = server
	return nil
}

// Stop stops advertising.
func (a *MDNSAdvertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// MDNSBrowser searches for TETHER peers via zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	return &MDNSBrowser{config: config}
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// Browse searches for peers until ctx is cancelled. Services are
// aggregated by instance name: addresses from multiple interfaces are
// combined into a single entry, and a service is dropped once all of
// its addresses have disappeared.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *PeerService, error) {
	out := make(chan *PeerService)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	opts := b.browserOptions()

	go func() {
		defer close(out)

		// Track services by instance name, aggregating addresses
		services := make(map[string]*PeerService)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := entryToPeer(entry)
				if svc == nil {
					continue
				}

				existing, found := services[svc.InstanceName]
				if found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				} else {
					services[svc.InstanceName] = svc
					select {
					case out <- svc:
					case <-ctx.Done():
						return
					}
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				if existing, found := services[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entryAddresses(entry))
					if len(existing.Addresses) == 0 {
						delete(services, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// FindPeer browses until a peer with the given identity appears. It
// returns ErrPeerNotFound when ctx ends first.
func (b *MDNSBrowser) FindPeer(ctx context.Context, peerID string) (*PeerService, error) {
	browseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := b.Browse(browseCtx)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case svc, ok := <-ch:
			if !ok {
				return nil, ErrPeerNotFound
			}
			if svc.PeerID == peerID {
				return svc, nil
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrPeerNotFound, peerID)
		}
	}
}

// entryAddresses collects the IP addresses carried by a zeroconf
// entry.
func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// entryToPeer converts a zeroconf entry to a PeerService. Entries with
// undecodable TXT records are skipped.
func entryToPeer(entry *zeroconf.ServiceEntry) *PeerService {
	e := &ServiceEntry{
		Instance:  entry.Instance,
		HostName:  entry.HostName,
		Port:      uint16(entry.Port),
		Text:      entry.Text,
		Addresses: entryAddresses(entry),
	}
	svc, err := e.ToPeerService()
	if err != nil {
		return nil
	}
	return svc
}

// mergeAddresses combines two address lists without duplicates.
func mergeAddresses(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, a := range existing {
		seen[a] = true
	}
	for _, a := range incoming {
		if !seen[a] {
			existing = append(existing, a)
			seen[a] = true
		}
	}
	return existing
}

// removeAddresses drops the addresses carried by a removal entry.
func removeAddresses(existing, removed []string) []string {
	drop := make(map[string]bool, len(removed))
	for _, a := range removed {
		drop[a] = true
	}

	kept := existing[:0]
	for _, a := range existing {
		if !drop[a] {
			kept = append(kept, a)
		}
	}
	return kept
}
