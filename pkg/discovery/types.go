package discovery

import (
	"errors"
)

// Service constants.
const (
	// ServiceType is the mDNS service type for TETHER peers.
	ServiceType = "_tether._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is the default TETHER listen port.
	DefaultPort = 7420

	// MaxInstanceNameLen is the maximum mDNS instance name length.
	MaxInstanceNameLen = 63
)

// TXT record keys.
const (
	// TXTKeyPeerID carries the peer identity.
	TXTKeyPeerID = "pid"

	// TXTKeyVersion carries the wire protocol version.
	TXTKeyVersion = "ver"

	// TXTKeyName carries an optional human-readable peer name.
	TXTKeyName = "nm"

	// TXTKeyAuth marks peers that require pre-shared key
	// authentication.
	TXTKeyAuth = "auth"
)

// Discovery errors.
var (
	// ErrMissingRequired indicates a required TXT field is missing.
	ErrMissingRequired = errors.New("missing required field")

	// ErrInvalidTXTRecord indicates a malformed TXT record.
	ErrInvalidTXTRecord = errors.New("invalid TXT record")

	// ErrInstanceNameTooLong indicates an instance name exceeding the
	// mDNS limit.
	ErrInstanceNameTooLong = errors.New("instance name too long")

	// ErrPeerNotFound indicates browsing ended without finding the
	// requested peer.
	ErrPeerNotFound = errors.New("peer not found")
)

// PeerInfo is the advertised description of a peer.
type PeerInfo struct {
	// PeerID is the peer identity initiators supervise against.
	PeerID string

	// Version is the wire protocol version the peer speaks.
	Version uint8

	// Name is an optional human-readable peer name.
	Name string

	// RequiresAuth marks peers that demand a pre-shared key.
	RequiresAuth bool

	// Port is the listen port. Zero advertises DefaultPort.
	Port uint16
}

// PeerService is a discovered peer on the network.
type PeerService struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Host is the peer's hostname.
	Host string

	// Port is the peer's listen port.
	Port uint16

	// Addresses are the peer's IP addresses as strings.
	Addresses []string

	// PeerInfo is the decoded TXT payload.
	PeerInfo
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTLSeconds is the DNS record TTL. Zero uses the library default.
	TTLSeconds uint32
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}
