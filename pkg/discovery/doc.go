// Package discovery provides mDNS advertising and browsing for TETHER
// peers.
//
// A peer advertises itself as a "_tether._tcp" service whose TXT
// records carry the peer identity and protocol version. Initiators
// browse for those services and resolve a peer identity to a dialable
// address.
//
// # Resolving
//
// Resolver turns a peer identity into a host:port address by browsing
// the local network. It plugs into netlink.Connector, so a supervisor
// can reconnect to a peer whose address changes between attempts.
package discovery
