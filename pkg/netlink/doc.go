// Package netlink is the reference TCP transport for TETHER links.
//
// It implements link.Connector and link.Link over a length-prefixed
// CBOR stream. A connection starts with a hello/ack handshake
// (optionally authenticated with a pre-shared key), after which the
// initiator issues request/response exchanges and the peer may push
// notifications at any time.
//
// # Wire format
//
// Every message is a CBOR-encoded Envelope inside a frame of the form
//
//	[4-byte big-endian length][CBOR payload]
//
// Envelopes use integer map keys and canonical encoding, so the same
// message always produces the same bytes.
//
// # Peer side
//
// Server accepts incoming links and serves a table of attributes.
// It exists for tests, tooling, and as a template for real peers.
package netlink
