// Package link defines the boundary between the TETHER supervisor and
// the transport that actually carries traffic to a peer.
//
// A Link is an established, peer-specific session exposing
// request/response operations (topology discovery, attribute reads and
// writes, parameter changes, signal strength) and a stream of inbound
// notifications. A Connector produces Links on demand for a given peer
// identity.
//
// # Ownership
//
// A Link is owned exclusively by whoever holds it. The supervisor in
// pkg/supervisor acquires a Link from a Connector at the start of each
// attempt and releases it (via Disconnect) when the attempt ends.
// Implementations must tolerate Disconnect being called while other
// operations are in flight.
//
// # Failure classification
//
// Connect failures are split into two kinds: RejectedError means the
// platform refused the request outright (non-transient, e.g. a
// malformed target) and the caller should not retry; ConnectFailedError
// means a transient failure (peer unreachable, timeout) that is safe to
// retry.
package link
