// Package supervisor keeps a link to a single peer alive.
//
// A Supervisor owns one sequential attempt loop: acquire a link via a
// Connector, hold it until it drops, tear it down within a bounded
// time, and try again. The loop runs until the Supervisor is closed.
//
// # Lifecycle
//
// Observers see exactly one lifecycle phase at a time, in the order
//
//	DISCONNECTED → CONNECTING → (CONNECTED → DISCONNECTING → DISCONNECTED)* → CANCELLED
//
// via Status/WatchStatus. Watching is conflating: a slow watcher skips
// to the latest phase rather than queuing history.
//
// # Stop vs Close
//
// Stop cancels only the attempt currently in flight and returns once
// its teardown has finished; the loop immediately starts the next
// attempt. Close is irreversible: the loop observes cancellation at
// its next suspension point, runs the bounded disconnect shielded from
// that cancellation, and the Supervisor ends in the terminal CANCELLED
// phase with its notification relay closed.
//
// # Pass-through operations
//
// While a link is held, the Supervisor forwards read/write/discovery
// operations to it. When no link is held they fail immediately with
// link.ErrNotReady; callers are expected to watch for CONNECTED and
// retry.
package supervisor
