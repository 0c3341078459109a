// Package relay provides a bounded multi-consumer broadcast buffer for
// link notifications.
//
// A Relay has one producer (whichever link is currently held by the
// supervisor) and any number of independent subscribers. Each
// subscriber owns a fixed-capacity buffer; when a subscriber falls
// behind, the oldest buffered notification is dropped to make room for
// the newest. Publishing therefore never blocks, regardless of
// consumer pace.
//
// A Relay outlives individual connection attempts: the supervisor
// rebinds the producer on every successful attempt and closes the
// Relay only when the supervisor itself is torn down. Subscribers that
// join after close observe an immediately-closed channel.
package relay
