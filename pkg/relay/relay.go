package relay

import (
	"sync"
	"sync/atomic"

	"github.com/tether-protocol/tether-go/pkg/link"
)

// DefaultBufferSize is the per-subscriber buffer capacity used when
// none is configured.
const DefaultBufferSize = 32

// Relay fans link notifications out to independent subscribers.
type Relay struct {
	mu sync.Mutex

	// Per-subscriber buffer capacity.
	capacity int

	// Active subscriptions.
	subs map[*Subscription]struct{}

	// Set once by Close; no further publishes or subscriptions.
	closed bool

	// Total notifications published (including those dropped by
	// individual subscribers).
	published atomic.Uint64
}

// Subscription is one subscriber's view of a Relay.
type Subscription struct {
	relay   *Relay
	ch      chan link.Notification
	dropped atomic.Uint64
	removed bool
}

// New creates a Relay with the given per-subscriber buffer capacity.
// A capacity <= 0 selects DefaultBufferSize.
func New(capacity int) *Relay {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Relay{
		capacity: capacity,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber. If the Relay is already
// closed, the returned subscription's channel is closed immediately.
func (r *Relay) Subscribe() *Subscription {
	s := &Subscription{relay: r}

	r.mu.Lock()
	defer r.mu.Unlock()

	s.ch = make(chan link.Notification, r.capacity)
	if r.closed {
		s.removed = true
		close(s.ch)
		return s
	}

	r.subs[s] = struct{}{}
	return s
}

// Publish delivers a notification to every subscriber. A subscriber
// whose buffer is full loses its oldest buffered notification.
// Publishing on a closed Relay is a no-op.
func (r *Relay) Publish(n link.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.published.Add(1)

	for s := range r.subs {
		select {
		case s.ch <- n:
		default:
			// Buffer full: drop the oldest, then retry. Only the
			// publisher sends on s.ch and we hold the lock, so the
			// retry cannot find the buffer full again.
			select {
			case <-s.ch:
				s.dropped.Add(1)
			default:
			}
			select {
			case s.ch <- n:
			default:
			}
		}
	}
}

// Close permanently closes the Relay and all subscriber channels.
// Safe to call more than once.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	for s := range r.subs {
		s.removed = true
		close(s.ch)
	}
	r.subs = nil
}

// Closed reports whether the Relay has been closed.
func (r *Relay) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// SubscriberCount returns the number of active subscribers.
func (r *Relay) SubscriberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Published returns the total number of notifications published.
func (r *Relay) Published() uint64 {
	return r.published.Load()
}

// C returns the subscriber's notification channel. The channel is
// closed when the subscription is cancelled or the Relay is closed.
func (s *Subscription) C() <-chan link.Notification {
	return s.ch
}

// Dropped returns the number of notifications this subscriber lost to
// buffer overflow.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Cancel removes the subscription and closes its channel. Safe to
// call more than once.
func (s *Subscription) Cancel() {
	s.relay.mu.Lock()
	defer s.relay.mu.Unlock()

	if s.removed {
		return
	}
	s.removed = true
	delete(s.relay.subs, s)
	close(s.ch)
}
