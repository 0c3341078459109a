// Package statevar provides a single-slot observable value with
// conflating watch semantics.
//
// A Var holds exactly one current value. Watchers receive the value
// that is current when they subscribe and every change thereafter; a
// watcher that falls behind skips intermediate values and observes the
// latest one instead. Delivery never blocks the writer.
package statevar

import (
	"context"
	"sync"
)

// Var is an observable value. The zero value is not usable; create
// with New.
type Var[T any] struct {
	mu       sync.Mutex
	value    T
	watchers map[*watcher[T]]struct{}
}

// watcher is a single subscription. ch has capacity 1 so the slot
// always holds the newest undelivered value.
type watcher[T any] struct {
	ch chan T
}

// New creates a Var holding the given initial value.
func New[T any](initial T) *Var[T] {
	return &Var[T]{
		value:    initial,
		watchers: make(map[*watcher[T]]struct{}),
	}
}

// Get returns the current value.
func (v *Var[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// Set replaces the current value and wakes all watchers. A watcher
// that has not consumed the previous value sees it replaced by the
// new one.
func (v *Var[T]) Set(value T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.value = value
	for w := range v.watchers {
		w.deliver(value)
	}
}

// Update applies fn to the current value under the lock and publishes
// the result. Useful for read-modify-write transitions.
func (v *Var[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.value = fn(v.value)
	for w := range v.watchers {
		w.deliver(v.value)
	}
	return v.value
}

// Watch subscribes to value changes. The returned channel immediately
// yields the current value, then the latest value after each change.
// The channel is closed when ctx is cancelled.
func (v *Var[T]) Watch(ctx context.Context) <-chan T {
	w := &watcher[T]{ch: make(chan T, 1)}

	v.mu.Lock()
	v.watchers[w] = struct{}{}
	w.ch <- v.value
	v.mu.Unlock()

	go func() {
		<-ctx.Done()
		v.mu.Lock()
		delete(v.watchers, w)
		v.mu.Unlock()
		close(w.ch)
	}()

	return w.ch
}

// WatcherCount returns the number of active watchers.
func (v *Var[T]) WatcherCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.watchers)
}

// deliver places value in the watcher's slot, displacing an unread
// value if present. Called with the Var's lock held, so at most one
// deliver runs at a time and the drain-then-send pair cannot race
// with another sender.
func (w *watcher[T]) deliver(value T) {
	select {
	case w.ch <- value:
	default:
		select {
		case <-w.ch:
		default:
		}
		select {
		case w.ch <- value:
		default:
		}
	}
}
