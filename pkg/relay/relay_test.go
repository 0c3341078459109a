package relay

import (
	"fmt"
	"testing"
	"time"

	"github.com/tether-protocol/tether-go/pkg/link"
)

func notif(handle link.Handle, payload string) link.Notification {
	return link.Notification{
		Handle:    handle,
		Payload:   []byte(payload),
		Timestamp: time.Now(),
	}
}

func TestPublishSubscribe(t *testing.T) {
	r := New(8)
	defer r.Close()

	sub := r.Subscribe()

	r.Publish(notif(1, "a"))
	r.Publish(notif(2, "b"))

	got := <-sub.C()
	if got.Handle != 1 || string(got.Payload) != "a" {
		t.Errorf("first notification = %v/%q", got.Handle, got.Payload)
	}
	got = <-sub.C()
	if got.Handle != 2 || string(got.Payload) != "b" {
		t.Errorf("second notification = %v/%q", got.Handle, got.Payload)
	}
}

func TestDropOldestOnOverflow(t *testing.T) {
	r := New(2)
	defer r.Close()

	sub := r.Subscribe()

	r.Publish(notif(1, "oldest"))
	r.Publish(notif(2, "middle"))
	r.Publish(notif(3, "newest")) // Displaces "oldest".

	got := <-sub.C()
	if string(got.Payload) != "middle" {
		t.Errorf("first buffered = %q, want %q", got.Payload, "middle")
	}
	got = <-sub.C()
	if string(got.Payload) != "newest" {
		t.Errorf("second buffered = %q, want %q", got.Payload, "newest")
	}

	if sub.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", sub.Dropped())
	}
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	r := New(4)
	defer r.Close()

	slow := r.Subscribe()
	fast := r.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			r.Publish(notif(link.Handle(i), fmt.Sprintf("n%d", i)))
		}
		close(done)
	}()

	// Drain the fast subscriber while the slow one never reads.
	received := 0
	timeout := time.After(2 * time.Second)
	for received < 100-4 { // May still be buffered, but most must arrive.
		select {
		case <-fast.C():
			received++
		case <-timeout:
			t.Fatalf("fast subscriber stalled after %d notifications", received)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked by slow subscriber")
	}

	if slow.Dropped() == 0 {
		t.Error("slow subscriber should have dropped notifications")
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	r := New(4)
	sub := r.Subscribe()

	r.Close()

	if _, ok := <-sub.C(); ok {
		t.Error("subscriber channel still open after Close")
	}
	if !r.Closed() {
		t.Error("Closed() = false after Close")
	}

	// Second close is a no-op.
	r.Close()
}

func TestSubscribeAfterClose(t *testing.T) {
	r := New(4)
	r.Close()

	sub := r.Subscribe()
	select {
	case _, ok := <-sub.C():
		if ok {
			t.Error("expected closed channel, got a value")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed for post-close subscriber")
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	r := New(4)
	r.Close()

	r.Publish(notif(1, "late")) // Must not panic.

	if r.Published() != 0 {
		t.Errorf("Published() = %d, want 0", r.Published())
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	r := New(4)
	defer r.Close()

	sub := r.Subscribe()
	if r.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", r.SubscriberCount())
	}

	sub.Cancel()
	if r.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", r.SubscriberCount())
	}
	if _, ok := <-sub.C(); ok {
		t.Error("channel still open after Cancel")
	}

	// Cancel twice is safe, including after relay close.
	sub.Cancel()
}

func TestDefaultCapacity(t *testing.T) {
	r := New(0)
	defer r.Close()

	sub := r.Subscribe()
	if cap(sub.ch) != DefaultBufferSize {
		t.Errorf("buffer capacity = %d, want %d", cap(sub.ch), DefaultBufferSize)
	}
}
