package supervisor

import (
	"testing"
	"time"
)

func TestBackoffDefaults(t *testing.T) {
	b := NewBackoff()

	if b.Current() != InitialRetryDelay {
		t.Errorf("initial delay = %v, want %v", b.Current(), InitialRetryDelay)
	}
	if b.Attempts() != 0 {
		t.Errorf("attempts = %d, want 0", b.Attempts())
	}
}

func TestBackoffProgression(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{
		Initial:    100 * time.Millisecond,
		Max:        1 * time.Second,
		Multiplier: 2.0,
		Jitter:     0, // deterministic
	})

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1 * time.Second, // capped
		1 * time.Second, // stays capped
	}

	for i, w := range want {
		got := b.Next()
		if got != w {
			t.Errorf("delay %d = %v, want %v", i, got, w)
		}
	}

	if b.Attempts() != len(want) {
		t.Errorf("attempts = %d, want %d", b.Attempts(), len(want))
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{
		Initial:    100 * time.Millisecond,
		Max:        1 * time.Second,
		Multiplier: 2.0,
		Jitter:     0,
	})

	b.Next()
	b.Next()
	b.Reset()

	if b.Attempts() != 0 {
		t.Errorf("attempts after reset = %d, want 0", b.Attempts())
	}
	if got := b.Next(); got != 100*time.Millisecond {
		t.Errorf("delay after reset = %v, want 100ms", got)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{
		Initial:    100 * time.Millisecond,
		Max:        1 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.25,
	})

	base := 100 * time.Millisecond
	maxWithJitter := time.Duration(float64(base) * 1.25)

	for i := 0; i < 50; i++ {
		got := b.Peek()
		if got < base || got > maxWithJitter {
			t.Fatalf("jittered delay %v outside [%v, %v]", got, base, maxWithJitter)
		}
	}
}

func TestBackoffConfigFixups(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{})

	if b.Current() != InitialRetryDelay {
		t.Errorf("zero-value initial = %v, want %v", b.Current(), InitialRetryDelay)
	}

	// Invalid multiplier falls back to the default.
	b = NewBackoffWithConfig(BackoffConfig{Multiplier: 0.5, Jitter: 0})
	b.Next()
	if got := b.Current(); got != time.Duration(float64(InitialRetryDelay)*RetryMultiplier) {
		t.Errorf("delay after one step = %v, want %v", got, 2*InitialRetryDelay)
	}
}
