package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

func writeEvents(t *testing.T, path string, events []Event) {
	t.Helper()

	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	for _, e := range events {
		l.Log(e)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peer.tlog")

	events := []Event{
		{
			Timestamp:    time.Now().UTC(),
			SupervisorID: "sup-1",
			Category:     CategoryState,
			StateChange:  &StateChangeEvent{NewState: "CONNECTING"},
		},
		{
			Timestamp:    time.Now().UTC(),
			SupervisorID: "sup-1",
			Category:     CategoryAttempt,
			Attempt:      &AttemptEvent{Number: 1, Connected: true},
		},
		{
			Timestamp:    time.Now().UTC(),
			SupervisorID: "sup-1",
			Category:     CategoryError,
			Error:        &ErrorEventData{Message: "read failed", Context: "forward"},
		},
	}
	writeEvents(t, path, events)

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer r.Close()

	var got []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		got = append(got, e)
	}

	if len(got) != len(events) {
		t.Fatalf("read %d events, want %d", len(got), len(events))
	}
	for i := range got {
		if got[i].Category != events[i].Category {
			t.Errorf("event %d category = %v, want %v", i, got[i].Category, events[i].Category)
		}
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peer.tlog")

	writeEvents(t, path, []Event{{SupervisorID: "a", Category: CategoryState}})
	writeEvents(t, path, []Event{{SupervisorID: "b", Category: CategoryState}})

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer r.Close()

	count := 0
	for {
		if _, err := r.Next(); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		count++
	}
	if count != 2 {
		t.Errorf("read %d events after append, want 2", count)
	}
}

func TestFileLoggerLogAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peer.tlog")

	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	l.Log(Event{SupervisorID: "late"}) // Must not panic.

	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peer.tlog")

	writeEvents(t, path, []Event{
		{SupervisorID: "sup-1", Category: CategoryState},
		{SupervisorID: "sup-1", Category: CategoryAttempt},
		{SupervisorID: "sup-2", Category: CategoryState},
	})

	cat := CategoryState
	r, err := NewFilteredReader(path, Filter{SupervisorID: "sup-1", Category: &cat})
	if err != nil {
		t.Fatalf("NewFilteredReader() error = %v", err)
	}
	defer r.Close()

	e, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if e.SupervisorID != "sup-1" || e.Category != CategoryState {
		t.Errorf("filtered event = %q/%v", e.SupervisorID, e.Category)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
}
