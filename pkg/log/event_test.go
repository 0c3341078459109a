package log

import (
	"testing"
	"time"
)

func TestCategoryString(t *testing.T) {
	tests := []struct {
		category Category
		want     string
	}{
		{CategoryState, "STATE"},
		{CategoryAttempt, "ATTEMPT"},
		{CategoryNotification, "NOTIFICATION"},
		{CategoryError, "ERROR"},
		{Category(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.category.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeDecodeStateEvent(t *testing.T) {
	event := Event{
		Timestamp:    time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC),
		SupervisorID: "3f1a9b2c-0000-4000-8000-000000000001",
		PeerID:       "peer-42",
		Category:     CategoryState,
		StateChange: &StateChangeEvent{
			OldState: "CONNECTING",
			NewState: "CONNECTED",
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}

	if !decoded.Timestamp.Equal(event.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, event.Timestamp)
	}
	if decoded.SupervisorID != event.SupervisorID {
		t.Errorf("SupervisorID = %q, want %q", decoded.SupervisorID, event.SupervisorID)
	}
	if decoded.PeerID != event.PeerID {
		t.Errorf("PeerID = %q, want %q", decoded.PeerID, event.PeerID)
	}
	if decoded.StateChange == nil {
		t.Fatal("StateChange payload lost in round trip")
	}
	if decoded.StateChange.NewState != "CONNECTED" {
		t.Errorf("NewState = %q, want %q", decoded.StateChange.NewState, "CONNECTED")
	}
	if decoded.Attempt != nil || decoded.Error != nil || decoded.Notification != nil {
		t.Error("unset payloads should decode as nil")
	}
}

func TestEncodeDecodeAttemptEvent(t *testing.T) {
	event := Event{
		Timestamp:    time.Now().UTC(),
		SupervisorID: "sup-1",
		Category:     CategoryAttempt,
		Attempt: &AttemptEvent{
			Number:    7,
			Connected: false,
			Failure:   "peer unreachable",
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}

	if decoded.Attempt == nil {
		t.Fatal("Attempt payload lost in round trip")
	}
	if decoded.Attempt.Number != 7 {
		t.Errorf("Number = %d, want 7", decoded.Attempt.Number)
	}
	if decoded.Attempt.Connected {
		t.Error("Connected = true, want false")
	}
	if decoded.Attempt.Failure != "peer unreachable" {
		t.Errorf("Failure = %q, want %q", decoded.Attempt.Failure, "peer unreachable")
	}
}

func TestDecodeEventInvalidData(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Error("DecodeEvent() on garbage should fail")
	}
}
