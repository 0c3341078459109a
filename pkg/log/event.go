package log

import (
	"time"
)

// Event represents a supervisor lifecycle event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SupervisorID uniquely identifies the supervisor run (UUID).
	SupervisorID string `cbor:"2,keyasint"`

	// PeerID is the supervised peer's identity.
	PeerID string `cbor:"3,keyasint,omitempty"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Type-specific payload (one of these will be set).
	StateChange  *StateChangeEvent  `cbor:"5,keyasint,omitempty"`  // Lifecycle state transitions
	Attempt      *AttemptEvent      `cbor:"6,keyasint,omitempty"`  // Attempt completion accounting
	Notification *NotificationEvent `cbor:"7,keyasint,omitempty"`  // Relayed notifications
	Error        *ErrorEventData    `cbor:"8,keyasint,omitempty"`  // Errors
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a lifecycle state transition.
	CategoryState Category = 0
	// CategoryAttempt indicates a completed connection attempt.
	CategoryAttempt Category = 1
	// CategoryNotification indicates a relayed link notification.
	CategoryNotification Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryAttempt:
		return "ATTEMPT"
	case CategoryNotification:
		return "NOTIFICATION"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures a lifecycle state transition.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// AttemptEvent captures the outcome of one completed attempt
// iteration.
type AttemptEvent struct {
	// Number is the attempt counter value for this iteration.
	Number uint64 `cbor:"1,keyasint"`

	// Connected indicates whether the attempt reached the connected
	// phase before ending.
	Connected bool `cbor:"2,keyasint"`

	// Failure is the attempt failure message (empty for clean drops).
	Failure string `cbor:"3,keyasint,omitempty"`
}

// NotificationEvent captures a notification relayed from the link.
type NotificationEvent struct {
	// Handle is the attribute handle that produced the notification.
	Handle uint16 `cbor:"1,keyasint"`

	// Size is the notification payload size in bytes.
	Size int `cbor:"2,keyasint"`
}

// ErrorEventData captures errors at any point in the lifecycle.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}
