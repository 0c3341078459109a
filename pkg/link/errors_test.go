package link

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestRejectedError(t *testing.T) {
	cause := errors.New("invalid peer address")
	err := &RejectedError{Cause: cause}

	if !IsRejected(err) {
		t.Error("IsRejected should match RejectedError")
	}
	if IsConnectFailed(err) {
		t.Error("IsConnectFailed should not match RejectedError")
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should expose the cause")
	}

	// Classification survives wrapping.
	wrapped := fmt.Errorf("attempt 3: %w", err)
	if !IsRejected(wrapped) {
		t.Error("IsRejected should match a wrapped RejectedError")
	}
}

func TestConnectFailedError(t *testing.T) {
	cause := errors.New("peer unreachable")
	err := &ConnectFailedError{Cause: cause}

	if !IsConnectFailed(err) {
		t.Error("IsConnectFailed should match ConnectFailedError")
	}
	if IsRejected(err) {
		t.Error("IsRejected should not match ConnectFailedError")
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should expose the cause")
	}
}

func TestClassificationOfPlainErrors(t *testing.T) {
	plain := errors.New("something else")
	if IsRejected(plain) || IsConnectFailed(plain) {
		t.Error("plain errors should not classify")
	}
	if IsRejected(nil) || IsConnectFailed(nil) {
		t.Error("nil should not classify")
	}
}

func TestWriteModeString(t *testing.T) {
	tests := []struct {
		mode WriteMode
		want string
	}{
		{WriteAcked, "ACKED"},
		{WriteUnacked, "UNACKED"},
		{WriteMode(7), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("WriteMode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestAttrFlags(t *testing.T) {
	flags := AttrRead | AttrNotify

	if flags&AttrRead == 0 {
		t.Error("flags should include AttrRead")
	}
	if flags&AttrNotify == 0 {
		t.Error("flags should include AttrNotify")
	}
	if flags&AttrWrite != 0 {
		t.Error("flags should not include AttrWrite")
	}
}

func TestConnectorFunc(t *testing.T) {
	called := false
	c := ConnectorFunc(func(ctx context.Context, peer PeerID) (Link, error) {
		called = true
		if peer != "peer-x" {
			t.Errorf("peer = %q, want peer-x", peer)
		}
		return nil, &ConnectFailedError{Cause: errors.New("no radio")}
	})

	_, err := c.Connect(context.Background(), "peer-x")
	if !called {
		t.Fatal("adapter did not invoke the wrapped function")
	}
	if !IsConnectFailed(err) {
		t.Errorf("err = %v, want ConnectFailedError", err)
	}
}
