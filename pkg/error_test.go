package pkg

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	errs := []error{
		ErrTimeout,
		ErrIO,
		ErrRemote,
		ErrMalformed,
		ErrNotRunning,
		ErrAlreadyRunning,
		ErrClosed,
		ErrNotConnected,
		ErrInvalidParameter,
		ErrRegistryFull,
		ErrTooLarge,
	}

	for i, err1 := range errs {
		if err1 == nil {
			t.Errorf("error %d is nil", i)
			continue
		}
		for j, err2 := range errs {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("error %d and %d are equal", i, j)
			}
		}
	}
}

func TestRemoteError(t *testing.T) {
	err := error(&RemoteError{Cmd: 13, Code: -5})

	if !errors.Is(err, ErrRemote) {
		t.Error("RemoteError does not match ErrRemote")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("RemoteError matches ErrTimeout")
	}

	wrapped := fmt.Errorf("version: %w", err)
	var re *RemoteError
	if !errors.As(wrapped, &re) {
		t.Fatal("errors.As failed on wrapped RemoteError")
	}
	if re.Cmd != 13 || re.Code != -5 {
		t.Errorf("RemoteError = %+v, want Cmd 13 Code -5", re)
	}
	if got, want := err.Error(), "remote error: command 13 returned -5"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err     error
		wantMsg string
	}{
		{ErrTimeout, "command timeout"},
		{ErrIO, "transport I/O error"},
		{ErrMalformed, "malformed frame"},
		{ErrRegistryFull, "sensor registry full"},
	}

	for _, tt := range tests {
		t.Run(tt.wantMsg, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("error.Error() = %v, want %v", got, tt.wantMsg)
			}
		})
	}
}
