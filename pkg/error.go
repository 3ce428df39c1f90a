package pkg

import (
	"errors"
	"fmt"
)

// Sensor hub protocol errors.
var (
	// ErrTimeout indicates no acknowledgment arrived within the wait bound.
	ErrTimeout = errors.New("command timeout")

	// ErrIO indicates a transport failure while sending a fragment.
	ErrIO = errors.New("transport I/O error")

	// ErrRemote indicates the firmware acknowledged a command with an error code.
	ErrRemote = errors.New("remote error")

	// ErrMalformed indicates an inbound frame that could not be decoded.
	ErrMalformed = errors.New("malformed frame")

	// ErrNotRunning indicates the hub receive loop is not running.
	ErrNotRunning = errors.New("not running")

	// ErrAlreadyRunning indicates the hub receive loop is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrClosed indicates the transport has been closed.
	ErrClosed = errors.New("transport closed")

	// ErrNotConnected indicates the peer end of a transport is absent.
	ErrNotConnected = errors.New("not connected")

	// ErrInvalidParameter indicates an invalid argument.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrRegistryFull indicates the sensor registry cannot take more entries.
	ErrRegistryFull = errors.New("sensor registry full")

	// ErrTooLarge indicates a payload that exceeds its container.
	ErrTooLarge = errors.New("payload too large")
)

// RemoteError carries the result code the firmware returned for a command.
type RemoteError struct {
	Cmd  uint8 // command id the ack answered
	Code int32 // firmware result code
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("%v: command %d returned %d", ErrRemote, e.Cmd, e.Code)
}

// Is reports whether target is ErrRemote.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}
