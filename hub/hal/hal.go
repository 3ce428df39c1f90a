package hal

import (
	"context"
)

// Channel identifies a host-to-firmware IPC channel.
type Channel uint8

// Channels exposed by the sensor hub.
const (
	Channel0 Channel = iota // commands and notifications
	Channel1
	Channel2
	Channel3
)

// NumChannels is the number of host-to-firmware channels.
const NumChannels = 4

// FragmentPayload is the number of command bytes one fragment carries.
const FragmentPayload = 7

// FragmentWireSize is the size of a fragment on the wire.
const FragmentWireSize = 8

// Fragment control byte bits.
const (
	ctlLenMask  = 0x07
	ctlContinue = 0x80
)

// Fragment is one piece of a command as it crosses the IPC channel.
type Fragment struct {
	Data [FragmentPayload]byte // payload, Len bytes valid
	Len  uint8                 // number of valid bytes (1-7)
	More bool                  // another fragment of the same command follows
}

// Bytes returns the valid payload.
func (f *Fragment) Bytes() []byte {
	return f.Data[:f.Len]
}

// MarshalTo writes the 8-byte wire word to buf: payload bytes 0-2, the
// control byte, then payload bytes 3-6.
// Returns the number of bytes written (8), or 0 if buf is too small.
func (f *Fragment) MarshalTo(buf []byte) int {
	if len(buf) < FragmentWireSize {
		return 0
	}
	ctl := f.Len & ctlLenMask
	if f.More {
		ctl |= ctlContinue
	}
	copy(buf[0:3], f.Data[0:3])
	buf[3] = ctl
	copy(buf[4:8], f.Data[3:7])
	return FragmentWireSize
}

// ParseFragment decodes an 8-byte wire word into out.
// Returns false if data is too short or the length is invalid.
func ParseFragment(data []byte, out *Fragment) bool {
	if len(data) < FragmentWireSize {
		return false
	}
	ctl := data[3]
	n := ctl & ctlLenMask
	if n == 0 {
		return false
	}
	copy(out.Data[0:3], data[0:3])
	copy(out.Data[3:7], data[4:8])
	out.Len = n
	out.More = ctl&ctlContinue != 0
	return true
}

// EventKind classifies what the firmware signalled.
type EventKind uint8

// Event kinds.
const (
	EventFrame    EventKind = iota // a response envelope pushed over IPC
	EventDoorbell                  // new cells are available in the loop buffer
)

// String returns a human-readable event kind.
func (k EventKind) String() string {
	switch k {
	case EventFrame:
		return "frame"
	case EventDoorbell:
		return "doorbell"
	default:
		return "unknown"
	}
}

// Event is one inbound notification from the firmware.
type Event struct {
	Kind EventKind
	Data []byte // envelope bytes for EventFrame, owned by the receiver
}

// Transport defines the IPC contract between the hub core and the
// platform that talks to the sensor hub.
//
// Send and Receive may be called concurrently with each other. Concurrent
// Send calls need not be supported; the hub serializes them.
type Transport interface {
	// Send transmits one fragment on ch.
	Send(ctx context.Context, ch Channel, f *Fragment) error

	// Receive blocks until the firmware signals an event, the context is
	// cancelled, or the transport is closed.
	Receive(ctx context.Context) (Event, error)

	// Close releases the transport. Blocked Receive calls return.
	Close() error
}

// FirmwareLoader loads and hands off a firmware image. The hub triggers it
// during a reload and waits for the firmware to report back.
type FirmwareLoader interface {
	SetupFirmware(ctx context.Context) error
}

// FirmwareLoaderFunc adapts a function to FirmwareLoader.
type FirmwareLoaderFunc func(ctx context.Context) error

// SetupFirmware calls f(ctx).
func (f FirmwareLoaderFunc) SetupFirmware(ctx context.Context) error {
	return f(ctx)
}
