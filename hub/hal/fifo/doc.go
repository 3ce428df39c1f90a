// Package fifo provides a named-pipe transport for the psh hub.
//
// It is meant for simulation and testing: the host opens a [Transport]
// and a simulated sensor hub opens an [Endpoint] on the same directory.
//
//	/tmp/psh/
//	├── host_to_fw    # fragments, host → firmware
//	└── fw_to_host    # frames and doorbells, firmware → host
//
// # Protocol
//
// Each message uses a simple framing protocol:
//
//	[1 byte: message type][2 bytes: length][N bytes: payload]
//
// Message types:
//   - 0x01: fragment, payload is the channel byte and the 8-byte wire word
//   - 0x02: frame, payload is a response envelope
//   - 0x03: doorbell, no payload
//
// # Usage
//
//	ep, err := fifo.Listen(dir) // firmware side
//	tr, err := fifo.Dial(dir)   // host side
//	h := hub.New(hub.DefaultConfig(), tr, nil)
//
// Both ends open the pipes read-write, so either may start first.
package fifo
