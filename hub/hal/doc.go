// Package hal defines the transport abstraction between the psh hub core
// and the platform that carries IPC to the sensor hub.
//
// The hub core implements the command/response protocol, leaving the
// platform to move fragments out and events in.
//
// # Fragments
//
// Commands leave the host in [Fragment]s of up to [FragmentPayload] bytes.
// On the wire each fragment is an 8-byte word; byte 3 of the word holds
// the control byte (payload length and continuation flag):
//
//	[p0][p1][p2][ctl][p3][p4][p5][p6]
//
// # Events
//
// The firmware either pushes a response envelope directly ([EventFrame])
// or rings a doorbell ([EventDoorbell]) telling the host to drain the loop
// buffer.
//
// # Implementations
//
// A named-pipe transport with a simulated firmware end is available in
// [github.com/ardnew/psh/hub/hal/fifo], and a Linux character-device
// transport in [github.com/ardnew/psh/hub/hal/rpmsg].
package hal
