// Package circ provides the byte rings that stage sensor data and debug
// text between the hub's delivery path and readers.
//
// [Buffer] carries decoded sensor payloads. A write that does not fit is
// dropped whole, since producers run on the delivery path and must never
// block. [DebugBuffer] carries trace text and instead evicts the oldest
// complete lines to make room, so recent diagnostics survive.
//
// Both rings are [Size] bytes and keep one slot empty to tell full from
// empty. Reads never block and return however many bytes are available.
package circ
