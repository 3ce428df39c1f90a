package lbuf

import (
	"encoding/binary"

	"github.com/ardnew/psh/pkg"
)

// Cell header signs.
const (
	CellSign    uint16 = 0x4853 // a valid cell follows
	DiscardSign uint16 = 0x4944 // firmware wrapped; restart at offset 0
)

// Geometry.
const (
	HeaderSize  = 4      // sign (2) + length (2)
	MaxCellSize = 4096   // largest cell payload accepted
	MaxRegion   = 0xFFFF // offsets are 16 bits
)

// Header is the cell header firmware writes at every frame boundary.
type Header struct {
	Sign   uint16
	Length uint16
}

// ParseHeader decodes a cell header. Returns false if data is too short.
func ParseHeader(data []byte, out *Header) bool {
	if len(data) < HeaderSize {
		return false
	}
	out.Sign = binary.LittleEndian.Uint16(data[0:2])
	out.Length = binary.LittleEndian.Uint16(data[2:4])
	return true
}

// MarshalTo writes the header to buf.
// Returns the number of bytes written (4), or 0 if buf is too small.
func (h *Header) MarshalTo(buf []byte) int {
	if len(buf) < HeaderSize {
		return 0
	}
	binary.LittleEndian.PutUint16(buf[0:2], h.Sign)
	binary.LittleEndian.PutUint16(buf[2:4], h.Length)
	return HeaderSize
}

// CellSize returns the space a cell with a payload of n bytes occupies.
func CellSize(n int) int {
	return align4(n) + HeaderSize
}

func align4(n int) int {
	return (n + 3) &^ 3
}

// Buffer reads cells from a firmware-owned ring. The backing memory is
// borrowed; the reader never writes to it.
//
// A frame returned by ReadNext stays checked out until the next call,
// which is the caller's signal that it is done with it. Buffer is not
// safe for concurrent use.
type Buffer struct {
	mem        []byte
	length     uint16
	head       uint16
	tail       uint16
	inReading  bool
	cellSize   int // size of the checked-out cell
	onConsumed func(head uint16)
}

// New creates a reader bound to mem.
func New(mem []byte, onConsumed func(head uint16)) *Buffer {
	b := &Buffer{}
	b.Init(mem, onConsumed)
	return b
}

// Init binds the reader to a memory region and an optional callback that
// is told how far the host has consumed. Offsets are reset. Memory past
// MaxRegion is not addressable and is ignored.
func (b *Buffer) Init(mem []byte, onConsumed func(head uint16)) {
	if len(mem) > MaxRegion {
		pkg.LogWarn(pkg.ComponentLoopBuf, "region truncated",
			"size", len(mem), "max", MaxRegion)
		mem = mem[:MaxRegion]
	}
	b.mem = mem
	b.length = uint16(len(mem))
	b.onConsumed = onConsumed
	b.Reset()
}

// SetOnConsumed replaces the consumption callback. nil disables it.
func (b *Buffer) SetOnConsumed(fn func(head uint16)) {
	b.onConsumed = fn
}

// Reset rewinds the reader to offset 0 and drops any checked-out frame.
func (b *Buffer) Reset() {
	b.head = 0
	b.tail = 0
	b.inReading = false
}

// Head returns the offset of the next cell header.
func (b *Buffer) Head() uint16 { return b.head }

// Tail returns the offset up to which cells have been consumed.
func (b *Buffer) Tail() uint16 { return b.tail }

// Len returns the size of the backing region.
func (b *Buffer) Len() int { return int(b.length) }

func (b *Buffer) header(off uint16, h *Header) bool {
	if int(off)+HeaderSize > int(b.length) {
		return false
	}
	return ParseHeader(b.mem[off:], h)
}

// ReadNext returns the next cell payload. The returned slice aliases the
// backing memory and is valid until the following call.
func (b *Buffer) ReadNext() ([]byte, bool) {
	var h Header

	if b.inReading {
		next := int(b.head) + b.cellSize
		if next > int(b.length) {
			next = int(b.length)
		}
		b.head = uint16(next)
		b.tail = b.head
		b.inReading = false
	}

	ok := b.header(b.head, &h)
	if ok && h.Sign == DiscardSign {
		b.head = 0
		b.tail = 0
		ok = b.header(b.head, &h)
	}

	var frame []byte
	if ok && h.Sign == CellSign {
		start := int(b.head) + HeaderSize
		switch {
		case h.Length > MaxCellSize:
			pkg.LogWarn(pkg.ComponentLoopBuf, "oversized cell dropped",
				"offset", b.head, "length", h.Length)
		case start+int(h.Length) > int(b.length):
			pkg.LogWarn(pkg.ComponentLoopBuf, "cell exceeds region",
				"offset", b.head, "length", h.Length)
		default:
			frame = b.mem[start : start+int(h.Length)]
			b.cellSize = CellSize(int(h.Length))
			b.inReading = true
		}
	}

	if !b.inReading && b.onConsumed != nil && b.head != 0 {
		b.onConsumed(b.head)
	}

	if !b.inReading {
		return nil, false
	}
	return frame, true
}
