package circ

import (
	"sync"
	"sync/atomic"

	"github.com/ardnew/psh/pkg"
)

// Size is the capacity of every circular buffer in bytes. It must be a
// power of two.
const Size = 64 * 1024

const mask = Size - 1

// count returns the number of readable bytes.
func count(head, tail uint32) uint32 {
	return (head - tail) & mask
}

// space returns the number of writable bytes. One slot always stays empty.
func space(head, tail uint32) uint32 {
	return (tail - head - 1) & mask
}

// copyIn writes p at head, wrapping at the end of mem.
func copyIn(mem []byte, head uint32, p []byte) uint32 {
	n := copy(mem[head:], p)
	copy(mem, p[n:])
	return (head + uint32(len(p))) & mask
}

// copyOut reads len(p) bytes at tail, wrapping at the end of mem.
func copyOut(mem []byte, tail uint32, p []byte) uint32 {
	n := copy(p, mem[tail:])
	copy(p[n:], mem)
	return (tail + uint32(len(p))) & mask
}

// Buffer is a single-producer single-consumer byte ring. Put and Get may
// run concurrently with each other without a lock: each side only moves
// its own offset.
type Buffer struct {
	mem  []byte
	head atomic.Uint32
	tail atomic.Uint32
}

// New allocates a buffer of Size bytes.
func New() *Buffer {
	return &Buffer{mem: make([]byte, Size)}
}

// Reset empties the buffer. It must not race with Put or Get.
func (b *Buffer) Reset() {
	b.head.Store(0)
	b.tail.Store(0)
}

// Len returns the number of bytes available to Get.
func (b *Buffer) Len() int {
	return int(count(b.head.Load(), b.tail.Load()))
}

// Space returns the number of bytes Put can accept.
func (b *Buffer) Space() int {
	return int(space(b.head.Load(), b.tail.Load()))
}

// Put appends p. If p does not fit, nothing is written and Put returns
// false; the producer is never blocked.
func (b *Buffer) Put(p []byte) bool {
	head := b.head.Load()
	if int(space(head, b.tail.Load())) < len(p) {
		pkg.LogDebug(pkg.ComponentCirc, "data dropped", "size", len(p))
		return false
	}
	b.head.Store(copyIn(b.mem, head, p))
	return true
}

// Get copies up to len(p) bytes into p and returns the count, 0 if empty.
func (b *Buffer) Get(p []byte) int {
	tail := b.tail.Load()
	n := int(count(b.head.Load(), tail))
	if n > len(p) {
		n = len(p)
	}
	if n == 0 {
		return 0
	}
	b.tail.Store(copyOut(b.mem, tail, p[:n]))
	return n
}

// DebugBuffer is a byte ring for trace text. It makes room for new text
// by evicting whole old lines, and is safe for concurrent use.
type DebugBuffer struct {
	mu   sync.Mutex
	mem  []byte
	head uint32
	tail uint32
}

// NewDebug allocates a debug buffer of Size bytes.
func NewDebug() *DebugBuffer {
	return &DebugBuffer{mem: make([]byte, Size)}
}

// Reset empties the buffer.
func (b *DebugBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head, b.tail = 0, 0
}

// Len returns the number of bytes available to Get.
func (b *DebugBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(count(b.head, b.tail))
}

// Put appends p only if it fits, like Buffer.Put.
func (b *DebugBuffer) Put(p []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(space(b.head, b.tail)) < len(p) {
		return false
	}
	b.head = copyIn(b.mem, b.head, p)
	return true
}

// PutDiscard appends p, evicting the oldest lines until it fits. After
// an eviction the tail sits one byte past a newline, or at head if every
// byte was evicted. Text larger than the buffer can ever hold is dropped.
func (b *DebugBuffer) PutDiscard(p []byte) bool {
	if len(p) > Size-1 {
		pkg.LogWarn(pkg.ComponentCirc, "trace text larger than buffer", "size", len(p))
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if free := int(space(b.head, b.tail)); free < len(p) {
		b.evict(uint32(len(p) - free))
	}
	b.head = copyIn(b.mem, b.head, p)
	return true
}

// evict drops at least need bytes and then up to the next newline.
// The scan never passes head, so it ends within one traversal.
func (b *DebugBuffer) evict(need uint32) {
	used := count(b.head, b.tail)
	if need >= used {
		b.tail = b.head
		return
	}
	b.tail = (b.tail + need) & mask
	for b.tail != b.head {
		c := b.mem[b.tail]
		b.tail = (b.tail + 1) & mask
		if c == '\n' {
			return
		}
	}
}

// Get copies up to len(p) bytes into p and returns the count.
func (b *DebugBuffer) Get(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := int(count(b.head, b.tail))
	if n > len(p) {
		n = len(p)
	}
	if n == 0 {
		return 0
	}
	b.tail = copyOut(b.mem, b.tail, p[:n])
	return n
}

// Write implements io.Writer on top of PutDiscard. It never fails.
func (b *DebugBuffer) Write(p []byte) (int, error) {
	b.PutDiscard(p)
	return len(p), nil
}
