// Package fifo provides a fixed-capacity byte ring buffer over
// caller-supplied storage, meant to decouple an interrupt-style producer
// from a polling consumer.
package fifo

import (
	"math"

	"go.uber.org/atomic"
)

// maxStorage is the largest capacity a 32-bit index can address.
var maxStorage uint64 = math.MaxUint32

// RingBuffer is a circular byte FIFO operating on borrowed storage. It never
// allocates: the capacity is len(storage) and one slot is always left unused,
// so at most Size()-1 bytes are held and equal indices mean empty.
//
// Concurrency contract: exactly one writer (Write, Put) and one reader (Read,
// Get, ReadBlock, Consume) may run at the same time, for example an interrupt
// handler and a main loop. Both indices live in one atomic word, so either
// side always observes a consistent pair. The writer only advances the write
// half and the reader only advances the read half, each after its copy is
// done. The one exception is a drain: the reader rewinds both indices to
// zero in a single step, and only if the writer has not moved since the
// reader looked. This is not a general concurrent queue: two writers or two
// readers are undefined. Init must only be called while neither side is
// active.
//
// The zero value is an unbound buffer on which every operation is a no-op.
type RingBuffer struct {
	buf []byte
	pos atomic.Uint64 // write index in the high half, read index in the low
}

// New returns a ring buffer bound to buf.
func New(buf []byte) *RingBuffer {
	rb := &RingBuffer{}
	rb.Init(buf)
	return rb
}

// Init binds buf as backing storage and resets both indices, discarding
// anything buffered. Blocks previously returned by ReadBlock become invalid.
// Storage beyond 4 GiB - 1 is not used.
func (rb *RingBuffer) Init(buf []byte) {
	if uint64(len(buf)) > maxStorage {
		buf = buf[:maxStorage]
	}
	rb.buf = buf
	rb.pos.Store(0)
}

// Size returns the capacity of the backing storage in bytes.
func (rb *RingBuffer) Size() int {
	return len(rb.buf)
}

// Used returns how many bytes are buffered.
func (rb *RingBuffer) Used() int {
	return rb.used(rb.indices())
}

// Free returns how many bytes can be written before the buffer is full.
func (rb *RingBuffer) Free() int {
	return rb.free(rb.indices())
}

// Write copies as much of p as fits and returns the number of bytes written.
func (rb *RingBuffer) Write(p []byte) int {
	for {
		s := rb.pos.Load()
		w, r := unpack(s)
		n := min(len(p), rb.free(w, r))
		if n == 0 {
			return 0
		}

		first := min(n, len(rb.buf)-w)
		copy(rb.buf[w:w+first], p[:first])
		copy(rb.buf, p[first:n])

		if rb.publishWrite(s, rb.wrap(w+n)) {
			return n
		}
	}
}

// Put stores a single byte. It returns false if the buffer is full.
func (rb *RingBuffer) Put(c byte) bool {
	for {
		s := rb.pos.Load()
		w, r := unpack(s)
		if rb.free(w, r) == 0 {
			return false
		}
		rb.buf[w] = c
		if rb.publishWrite(s, rb.wrap(w+1)) {
			return true
		}
	}
}

// Read copies up to len(p) buffered bytes into p and returns the number of
// bytes read.
func (rb *RingBuffer) Read(p []byte) int {
	w, r := rb.indices()
	n := min(len(p), rb.used(w, r))
	if n == 0 {
		return 0
	}

	first := min(n, len(rb.buf)-r)
	copy(p[:first], rb.buf[r:r+first])
	copy(p[first:n], rb.buf[:n-first])

	rb.advanceRead(r, n)
	return n
}

// Get removes and returns the oldest byte. It returns (0, false) if the
// buffer is empty.
func (rb *RingBuffer) Get() (byte, bool) {
	w, r := rb.indices()
	if rb.used(w, r) == 0 {
		return 0, false
	}
	c := rb.buf[r]
	rb.advanceRead(r, 1)
	return c, true
}

// ReadBlock returns the longest contiguous run of buffered bytes starting at
// the read position, without consuming it. It never wraps: when the data
// straddles the end of storage, call Consume for the returned block and
// ReadBlock again to get the rest. The result aliases the storage and is only
// valid until the next Consume, Read, Get or Init. It is nil when empty.
func (rb *RingBuffer) ReadBlock() []byte {
	w, r := rb.indices()
	n := rb.used(w, r)
	if n == 0 {
		return nil
	}
	n = min(n, len(rb.buf)-r)
	return rb.buf[r : r+n : r+n]
}

// Consume releases n bytes from the front of the buffer, usually after
// processing them in place via ReadBlock. n is clamped to Used().
func (rb *RingBuffer) Consume(n int) {
	w, r := rb.indices()
	n = min(n, rb.used(w, r))
	if n <= 0 {
		return
	}
	rb.advanceRead(r, n)
}

func pack(w, r int) uint64 {
	return uint64(w)<<32 | uint64(r)
}

func unpack(s uint64) (w, r int) {
	return int(s >> 32), int(s & math.MaxUint32)
}

func (rb *RingBuffer) indices() (w, r int) {
	return unpack(rb.pos.Load())
}

func (rb *RingBuffer) used(w, r int) int {
	if w >= r {
		return w - r
	}
	return w + (len(rb.buf) - r)
}

func (rb *RingBuffer) free(w, r int) int {
	if len(rb.buf) == 0 {
		return 0
	}
	return len(rb.buf) - rb.used(w, r) - 1
}

func (rb *RingBuffer) wrap(i int) int {
	if i >= len(rb.buf) {
		return i - len(rb.buf)
	}
	return i
}

// publishWrite moves the write half from its value in s to next, keeping
// whatever read index is current. Reader progress only frees space, so the
// copy stays valid while the write half is unchanged. It fails when the
// reader drained the buffer and rewound it mid-copy; the caller then redoes
// the copy at the new position.
func (rb *RingBuffer) publishWrite(s uint64, next int) bool {
	w, _ := unpack(s)
	for {
		_, r := unpack(s)
		if rb.pos.CompareAndSwap(s, pack(next, r)) {
			return true
		}
		s = rb.pos.Load()
		if cur, _ := unpack(s); cur != w {
			return false
		}
	}
}

// advanceRead moves the read half n bytes past r. If that catches up with
// the current write index, both indices go back to zero in the same step.
// The writer can only move forward meanwhile, so the loop retries with its
// latest index.
func (rb *RingBuffer) advanceRead(r, n int) {
	next := rb.wrap(r + n)
	for {
		s := rb.pos.Load()
		w, _ := unpack(s)
		ns := pack(w, next)
		if next == w {
			ns = 0
		}
		if rb.pos.CompareAndSwap(s, ns) {
			return
		}
	}
}
