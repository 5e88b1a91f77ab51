// Package ring provides the fixed-capacity frame ring buffer that sits
// between a frame producer (an encoder callback) and streaming consumers.
//
// The producer pushes raw encoded bytes with Write. A chunk that begins with
// Marker closes the frame being accumulated and starts the next one.
// Completed frames are stored in N slots addressed modulo N; once the buffer
// wraps, the oldest frame is overwritten. Consumers never block the producer:
// a slow consumer silently misses frames.
package ring

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// DefaultCapacity is the number of frame slots used when no capacity is configured.
const DefaultCapacity = 120

// Marker is the frame-start signature (the JPEG Start-Of-Image marker).
var Marker = []byte{0xFF, 0xD8}

// ErrInvalidCapacity is returned by New when capacity is not positive.
var ErrInvalidCapacity = errors.New("ring capacity must be a positive integer")

// Frame is one completed encoded image. A Frame is immutable once stored:
// readers may keep it after its slot has been overwritten.
type Frame struct {
	// Data holds the frame bytes, starting with Marker for any frame that
	// was opened by a marker chunk.
	Data []byte

	// Seq is the 1-based production sequence number.
	Seq uint64

	// Time is when the frame was completed.
	Time time.Time
}

// Len returns the frame size in bytes.
func (f *Frame) Len() int {
	return len(f.Data)
}

// Payload returns the bytes following the boundary marker.
func (f *Frame) Payload() []byte {
	if bytes.HasPrefix(f.Data, Marker) {
		return f.Data[len(Marker):]
	}
	return f.Data
}

// Stats is a point-in-time snapshot of buffer counters.
type Stats struct {
	Capacity int
	Frames   uint64 // frames completed since creation
	Bytes    uint64 // bytes accepted by Write
	Pending  int    // bytes of the in-progress frame
}

// Buffer is the frame ring buffer.
//
// Exactly one goroutine may call Write. Any number of goroutines may read
// through NextFrame, cursors, Latest and Notify.
type Buffer struct {
	// wmu serialises the producer side (acc, started).
	wmu     sync.Mutex
	acc     bytes.Buffer
	started bool

	mu     sync.RWMutex
	slots  []*Frame
	seq    uint64 // Seq of the most recently completed frame
	floor  uint64 // frames with Seq <= floor were discarded by Reset
	bytes  uint64
	notify chan struct{}

	// def is the cursor behind NextFrame.
	def Cursor
}

// New creates a Buffer with the given number of slots.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	b := &Buffer{
		slots:  make([]*Frame, capacity),
		notify: make(chan struct{}),
	}
	b.def.buf = b
	return b, nil
}

// MustNew is like New but panics on an invalid capacity.
func MustNew(capacity int) *Buffer {
	b, err := New(capacity)
	if err != nil {
		panic(err)
	}
	return b
}

// Capacity returns the number of slots.
func (b *Buffer) Capacity() int {
	return len(b.slots)
}

// Write accepts the next chunk of the encoder byte stream. If chunk starts
// with Marker, the accumulated bytes are stored as a completed frame and a
// new frame is started; the chunk is then appended to the new frame.
//
// Bytes received before the first marker are a partial leading fragment and
// are dropped, never stored. Write never blocks on readers and always
// returns len(chunk), nil, so a Buffer can be used as an io.Writer.
func (b *Buffer) Write(chunk []byte) (int, error) {
	b.wmu.Lock()
	defer b.wmu.Unlock()

	if bytes.HasPrefix(chunk, Marker) {
		if b.started {
			b.commit(bytes.Clone(b.acc.Bytes()))
		}
		b.started = true
		b.acc.Reset()
	}
	b.acc.Write(chunk)

	b.mu.Lock()
	b.bytes += uint64(len(chunk))
	b.mu.Unlock()
	return len(chunk), nil
}

// OnData is Write without return values, usable as a producer callback.
func (b *Buffer) OnData(chunk []byte) {
	b.Write(chunk)
}

// commit stores data as the next frame and wakes waiters.
func (b *Buffer) commit(data []byte) {
	if data == nil {
		data = []byte{}
	}

	b.mu.Lock()
	b.seq++
	f := &Frame{Data: data, Seq: b.seq, Time: time.Now()}
	b.slots[b.slotIndex(b.seq)] = f
	close(b.notify)
	b.notify = make(chan struct{})
	b.mu.Unlock()
}

func (b *Buffer) slotIndex(seq uint64) int {
	return int(seq % uint64(len(b.slots)))
}

// oldest returns the Seq of the oldest frame still held. Must hold mu.
func (b *Buffer) oldest() uint64 {
	lo := b.floor + 1
	if n := uint64(len(b.slots)); b.seq >= n && b.seq-n+1 > lo {
		lo = b.seq - n + 1
	}
	return lo
}

// NextFrame returns the next unread frame on the buffer's built-in cursor,
// or false when the cursor has caught up with the writer. Frames are
// returned in production order and never twice.
//
// The built-in cursor is shared: concurrent consumers calling NextFrame
// split the frames between them. Use NewCursor to give each consumer its own
// read position.
func (b *Buffer) NextFrame() (*Frame, bool) {
	return b.def.Next()
}

// NewCursor returns an independent read position starting at the current
// write position, so only frames completed afterwards are returned.
func (b *Buffer) NewCursor() *Cursor {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return &Cursor{buf: b, seq: b.seq}
}

// Latest returns the most recently completed frame without moving any cursor.
func (b *Buffer) Latest() (*Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.seq == 0 || b.seq <= b.floor {
		return nil, false
	}
	return b.slots[b.slotIndex(b.seq)], true
}

// Notify returns a channel that is closed when the next frame completes.
// Take the channel before polling a cursor so a frame completed between the
// poll and the wait is not missed.
func (b *Buffer) Notify() <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.notify
}

// Reset discards stored frames and the in-progress frame. Sequence numbers
// keep increasing, so existing cursors stay valid and simply find nothing
// older than the reset.
func (b *Buffer) Reset() {
	b.wmu.Lock()
	defer b.wmu.Unlock()

	b.acc.Reset()
	b.started = false

	b.mu.Lock()
	for i := range b.slots {
		b.slots[i] = nil
	}
	b.floor = b.seq
	b.mu.Unlock()
}

// Stats returns current counters.
func (b *Buffer) Stats() Stats {
	b.wmu.Lock()
	pending := b.acc.Len()
	b.wmu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		Capacity: len(b.slots),
		Frames:   b.seq,
		Bytes:    b.bytes,
		Pending:  pending,
	}
}
