package ring

import "sync"

// Cursor is a read position over a Buffer. Each streaming client gets its own
// cursor so viewers progress at their own pace without stealing frames from
// each other.
//
// A cursor remembers the sequence number of the last frame it returned.
// When the writer laps it, Next skips ahead to the oldest frame still held
// and the skipped frames are counted in Dropped.
type Cursor struct {
	mu      sync.Mutex
	buf     *Buffer
	seq     uint64
	dropped uint64
}

// Next returns the next frame for this cursor, or false if none is available.
// It never blocks.
func (c *Cursor) Next() (*Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.buf
	b.mu.RLock()
	defer b.mu.RUnlock()

	if c.seq >= b.seq {
		return nil, false
	}

	next := c.seq + 1
	if lo := b.oldest(); next < lo {
		c.dropped += lo - next
		next = lo
	}
	if next > b.seq {
		// everything newer was discarded by Reset
		c.seq = b.seq
		return nil, false
	}

	c.seq = next
	return b.slots[b.slotIndex(next)], true
}

// Pending returns how many frames Next would return before catching up.
func (c *Cursor) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.buf
	b.mu.RLock()
	defer b.mu.RUnlock()

	from := c.seq
	if lo := b.oldest(); lo > 0 && lo-1 > from {
		from = lo - 1
	}
	if b.seq <= from {
		return 0
	}
	return int(b.seq - from)
}

// Dropped returns the number of frames this cursor missed because the
// writer overwrote them before they were read.
func (c *Cursor) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Seq returns the sequence number of the last frame returned by Next.
func (c *Cursor) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}
