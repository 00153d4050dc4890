// Package handoff implements the single-producer/single-consumer byte channel
// that decouples decoding from disk writes.
package handoff

import (
	"errors"
	"sync"
)

// ErrCancelled is returned by Push when the channel was cancelled while the
// producer waited for space, or when it is already shut down. The segment
// was not accepted.
var ErrCancelled = errors.New("handoff: cancelled by shutdown")

// Option configures a Channel.
type Option func(*Channel)

// WithRecycler registers fn to receive every segment once all of its bytes
// have been copied out by Pop. Typically a sync.Pool Put.
func WithRecycler(fn func([]byte)) Option {
	return func(c *Channel) {
		c.recycle = fn
	}
}

// Stats is a snapshot of channel activity.
type Stats struct {
	Pending       int    `json:"pending_bytes"`
	PushedBytes   uint64 `json:"pushed_bytes"`
	PoppedBytes   uint64 `json:"popped_bytes"`
	Segments      uint64 `json:"segments"`
	HighWater     int    `json:"high_water_bytes"`
	BlockedPushes uint64 `json:"blocked_pushes"`
	Capacity      int    `json:"capacity_bytes"`
}

// Channel is a lossless FIFO of byte segments.
//
// Semantics:
//   - Push takes ownership of the segment, never drops data
//   - Bounded mode (capacity > 0): Push blocks while pending+len(seg) > capacity
//   - Pop copies across segment boundaries, strict FIFO order
//   - Cancel releases a blocked Push but keeps accepting segments that fit,
//     and Pop keeps waiting for input
//   - Shutdown ends input: Push is refused, Pop keeps returning pending data
//     and reports 0 only once the channel is empty (drain-before-exit)
//
// Thread-safety:
//   - Exactly one producer goroutine calls Push
//   - Exactly one consumer goroutine calls Pop
//   - Cancel, Shutdown, Len and Stats are safe from any goroutine
//   - Shutdown must only be called once the producer has stopped pushing,
//     otherwise its last segments are refused
type Channel struct {
	mu       sync.Mutex
	notEmpty *sync.Cond // Signaled on Push and Shutdown (wakes Pop)
	notFull  *sync.Cond // Signaled on Pop, Cancel and Shutdown (wakes bounded Push)

	segments  [][]byte // FIFO queue, segments[0] partially consumed up to head
	head      int      // Read offset into segments[0]
	pending   int      // Unread bytes across all segments
	capacity  int      // 0 = unbounded
	cancelled bool     // Set by Cancel and Shutdown, never reset
	closed    bool     // Set by Shutdown, never reset

	recycle func([]byte)

	pushedBytes   uint64
	poppedBytes   uint64
	segmentCount  uint64
	highWater     int
	blockedPushes uint64
}

// New creates a channel. capacity is in bytes; 0 means unbounded (limited
// only by memory).
func New(capacity int, opts ...Option) *Channel {
	if capacity < 0 {
		capacity = 0
	}
	c := &Channel{capacity: capacity}
	c.notEmpty = sync.NewCond(&c.mu)
	c.notFull = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Push enqueues seg. The caller MUST NOT touch seg afterwards.
//
// In bounded mode Push blocks until the segment fits. A segment larger than
// the whole capacity is admitted as soon as the channel is empty. If the
// channel is cancelled while waiting, or is already shut down, Push returns
// ErrCancelled and ownership of seg stays with the caller.
func (c *Channel) Push(seg []byte) error {
	if len(seg) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCancelled
	}

	if c.capacity > 0 && !c.fits(len(seg)) {
		c.blockedPushes++
		for !c.fits(len(seg)) {
			if c.cancelled {
				return ErrCancelled
			}
			c.notFull.Wait()
		}
	}

	c.segments = append(c.segments, seg)
	c.pending += len(seg)
	c.pushedBytes += uint64(len(seg))
	c.segmentCount++
	if c.pending > c.highWater {
		c.highWater = c.pending
	}

	c.notEmpty.Signal()
	return nil
}

func (c *Channel) fits(n int) bool {
	return c.pending == 0 || c.pending+n <= c.capacity
}

// Pop copies up to len(dst) bytes into dst and returns the count.
//
// Blocks until at least one byte is pending or Shutdown is called. Returns 0
// only when shutdown is set and nothing is pending.
func (c *Channel) Pop(dst []byte) int {
	if len(dst) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for c.pending == 0 && !c.closed {
		c.notEmpty.Wait()
	}

	n := 0
	for n < len(dst) && len(c.segments) > 0 {
		seg := c.segments[0]
		copied := copy(dst[n:], seg[c.head:])
		n += copied
		c.head += copied

		if c.head == len(seg) {
			c.segments[0] = nil
			c.segments = c.segments[1:]
			c.head = 0
			if c.recycle != nil {
				c.recycle(seg)
			}
		}
	}

	c.pending -= n
	c.poppedBytes += uint64(n)
	if n > 0 {
		c.notFull.Signal()
	}
	return n
}

// Cancel releases a producer blocked in a bounded Push. The consumer is not
// affected and keeps draining. Idempotent.
func (c *Channel) Cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()

	c.notFull.Broadcast()
}

// Shutdown ends input and wakes every waiter. Later pushes are refused. Pop
// drains what is pending, then returns 0. Idempotent.
func (c *Channel) Shutdown() {
	c.mu.Lock()
	c.cancelled = true
	c.closed = true
	c.mu.Unlock()

	c.notEmpty.Broadcast()
	c.notFull.Broadcast()
}

// Len returns the number of unread bytes.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Stats returns a snapshot of channel counters.
func (c *Channel) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Pending:       c.pending,
		PushedBytes:   c.pushedBytes,
		PoppedBytes:   c.poppedBytes,
		Segments:      c.segmentCount,
		HighWater:     c.highWater,
		BlockedPushes: c.blockedPushes,
		Capacity:      c.capacity,
	}
}
