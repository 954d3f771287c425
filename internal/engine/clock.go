package engine

import "sync/atomic"

// Sequencer hands out command seqs. *Clock is the production
// implementation; tests may supply a resettable one.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Clock is the monotonic logical clock that orders commands.
//
// Every command is stamped with a strictly increasing seq from this clock.
// This ensures:
// - Deterministic ordering (no wall-clock race conditions)
// - Replay produces identical order
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// However, the Engine's single-writer design means only one goroutine
// typically calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used by Restore to resume after the last journaled command.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
