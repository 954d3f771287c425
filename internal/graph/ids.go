package graph

import "sync/atomic"

// IDAllocator hands out ids for nodes, slots and links from one counter,
// so no two entities ever share an id.
//
// Thread-safety: IDAllocator is safe for concurrent use, which lets several
// graphs in one process share a single allocator.
type IDAllocator struct {
	last atomic.Int64
}

// NewIDAllocator creates an allocator whose first id is 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// NewIDAllocatorAt creates an allocator whose first id is last+1.
func NewIDAllocatorAt(last int64) *IDAllocator {
	a := &IDAllocator{}
	a.last.Store(last)
	return a
}

// Next returns a fresh id.
func (a *IDAllocator) Next() int64 {
	return a.last.Add(1)
}

// Current returns the counter without advancing it. Every id handed out so
// far is <= Current.
func (a *IDAllocator) Current() int64 {
	return a.last.Load()
}

// Ratchet advances the counter past seen, so later ids never collide with
// an id read from a saved document. After Ratchet(n), Current() >= n+1.
func (a *IDAllocator) Ratchet(seen int64) {
	for {
		cur := a.last.Load()
		if cur > seen {
			return
		}
		if a.last.CompareAndSwap(cur, seen+1) {
			return
		}
	}
}
