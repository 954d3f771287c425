package graph

import "fmt"

// SlotRef is a weak reference to a slot. The zero value never resolves.
type SlotRef struct {
	idx uint32
	gen uint32
}

// IsZero reports whether r is the zero reference.
func (r SlotRef) IsZero() bool { return r.gen == 0 }

func (r SlotRef) String() string { return fmt.Sprintf("slot#%d.%d", r.idx, r.gen) }

// NodeRef is a weak reference to a node. The zero value never resolves.
type NodeRef struct {
	idx uint32
	gen uint32
}

// IsZero reports whether r is the zero reference.
func (r NodeRef) IsZero() bool { return r.gen == 0 }

func (r NodeRef) String() string { return fmt.Sprintf("node#%d.%d", r.idx, r.gen) }

type arenaEntry[T any] struct {
	gen uint32
	val *T
}

// arena stores values addressed by (index, generation). Generations start
// at 1 so that a zero handle is always expired.
type arena[T any] struct {
	entries []arenaEntry[T]
	free    []uint32
	live    int
}

func (a *arena[T]) insert(v *T) (idx, gen uint32) {
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
		a.entries[idx].val = v
		a.live++
		return idx, a.entries[idx].gen
	}
	a.entries = append(a.entries, arenaEntry[T]{gen: 1, val: v})
	a.live++
	return uint32(len(a.entries) - 1), 1
}

func (a *arena[T]) get(idx, gen uint32) (*T, bool) {
	if gen == 0 || int(idx) >= len(a.entries) {
		return nil, false
	}
	e := a.entries[idx]
	if e.gen != gen || e.val == nil {
		return nil, false
	}
	return e.val, true
}

func (a *arena[T]) remove(idx, gen uint32) bool {
	if _, ok := a.get(idx, gen); !ok {
		return false
	}
	a.entries[idx].val = nil
	a.entries[idx].gen++
	if a.entries[idx].gen == 0 {
		// Wrapped: retire the index rather than reuse generation 0.
		a.live--
		return true
	}
	a.free = append(a.free, idx)
	a.live--
	return true
}

func (a *arena[T]) len() int { return a.live }
