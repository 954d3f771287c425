package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/lumo/internal/ir"
)

// CycleDetector tracks, per propagation token, which emitter slots are
// currently on the emit stack.
//
// A cycle is an emitter that would re-emit while an earlier emission from
// the same slot is still in progress, e.g.
//
//	Blur.out -> Mix.in, Mix.out -> Blur.in
//	Blur.out emits -> Mix re-emits -> Blur re-emits -> Blur.out again
//
// A diamond (two paths converging on one node) is not a cycle: the
// converging node emits twice, but never while its first emission is still
// on the stack.
type CycleDetector struct {
	mu    sync.Mutex
	stack map[string][]int64 // token -> emitter slot ids, outermost first
}

// NewCycleDetector creates an empty detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{stack: make(map[string][]int64)}
}

// Enter pushes slotID onto the token's emit stack. It returns false, and
// pushes nothing, when slotID is already on the stack.
func (c *CycleDetector) Enter(token string, slotID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if slices.Contains(c.stack[token], slotID) {
		return false
	}
	c.stack[token] = append(c.stack[token], slotID)
	return true
}

// Leave pops slotID from the token's emit stack.
func (c *CycleDetector) Leave(token string, slotID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stack[token]
	if i := slices.Index(s, slotID); i >= 0 {
		c.stack[token] = slices.Delete(s, i, i+1)
	}
	if len(c.stack[token]) == 0 {
		delete(c.stack, token)
	}
}

// Path returns the emit stack from the first occurrence of slotID to the
// top, followed by slotID again, i.e. the loop that would be closed.
func (c *CycleDetector) Path(token string, slotID int64) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stack[token]
	i := slices.Index(s, slotID)
	if i < 0 {
		return nil
	}
	return append(slices.Clone(s[i:]), slotID)
}

// Clear drops all state for a token.
func (c *CycleDetector) Clear(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.stack, token)
}

// HistorySize returns the number of tokens with an active emit stack.
func (c *CycleDetector) HistorySize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.stack)
}

// Depth returns the emit stack depth for a token.
func (c *CycleDetector) Depth(token string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.stack[token])
}

// CycleError describes a skipped re-emission. It is recorded in the
// propagation Report rather than returned: the rest of the propagation
// continues.
type CycleError struct {
	Token string
	Kind  ir.EventKind
	Path  []int64 // emitter slot ids; first and last are the same slot
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("notification cycle skipped: %s (token=%s, event=%s)",
		strings.Join(parts, " -> "), e.Token, e.Kind)
}

// IsCycleError reports whether err is a CycleError.
func IsCycleError(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}
