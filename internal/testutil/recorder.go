package testutil

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/roach88/lumo/internal/graph"
	"github.com/roach88/lumo/internal/ir"
)

// NodeFactory builds node specs by type name, as scene.Factory does.
type NodeFactory interface {
	NewNode(typeName string) (graph.NodeSpec, error)
}

// Hook names recorded in HookCall.Hook.
const (
	HookConnect    = "connect"
	HookDisconnect = "disconnect"
	HookNotify     = "notify"
	HookSelected   = "selected"
)

// HookCall is one node hook invocation.
type HookCall struct {
	Hook string `json:"hook"`
	Node int64  `json:"node"`

	// Slot is the node's own slot (the event receiver for notify), 0 for
	// broadcasts.
	Slot int64 `json:"slot,omitempty"`

	// Other is the counterpart slot (the event emitter for notify).
	Other int64 `json:"other,omitempty"`

	Event ir.EventKind `json:"event,omitempty"`

	// Button is the output button of a selected call.
	Button string `json:"button,omitempty"`
}

func (c HookCall) String() string {
	switch c.Hook {
	case HookSelected:
		return fmt.Sprintf("selected button=%s node=%d slot=%d event=%s", c.Button, c.Node, c.Slot, c.Event)
	case HookNotify:
		if c.Slot == 0 {
			return fmt.Sprintf("notify node=%d event=%s", c.Node, c.Event)
		}
		return fmt.Sprintf("notify node=%d slot=%d from=%d event=%s", c.Node, c.Slot, c.Other, c.Event)
	default:
		return fmt.Sprintf("%s node=%d slot=%d other=%d", c.Hook, c.Node, c.Slot, c.Other)
	}
}

// Recorder wraps a NodeFactory so every node it builds logs its hook calls.
// The wrapped node's own hooks still run, after the call is recorded.
//
// Thread-safety: safe for concurrent use, though a graph only calls hooks
// from the goroutine that owns it.
type Recorder struct {
	factory NodeFactory

	mu    sync.Mutex
	calls []HookCall
}

// NewRecorder wraps f.
func NewRecorder(f NodeFactory) *Recorder {
	return &Recorder{factory: f}
}

// NewNode builds the spec from the wrapped factory and chains recording
// hooks in front of its own.
func (r *Recorder) NewNode(typeName string) (graph.NodeSpec, error) {
	spec, err := r.factory.NewNode(typeName)
	if err != nil {
		return spec, err
	}
	inner := spec.Hooks
	state := spec.State

	spec.Hooks.OnConnect = func(g *graph.Graph, self, other *graph.Slot) {
		r.record(HookCall{Hook: HookConnect, Node: slotNode(g, self), Slot: self.ID(), Other: other.ID()})
		if inner.OnConnect != nil {
			inner.OnConnect(g, self, other)
		}
	}
	spec.Hooks.OnDisconnect = func(g *graph.Graph, self, other *graph.Slot) {
		r.record(HookCall{Hook: HookDisconnect, Node: slotNode(g, self), Slot: self.ID(), Other: other.ID()})
		if inner.OnDisconnect != nil {
			inner.OnDisconnect(g, self, other)
		}
	}
	spec.Hooks.OnNotify = func(g *graph.Graph, ev graph.Event) {
		call := HookCall{Hook: HookNotify, Event: ev.Kind}
		if s, ok := g.Slot(ev.Receiver); ok {
			call.Node = slotNode(g, s)
			call.Slot = s.ID()
		} else {
			call.Node = stateNode(g, state)
		}
		if s, ok := g.Slot(ev.Emitter); ok {
			call.Other = s.ID()
		}
		r.record(call)
		if inner.OnNotify != nil {
			inner.OnNotify(g, ev)
		}
	}
	return spec, nil
}

// SelectionHandler returns a graph selection handler that records a
// selected call each time a selected output emits.
func (r *Recorder) SelectionHandler() graph.SelectionHandler {
	return func(g *graph.Graph, button ir.OutputButton, s *graph.Slot, kind ir.EventKind) {
		r.record(HookCall{Hook: HookSelected, Node: slotNode(g, s), Slot: s.ID(), Event: kind, Button: button.String()})
	}
}

func (r *Recorder) record(c HookCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// Calls returns every call recorded so far.
func (r *Recorder) Calls() []HookCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]HookCall(nil), r.calls...)
}

// Take returns the calls recorded since the last Take and forgets them.
func (r *Recorder) Take() []HookCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.calls
	r.calls = nil
	return out
}

// Reset forgets every recorded call.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func slotNode(g *graph.Graph, s *graph.Slot) int64 {
	n, ok := g.Node(s.Node())
	if !ok {
		return 0
	}
	return n.ID()
}

// stateNode finds a node by its opaque state. Broadcast events carry no
// receiver slot, so this is the only way back to the node.
func stateNode(g *graph.Graph, state any) int64 {
	if state == nil || !reflect.TypeOf(state).Comparable() {
		return 0
	}
	var id int64
	g.Walk(func(n *graph.Node) bool {
		if n.State() == state {
			id = n.ID()
			return false
		}
		return true
	})
	return id
}
