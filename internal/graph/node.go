package graph

import (
	"context"
	"slices"

	"github.com/roach88/lumo/internal/ir"
)

// Hooks are the node-level callbacks the graph invokes. All are optional.
type Hooks struct {
	// OnConnect runs after one of the node's slots gained a link and the
	// slot-level payload pull has happened.
	OnConnect func(g *Graph, self, other *Slot)

	// OnDisconnect runs after one of the node's slots lost a link and, for
	// inputs, the cleared payload has been pushed.
	OnDisconnect func(g *Graph, self, other *Slot)

	// OnNotify runs when an event reaches one of the node's slots, after the
	// typed pull and before the node re-emits. Broadcast events arrive with
	// a zero Receiver.
	OnNotify func(g *Graph, ev Event)

	// OnExecute runs during Execute, after all of the node's children.
	OnExecute func(ctx context.Context, g *Graph, n *Node, frame int64) error
}

// NodeSpec describes a node to create.
type NodeSpec struct {
	Type         string
	Name         string
	Pos          ir.Point
	Inputs       []SlotSpec
	Outputs      []SlotSpec
	Capabilities []Capability
	Hooks        Hooks

	// State is opaque per-node data for the code that built the spec,
	// typically the payload table backing the capabilities.
	State any

	DeletionDisabled bool

	// DynamicSlots lets a loader add slots the spec did not declare.
	DynamicSlots bool
}

// Node owns its slots and its child-node subtree.
type Node struct {
	id        int64
	ref       NodeRef
	typeName  string
	name      string
	pos       ir.Point
	parent    NodeRef
	children  []NodeRef
	inputs    []SlotRef
	outputs   []SlotRef
	caps      map[capKey]Capability
	hooks     Hooks
	state     any
	noDelete  bool
	dynamic   bool
	idClaimed bool
}

// ID returns the node's process-wide id.
func (n *Node) ID() int64 { return n.id }

// Ref returns a weak reference to the node.
func (n *Node) Ref() NodeRef { return n.ref }

// Type returns the node-type tag.
func (n *Node) Type() string { return n.typeName }

// Name returns the display name.
func (n *Node) Name() string { return n.name }

// Pos returns the editor position.
func (n *Node) Pos() ir.Point { return n.pos }

// SetPos moves the node in the editor.
func (n *Node) SetPos(p ir.Point) { n.pos = p }

// Parent returns the parent node, or the zero ref for root nodes.
func (n *Node) Parent() NodeRef { return n.parent }

// Children returns the child nodes in insertion order.
func (n *Node) Children() []NodeRef { return slices.Clone(n.children) }

// Inputs returns the input slots in declaration order.
func (n *Node) Inputs() []SlotRef { return slices.Clone(n.inputs) }

// Outputs returns the output slots in declaration order.
func (n *Node) Outputs() []SlotRef { return slices.Clone(n.outputs) }

// State returns the opaque state given in the NodeSpec.
func (n *Node) State() any { return n.state }

// DeletionDisabled reports whether RemoveNode refuses this node.
func (n *Node) DeletionDisabled() bool { return n.noDelete }

// DynamicSlots reports whether loaders may add undeclared slots.
func (n *Node) DynamicSlots() bool { return n.dynamic }

// IDClaimed reports whether the node's id was set from a loaded document.
func (n *Node) IDClaimed() bool { return n.idClaimed }

// Has reports whether the node declared a capability for (pt, place).
func (n *Node) Has(pt ir.PayloadType, place ir.Place) bool {
	_, ok := n.caps[capKey{pt, place}]
	return ok
}

// SlotAt returns the index-th slot of the given place.
func (n *Node) SlotAt(place ir.Place, index int) (SlotRef, bool) {
	list := n.inputs
	if place == ir.PlaceOutput {
		list = n.outputs
	} else if place != ir.PlaceInput {
		return SlotRef{}, false
	}
	if index < 0 || index >= len(list) {
		return SlotRef{}, false
	}
	return list[index], true
}

func (n *Node) capability(pt ir.PayloadType, place ir.Place) (Capability, bool) {
	c, ok := n.caps[capKey{pt, place}]
	return c, ok
}

func (n *Node) slots() []SlotRef {
	out := make([]SlotRef, 0, len(n.inputs)+len(n.outputs))
	out = append(out, n.inputs...)
	return append(out, n.outputs...)
}
