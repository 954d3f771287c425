package graph

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/lumo/internal/ir"
)

// Link is one edge of the graph, always stored output-to-input.
type Link struct {
	ID   int64
	From SlotRef // output
	To   SlotRef // input
}

// Graph owns the root nodes and is the only mutator of link topology.
type Graph struct {
	nodes arena[Node]
	slots arena[Slot]
	roots []NodeRef
	links []Link

	slotsByID map[int64]SlotRef
	nodesByID map[int64]NodeRef

	ids       *IDAllocator
	tokens    TokenGenerator
	palette   Palette
	maxSteps  int
	cycles    *CycleDetector
	selected  [3]SlotRef
	onSelect  SelectionHandler
	logger    *slog.Logger
	observers []func(Report)
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) { g.logger = l }
}

// WithIDAllocator shares an id counter with other graphs or a loader.
func WithIDAllocator(a *IDAllocator) Option {
	return func(g *Graph) { g.ids = a }
}

// WithTokenGenerator sets the propagation token source.
// Default: UUIDv7Generator.
func WithTokenGenerator(t TokenGenerator) Option {
	return func(g *Graph) { g.tokens = t }
}

// WithMaxSteps sets the per-propagation delivery quota.
// Default: DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(g *Graph) { g.maxSteps = n }
}

// WithPalette overrides the slot colors.
func WithPalette(p Palette) Option {
	return func(g *Graph) { g.palette = p }
}

// WithSelectionHandler installs the callback fired when a selected graph
// output emits.
func WithSelectionHandler(h SelectionHandler) Option {
	return func(g *Graph) { g.onSelect = h }
}

// WithReportObserver registers a callback that receives every completed
// propagation report.
func WithReportObserver(fn func(Report)) Option {
	return func(g *Graph) { g.observers = append(g.observers, fn) }
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		slotsByID: make(map[int64]SlotRef),
		nodesByID: make(map[int64]NodeRef),
		ids:       NewIDAllocator(),
		tokens:    UUIDv7Generator{},
		palette:   DefaultPalette(),
		maxSteps:  DefaultMaxSteps,
		cycles:    NewCycleDetector(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IDs returns the graph's id allocator.
func (g *Graph) IDs() *IDAllocator { return g.ids }

// Logger returns the graph's logger.
func (g *Graph) Logger() *slog.Logger { return g.logger }

// Palette returns the slot color table.
func (g *Graph) Palette() Palette { return g.palette }

// Node resolves a node reference.
func (g *Graph) Node(r NodeRef) (*Node, bool) { return g.nodes.get(r.idx, r.gen) }

// Slot resolves a slot reference.
func (g *Graph) Slot(r SlotRef) (*Slot, bool) { return g.slots.get(r.idx, r.gen) }

// NodeByID finds a live node by id.
func (g *Graph) NodeByID(id int64) (NodeRef, bool) {
	r, ok := g.nodesByID[id]
	return r, ok
}

// SlotByID finds a live slot by id.
func (g *Graph) SlotByID(id int64) (SlotRef, bool) {
	r, ok := g.slotsByID[id]
	return r, ok
}

// Roots returns the top-level nodes in insertion order.
func (g *Graph) Roots() []NodeRef { return slices.Clone(g.roots) }

// Links returns all links in creation order.
func (g *Graph) Links() []Link { return slices.Clone(g.links) }

// NodeCount returns the number of live nodes, children included.
func (g *Graph) NodeCount() int { return g.nodes.len() }

// SlotCount returns the number of live slots.
func (g *Graph) SlotCount() int { return g.slots.len() }

// SlotColor returns the display color of a slot's payload type.
func (g *Graph) SlotColor(r SlotRef) (ir.Color, bool) {
	s, ok := g.Slot(r)
	if !ok {
		return ir.Color{}, false
	}
	return g.palette.Color(s.typ), true
}

// Walk visits every live node parents-first, roots in insertion order.
// Returning false from fn stops the walk.
func (g *Graph) Walk(fn func(*Node) bool) {
	var visit func(refs []NodeRef) bool
	visit = func(refs []NodeRef) bool {
		for _, r := range refs {
			n, ok := g.Node(r)
			if !ok {
				continue
			}
			if !fn(n) || !visit(n.children) {
				return false
			}
		}
		return true
	}
	visit(g.roots)
}

// AddNode creates a node under parent, or as a root when parent is zero.
// Every declared slot gets a fresh id from the allocator.
func (g *Graph) AddNode(parent NodeRef, spec NodeSpec) (NodeRef, error) {
	if spec.Type == "" {
		return NodeRef{}, newError(ErrCodeInvalidSpec, "node spec has no type", 0, 0)
	}
	var parentNode *Node
	if !parent.IsZero() {
		p, ok := g.Node(parent)
		if !ok {
			return NodeRef{}, expiredNode(parent)
		}
		parentNode = p
	}
	caps := make(map[capKey]Capability, len(spec.Capabilities))
	for _, c := range spec.Capabilities {
		if err := c.valid(); err != nil {
			return NodeRef{}, newError(ErrCodeInvalidSpec, err.Error(), 0, 0)
		}
		caps[capKey{c.Type, c.Place}] = c
	}
	for _, s := range append(slices.Clone(spec.Inputs), spec.Outputs...) {
		if s.Type == ir.PayloadNone {
			return NodeRef{}, newError(ErrCodeInvalidSpec,
				fmt.Sprintf("slot %q of %s has no payload type", s.Name, spec.Type), 0, 0)
		}
	}

	n := &Node{
		id:       g.ids.Next(),
		typeName: spec.Type,
		name:     spec.Name,
		pos:      spec.Pos,
		parent:   parent,
		caps:     caps,
		hooks:    spec.Hooks,
		state:    spec.State,
		noDelete: spec.DeletionDisabled,
		dynamic:  spec.DynamicSlots,
	}
	if n.name == "" {
		n.name = spec.Type
	}
	idx, gen := g.nodes.insert(n)
	n.ref = NodeRef{idx: idx, gen: gen}
	g.nodesByID[n.id] = n.ref

	for _, s := range spec.Inputs {
		g.addSlot(n, ir.PlaceInput, s)
	}
	for _, s := range spec.Outputs {
		g.addSlot(n, ir.PlaceOutput, s)
	}

	if parentNode != nil {
		parentNode.children = append(parentNode.children, n.ref)
	} else {
		g.roots = append(g.roots, n.ref)
	}

	g.logger.Debug("node added", "node", n.id, "type", n.typeName, "inputs", len(n.inputs), "outputs", len(n.outputs))
	return n.ref, nil
}

// AddInput registers a new input slot on an existing node.
func (g *Graph) AddInput(node NodeRef, spec SlotSpec) (SlotRef, error) {
	return g.addSlotTo(node, ir.PlaceInput, spec)
}

// AddOutput registers a new output slot on an existing node.
func (g *Graph) AddOutput(node NodeRef, spec SlotSpec) (SlotRef, error) {
	return g.addSlotTo(node, ir.PlaceOutput, spec)
}

func (g *Graph) addSlotTo(node NodeRef, place ir.Place, spec SlotSpec) (SlotRef, error) {
	n, ok := g.Node(node)
	if !ok {
		return SlotRef{}, expiredNode(node)
	}
	if spec.Type == ir.PayloadNone {
		return SlotRef{}, newError(ErrCodeInvalidSpec, fmt.Sprintf("slot %q has no payload type", spec.Name), 0, 0)
	}
	return g.addSlot(n, place, spec), nil
}

func (g *Graph) addSlot(n *Node, place ir.Place, spec SlotSpec) SlotRef {
	s := &Slot{
		id:         g.ids.Next(),
		node:       n.ref,
		place:      place,
		typ:        spec.Type,
		name:       spec.Name,
		binding:    spec.Binding,
		acceptMany: spec.AcceptMany && place == ir.PlaceInput,
	}
	idx, gen := g.slots.insert(s)
	s.ref = SlotRef{idx: idx, gen: gen}
	g.slotsByID[s.id] = s.ref
	if place == ir.PlaceInput {
		s.index = len(n.inputs)
		n.inputs = append(n.inputs, s.ref)
	} else {
		s.index = len(n.outputs)
		n.outputs = append(n.outputs, s.ref)
	}
	return s.ref
}

// RemoveNode destroys a node and its subtree. All links touching the
// removed slots are broken first, with the usual disconnect hooks.
// Fails without mutation if any node in the subtree has deletion disabled.
func (g *Graph) RemoveNode(ref NodeRef) error {
	n, ok := g.Node(ref)
	if !ok {
		return expiredNode(ref)
	}
	var blocked *Node
	g.walkFrom(n, func(m *Node) bool {
		if m.noDelete {
			blocked = m
			return false
		}
		return true
	})
	if blocked != nil {
		return newError(ErrCodeDeletionDisabled,
			fmt.Sprintf("node %d (%s) cannot be deleted", blocked.id, blocked.typeName), 0, 0)
	}
	g.removeSubtree(n)

	if parent, ok := g.Node(n.parent); ok {
		parent.children = slices.DeleteFunc(parent.children, func(r NodeRef) bool { return r == ref })
	} else {
		g.roots = slices.DeleteFunc(g.roots, func(r NodeRef) bool { return r == ref })
	}
	return nil
}

func (g *Graph) removeSubtree(n *Node) {
	for _, c := range slices.Clone(n.children) {
		if child, ok := g.Node(c); ok {
			g.removeSubtree(child)
		}
	}
	g.disconnectNode(n)
	for _, sr := range n.slots() {
		if s, ok := g.Slot(sr); ok {
			delete(g.slotsByID, s.id)
			g.clearSelection(sr)
		}
		g.slots.remove(sr.idx, sr.gen)
	}
	delete(g.nodesByID, n.id)
	g.nodes.remove(n.ref.idx, n.ref.gen)
	g.logger.Debug("node removed", "node", n.id, "type", n.typeName)
}

// walkFrom visits n and its subtree parents-first.
func (g *Graph) walkFrom(n *Node, fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if child, ok := g.Node(c); ok {
			if !g.walkFrom(child, fn) {
				return false
			}
		}
	}
	return true
}
