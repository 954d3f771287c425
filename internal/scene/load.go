package scene

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/lumo/internal/graph"
	"github.com/roach88/lumo/internal/ir"
)

// Factory builds node specs by type name. *library.Library implements it.
type Factory interface {
	NewNode(typeName string) (graph.NodeSpec, error)
}

// Conflict is a saved id that could not be claimed.
type Conflict struct {
	Kind string `json:"kind"` // "node" or "slot"
	ID   int64  `json:"id"`   // id from the file
	Node int64  `json:"node"` // owning node id from the file
	Kept int64  `json:"kept"` // id the entity keeps instead
}

// Skipped is a node, slot, link or output the loader could not apply.
type Skipped struct {
	Kind   string `json:"kind"` // "node", "slot", "link", "output"
	Ref    string `json:"ref"`  // id or node:slot address from the file
	Reason string `json:"reason"`
}

// LoadReport describes what Load applied and what it had to drop.
type LoadReport struct {
	Nodes     int        `json:"nodes"`
	Links     int        `json:"links"`
	Outputs   int        `json:"outputs"`
	Conflicts []Conflict `json:"conflicts"`
	Skipped   []Skipped  `json:"skipped"`

	// Loaded is the broadcast report, nil when the broadcast was disabled.
	Loaded *graph.Report `json:"-"`
}

// LoadOption configures Load.
type LoadOption func(*loader)

// WithLogger sets the loader's logger. Default slog.Default().
func WithLogger(l *slog.Logger) LoadOption {
	return func(ld *loader) { ld.logger = l }
}

// WithoutBroadcast skips the GraphIsLoaded broadcast at the end of Load.
func WithoutBroadcast() LoadOption {
	return func(ld *loader) { ld.broadcast = false }
}

type loader struct {
	g         *graph.Graph
	factory   Factory
	logger    *slog.Logger
	broadcast bool
	report    *LoadReport

	nodes map[int64]graph.NodeRef
	slots map[ir.SlotAddr]graph.SlotRef
}

// Load applies doc to g, building nodes through factory.
//
// Load degrades instead of failing: unknown node types (and their
// subtrees), unmatched slot records, unresolvable or incompatible links,
// and refused id claims are all recorded in the report and the rest of the
// document still loads. The returned error is non-nil only for invalid
// arguments or when the final broadcast aborts.
//
// A slot record matches the node's slot with the same place and index when
// the payload type agrees. Records that match nothing are added as new
// slots on dynamic-slot nodes and ignored elsewhere. Links resolve by the
// file's node:slot addresses, so a slot whose id claim was refused still
// gets its links.
func Load(g *graph.Graph, doc ir.Document, factory Factory, opts ...LoadOption) (*LoadReport, error) {
	if g == nil {
		return nil, errors.New("scene: load: nil graph")
	}
	if factory == nil {
		return nil, errors.New("scene: load: nil factory")
	}

	ld := &loader{
		g:         g,
		factory:   factory,
		logger:    slog.Default(),
		broadcast: true,
		report:    &LoadReport{Conflicts: []Conflict{}, Skipped: []Skipped{}},
		nodes:     make(map[int64]graph.NodeRef),
		slots:     make(map[ir.SlotAddr]graph.SlotRef),
	}
	for _, opt := range opts {
		opt(ld)
	}

	for _, rec := range doc.Nodes {
		ld.loadNode(rec)
	}
	for _, l := range doc.Links {
		ld.loadLink(l)
	}
	for _, o := range doc.Outputs {
		ld.loadOutput(o)
	}

	ld.logger.Info("scene loaded",
		"nodes", ld.report.Nodes, "links", ld.report.Links, "outputs", ld.report.Outputs,
		"conflicts", len(ld.report.Conflicts), "skipped", len(ld.report.Skipped),
		"next_id", g.IDs().Current()+1)

	if ld.broadcast {
		r, err := g.Broadcast(ir.EventGraphIsLoaded)
		ld.report.Loaded = r
		if err != nil {
			return ld.report, fmt.Errorf("scene: load: %w", err)
		}
	}
	return ld.report, nil
}

func (ld *loader) skip(kind, ref, reason string) {
	ld.report.Skipped = append(ld.report.Skipped, Skipped{Kind: kind, Ref: ref, Reason: reason})
	ld.logger.Warn("scene element skipped", "kind", kind, "ref", ref, "reason", reason)
}

func (ld *loader) loadNode(rec ir.NodeRecord) {
	ref := fmt.Sprintf("%d", rec.ID)
	ld.ratchetAll(rec)

	if _, dup := ld.nodes[rec.ID]; dup && rec.ID != 0 {
		ld.skip("node", ref, fmt.Sprintf("duplicate node id %d", rec.ID))
		return
	}

	var parent graph.NodeRef
	if rec.Parent != 0 {
		p, ok := ld.nodes[rec.Parent]
		if !ok {
			ld.skip("node", ref, fmt.Sprintf("parent %d was not loaded", rec.Parent))
			return
		}
		parent = p
	}

	spec, err := ld.factory.NewNode(rec.Type)
	if err != nil {
		ld.skip("node", ref, err.Error())
		return
	}
	if rec.Name != "" {
		spec.Name = rec.Name
	}
	spec.Pos = rec.Pos

	nref, err := ld.g.AddNode(parent, spec)
	if err != nil {
		ld.skip("node", ref, err.Error())
		return
	}
	ld.nodes[rec.ID] = nref
	ld.report.Nodes++

	if err := ld.g.ClaimNodeID(nref, rec.ID); err != nil {
		n, _ := ld.g.Node(nref)
		ld.conflict("node", rec.ID, rec.ID, n.ID(), err)
	}

	for _, s := range rec.Slots {
		ld.loadSlot(nref, rec.ID, s)
	}
}

// ratchetAll advances the allocator past every id in the record, claimed
// or not, so nothing created later reuses one.
func (ld *loader) ratchetAll(rec ir.NodeRecord) {
	ld.g.IDs().Ratchet(rec.ID)
	for _, s := range rec.Slots {
		ld.g.IDs().Ratchet(s.ID)
	}
}

func (ld *loader) loadSlot(nref graph.NodeRef, nodeID int64, rec ir.SlotRecord) {
	addr := ir.SlotAddr{Node: nodeID, Slot: rec.ID}
	n, _ := ld.g.Node(nref)

	sref, ok := ld.matchSlot(n, rec)
	if !ok {
		if !n.DynamicSlots() {
			ld.skip("slot", addr.String(), "no matching slot")
			return
		}
		if !rec.Type.Known() {
			ld.skip("slot", addr.String(), fmt.Sprintf("unknown payload type %q", rec.Type))
			return
		}
		spec := graph.SlotSpec{Name: rec.Name, Type: rec.Type, Binding: rec.Binding, AcceptMany: rec.AcceptMany}
		var err error
		if rec.Place == ir.PlaceInput {
			sref, err = ld.g.AddInput(nref, spec)
		} else {
			sref, err = ld.g.AddOutput(nref, spec)
		}
		if err != nil {
			ld.skip("slot", addr.String(), err.Error())
			return
		}
	}

	ld.slots[addr] = sref
	if err := ld.g.ClaimSlotID(sref, rec.ID); err != nil {
		s, _ := ld.g.Slot(sref)
		ld.conflict("slot", rec.ID, nodeID, s.ID(), err)
	}
}

// matchSlot finds the unclaimed slot with the record's place, index and type.
func (ld *loader) matchSlot(n *graph.Node, rec ir.SlotRecord) (graph.SlotRef, bool) {
	sref, ok := n.SlotAt(rec.Place, rec.Index)
	if !ok {
		return graph.SlotRef{}, false
	}
	s, ok := ld.g.Slot(sref)
	if !ok || s.Type() != rec.Type || s.IDClaimed() {
		return graph.SlotRef{}, false
	}
	return sref, true
}

func (ld *loader) conflict(kind string, id, node, kept int64, err error) {
	ld.report.Conflicts = append(ld.report.Conflicts, Conflict{Kind: kind, ID: id, Node: node, Kept: kept})
	ld.logger.Warn("saved id not claimed", "kind", kind, "id", id, "node", node, "kept", kept, "error", err)
}

func (ld *loader) loadLink(l ir.LinkRecord) {
	ld.g.IDs().Ratchet(l.ID)
	ref := l.To.String() + "<-" + l.From.String()

	out, ok := ld.slots[l.From]
	if !ok {
		ld.skip("link", ref, fmt.Sprintf("output %s was not loaded", l.From))
		return
	}
	in, ok := ld.slots[l.To]
	if !ok {
		ld.skip("link", ref, fmt.Sprintf("input %s was not loaded", l.To))
		return
	}
	if err := ld.g.Connect(out, in); err != nil {
		ld.skip("link", ref, err.Error())
		return
	}
	ld.report.Links++
}

func (ld *loader) loadOutput(o ir.OutputRecord) {
	sref, ok := ld.slots[o.Slot]
	if !ok {
		ld.skip("output", o.Slot.String(), "slot was not loaded")
		return
	}
	if err := ld.g.SelectOutput(o.Button, sref); err != nil {
		ld.skip("output", o.Slot.String(), err.Error())
		return
	}
	ld.report.Outputs++
}
