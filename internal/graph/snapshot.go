package graph

import "github.com/roach88/lumo/internal/ir"

// Snapshot captures the graph as a persistable document: nodes
// parents-first, each node's inputs then outputs, links in creation order.
func (g *Graph) Snapshot() ir.Document {
	doc := ir.Document{Nodes: []ir.NodeRecord{}, Links: []ir.LinkRecord{}}

	g.Walk(func(n *Node) bool {
		rec := ir.NodeRecord{
			ID:    n.id,
			Name:  n.name,
			Type:  n.typeName,
			Pos:   n.pos,
			Slots: make([]ir.SlotRecord, 0, len(n.inputs)+len(n.outputs)),
		}
		if p, ok := g.Node(n.parent); ok {
			rec.Parent = p.id
		}
		for _, r := range n.slots() {
			s, ok := g.Slot(r)
			if !ok {
				continue
			}
			rec.Slots = append(rec.Slots, ir.SlotRecord{
				ID:         s.id,
				Index:      s.index,
				Name:       s.name,
				Type:       s.typ,
				Place:      s.place,
				Binding:    s.binding,
				AcceptMany: s.acceptMany,
			})
		}
		doc.Nodes = append(doc.Nodes, rec)
		return true
	})

	for _, l := range g.links {
		from, okFrom := g.addr(l.From)
		to, okTo := g.addr(l.To)
		if okFrom && okTo {
			doc.Links = append(doc.Links, ir.LinkRecord{ID: l.ID, From: from, To: to})
		}
	}

	for _, b := range ir.OutputButtons {
		if r, ok := g.SelectedOutput(b); ok {
			if a, ok := g.addr(r); ok {
				doc.Outputs = append(doc.Outputs, ir.OutputRecord{Button: b, Slot: a})
			}
		}
	}
	return doc
}

// Addr returns the node:slot address of a slot.
func (g *Graph) Addr(r SlotRef) (ir.SlotAddr, bool) { return g.addr(r) }

func (g *Graph) addr(r SlotRef) (ir.SlotAddr, bool) {
	s, ok := g.Slot(r)
	if !ok {
		return ir.SlotAddr{}, false
	}
	n, ok := g.Node(s.node)
	if !ok {
		return ir.SlotAddr{}, false
	}
	return ir.SlotAddr{Node: n.id, Slot: s.id}, true
}

// ResolveAddr finds a slot by node:slot address. Both ids must match.
func (g *Graph) ResolveAddr(a ir.SlotAddr) (SlotRef, bool) {
	r, ok := g.SlotByID(a.Slot)
	if !ok {
		return SlotRef{}, false
	}
	s, _ := g.Slot(r)
	n, ok := g.Node(s.node)
	if !ok || n.id != a.Node {
		return SlotRef{}, false
	}
	return r, true
}
