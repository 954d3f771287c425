package graph

import "github.com/roach88/lumo/internal/ir"

// CanConnect reports whether Connect(a, b) would succeed, without mutating.
func (g *Graph) CanConnect(a, b SlotRef) error {
	sa, sb, err := g.resolvePair(a, b)
	if err != nil {
		return err
	}
	return sa.CanConnectTo(sb)
}

// Connect links two slots. Arguments may be given in either order.
//
// On success the link is recorded on both slots and in the graph's link
// table, then OnConnect runs on the input side first (which pulls the
// output's current payload into the input's node) and on the output side
// second.
//
// A rejected connect returns an *Error describing the violated rule and
// leaves the graph untouched: no mutation, no hooks, no events.
func (g *Graph) Connect(a, b SlotRef) error {
	sa, sb, err := g.resolvePair(a, b)
	if err != nil {
		g.logger.Debug("connect rejected", "reason", err)
		return err
	}
	if err := sa.CanConnectTo(sb); err != nil {
		g.logger.Debug("connect rejected", "slot", sa.id, "other", sb.id, "reason", err)
		return err
	}
	out, in := orient(sa, sb)
	g.link(out, in)
	return nil
}

// Reconnect links two slots, first breaking the input's existing links when
// it accepts only one. This is the editor's drag-onto-occupied-pin gesture;
// Connect keeps the strict rejection.
// Compatibility failures (place, type, same node) still reject without
// mutation. Reconnecting an existing link is a no-op.
func (g *Graph) Reconnect(a, b SlotRef) error {
	sa, sb, err := g.resolvePair(a, b)
	if err != nil {
		return err
	}
	if err := sa.compatible(sb); err != nil {
		g.logger.Debug("reconnect rejected", "slot", sa.id, "other", sb.id, "reason", err)
		return err
	}
	out, in := orient(sa, sb)
	if in.IsLinkedTo(out.ref) {
		return nil
	}
	if !in.acceptMany {
		if _, err := g.BreakAllLinksConnectedToSlot(in.ref); err != nil {
			return err
		}
	}
	g.link(out, in)
	return nil
}

// Disconnect removes the link between two slots. Arguments may be given in
// either order. OnDisconnect runs on the input side first (which pushes a
// cleared payload into the input's node) and the output side second.
// Fails with ErrCodeNotLinked if the slots share no link.
func (g *Graph) Disconnect(a, b SlotRef) error {
	sa, sb, err := g.resolvePair(a, b)
	if err != nil {
		return err
	}
	if !sa.IsLinkedTo(sb.ref) {
		return newError(ErrCodeNotLinked, "slots are not linked", sa.id, sb.id)
	}
	out, in := orient(sa, sb)
	g.unlink(out, in)
	return nil
}

// BreakAllLinksConnectedToSlot disconnects every link of a slot and returns
// how many were removed. It iterates a copy of the link list, since each
// disconnect mutates it.
func (g *Graph) BreakAllLinksConnectedToSlot(ref SlotRef) (int, error) {
	s, ok := g.Slot(ref)
	if !ok {
		return 0, expiredSlot(ref)
	}
	removed := 0
	for _, other := range s.Links() {
		o, ok := g.Slot(other)
		if !ok {
			// Counterpart already destroyed; drop the stale entry.
			s.removeLink(other)
			continue
		}
		if !s.IsLinkedTo(other) {
			// A hook from an earlier disconnect already removed it.
			continue
		}
		out, in := orient(s, o)
		g.unlink(out, in)
		removed++
	}
	return removed, nil
}

// DisconnectAllSlots breaks every link of every slot of a node and returns
// the number of links removed.
func (g *Graph) DisconnectAllSlots(ref NodeRef) (int, error) {
	n, ok := g.Node(ref)
	if !ok {
		return 0, expiredNode(ref)
	}
	return g.disconnectNode(n), nil
}

func (g *Graph) disconnectNode(n *Node) int {
	removed := 0
	for _, sr := range n.slots() {
		c, _ := g.BreakAllLinksConnectedToSlot(sr)
		removed += c
	}
	return removed
}

func (g *Graph) resolvePair(a, b SlotRef) (*Slot, *Slot, error) {
	sa, ok := g.Slot(a)
	if !ok {
		return nil, nil, expiredSlot(a)
	}
	sb, ok := g.Slot(b)
	if !ok {
		return nil, nil, expiredSlot(b)
	}
	return sa, sb, nil
}

// orient returns (output, input) for a compatible pair.
func orient(a, b *Slot) (out, in *Slot) {
	if a.place == ir.PlaceOutput {
		return a, b
	}
	return b, a
}

func (g *Graph) link(out, in *Slot) {
	out.addLink(in.ref)
	in.addLink(out.ref)
	l := Link{ID: g.ids.Next(), From: out.ref, To: in.ref}
	g.links = append(g.links, l)
	g.logger.Debug("slots connected", "link", l.ID, "from", out.id, "to", in.id, "type", in.typ)

	g.connectHooks(in, out)
	g.connectHooks(out, in)
}

func (g *Graph) unlink(out, in *Slot) {
	out.removeLink(in.ref)
	in.removeLink(out.ref)
	for i, l := range g.links {
		if l.From == out.ref && l.To == in.ref {
			g.links = append(g.links[:i], g.links[i+1:]...)
			g.logger.Debug("slots disconnected", "link", l.ID, "from", out.id, "to", in.id)
			break
		}
	}

	g.disconnectHooks(in, out)
	g.disconnectHooks(out, in)
}

func (g *Graph) connectHooks(self, other *Slot) {
	n, ok := g.Node(self.node)
	if !ok {
		return
	}
	if self.place == ir.PlaceInput {
		g.pull(other, self)
	}
	if n.hooks.OnConnect != nil {
		n.hooks.OnConnect(g, self, other)
	}
}

func (g *Graph) disconnectHooks(self, other *Slot) {
	n, ok := g.Node(self.node)
	if !ok {
		return
	}
	if self.place == ir.PlaceInput {
		g.clear(self)
	}
	if n.hooks.OnDisconnect != nil {
		n.hooks.OnDisconnect(g, self, other)
	}
}
