package graph

import "slices"

// ClaimSlotID gives a slot the id recorded for it in a saved document.
//
// The first claim of an id wins. A later claim of the same id, or a second
// claim on the same slot, fails with ErrCodeIDConflict and the slot keeps
// its current id. An id held by an entity that was never claimed (a fresh
// id that happens to match) is taken over and the holder is renumbered.
// The allocator is ratcheted past id whether or not the claim succeeds.
func (g *Graph) ClaimSlotID(ref SlotRef, id int64) error {
	s, ok := g.Slot(ref)
	if !ok {
		return expiredSlot(ref)
	}
	g.ids.Ratchet(id)
	if s.idClaimed {
		return newError(ErrCodeIDConflict, "slot id already set from document", s.id, id)
	}
	if s.id != id {
		if err := g.freeID(id, s.id); err != nil {
			return err
		}
		delete(g.slotsByID, s.id)
		s.id = id
		g.slotsByID[id] = ref
	}
	s.idClaimed = true
	return nil
}

// ClaimNodeID gives a node the id recorded for it in a saved document,
// with the same rules as ClaimSlotID.
func (g *Graph) ClaimNodeID(ref NodeRef, id int64) error {
	n, ok := g.Node(ref)
	if !ok {
		return expiredNode(ref)
	}
	g.ids.Ratchet(id)
	if n.idClaimed {
		return newError(ErrCodeIDConflict, "node id already set from document", 0, id)
	}
	if n.id != id {
		if err := g.freeID(id, 0); err != nil {
			return err
		}
		delete(g.nodesByID, n.id)
		n.id = id
		g.nodesByID[id] = ref
	}
	n.idClaimed = true
	return nil
}

// freeID makes id available: it fails if a claimed entity holds it and
// renumbers an unclaimed holder otherwise.
func (g *Graph) freeID(id, claimant int64) error {
	if r, ok := g.slotsByID[id]; ok {
		holder, _ := g.Slot(r)
		if holder.idClaimed {
			return newError(ErrCodeIDConflict, "id already claimed by another slot", claimant, id)
		}
		holder.id = g.ids.Next()
		delete(g.slotsByID, id)
		g.slotsByID[holder.id] = r
		return nil
	}
	if r, ok := g.nodesByID[id]; ok {
		holder, _ := g.Node(r)
		if holder.idClaimed {
			return newError(ErrCodeIDConflict, "id already claimed by a node", claimant, id)
		}
		holder.id = g.ids.Next()
		delete(g.nodesByID, id)
		g.nodesByID[holder.id] = r
		return nil
	}
	if i := slices.IndexFunc(g.links, func(l Link) bool { return l.ID == id }); i >= 0 {
		g.links[i].ID = g.ids.Next()
	}
	return nil
}
