package graph

import "github.com/roach88/lumo/internal/ir"

// SelectionHandler is called when a slot selected as a graph output emits.
type SelectionHandler func(g *Graph, button ir.OutputButton, s *Slot, kind ir.EventKind)

// SelectOutput marks an output slot as the graph output for a button.
// A zero ref clears the selection.
func (g *Graph) SelectOutput(button ir.OutputButton, ref SlotRef) error {
	if int(button) < 0 || int(button) >= len(g.selected) {
		return newError(ErrCodeInvalidSpec, "unknown output button "+button.String(), 0, 0)
	}
	if ref.IsZero() {
		g.selected[button] = SlotRef{}
		return nil
	}
	s, ok := g.Slot(ref)
	if !ok {
		return expiredSlot(ref)
	}
	if s.place != ir.PlaceOutput {
		return newError(ErrCodeNotOutput, "only output slots can be selected", s.id, 0)
	}
	g.selected[button] = ref
	return nil
}

// SelectedOutput returns the slot selected for a button, if it is still live.
func (g *Graph) SelectedOutput(button ir.OutputButton) (SlotRef, bool) {
	if int(button) < 0 || int(button) >= len(g.selected) {
		return SlotRef{}, false
	}
	r := g.selected[button]
	if _, ok := g.Slot(r); !ok {
		return SlotRef{}, false
	}
	return r, true
}

func (g *Graph) fireSelection(from *Slot, kind ir.EventKind) {
	if g.onSelect == nil {
		return
	}
	for i, r := range g.selected {
		if r == from.ref {
			g.onSelect(g, ir.OutputButton(i), from, kind)
		}
	}
}

func (g *Graph) clearSelection(ref SlotRef) {
	for i, r := range g.selected {
		if r == ref {
			g.selected[i] = SlotRef{}
		}
	}
}
