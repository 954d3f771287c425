package graph

import (
	"slices"

	"github.com/roach88/lumo/internal/ir"
)

// SlotSpec declares a slot to create on a node.
type SlotSpec struct {
	Name       string
	Type       ir.PayloadType
	Binding    uint32
	AcceptMany bool
}

// Slot is a typed connection point owned by exactly one node.
// Its link list is only mutated by the owning Graph.
type Slot struct {
	id         int64
	ref        SlotRef
	node       NodeRef
	place      ir.Place
	typ        ir.PayloadType
	name       string
	index      int
	binding    uint32
	acceptMany bool
	links      []SlotRef // insertion order = connection order
	idClaimed  bool
}

// ID returns the slot's process-wide id.
func (s *Slot) ID() int64 { return s.id }

// Ref returns a weak reference to the slot.
func (s *Slot) Ref() SlotRef { return s.ref }

// Node returns a weak reference to the owning node.
func (s *Slot) Node() NodeRef { return s.node }

// Place reports whether the slot is an input or an output.
func (s *Slot) Place() ir.Place { return s.place }

// Type returns the payload-type tag.
func (s *Slot) Type() ir.PayloadType { return s.typ }

// Name returns the display name.
func (s *Slot) Name() string { return s.name }

// Index is the slot's position among its node's slots of the same place.
func (s *Slot) Index() int { return s.index }

// Binding is the descriptor-binding selector the payload getter or setter
// of the owning node is called with.
func (s *Slot) Binding() uint32 { return s.binding }

// AcceptManyInputs reports whether an input may hold several links.
func (s *Slot) AcceptManyInputs() bool { return s.acceptMany }

// IDClaimed reports whether the slot's id was set from a loaded document.
func (s *Slot) IDClaimed() bool { return s.idClaimed }

// Links returns a copy of the slot's links in connection order.
func (s *Slot) Links() []SlotRef {
	if len(s.links) == 0 {
		return nil
	}
	return slices.Clone(s.links)
}

// IsConnected reports whether the slot has at least one link.
func (s *Slot) IsConnected() bool { return len(s.links) > 0 }

// IsLinkedTo reports whether other is in the slot's link list.
func (s *Slot) IsLinkedTo(other SlotRef) bool { return slices.Contains(s.links, other) }

// CanConnectTo checks whether a link between s and other is allowed.
// It returns nil when allowed, otherwise an *Error whose code names the
// first violated rule.
func (s *Slot) CanConnectTo(other *Slot) error {
	if err := s.compatible(other); err != nil {
		return err
	}
	if s.IsLinkedTo(other.ref) {
		return newError(ErrCodeAlreadyLinked, "slots are already linked", s.id, other.id)
	}
	in := s
	if other.place == ir.PlaceInput {
		in = other
	}
	if !in.acceptMany && len(in.links) > 0 {
		return newError(ErrCodeCardinality, "input already has a link", in.id, 0)
	}
	return nil
}

// compatible checks the rules that do not depend on existing links.
func (s *Slot) compatible(other *Slot) error {
	if s.place == other.place || s.place == ir.PlaceNone || other.place == ir.PlaceNone {
		return newError(ErrCodeSamePlace, "a link needs one input and one output", s.id, other.id)
	}
	if s.typ != other.typ {
		return newError(ErrCodeTypeMismatch,
			"payload types differ: "+string(s.typ)+" vs "+string(other.typ), s.id, other.id)
	}
	if s.node == other.node {
		return newError(ErrCodeSameNode, "cannot link two slots of the same node", s.id, other.id)
	}
	return nil
}

func (s *Slot) addLink(r SlotRef) {
	s.links = append(s.links, r)
}

func (s *Slot) removeLink(r SlotRef) bool {
	i := slices.Index(s.links, r)
	if i < 0 {
		return false
	}
	s.links = slices.Delete(s.links, i, i+1)
	return true
}
