package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/lumo/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Node type errors (E101-E109)
	ErrNodeTypeNameEmpty   = "E101" // node type name is required
	ErrDuplicateNodeType   = "E102" // two node types share a name
	ErrSlotNameEmpty       = "E103" // slot name is required
	ErrUnknownPayloadType  = "E104" // slot type is not a known payload type
	ErrDuplicateSlotName   = "E105" // two slots of one place share a name
	ErrPassthroughNoPair   = "E106" // passthrough without a same-type input/output pair
	ErrAcceptManyOnOutput  = "E107" // accept_many only applies to inputs
	ErrNodeTypeWithoutSlot = "E108" // no slots and not dynamic

	// Document errors (E120-E129)
	ErrUnknownNodeType   = "E120" // node references a type missing from the catalog
	ErrDuplicateID       = "E121" // id used twice across nodes and slots
	ErrDanglingLink      = "E122" // link endpoint does not exist
	ErrIncompatibleLink  = "E123" // link endpoints violate place/type/node rules
	ErrCardinality       = "E124" // single input with more than one link
	ErrParentOrder       = "E125" // parent missing or listed after its child
	ErrDanglingOutputSel = "E126" // output selection names a missing or input slot
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateNodeTypes checks compiled node types against catalog rules.
// Returns all errors found (does not fail-fast).
func ValidateNodeTypes(types []ir.NodeType) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)

	for i, nt := range types {
		field := fmt.Sprintf("node[%d]", i)

		if strings.TrimSpace(nt.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "node type name is required",
				Code:    ErrNodeTypeNameEmpty,
			})
		} else {
			field = "node." + nt.Name
		}
		if seen[nt.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate node type: %q", nt.Name),
				Code:    ErrDuplicateNodeType,
			})
		}
		seen[nt.Name] = true

		if len(nt.Inputs) == 0 && len(nt.Outputs) == 0 && !nt.DynamicSlots {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "node type declares no slots and is not dynamic",
				Code:    ErrNodeTypeWithoutSlot,
			})
		}

		errs = append(errs, validateSlotDecls(nt.Inputs, field+".inputs", ir.PlaceInput)...)
		errs = append(errs, validateSlotDecls(nt.Outputs, field+".outputs", ir.PlaceOutput)...)

		if nt.Passthrough && !hasPassthroughPair(nt) {
			errs = append(errs, ValidationError{
				Field:   field + ".passthrough",
				Message: "passthrough needs an input and an output of the same payload type",
				Code:    ErrPassthroughNoPair,
			})
		}
	}

	return errs
}

func validateSlotDecls(decls []ir.SlotDecl, field string, place ir.Place) []ValidationError {
	var errs []ValidationError
	names := make(map[string]bool)

	for i, d := range decls {
		f := fmt.Sprintf("%s[%d]", field, i)
		if strings.TrimSpace(d.Name) == "" {
			errs = append(errs, ValidationError{Field: f + ".name", Message: "slot name is required", Code: ErrSlotNameEmpty})
		} else if names[d.Name] {
			errs = append(errs, ValidationError{
				Field:   f + ".name",
				Message: fmt.Sprintf("duplicate slot name: %q", d.Name),
				Code:    ErrDuplicateSlotName,
			})
		}
		names[d.Name] = true

		if !d.Type.Known() {
			errs = append(errs, ValidationError{
				Field:   f + ".type",
				Message: fmt.Sprintf("unknown payload type %q", d.Type),
				Code:    ErrUnknownPayloadType,
			})
		}
		if d.AcceptMany && place == ir.PlaceOutput {
			errs = append(errs, ValidationError{
				Field:   f + ".accept_many",
				Message: "accept_many only applies to inputs",
				Code:    ErrAcceptManyOnOutput,
			})
		}
	}
	return errs
}

func hasPassthroughPair(nt ir.NodeType) bool {
	for _, in := range nt.Inputs {
		for _, out := range nt.Outputs {
			if in.Type == out.Type {
				return true
			}
		}
	}
	return false
}

// ValidateDocument checks a persisted graph document for structural
// consistency. When cat is non-nil, node types must exist in it.
func ValidateDocument(doc ir.Document, cat *ir.Catalog) []ValidationError {
	var errs []ValidationError

	type slotInfo struct {
		node  int64
		rec   ir.SlotRecord
		links int
	}
	ids := make(map[int64]string)
	nodes := make(map[int64]bool)
	slots := make(map[int64]*slotInfo)

	claim := func(id int64, field string) {
		if prev, ok := ids[id]; ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("id %d already used by %s", id, prev),
				Code:    ErrDuplicateID,
			})
			return
		}
		ids[id] = field
	}

	for i, n := range doc.Nodes {
		field := fmt.Sprintf("nodes[%d]", i)
		claim(n.ID, field)
		if n.Parent != 0 && !nodes[n.Parent] {
			errs = append(errs, ValidationError{
				Field:   field + ".parent",
				Message: fmt.Sprintf("parent %d is missing or listed after node %d", n.Parent, n.ID),
				Code:    ErrParentOrder,
			})
		}
		nodes[n.ID] = true

		if cat != nil {
			if _, ok := cat.Lookup(n.Type); !ok {
				errs = append(errs, ValidationError{
					Field:   field + ".type",
					Message: fmt.Sprintf("unknown node type %q", n.Type),
					Code:    ErrUnknownNodeType,
				})
			}
		}

		for j, s := range n.Slots {
			sf := fmt.Sprintf("%s.slots[%d]", field, j)
			claim(s.ID, sf)
			if !s.Type.Known() {
				errs = append(errs, ValidationError{
					Field:   sf + ".type",
					Message: fmt.Sprintf("unknown payload type %q", s.Type),
					Code:    ErrUnknownPayloadType,
				})
			}
			if _, dup := slots[s.ID]; !dup {
				slots[s.ID] = &slotInfo{node: n.ID, rec: s}
			}
		}
	}

	resolve := func(a ir.SlotAddr) *slotInfo {
		s, ok := slots[a.Slot]
		if !ok || s.node != a.Node {
			return nil
		}
		return s
	}

	for i, l := range doc.Links {
		field := fmt.Sprintf("links[%d]", i)
		from, to := resolve(l.From), resolve(l.To)
		if from == nil || to == nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("link %s -> %s has a missing endpoint", l.From, l.To),
				Code:    ErrDanglingLink,
			})
			continue
		}
		switch {
		case from.rec.Place != ir.PlaceOutput || to.rec.Place != ir.PlaceInput:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("link %s -> %s must run from an output to an input", l.From, l.To),
				Code:    ErrIncompatibleLink,
			})
		case from.rec.Type != to.rec.Type:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("link %s -> %s joins %s to %s", l.From, l.To, from.rec.Type, to.rec.Type),
				Code:    ErrIncompatibleLink,
			})
		case from.node == to.node:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("link %s -> %s stays on one node", l.From, l.To),
				Code:    ErrIncompatibleLink,
			})
		default:
			to.links++
			if to.links > 1 && !to.rec.AcceptMany {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("input %s accepts a single link", l.To),
					Code:    ErrCardinality,
				})
			}
		}
	}

	for i, o := range doc.Outputs {
		s := resolve(o.Slot)
		if s == nil || s.rec.Place != ir.PlaceOutput {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("outputs[%d]", i),
				Message: fmt.Sprintf("%s output %s is not an output slot", o.Button, o.Slot),
				Code:    ErrDanglingOutputSel,
			})
		}
	}

	return errs
}
