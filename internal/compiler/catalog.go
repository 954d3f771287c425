package compiler

import (
	"fmt"
	"math"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/lumo/internal/ir"
)

// CompileCatalog compiles a CUE catalog value into node types and palette
// overrides. Node types keep their declaration order.
//
//	colors: TEXTURE_2D: "#e6801a"
//	node: Blur: {
//		category: "Effects"
//		inputs: [{name: "in", type: "TEXTURE_2D"}]
//		outputs: [{name: "out", type: "TEXTURE_2D"}]
//		passthrough: true
//	}
func CompileCatalog(v cue.Value) (*ir.Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cat := &ir.Catalog{Types: []ir.NodeType{}}

	nodesVal := v.LookupPath(cue.ParsePath("node"))
	if nodesVal.Exists() {
		iter, err := nodesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			nt, err := CompileNodeType(iter.Value())
			if err != nil {
				return nil, err
			}
			cat.Types = append(cat.Types, nt)
		}
	}

	colorsVal := v.LookupPath(cue.ParsePath("colors"))
	if colorsVal.Exists() {
		colors, err := parseColors(colorsVal)
		if err != nil {
			return nil, err
		}
		cat.Colors = colors
	}

	return cat, nil
}

// CompileNodeType parses one node-type declaration. The type name is the
// value's last path label.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`node: Blur: { ... }`)
//	nt, err := CompileNodeType(v.LookupPath(cue.ParsePath("node.Blur")))
func CompileNodeType(v cue.Value) (ir.NodeType, error) {
	if err := v.Err(); err != nil {
		return ir.NodeType{}, formatCUEError(err)
	}

	nt := ir.NodeType{Inputs: []ir.SlotDecl{}, Outputs: []ir.SlotDecl{}}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		nt.Name = labels[len(labels)-1].String()
	}

	var err error
	if nt.Category, err = optionalString(v, "category"); err != nil {
		return ir.NodeType{}, err
	}
	if nt.Inputs, err = parseSlotDecls(v, "inputs"); err != nil {
		return ir.NodeType{}, err
	}
	if nt.Outputs, err = parseSlotDecls(v, "outputs"); err != nil {
		return ir.NodeType{}, err
	}
	if nt.Passthrough, err = optionalBool(v, "passthrough"); err != nil {
		return ir.NodeType{}, err
	}
	if nt.DynamicSlots, err = optionalBool(v, "dynamic"); err != nil {
		return ir.NodeType{}, err
	}
	if nt.DeletionDisabled, err = optionalBool(v, "deletion_disabled"); err != nil {
		return ir.NodeType{}, err
	}

	if len(nt.Inputs) == 0 && len(nt.Outputs) == 0 && !nt.DynamicSlots {
		return ir.NodeType{}, &CompileError{
			Field:   "inputs",
			Message: fmt.Sprintf("node type %s declares no slots and is not dynamic", nt.Name),
			Pos:     v.Pos(),
		}
	}

	return nt, nil
}

// parseSlotDecls parses an optional list of slot declarations.
func parseSlotDecls(v cue.Value, field string) ([]ir.SlotDecl, error) {
	decls := []ir.SlotDecl{}
	listVal := v.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return decls, nil
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		decl, err := parseSlotDecl(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

func parseSlotDecl(v cue.Value, field string) (ir.SlotDecl, error) {
	var decl ir.SlotDecl

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return decl, &CompileError{Field: field + ".name", Message: "name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return decl, formatCUEError(err)
	}
	decl.Name = name

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return decl, &CompileError{Field: field + ".type", Message: "type is required", Pos: v.Pos()}
	}
	typeStr, err := typeVal.String()
	if err != nil {
		return decl, formatCUEError(err)
	}
	pt, err := ir.ParsePayloadType(typeStr)
	if err != nil {
		return decl, &CompileError{Field: field + ".type", Message: err.Error(), Pos: typeVal.Pos()}
	}
	decl.Type = pt

	bindingVal := v.LookupPath(cue.ParsePath("binding"))
	if bindingVal.Exists() {
		if bindingVal.IncompleteKind() == cue.FloatKind {
			return decl, &CompileError{
				Field:   field + ".binding",
				Message: "binding must be an int",
				Pos:     bindingVal.Pos(),
			}
		}
		b, err := bindingVal.Int64()
		if err != nil {
			return decl, formatCUEError(err)
		}
		if b < 0 || b > math.MaxUint32 {
			return decl, &CompileError{
				Field:   field + ".binding",
				Message: fmt.Sprintf("binding %d out of range", b),
				Pos:     bindingVal.Pos(),
			}
		}
		decl.Binding = uint32(b)
	}

	if decl.AcceptMany, err = optionalBool(v, "accept_many"); err != nil {
		return decl, err
	}
	return decl, nil
}

func parseColors(v cue.Value) (map[ir.PayloadType]ir.Color, error) {
	colors := make(map[ir.PayloadType]ir.Color)
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		label := iter.Label()
		pt, err := ir.ParsePayloadType(label)
		if err != nil {
			return nil, &CompileError{Field: "colors." + label, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		c, err := ir.ParseColor(s)
		if err != nil {
			return nil, &CompileError{Field: "colors." + label, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		colors[pt] = c
	}
	return colors, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// First error with a position wins.
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
