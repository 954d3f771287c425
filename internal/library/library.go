// Package library turns compiled node-type declarations into graph node
// specs whose getters and setters are backed by a payload.Table.
package library

import (
	"errors"
	"fmt"

	"github.com/roach88/lumo/internal/compiler"
	"github.com/roach88/lumo/internal/graph"
	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/payload"
)

// State is the per-node data a library node carries in graph.Node.State.
type State struct {
	Type  ir.NodeType
	Table *payload.Table

	// Notified counts events delivered to the node, broadcasts included.
	Notified int
	// LastEvent is the most recent event kind delivered to the node.
	LastEvent ir.EventKind
}

// Library is a catalog of node types ready to instantiate.
type Library struct {
	types  []ir.NodeType
	byName map[string]int
	colors map[ir.PayloadType]ir.Color
}

// New builds a library from a compiled catalog. The catalog must pass
// compiler.ValidateNodeTypes.
func New(cat *ir.Catalog) (*Library, error) {
	if cat == nil {
		return nil, errors.New("library: nil catalog")
	}
	if verrs := compiler.ValidateNodeTypes(cat.Types); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, fmt.Errorf("library: invalid catalog: %w", errors.Join(errs...))
	}

	l := &Library{
		types:  append([]ir.NodeType(nil), cat.Types...),
		byName: make(map[string]int, len(cat.Types)),
		colors: cat.Colors,
	}
	for i, t := range l.types {
		l.byName[t.Name] = i
	}
	return l, nil
}

// Types returns the node types in catalog order.
func (l *Library) Types() []ir.NodeType {
	return append([]ir.NodeType(nil), l.types...)
}

// Lookup finds a node type by name.
func (l *Library) Lookup(name string) (ir.NodeType, bool) {
	i, ok := l.byName[name]
	if !ok {
		return ir.NodeType{}, false
	}
	return l.types[i], true
}

// Palette returns the default slot colors with the catalog's overrides.
func (l *Library) Palette() graph.Palette {
	return graph.DefaultPalette().Merge(l.colors)
}

// NewNode returns a spec for a fresh node of the named type. Each call
// creates a new payload table; the spec's State is a *State.
//
// Pass-through types alias every input binding to the bindings of the
// outputs with the same payload type, so what arrives on the input is what
// the outputs hand out. Dynamic types bind every payload type in both
// places, since slots added at load time may carry any of them.
func (l *Library) NewNode(typeName string) (graph.NodeSpec, error) {
	nt, ok := l.Lookup(typeName)
	if !ok {
		return graph.NodeSpec{}, fmt.Errorf("unknown node type %q", typeName)
	}

	st := &State{Type: nt, Table: payload.NewTable()}
	spec := graph.NodeSpec{
		Type:             nt.Name,
		Name:             nt.Name,
		State:            st,
		DeletionDisabled: nt.DeletionDisabled,
		DynamicSlots:     nt.DynamicSlots,
		Hooks: graph.Hooks{
			OnNotify: func(_ *graph.Graph, ev graph.Event) {
				st.Notified++
				st.LastEvent = ev.Kind
			},
		},
	}
	for _, d := range nt.Inputs {
		spec.Inputs = append(spec.Inputs, slotSpec(d))
	}
	for _, d := range nt.Outputs {
		spec.Outputs = append(spec.Outputs, slotSpec(d))
	}

	caps, err := capabilities(st.Table, nt)
	if err != nil {
		return graph.NodeSpec{}, fmt.Errorf("node type %s: %w", nt.Name, err)
	}
	spec.Capabilities = caps

	if nt.Passthrough {
		for _, in := range nt.Inputs {
			for _, out := range nt.Outputs {
				if in.Type == out.Type {
					st.Table.Alias(in.Type, in.Binding, out.Binding)
				}
			}
		}
	}
	return spec, nil
}

// StateOf returns the library state of a node built by NewNode.
func StateOf(n *graph.Node) (*State, bool) {
	if n == nil {
		return nil, false
	}
	st, ok := n.State().(*State)
	return st, ok
}

func slotSpec(d ir.SlotDecl) graph.SlotSpec {
	return graph.SlotSpec{Name: d.Name, Type: d.Type, Binding: d.Binding, AcceptMany: d.AcceptMany}
}

type capKey struct {
	typ   ir.PayloadType
	place ir.Place
}

func capabilities(tab *payload.Table, nt ir.NodeType) ([]graph.Capability, error) {
	var keys []capKey
	seen := make(map[capKey]bool)
	add := func(pt ir.PayloadType, place ir.Place) {
		k := capKey{pt, place}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	if nt.DynamicSlots {
		for _, pt := range ir.PayloadTypes {
			add(pt, ir.PlaceInput)
			add(pt, ir.PlaceOutput)
		}
	}
	for _, d := range nt.Inputs {
		add(d.Type, ir.PlaceInput)
	}
	for _, d := range nt.Outputs {
		add(d.Type, ir.PlaceOutput)
	}

	caps := make([]graph.Capability, 0, len(keys))
	for _, k := range keys {
		c, err := payload.Bind(tab, k.typ, k.place)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, nil
}
