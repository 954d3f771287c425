package payload

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/roach88/lumo/internal/graph"
	"github.com/roach88/lumo/internal/ir"
)

type key struct {
	typ     ir.PayloadType
	place   ir.Place
	binding uint32
}

// Table holds a node's payloads by (type, place, binding). Input setters
// write the input side, output getters read the output side; the two only
// meet through Alias. Not safe for concurrent use; the graph that owns the
// node serializes access.
type Table struct {
	values  map[key]any
	sets    map[key]int
	aliases map[key][]uint32
	last    map[ir.PayloadType]any
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		values:  make(map[key]any),
		sets:    make(map[key]int),
		aliases: make(map[key][]uint32),
		last:    make(map[ir.PayloadType]any),
	}
}

// Set stores v at (pt, place, binding). A nil v clears the entry. v must be
// a pointer to pt's Go type.
func (t *Table) Set(pt ir.PayloadType, place ir.Place, binding uint32, v any) error {
	if place != ir.PlaceInput && place != ir.PlaceOutput {
		return fmt.Errorf("payload %s: invalid place %s", pt, place)
	}
	if v != nil {
		want, ok := goTypes[pt]
		if !ok {
			return fmt.Errorf("unknown payload type %q", pt)
		}
		if got := reflect.TypeOf(v); got != reflect.PointerTo(want) {
			return fmt.Errorf("payload %s wants *%s, got %s", pt, want.Name(), got)
		}
	}
	t.store(key{pt, place, binding}, v)
	return nil
}

func (t *Table) store(k key, v any) {
	t.sets[k]++
	t.last[k.typ] = v
	t.put(k, v)
	if k.place != ir.PlaceInput {
		return
	}
	for _, b := range t.aliases[k] {
		t.put(key{k.typ, ir.PlaceOutput, b}, v)
	}
}

func (t *Table) put(k key, v any) {
	if v == nil {
		delete(t.values, k)
		return
	}
	t.values[k] = v
}

// Get returns the payload at (pt, place, binding).
func (t *Table) Get(pt ir.PayloadType, place ir.Place, binding uint32) (any, bool) {
	v, ok := t.values[key{pt, place, binding}]
	return v, ok
}

// SetCount returns how many times (pt, place, binding) was written, clears
// included.
func (t *Table) SetCount(pt ir.PayloadType, place ir.Place, binding uint32) int {
	return t.sets[key{pt, place, binding}]
}

// Last returns the most recent value written for pt on any binding.
// A clear counts as a write, so Last can return (nil, true).
func (t *Table) Last(pt ir.PayloadType) (any, bool) {
	v, ok := t.last[pt]
	return v, ok
}

// Alias copies every write to input binding in onto output binding out,
// and applies the input's current value right away. Pass-through nodes
// alias their inputs to their outputs; nothing else connects the two
// sides.
func (t *Table) Alias(pt ir.PayloadType, in, out uint32) {
	k := key{pt, ir.PlaceInput, in}
	if slices.Contains(t.aliases[k], out) {
		return
	}
	t.aliases[k] = append(t.aliases[k], out)
	if v, ok := t.values[k]; ok {
		t.put(key{pt, ir.PlaceOutput, out}, v)
	}
}

// Bindings lists the bindings of place holding a value for pt, ascending.
func (t *Table) Bindings(pt ir.PayloadType, place ir.Place) []uint32 {
	out := []uint32{}
	for k := range t.values {
		if k.typ == pt && k.place == place {
			out = append(out, k.binding)
		}
	}
	slices.Sort(out)
	return out
}

// Bind returns the capability that lets the router read (outputs) or write
// (inputs) pt through the table.
func Bind(t *Table, pt ir.PayloadType, place ir.Place) (graph.Capability, error) {
	switch pt {
	case ir.PayloadTexture2D, ir.PayloadTexture3D, ir.PayloadTextureCube:
		return bind[Texture](t, pt, place)
	case ir.PayloadTexture2DGroup:
		return bind[TextureGroup](t, pt, place)
	case ir.PayloadLightGroup:
		return bind[LightGroup](t, pt, place)
	case ir.PayloadModel, ir.PayloadMesh:
		return bind[Model](t, pt, place)
	case ir.PayloadParticles:
		return bind[Particles](t, pt, place)
	case ir.PayloadShaderPass:
		return bind[ShaderPass](t, pt, place)
	case ir.PayloadStorageBuffer:
		return bind[StorageBuffer](t, pt, place)
	case ir.PayloadTexelBuffer:
		return bind[TexelBuffer](t, pt, place)
	case ir.PayloadVariable:
		return bind[Variable](t, pt, place)
	case ir.PayloadAccelStructure:
		return bind[AccelStructure](t, pt, place)
	}
	return graph.Capability{}, fmt.Errorf("unknown payload type %q", pt)
}

func bind[T any](t *Table, pt ir.PayloadType, place ir.Place) (graph.Capability, error) {
	switch place {
	case ir.PlaceOutput:
		return graph.Produces(pt, func(binding uint32) *T {
			v, _ := t.Get(pt, ir.PlaceOutput, binding)
			p, _ := v.(*T)
			return p
		}), nil
	case ir.PlaceInput:
		return graph.Consumes(pt, func(binding uint32, v *T) {
			k := key{pt, ir.PlaceInput, binding}
			if v == nil {
				t.store(k, nil)
				return
			}
			t.store(k, v)
		}), nil
	}
	return graph.Capability{}, fmt.Errorf("bind %s: invalid place %s", pt, place)
}
