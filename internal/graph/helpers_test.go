package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/lumo/internal/ir"
)

// tex is a stand-in texture payload.
type tex struct {
	Name string
}

type setCall struct {
	Binding uint32
	Value   *tex // nil for cleared
}

// texNode is a node that stores textures per binding and records every
// setter call.
type texNode struct {
	values map[uint32]*tex
	sets   []setCall
	events []Event
}

func newTexNode() *texNode {
	return &texNode{values: make(map[uint32]*tex)}
}

func (n *texNode) caps() []Capability {
	return []Capability{
		Produces(ir.PayloadTexture2D, func(b uint32) *tex { return n.values[b] }),
		Consumes(ir.PayloadTexture2D, func(b uint32, v *tex) {
			n.sets = append(n.sets, setCall{Binding: b, Value: v})
			n.values[b] = v
		}),
	}
}

func (n *texNode) spec(name string, inputs, outputs int) NodeSpec {
	spec := NodeSpec{
		Type:         "Tex",
		Name:         name,
		Capabilities: n.caps(),
		Hooks: Hooks{
			OnNotify: func(_ *Graph, ev Event) { n.events = append(n.events, ev) },
		},
		State: n,
	}
	for i := 0; i < inputs; i++ {
		spec.Inputs = append(spec.Inputs, SlotSpec{Name: "in", Type: ir.PayloadTexture2D})
	}
	for i := 0; i < outputs; i++ {
		spec.Outputs = append(spec.Outputs, SlotSpec{Name: "out", Type: ir.PayloadTexture2D})
	}
	return spec
}

// testGraph returns a graph with deterministic tokens.
func testGraph(opts ...Option) *Graph {
	return New(append([]Option{WithTokenGenerator(NewFixedGenerator("t"))}, opts...)...)
}

func addTex(t *testing.T, g *Graph, name string, inputs, outputs int) (NodeRef, *texNode) {
	t.Helper()
	tn := newTexNode()
	ref, err := g.AddNode(NodeRef{}, tn.spec(name, inputs, outputs))
	require.NoError(t, err)
	return ref, tn
}

func input(t *testing.T, g *Graph, n NodeRef, i int) SlotRef {
	t.Helper()
	node, ok := g.Node(n)
	require.True(t, ok)
	r, ok := node.SlotAt(ir.PlaceInput, i)
	require.True(t, ok)
	return r
}

func output(t *testing.T, g *Graph, n NodeRef, i int) SlotRef {
	t.Helper()
	node, ok := g.Node(n)
	require.True(t, ok)
	r, ok := node.SlotAt(ir.PlaceOutput, i)
	require.True(t, ok)
	return r
}

func slot(t *testing.T, g *Graph, r SlotRef) *Slot {
	t.Helper()
	s, ok := g.Slot(r)
	require.True(t, ok)
	return s
}

// requireSymmetric checks that every link is recorded on both endpoints.
func requireSymmetric(t *testing.T, g *Graph) {
	t.Helper()
	g.Walk(func(n *Node) bool {
		for _, r := range n.slots() {
			s := slot(t, g, r)
			for _, other := range s.links {
				o := slot(t, g, other)
				require.True(t, o.IsLinkedTo(s.ref), "link %d->%d not symmetric", s.id, o.id)
				require.Equal(t, s.typ, o.typ)
				require.NotEqual(t, s.place, o.place)
			}
			if s.place == ir.PlaceInput && !s.acceptMany {
				require.LessOrEqual(t, len(s.links), 1)
			}
		}
		return true
	})
}
