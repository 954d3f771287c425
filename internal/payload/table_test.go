package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lumo/internal/graph"
	"github.com/roach88/lumo/internal/ir"
)

// =============================================================================
// Table
// =============================================================================

func TestTable_SetGet(t *testing.T) {
	tab := NewTable()
	tex := &Texture{Name: "albedo", Width: 4, Height: 4}

	require.NoError(t, tab.Set(ir.PayloadTexture2D, ir.PlaceOutput, 1, tex))

	got, ok := tab.Get(ir.PayloadTexture2D, ir.PlaceOutput, 1)
	require.True(t, ok)
	assert.Same(t, tex, got)
	_, ok = tab.Get(ir.PayloadTexture2D, ir.PlaceOutput, 0)
	assert.False(t, ok, "bindings are independent")
	_, ok = tab.Get(ir.PayloadTexture2D, ir.PlaceInput, 1)
	assert.False(t, ok, "places are independent")
	assert.Equal(t, []uint32{1}, tab.Bindings(ir.PayloadTexture2D, ir.PlaceOutput))
	assert.Empty(t, tab.Bindings(ir.PayloadTexture2D, ir.PlaceInput))
	assert.Equal(t, 1, tab.SetCount(ir.PayloadTexture2D, ir.PlaceOutput, 1))
}

func TestTable_SetRejectsWrongType(t *testing.T) {
	tab := NewTable()

	err := tab.Set(ir.PayloadModel, ir.PlaceInput, 0, &Texture{Name: "x"})
	assert.Error(t, err)

	err = tab.Set(ir.PayloadModel, ir.PlaceInput, 0, Model{Name: "by value"})
	assert.Error(t, err)

	err = tab.Set(ir.PayloadType("BOGUS"), ir.PlaceInput, 0, &Model{})
	assert.Error(t, err)

	err = tab.Set(ir.PayloadModel, ir.PlaceNone, 0, &Model{})
	assert.Error(t, err)

	assert.Zero(t, tab.SetCount(ir.PayloadModel, ir.PlaceInput, 0))
}

func TestTable_ClearAndLast(t *testing.T) {
	tab := NewTable()
	m := &Model{Name: "teapot"}
	require.NoError(t, tab.Set(ir.PayloadModel, ir.PlaceInput, 0, m))

	last, ok := tab.Last(ir.PayloadModel)
	require.True(t, ok)
	assert.Same(t, m, last)

	require.NoError(t, tab.Set(ir.PayloadModel, ir.PlaceInput, 0, nil))

	_, ok = tab.Get(ir.PayloadModel, ir.PlaceInput, 0)
	assert.False(t, ok)
	last, ok = tab.Last(ir.PayloadModel)
	assert.True(t, ok)
	assert.Nil(t, last)
	assert.Equal(t, 2, tab.SetCount(ir.PayloadModel, ir.PlaceInput, 0))
	assert.Empty(t, tab.Bindings(ir.PayloadModel, ir.PlaceInput))
}

func TestTable_InputDoesNotReachOutputWithoutAlias(t *testing.T) {
	tab := NewTable()
	own := &Texture{Name: "composited"}
	require.NoError(t, tab.Set(ir.PayloadTexture2D, ir.PlaceOutput, 0, own))

	require.NoError(t, tab.Set(ir.PayloadTexture2D, ir.PlaceInput, 0, &Texture{Name: "input"}))
	got, ok := tab.Get(ir.PayloadTexture2D, ir.PlaceOutput, 0)
	require.True(t, ok)
	assert.Same(t, own, got)

	require.NoError(t, tab.Set(ir.PayloadTexture2D, ir.PlaceInput, 0, nil))
	got, ok = tab.Get(ir.PayloadTexture2D, ir.PlaceOutput, 0)
	require.True(t, ok)
	assert.Same(t, own, got)
}

func TestTable_Alias(t *testing.T) {
	tab := NewTable()
	held := &Texture{Name: "held"}
	require.NoError(t, tab.Set(ir.PayloadTexture2D, ir.PlaceInput, 0, held))

	tab.Alias(ir.PayloadTexture2D, 0, 3)
	tab.Alias(ir.PayloadTexture2D, 0, 3)
	tab.Alias(ir.PayloadTexture2D, 0, 0)

	got, ok := tab.Get(ir.PayloadTexture2D, ir.PlaceOutput, 3)
	require.True(t, ok, "alias applies the input's current value")
	assert.Same(t, held, got)

	tex := &Texture{Name: "x"}
	require.NoError(t, tab.Set(ir.PayloadTexture2D, ir.PlaceInput, 0, tex))

	for _, b := range []uint32{0, 3} {
		got, ok := tab.Get(ir.PayloadTexture2D, ir.PlaceOutput, b)
		require.True(t, ok, "binding %d", b)
		assert.Same(t, tex, got)
	}
	assert.Zero(t, tab.SetCount(ir.PayloadTexture2D, ir.PlaceOutput, 3), "aliased writes are not counted twice")

	require.NoError(t, tab.Set(ir.PayloadTexture2D, ir.PlaceInput, 0, nil))
	_, ok = tab.Get(ir.PayloadTexture2D, ir.PlaceOutput, 3)
	assert.False(t, ok)

	// Writing an output never flows back to the input.
	require.NoError(t, tab.Set(ir.PayloadTexture2D, ir.PlaceOutput, 3, tex))
	_, ok = tab.Get(ir.PayloadTexture2D, ir.PlaceInput, 0)
	assert.False(t, ok)
}

// =============================================================================
// Bind
// =============================================================================

func TestBind_EveryPayloadType(t *testing.T) {
	tab := NewTable()
	for _, pt := range ir.PayloadTypes {
		for _, place := range []ir.Place{ir.PlaceInput, ir.PlaceOutput} {
			c, err := Bind(tab, pt, place)
			require.NoError(t, err, "%s %s", pt, place)
			assert.Equal(t, pt, c.Type)
			assert.Equal(t, place, c.Place)
			want, _ := GoType(pt)
			assert.Equal(t, want, c.PayloadType())
		}
	}
}

func TestBind_Errors(t *testing.T) {
	_, err := Bind(NewTable(), ir.PayloadType("BOGUS"), ir.PlaceInput)
	assert.Error(t, err)
	_, err = Bind(NewTable(), ir.PayloadModel, ir.PlaceNone)
	assert.Error(t, err)
}

func tableNode(t *testing.T, g *graph.Graph, name string, pt ir.PayloadType, inputs, outputs int) (graph.NodeRef, *Table) {
	t.Helper()
	tab := NewTable()
	spec := graph.NodeSpec{Type: name, State: tab}
	for i := 0; i < inputs; i++ {
		spec.Inputs = append(spec.Inputs, graph.SlotSpec{Name: "in", Type: pt, Binding: uint32(i)})
	}
	for i := 0; i < outputs; i++ {
		spec.Outputs = append(spec.Outputs, graph.SlotSpec{Name: "out", Type: pt, Binding: uint32(i)})
	}
	for _, place := range []ir.Place{ir.PlaceInput, ir.PlaceOutput} {
		c, err := Bind(tab, pt, place)
		require.NoError(t, err)
		spec.Capabilities = append(spec.Capabilities, c)
	}
	ref, err := g.AddNode(graph.NodeRef{}, spec)
	require.NoError(t, err)
	return ref, tab
}

func TestBind_PropagatesThroughGraph(t *testing.T) {
	g := graph.New(graph.WithTokenGenerator(graph.NewFixedGenerator("t")))
	src, srcTab := tableNode(t, g, "Light", ir.PayloadLightGroup, 0, 1)
	dst, dstTab := tableNode(t, g, "Pass", ir.PayloadLightGroup, 2, 0)
	srcNode, _ := g.Node(src)
	dstNode, _ := g.Node(dst)
	out := srcNode.Outputs()[0]
	in := dstNode.Inputs()[1]
	require.NoError(t, g.Connect(out, in))

	lights := &LightGroup{Name: "sun", Lights: []Light{{Name: "key", Kind: "directional"}}}
	require.NoError(t, srcTab.Set(ir.PayloadLightGroup, ir.PlaceOutput, 0, lights))
	report, err := g.SendFrontNotification(out, ir.EventLightGroupUpdateDone)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Pushes())
	got, ok := dstTab.Get(ir.PayloadLightGroup, ir.PlaceInput, 1)
	require.True(t, ok)
	assert.Same(t, lights, got)

	require.NoError(t, g.Disconnect(out, in))
	_, ok = dstTab.Get(ir.PayloadLightGroup, ir.PlaceInput, 1)
	assert.False(t, ok, "disconnect pushes a cleared payload")
}
