package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lumo/internal/graph"
	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/library"
)

func pairLibrary(t *testing.T) *library.Library {
	t.Helper()
	lib, err := library.New(&ir.Catalog{
		Types: []ir.NodeType{
			{Name: "Loader", Outputs: []ir.SlotDecl{{Name: "out", Type: ir.PayloadTexture2D}}},
			{Name: "Viewer", Inputs: []ir.SlotDecl{{Name: "in", Type: ir.PayloadTexture2D}}},
		},
	})
	require.NoError(t, err)
	return lib
}

func addNode(t *testing.T, g *graph.Graph, f NodeFactory, typ string) *graph.Node {
	t.Helper()
	spec, err := f.NewNode(typ)
	require.NoError(t, err)
	ref, err := g.AddNode(graph.NodeRef{}, spec)
	require.NoError(t, err)
	n, ok := g.Node(ref)
	require.True(t, ok)
	return n
}

func TestRecorder_RecordsHooksInGraphOrder(t *testing.T) {
	rec := NewRecorder(pairLibrary(t))
	g := graph.New(graph.WithTokenGenerator(NewTokenSequence("t")))

	loader := addNode(t, g, rec, "Loader") // node 1, slot 2
	viewer := addNode(t, g, rec, "Viewer") // node 3, slot 4
	out := loader.Outputs()[0]
	in := viewer.Inputs()[0]

	require.NoError(t, g.Connect(out, in))
	assert.Equal(t, []HookCall{
		{Hook: HookConnect, Node: 3, Slot: 4, Other: 2},
		{Hook: HookConnect, Node: 1, Slot: 2, Other: 4},
	}, rec.Take())

	_, err := g.SendFrontNotification(out, ir.EventTextureUpdateDone)
	require.NoError(t, err)
	_, err = g.Broadcast(ir.EventGraphIsLoaded)
	require.NoError(t, err)
	assert.Equal(t, []HookCall{
		{Hook: HookNotify, Node: 3, Slot: 4, Other: 2, Event: ir.EventTextureUpdateDone},
		{Hook: HookNotify, Node: 1, Event: ir.EventGraphIsLoaded},
		{Hook: HookNotify, Node: 3, Event: ir.EventGraphIsLoaded},
	}, rec.Take())

	require.NoError(t, g.Disconnect(out, in))
	assert.Equal(t, []HookCall{
		{Hook: HookDisconnect, Node: 3, Slot: 4, Other: 2},
		{Hook: HookDisconnect, Node: 1, Slot: 2, Other: 4},
	}, rec.Take())
	assert.Empty(t, rec.Calls())
}

func TestRecorder_KeepsWrappedHooks(t *testing.T) {
	rec := NewRecorder(pairLibrary(t))
	g := graph.New()

	loader := addNode(t, g, rec, "Loader")
	viewer := addNode(t, g, rec, "Viewer")
	require.NoError(t, g.Connect(loader.Outputs()[0], viewer.Inputs()[0]))
	_, err := g.SendFrontNotification(loader.Outputs()[0], ir.EventTextureUpdateDone)
	require.NoError(t, err)

	st, ok := library.StateOf(viewer)
	require.True(t, ok)
	assert.Equal(t, 1, st.Notified)
	assert.Equal(t, ir.EventTextureUpdateDone, st.LastEvent)
	assert.Len(t, rec.Calls(), 3)

	rec.Reset()
	assert.Empty(t, rec.Calls())
}

func TestRecorder_SelectionHandler(t *testing.T) {
	rec := NewRecorder(pairLibrary(t))
	g := graph.New(graph.WithSelectionHandler(rec.SelectionHandler()))

	loader := addNode(t, g, rec, "Loader")
	out := loader.Outputs()[0]
	require.NoError(t, g.SelectOutput(ir.OutputRight, out))
	_, err := g.SendFrontNotification(out, ir.EventTextureUpdateDone)
	require.NoError(t, err)

	assert.Equal(t, []HookCall{
		{Hook: HookSelected, Node: 1, Slot: 2, Event: ir.EventTextureUpdateDone, Button: "right"},
	}, rec.Calls())
	assert.Equal(t, "selected button=right node=1 slot=2 event=TextureUpdateDone", rec.Calls()[0].String())
}

func TestRecorder_PropagatesFactoryError(t *testing.T) {
	rec := NewRecorder(pairLibrary(t))
	_, err := rec.NewNode("Missing")
	assert.Error(t, err)
}

func TestHookCall_String(t *testing.T) {
	assert.Equal(t, "connect node=3 slot=4 other=2",
		HookCall{Hook: HookConnect, Node: 3, Slot: 4, Other: 2}.String())
	assert.Equal(t, "notify node=3 slot=4 from=2 event=TextureUpdateDone",
		HookCall{Hook: HookNotify, Node: 3, Slot: 4, Other: 2, Event: ir.EventTextureUpdateDone}.String())
	assert.Equal(t, "notify node=1 event=GraphIsLoaded",
		HookCall{Hook: HookNotify, Node: 1, Event: ir.EventGraphIsLoaded}.String())
}
