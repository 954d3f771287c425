package scene

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lumo/internal/graph"
	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/library"
)

func testLibrary(t *testing.T) *library.Library {
	t.Helper()
	lib, err := library.New(&ir.Catalog{
		Types: []ir.NodeType{
			{Name: "Loader", Outputs: []ir.SlotDecl{{Name: "out", Type: ir.PayloadTexture2D}}},
			{Name: "Viewer", Inputs: []ir.SlotDecl{{Name: "in", Type: ir.PayloadTexture2D, Binding: 1}}},
			{Name: "Group", DynamicSlots: true},
		},
	})
	require.NoError(t, err)
	return lib
}

func pairDocument() ir.Document {
	return ir.Document{
		Nodes: []ir.NodeRecord{
			{ID: 1, Name: "Loader", Type: "Loader", Pos: ir.Point{X: 10, Y: 20}, Slots: []ir.SlotRecord{
				{ID: 2, Index: 0, Name: "out", Type: ir.PayloadTexture2D, Place: ir.PlaceOutput},
			}},
			{ID: 3, Name: "Viewer", Type: "Viewer", Pos: ir.Point{X: 200, Y: 20}, Slots: []ir.SlotRecord{
				{ID: 4, Index: 0, Name: "in", Type: ir.PayloadTexture2D, Place: ir.PlaceInput, Binding: 1},
			}},
		},
		Links:   []ir.LinkRecord{{ID: 5, From: ir.SlotAddr{Node: 1, Slot: 2}, To: ir.SlotAddr{Node: 3, Slot: 4}}},
		Outputs: []ir.OutputRecord{{Button: ir.OutputLeft, Slot: ir.SlotAddr{Node: 1, Slot: 2}}},
	}
}

func linkEnds(links []ir.LinkRecord) [][2]ir.SlotAddr {
	out := make([][2]ir.SlotAddr, len(links))
	for i, l := range links {
		out[i] = [2]ir.SlotAddr{l.From, l.To}
	}
	return out
}

// ============================================================================
// Encode / Decode
// ============================================================================

func TestEncode_Golden(t *testing.T) {
	data, err := Encode(pairDocument())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "encode_pair", data)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	doc := pairDocument()
	doc.Nodes[1].Parent = 1
	doc.Nodes[1].Slots[0].AcceptMany = true

	data, err := Encode(doc)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestDecode_FloatPositions(t *testing.T) {
	doc, err := Decode([]byte(`<graph version="1"><nodes>
		<node id="1" name="a" type="Loader" pos="10.6;-3.2"></node>
		<node id="2" name="b" type="Loader"></node>
	</nodes></graph>`))
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, ir.Point{X: 11, Y: -3}, doc.Nodes[0].Pos)
	assert.Equal(t, ir.Point{}, doc.Nodes[1].Pos)
	assert.Empty(t, doc.Links)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		element string
	}{
		{"version", `<graph version="2"></graph>`, "graph"},
		{"place", `<graph><nodes><node id="1" type="X"><slot index="0" type="MODEL" place="SIDEWAYS" id="2"/></node></nodes></graph>`, "node[0].slot[0]"},
		{"pos", `<graph><nodes><node id="1" type="X" pos="12"/></nodes></graph>`, "node[0]"},
		{"link", `<graph><links><link in="3" out="1:2"/></links></graph>`, "link[0]"},
		{"output button", `<graph><outputs><output type="top" ids="1:2"/></outputs></graph>`, "output[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tt.element, fe.Element)
		})
	}

	_, err := Decode([]byte("<graph"))
	assert.Error(t, err)
}

func TestReadWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.xml")
	require.NoError(t, WriteFile(path, pairDocument()))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pairDocument(), got)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
}

// ============================================================================
// Load
// ============================================================================

func TestLoad_Pair(t *testing.T) {
	lib := testLibrary(t)
	g := graph.New()

	report, err := Load(g, pairDocument(), lib)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Nodes)
	assert.Equal(t, 1, report.Links)
	assert.Equal(t, 1, report.Outputs)
	assert.Empty(t, report.Conflicts)
	assert.Empty(t, report.Skipped)

	out, ok := g.ResolveAddr(ir.SlotAddr{Node: 1, Slot: 2})
	require.True(t, ok)
	in, ok := g.ResolveAddr(ir.SlotAddr{Node: 3, Slot: 4})
	require.True(t, ok)
	s, _ := g.Slot(in)
	assert.True(t, s.IsLinkedTo(out))

	sel, ok := g.SelectedOutput(ir.OutputLeft)
	require.True(t, ok)
	assert.Equal(t, out, sel)

	g.Walk(func(n *graph.Node) bool {
		st, ok := library.StateOf(n)
		require.True(t, ok)
		assert.Equal(t, ir.EventGraphIsLoaded, st.LastEvent)
		return true
	})
	require.NotNil(t, report.Loaded)
	assert.Len(t, report.Loaded.Deliveries, 2)
}

func TestLoad_WithoutBroadcast(t *testing.T) {
	g := graph.New()
	report, err := Load(g, pairDocument(), testLibrary(t), WithoutBroadcast())
	require.NoError(t, err)
	assert.Nil(t, report.Loaded)
}

func TestLoad_SnapshotRoundTrip(t *testing.T) {
	lib := testLibrary(t)
	src := graph.New()

	spec, err := lib.NewNode("Loader")
	require.NoError(t, err)
	spec.Pos = ir.Point{X: 5, Y: 6}
	a, err := src.AddNode(graph.NodeRef{}, spec)
	require.NoError(t, err)
	spec, err = lib.NewNode("Viewer")
	require.NoError(t, err)
	b, err := src.AddNode(a, spec)
	require.NoError(t, err)

	na, _ := src.Node(a)
	nb, _ := src.Node(b)
	require.NoError(t, src.Connect(na.Outputs()[0], nb.Inputs()[0]))
	require.NoError(t, src.SelectOutput(ir.OutputRight, na.Outputs()[0]))

	want := src.Snapshot()
	data, err := Encode(want)
	require.NoError(t, err)
	doc, err := Decode(data)
	require.NoError(t, err)

	dst := graph.New()
	_, err = Load(dst, doc, lib)
	require.NoError(t, err)

	got := dst.Snapshot()
	assert.Equal(t, want.Nodes, got.Nodes)
	assert.Equal(t, want.Outputs, got.Outputs)
	assert.Equal(t, linkEnds(want.Links), linkEnds(got.Links))
}

func TestLoad_DuplicateSlotIDFirstWins(t *testing.T) {
	doc, err := Decode([]byte(`<graph version="1">
	<nodes>
		<node id="1" name="A" type="Loader" pos="0;0">
			<slot index="0" name="out" type="TEXTURE_2D" place="OUTPUT" id="7"/>
		</node>
		<node id="2" name="B" type="Loader" pos="0;0">
			<slot index="0" name="out" type="TEXTURE_2D" place="OUTPUT" id="7"/>
		</node>
		<node id="3" name="V" type="Viewer" pos="0;0">
			<slot index="0" name="in" type="TEXTURE_2D" place="INPUT" id="4" binding="1"/>
		</node>
	</nodes>
	<links>
		<link id="5" in="3:4" out="2:7"/>
	</links>
</graph>`))
	require.NoError(t, err)

	g := graph.New()
	report, err := Load(g, doc, testLibrary(t))
	require.NoError(t, err)

	require.Len(t, report.Conflicts, 1)
	c := report.Conflicts[0]
	assert.Equal(t, "slot", c.Kind)
	assert.Equal(t, int64(7), c.ID)
	assert.Equal(t, int64(2), c.Node)
	assert.NotEqual(t, int64(7), c.Kept)

	holder, ok := g.SlotByID(7)
	require.True(t, ok)
	s, _ := g.Slot(holder)
	n, _ := g.Node(s.Node())
	assert.Equal(t, "A", n.Name())

	assert.GreaterOrEqual(t, g.IDs().Current(), int64(8))

	// The link still reaches node B's slot through the file address.
	assert.Equal(t, 1, report.Links)
	bref, ok := g.NodeByID(2)
	require.True(t, ok)
	b, _ := g.Node(bref)
	bs, _ := g.Slot(b.Outputs()[0])
	assert.Equal(t, c.Kept, bs.ID())
	assert.True(t, bs.IsConnected())
}

func TestLoad_DuplicateNodeIDSkipped(t *testing.T) {
	doc, err := Decode([]byte(`<graph version="1">
	<nodes>
		<node id="1" name="A" type="Loader" pos="0;0">
			<slot index="0" name="out" type="TEXTURE_2D" place="OUTPUT" id="2"/>
		</node>
		<node id="1" name="B" type="Loader" pos="0;0">
			<slot index="0" name="out" type="TEXTURE_2D" place="OUTPUT" id="5"/>
		</node>
		<node id="3" name="V" type="Viewer" pos="0;0">
			<slot index="0" name="in" type="TEXTURE_2D" place="INPUT" id="4" binding="1"/>
		</node>
	</nodes>
	<links>
		<link id="6" in="3:4" out="1:2"/>
	</links>
</graph>`))
	require.NoError(t, err)

	g := graph.New()
	report, err := Load(g, doc, testLibrary(t))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Nodes)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, Skipped{Kind: "node", Ref: "1", Reason: "duplicate node id 1"}, report.Skipped[0])
	assert.GreaterOrEqual(t, g.IDs().Current(), int64(5))

	// Links resolve against the first node holding the id.
	assert.Equal(t, 1, report.Links)
	ref, ok := g.NodeByID(1)
	require.True(t, ok)
	n, _ := g.Node(ref)
	assert.Equal(t, "A", n.Name())
	s, _ := g.Slot(n.Outputs()[0])
	assert.True(t, s.IsConnected())
}

func TestLoad_UnknownTypeSkipsSubtree(t *testing.T) {
	doc := ir.Document{Nodes: []ir.NodeRecord{
		{ID: 1, Type: "Mystery"},
		{ID: 2, Type: "Loader", Parent: 1},
		{ID: 3, Type: "Loader"},
	}}
	g := graph.New()
	report, err := Load(g, doc, testLibrary(t))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Nodes)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, "node", report.Skipped[0].Kind)
	assert.Equal(t, "1", report.Skipped[0].Ref)
	assert.Contains(t, report.Skipped[1].Reason, "parent 1")
	r, ok := g.NodeByID(3)
	require.True(t, ok)
	n, _ := g.Node(r)
	assert.Equal(t, "Loader", n.Name())
}

func TestLoad_SlotMatching(t *testing.T) {
	doc := ir.Document{Nodes: []ir.NodeRecord{
		{ID: 1, Type: "Viewer", Slots: []ir.SlotRecord{
			{ID: 2, Index: 0, Type: ir.PayloadModel, Place: ir.PlaceInput},
			{ID: 3, Index: 1, Type: ir.PayloadTexture2D, Place: ir.PlaceInput},
		}},
		{ID: 10, Type: "Group", Slots: []ir.SlotRecord{
			{ID: 11, Index: 0, Name: "extra", Type: ir.PayloadModel, Place: ir.PlaceInput, AcceptMany: true},
			{ID: 12, Index: 0, Name: "res", Type: ir.PayloadStorageBuffer, Place: ir.PlaceOutput, Binding: 3},
			{ID: 13, Index: 1, Name: "odd", Type: "HOLOGRAM", Place: ir.PlaceOutput},
		}},
	}}
	g := graph.New()
	report, err := Load(g, doc, testLibrary(t))
	require.NoError(t, err)

	skipped := map[string]string{}
	for _, s := range report.Skipped {
		skipped[s.Ref] = s.Reason
	}
	assert.Equal(t, "no matching slot", skipped["1:2"])
	assert.Equal(t, "no matching slot", skipped["1:3"])
	assert.Contains(t, skipped["10:13"], "HOLOGRAM")

	ref, ok := g.ResolveAddr(ir.SlotAddr{Node: 10, Slot: 11})
	require.True(t, ok)
	s, _ := g.Slot(ref)
	assert.Equal(t, "extra", s.Name())
	assert.True(t, s.AcceptManyInputs())

	ref, ok = g.ResolveAddr(ir.SlotAddr{Node: 10, Slot: 12})
	require.True(t, ok)
	s, _ = g.Slot(ref)
	assert.Equal(t, ir.PlaceOutput, s.Place())
	assert.Equal(t, uint32(3), s.Binding())
}

func TestLoad_RejectedLinksAndOutputs(t *testing.T) {
	doc := pairDocument()
	doc.Links = append(doc.Links,
		ir.LinkRecord{ID: 6, From: ir.SlotAddr{Node: 1, Slot: 2}, To: ir.SlotAddr{Node: 1, Slot: 2}},
		ir.LinkRecord{ID: 7, From: ir.SlotAddr{Node: 9, Slot: 9}, To: ir.SlotAddr{Node: 3, Slot: 4}},
	)
	doc.Outputs = append(doc.Outputs,
		ir.OutputRecord{Button: ir.OutputMiddle, Slot: ir.SlotAddr{Node: 3, Slot: 4}},
		ir.OutputRecord{Button: ir.OutputRight, Slot: ir.SlotAddr{Node: 8, Slot: 8}},
	)

	g := graph.New()
	report, err := Load(g, doc, testLibrary(t))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Links)
	assert.Equal(t, 1, report.Outputs)
	kinds := []string{}
	for _, s := range report.Skipped {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []string{"link", "link", "output", "output"}, kinds)
	assert.GreaterOrEqual(t, g.IDs().Current(), int64(8))
}

func TestLoad_InvalidArguments(t *testing.T) {
	_, err := Load(nil, ir.Document{}, testLibrary(t))
	assert.Error(t, err)
	_, err = Load(graph.New(), ir.Document{}, nil)
	assert.Error(t, err)
}
