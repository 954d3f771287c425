package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lumo/internal/ir"
)

// nonNilSets returns the setter calls that carried a payload.
func nonNilSets(n *texNode) []setCall {
	var out []setCall
	for _, c := range n.sets {
		if c.Value != nil {
			out = append(out, c)
		}
	}
	return out
}

// =============================================================================
// Front notification
// =============================================================================

func TestSendFrontNotification_ChainThroughPassthrough(t *testing.T) {
	g := testGraph()
	n1, loader := addTex(t, g, "Loader", 0, 1)
	n2, identity := addTex(t, g, "Identity", 1, 1)
	n3, consumer := addTex(t, g, "Consumer", 1, 0)
	require.NoError(t, g.Connect(output(t, g, n1, 0), input(t, g, n2, 0)))
	require.NoError(t, g.Connect(output(t, g, n2, 0), input(t, g, n3, 0)))

	x := &tex{Name: "X"}
	loader.values[0] = x
	identity.sets, consumer.sets = nil, nil

	report, err := g.SendFrontNotification(output(t, g, n1, 0), ir.EventTextureUpdateDone)

	require.NoError(t, err)
	require.Len(t, consumer.sets, 1, "consumer setter must run exactly once")
	assert.Same(t, x, consumer.sets[0].Value)
	assert.Same(t, x, consumer.values[0])
	assert.Len(t, identity.sets, 1)
	assert.Equal(t, 2, report.Pushes())
	assert.Empty(t, report.Cycles)

	require.Len(t, report.Deliveries, 2)
	assert.Equal(t, 0, report.Deliveries[0].Depth)
	assert.Equal(t, 1, report.Deliveries[1].Depth)
	assert.Equal(t, slot(t, g, input(t, g, n3, 0)).ID(), report.Deliveries[1].Receiver)
}

func TestSendFrontNotification_ConnectionOrder(t *testing.T) {
	g := testGraph()
	a, _ := addTex(t, g, "A", 0, 1)
	out := output(t, g, a, 0)
	var want []int64
	for _, name := range []string{"B", "C", "D"} {
		n, _ := addTex(t, g, name, 1, 0)
		in := input(t, g, n, 0)
		require.NoError(t, g.Connect(out, in))
		want = append(want, slot(t, g, in).ID())
	}

	report, err := g.SendFrontNotification(out, ir.EventTextureUpdateDone)

	require.NoError(t, err)
	var got []int64
	for _, d := range report.Deliveries {
		got = append(got, d.Receiver)
	}
	assert.Equal(t, want, got)
}

func TestSendFrontNotification_BindingsIndependent(t *testing.T) {
	g := testGraph()
	src := newTexNode()
	srcSpec := src.spec("Src", 0, 0)
	srcSpec.Outputs = []SlotSpec{{Name: "normal", Type: ir.PayloadTexture2D, Binding: 2}}
	a, err := g.AddNode(NodeRef{}, srcSpec)
	require.NoError(t, err)
	dst := newTexNode()
	dstSpec := dst.spec("Dst", 0, 0)
	dstSpec.Inputs = []SlotSpec{{Name: "albedo", Type: ir.PayloadTexture2D, Binding: 0}}
	b, err := g.AddNode(NodeRef{}, dstSpec)
	require.NoError(t, err)
	require.NoError(t, g.Connect(output(t, g, a, 0), input(t, g, b, 0)))

	normal := &tex{Name: "normal"}
	src.values[2] = normal
	src.values[0] = &tex{Name: "wrong"}

	_, err = g.SendFrontNotification(output(t, g, a, 0), ir.EventTextureUpdateDone)

	require.NoError(t, err)
	assert.Same(t, normal, dst.values[0])
}

func TestSendFrontNotification_KindNotCarryingType(t *testing.T) {
	g := testGraph()
	a, src := addTex(t, g, "A", 0, 1)
	b, dst := addTex(t, g, "B", 1, 1)
	c, _ := addTex(t, g, "C", 1, 0)
	require.NoError(t, g.Connect(output(t, g, a, 0), input(t, g, b, 0)))
	require.NoError(t, g.Connect(output(t, g, b, 0), input(t, g, c, 0)))
	src.values[0] = &tex{Name: "X"}
	dst.sets = nil

	report, err := g.SendFrontNotification(output(t, g, a, 0), ir.EventLightGroupUpdateDone)

	require.NoError(t, err)
	require.Len(t, report.Deliveries, 1, "no re-emission for an event the slot type does not carry")
	assert.False(t, report.Deliveries[0].Pushed)
	assert.Empty(t, dst.sets)
	require.Len(t, dst.events, 1)
	assert.Equal(t, ir.EventLightGroupUpdateDone, dst.events[0].Kind)
}

func TestSendFrontNotification_PayloadTypeMismatch(t *testing.T) {
	type other struct{}
	g := testGraph()
	a, src := addTex(t, g, "A", 0, 1)
	var got []*other
	b, err := g.AddNode(NodeRef{}, NodeSpec{
		Type:   "Odd",
		Inputs: []SlotSpec{{Name: "in", Type: ir.PayloadTexture2D}},
		Capabilities: []Capability{
			Consumes(ir.PayloadTexture2D, func(_ uint32, v *other) { got = append(got, v) }),
		},
	})
	require.NoError(t, err)
	require.NoError(t, g.Connect(output(t, g, a, 0), input(t, g, b, 0)))
	src.values[0] = &tex{Name: "X"}
	got = nil

	report, err := g.SendFrontNotification(output(t, g, a, 0), ir.EventTextureUpdateDone)

	require.NoError(t, err)
	require.Len(t, report.Deliveries, 1)
	assert.False(t, report.Deliveries[0].Pushed)
	assert.Empty(t, got)
}

func TestSendFrontNotification_ExpiredRef(t *testing.T) {
	g := testGraph()
	a, _ := addTex(t, g, "A", 0, 1)
	out := output(t, g, a, 0)
	require.NoError(t, g.RemoveNode(a))

	report, err := g.SendFrontNotification(out, ir.EventTextureUpdateDone)

	assert.Nil(t, report)
	assert.True(t, IsExpired(err))
}

func TestSendFrontNotification_InvalidKind(t *testing.T) {
	g := testGraph()
	a, _ := addTex(t, g, "A", 0, 1)

	_, err := g.SendFrontNotification(output(t, g, a, 0), ir.EventNone)

	assert.Error(t, err)
}

func TestSendFrontNotification_SkipsLinkExpiredMidPropagation(t *testing.T) {
	g := testGraph()
	a, src := addTex(t, g, "A", 0, 1)
	c, victim := addTex(t, g, "C", 1, 0)

	killer := newTexNode()
	spec := killer.spec("B", 1, 0)
	spec.Hooks.OnNotify = func(g *Graph, ev Event) {
		killer.events = append(killer.events, ev)
		require.NoError(t, g.RemoveNode(c))
	}
	b, err := g.AddNode(NodeRef{}, spec)
	require.NoError(t, err)

	out := output(t, g, a, 0)
	require.NoError(t, g.Connect(out, input(t, g, b, 0)))
	require.NoError(t, g.Connect(out, input(t, g, c, 0)))
	src.values[0] = &tex{Name: "X"}
	victim.sets = nil

	report, err := g.SendFrontNotification(out, ir.EventTextureUpdateDone)

	require.NoError(t, err)
	assert.Len(t, report.Deliveries, 1)
	assert.Equal(t, 1, report.Expired)
	assert.Len(t, killer.events, 1)
	assert.Empty(t, nonNilSets(victim))
}

func TestSendFrontNotificationOfType(t *testing.T) {
	g := testGraph()
	src := newTexNode()
	spec := src.spec("Multi", 0, 2)
	spec.Outputs = append(spec.Outputs, SlotSpec{Name: "model", Type: ir.PayloadModel})
	a, err := g.AddNode(NodeRef{}, spec)
	require.NoError(t, err)
	b, _ := addTex(t, g, "B", 1, 0)
	c, _ := addTex(t, g, "C", 1, 0)
	m, err := g.AddNode(NodeRef{}, NodeSpec{Type: "M", Inputs: []SlotSpec{{Name: "in", Type: ir.PayloadModel}}})
	require.NoError(t, err)
	require.NoError(t, g.Connect(output(t, g, a, 0), input(t, g, b, 0)))
	require.NoError(t, g.Connect(output(t, g, a, 1), input(t, g, c, 0)))
	require.NoError(t, g.Connect(output(t, g, a, 2), input(t, g, m, 0)))

	report, err := g.SendFrontNotificationOfType(a, ir.PayloadTexture2D, ir.EventTextureUpdateDone)

	require.NoError(t, err)
	require.Len(t, report.Deliveries, 2)
	assert.Equal(t, slot(t, g, input(t, g, b, 0)).ID(), report.Deliveries[0].Receiver)
	assert.Equal(t, slot(t, g, input(t, g, c, 0)).ID(), report.Deliveries[1].Receiver)
}

// =============================================================================
// Cycles and quota
// =============================================================================

func TestSendFrontNotification_CycleSkipped(t *testing.T) {
	g := testGraph()
	p, _ := addTex(t, g, "P", 1, 1)
	q, _ := addTex(t, g, "Q", 1, 1)
	require.NoError(t, g.Connect(output(t, g, p, 0), input(t, g, q, 0)))
	require.NoError(t, g.Connect(output(t, g, q, 0), input(t, g, p, 0)))
	pOut := slot(t, g, output(t, g, p, 0)).ID()
	qOut := slot(t, g, output(t, g, q, 0)).ID()

	report, err := g.SendFrontNotification(output(t, g, p, 0), ir.EventTextureUpdateDone)

	require.NoError(t, err)
	assert.Len(t, report.Deliveries, 2)
	require.Len(t, report.Cycles, 1)
	assert.Equal(t, []int64{pOut, qOut, pOut}, report.Cycles[0].Path)
	assert.True(t, IsCycleError(report.Cycles[0]))
	assert.Equal(t, 0, g.cycles.HistorySize(), "cycle state is cleared after each propagation")
}

func TestSendFrontNotification_DiamondIsNotCycle(t *testing.T) {
	g := testGraph()
	a, _ := addTex(t, g, "A", 0, 1)
	b, _ := addTex(t, g, "B", 1, 1)
	c, _ := addTex(t, g, "C", 1, 1)
	d, _ := addTex(t, g, "D", 2, 1)
	e, sink := addTex(t, g, "E", 1, 0)
	out := output(t, g, a, 0)
	require.NoError(t, g.Connect(out, input(t, g, b, 0)))
	require.NoError(t, g.Connect(out, input(t, g, c, 0)))
	require.NoError(t, g.Connect(output(t, g, b, 0), input(t, g, d, 0)))
	require.NoError(t, g.Connect(output(t, g, c, 0), input(t, g, d, 1)))
	require.NoError(t, g.Connect(output(t, g, d, 0), input(t, g, e, 0)))
	sink.sets = nil

	report, err := g.SendFrontNotification(out, ir.EventTextureUpdateDone)

	require.NoError(t, err)
	assert.Empty(t, report.Cycles)
	assert.Len(t, sink.sets, 2, "the converging node re-emits once per path")
}

func TestSendFrontNotification_QuotaAborts(t *testing.T) {
	g := testGraph(WithMaxSteps(2))
	a, _ := addTex(t, g, "A", 0, 1)
	b, _ := addTex(t, g, "B", 1, 1)
	c, _ := addTex(t, g, "C", 1, 1)
	d, last := addTex(t, g, "D", 1, 0)
	require.NoError(t, g.Connect(output(t, g, a, 0), input(t, g, b, 0)))
	require.NoError(t, g.Connect(output(t, g, b, 0), input(t, g, c, 0)))
	require.NoError(t, g.Connect(output(t, g, c, 0), input(t, g, d, 0)))
	last.sets = nil

	report, err := g.SendFrontNotification(output(t, g, a, 0), ir.EventTextureUpdateDone)

	require.Error(t, err)
	assert.True(t, IsStepsExceededError(err))
	require.NotNil(t, report)
	assert.Len(t, report.Deliveries, 2)
	assert.Empty(t, last.sets)
}

// =============================================================================
// Structural events
// =============================================================================

func TestSendFrontNotification_StructuralFollowsAllOutputs(t *testing.T) {
	g := testGraph()
	a, _ := addTex(t, g, "A", 0, 1)
	b, err := g.AddNode(NodeRef{}, NodeSpec{
		Type:    "Split",
		Inputs:  []SlotSpec{{Name: "in", Type: ir.PayloadTexture2D}},
		Outputs: []SlotSpec{{Name: "model", Type: ir.PayloadModel}},
	})
	require.NoError(t, err)
	m, err := g.AddNode(NodeRef{}, NodeSpec{Type: "M", Inputs: []SlotSpec{{Name: "in", Type: ir.PayloadModel}}})
	require.NoError(t, err)
	require.NoError(t, g.Connect(output(t, g, a, 0), input(t, g, b, 0)))
	require.NoError(t, g.Connect(output(t, g, b, 0), input(t, g, m, 0)))

	report, err := g.SendFrontNotification(output(t, g, a, 0), ir.EventGraphIsLoaded)

	require.NoError(t, err)
	assert.Len(t, report.Deliveries, 2)
	assert.Zero(t, report.Pushes())
}

func TestSendFrontNotification_StructuralFromInputWalksBackward(t *testing.T) {
	g := testGraph()
	a, _ := addTex(t, g, "A", 0, 1)
	b, _ := addTex(t, g, "B", 1, 1)
	c, _ := addTex(t, g, "C", 1, 0)
	require.NoError(t, g.Connect(output(t, g, a, 0), input(t, g, b, 0)))
	require.NoError(t, g.Connect(output(t, g, b, 0), input(t, g, c, 0)))

	report, err := g.SendFrontNotification(input(t, g, c, 0), ir.EventSomeTasksWasUpdated)

	require.NoError(t, err)
	require.Len(t, report.Deliveries, 2)
	assert.Equal(t, slot(t, g, output(t, g, b, 0)).ID(), report.Deliveries[0].Receiver)
	assert.Equal(t, slot(t, g, output(t, g, a, 0)).ID(), report.Deliveries[1].Receiver)
}

func TestBroadcast(t *testing.T) {
	g := testGraph()
	parent, pn := addTex(t, g, "Parent", 0, 0)
	child := newTexNode()
	_, err := g.AddNode(parent, child.spec("Child", 0, 0))
	require.NoError(t, err)
	_, other := addTex(t, g, "Other", 0, 0)

	report, err := g.Broadcast(ir.EventGraphIsLoaded)

	require.NoError(t, err)
	assert.Len(t, report.Deliveries, 3)
	for _, n := range []*texNode{pn, child, other} {
		require.Len(t, n.events, 1)
		assert.Equal(t, ir.EventGraphIsLoaded, n.events[0].Kind)
		assert.Equal(t, report.Token, n.events[0].Token)
	}
}

func TestBroadcast_RejectsPayloadEvent(t *testing.T) {
	g := testGraph()

	_, err := g.Broadcast(ir.EventTextureUpdateDone)

	assert.Error(t, err)
}

// =============================================================================
// Back notification and direct delivery
// =============================================================================

func TestSendBackNotification(t *testing.T) {
	g := testGraph()
	b, pass := addTex(t, g, "B", 1, 1)
	c, sink := addTex(t, g, "C", 1, 0)
	require.NoError(t, g.Connect(output(t, g, b, 0), input(t, g, c, 0)))
	y := &tex{Name: "Y"}
	pass.values[0] = y
	sink.sets = nil

	report, err := g.SendBackNotification(input(t, g, b, 0), ir.EventTextureUpdateDone)

	require.NoError(t, err)
	require.Len(t, sink.sets, 1)
	assert.Same(t, y, sink.sets[0].Value)
	assert.Equal(t, 1, report.Pushes())
}

func TestNotify_UsesGivenToken(t *testing.T) {
	g := testGraph()
	a, src := addTex(t, g, "A", 0, 1)
	b, dst := addTex(t, g, "B", 1, 0)
	out, in := output(t, g, a, 0), input(t, g, b, 0)
	require.NoError(t, g.Connect(out, in))
	x := &tex{Name: "X"}
	src.values[0] = x

	report, err := g.Notify(Event{Kind: ir.EventTextureUpdateDone, Emitter: out, Receiver: in, Token: "manual"})

	require.NoError(t, err)
	assert.Equal(t, "manual", report.Token)
	assert.Same(t, x, dst.values[0])
	require.Len(t, dst.events, 1)
	assert.Equal(t, "manual", dst.events[0].Token)
}

func TestReportObserver(t *testing.T) {
	var seen []Report
	g := testGraph(WithReportObserver(func(r Report) { seen = append(seen, r) }))
	a, _ := addTex(t, g, "A", 0, 1)
	b, _ := addTex(t, g, "B", 1, 0)
	require.NoError(t, g.Connect(output(t, g, a, 0), input(t, g, b, 0)))

	_, err := g.SendFrontNotification(output(t, g, a, 0), ir.EventTextureUpdateDone)
	require.NoError(t, err)
	_, err = g.Broadcast(ir.EventNewFrameAvailable)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, "t", seen[0].Token)
	assert.Equal(t, "t-2", seen[1].Token)
	assert.Equal(t, ir.EventNewFrameAvailable, seen[1].Kind)
}

// =============================================================================
// Output selection
// =============================================================================

func TestSelectOutput_FiresOnEmit(t *testing.T) {
	type fired struct {
		button ir.OutputButton
		slot   int64
		kind   ir.EventKind
	}
	var got []fired
	g := testGraph(WithSelectionHandler(func(_ *Graph, b ir.OutputButton, s *Slot, k ir.EventKind) {
		got = append(got, fired{b, s.ID(), k})
	}))
	a, _ := addTex(t, g, "A", 0, 1)
	out := output(t, g, a, 0)
	require.NoError(t, g.SelectOutput(ir.OutputMiddle, out))

	_, err := g.SendFrontNotification(out, ir.EventTextureUpdateDone)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, fired{ir.OutputMiddle, slot(t, g, out).ID(), ir.EventTextureUpdateDone}, got[0])
}

func TestSelectOutput_RejectsInput(t *testing.T) {
	g := testGraph()
	a, _ := addTex(t, g, "A", 1, 0)

	err := g.SelectOutput(ir.OutputLeft, input(t, g, a, 0))

	assert.Equal(t, ErrCodeNotOutput, CodeOf(err))
}

func TestSelectOutput_ClearedOnRemoveAndZeroRef(t *testing.T) {
	g := testGraph()
	a, _ := addTex(t, g, "A", 0, 1)
	b, _ := addTex(t, g, "B", 0, 1)
	require.NoError(t, g.SelectOutput(ir.OutputLeft, output(t, g, a, 0)))
	require.NoError(t, g.SelectOutput(ir.OutputRight, output(t, g, b, 0)))

	require.NoError(t, g.RemoveNode(a))
	require.NoError(t, g.SelectOutput(ir.OutputRight, SlotRef{}))

	_, ok := g.SelectedOutput(ir.OutputLeft)
	assert.False(t, ok)
	_, ok = g.SelectedOutput(ir.OutputRight)
	assert.False(t, ok)
}
