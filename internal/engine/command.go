package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/lumo/internal/graph"
	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/library"
	"github.com/roach88/lumo/internal/payload"
	"github.com/roach88/lumo/internal/scene"
)

// Command is one journaled edit or notification. The set is closed: the
// command types below are the only implementations.
type Command interface {
	Kind() ir.JournalKind

	// apply runs the command on the Run goroutine and fills in the
	// entry's operands and args. It is called with entry.Seq assigned.
	apply(ctx context.Context, e *Engine, entry *ir.JournalEntry) (*Result, error)
}

// Result is what a command did.
type Result struct {
	Seq     int64             `json:"seq"`
	Node    int64             `json:"node,omitempty"`    // node created by AddNode
	Link    int64             `json:"link,omitempty"`    // link created or removed by a single-link command
	Removed int               `json:"removed,omitempty"` // links removed
	Report  *graph.Report     `json:"report,omitempty"`  // propagation, for notifying commands
	Load    *scene.LoadReport `json:"load,omitempty"`
}

// AddNode instantiates a catalog node type.
type AddNode struct {
	Type   string
	Name   string // empty keeps the type's default name
	Parent int64  // 0 adds a root
	Pos    ir.Point

	// ID and SlotIDs, when set, are claimed for the new node and its slots
	// (inputs then outputs). Restore uses them to reproduce journaled ids.
	ID      int64
	SlotIDs []int64
}

func (AddNode) Kind() ir.JournalKind { return ir.JournalAddNode }

func (c AddNode) apply(_ context.Context, e *Engine, entry *ir.JournalEntry) (*Result, error) {
	entry.Args["type"] = ir.IRString(c.Type)
	entry.Args["parent"] = ir.IRInt(c.Parent)
	entry.Args["x"] = ir.IRInt(c.Pos.X)
	entry.Args["y"] = ir.IRInt(c.Pos.Y)

	if e.factory == nil {
		return nil, invalid("no node factory configured")
	}
	spec, err := e.factory.NewNode(c.Type)
	if err != nil {
		return nil, &EngineError{Code: ErrCodeInvalidCommand, Message: "add node", Err: err}
	}
	if c.Name != "" {
		spec.Name = c.Name
	}
	spec.Pos = c.Pos
	entry.Args["name"] = ir.IRString(spec.Name)

	var parent graph.NodeRef
	if c.Parent != 0 {
		ref, ok := e.graph.NodeByID(c.Parent)
		if !ok {
			return nil, unresolvedNode(c.Parent)
		}
		parent = ref
	}

	ref, err := e.graph.AddNode(parent, spec)
	if err != nil {
		return nil, fmt.Errorf("add node %s: %w", c.Type, err)
	}
	if c.ID != 0 {
		if err := e.graph.ClaimNodeID(ref, c.ID); err != nil {
			e.logger.Warn("node id not reproduced", "want", c.ID, "error", err)
		}
	}
	n, _ := e.graph.Node(ref)
	slots := append(n.Inputs(), n.Outputs()...)
	for i, id := range c.SlotIDs {
		if i >= len(slots) || id == 0 {
			break
		}
		if err := e.graph.ClaimSlotID(slots[i], id); err != nil {
			e.logger.Warn("slot id not reproduced", "node", n.ID(), "want", id, "error", err)
		}
	}

	ids := make(ir.IRArray, 0, len(slots))
	for _, s := range slots {
		sl, _ := e.graph.Slot(s)
		ids = append(ids, ir.IRInt(sl.ID()))
	}
	entry.Args["slots"] = ids
	entry.Slot = ir.SlotAddr{Node: n.ID()}
	return &Result{Node: n.ID()}, nil
}

// RemoveNode destroys a node and its subtree.
type RemoveNode struct {
	Node int64
}

func (RemoveNode) Kind() ir.JournalKind { return ir.JournalRemoveNode }

func (c RemoveNode) apply(_ context.Context, e *Engine, entry *ir.JournalEntry) (*Result, error) {
	entry.Slot = ir.SlotAddr{Node: c.Node}
	ref, ok := e.graph.NodeByID(c.Node)
	if !ok {
		return nil, unresolvedNode(c.Node)
	}

	subtree := e.subtree(ref)
	removed := 0
	for _, l := range e.graph.Links() {
		if subtree[e.nodeOf(l.From)] || subtree[e.nodeOf(l.To)] {
			removed++
		}
	}

	if err := e.graph.RemoveNode(ref); err != nil {
		return nil, fmt.Errorf("remove node %d: %w", c.Node, err)
	}

	var ids []int64
	for id := range subtree {
		if id != c.Node {
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		slices.Sort(ids)
		nodes := make(ir.IRArray, len(ids))
		for i, id := range ids {
			nodes[i] = ir.IRInt(id)
		}
		entry.Args["nodes"] = nodes
	}
	return &Result{Removed: removed}, nil
}

// Connect links an output to an input. From and To may be given in either
// order; the journal records them output first.
type Connect struct {
	From, To ir.SlotAddr
}

func (Connect) Kind() ir.JournalKind { return ir.JournalConnect }

func (c Connect) apply(_ context.Context, e *Engine, entry *ir.JournalEntry) (*Result, error) {
	out, in, err := e.resolvePair(entry, c.From, c.To)
	if err != nil {
		return nil, err
	}
	if err := e.graph.Connect(out, in); err != nil {
		return nil, fmt.Errorf("connect %s %s: %w", entry.Slot, entry.Other, err)
	}
	entry.Link = e.linkID(out, in)
	return &Result{Link: entry.Link}, nil
}

// Reconnect links an output to an input after breaking the input's
// existing links when it accepts only one.
type Reconnect struct {
	From, To ir.SlotAddr
}

func (Reconnect) Kind() ir.JournalKind { return ir.JournalReconnect }

func (c Reconnect) apply(_ context.Context, e *Engine, entry *ir.JournalEntry) (*Result, error) {
	out, in, err := e.resolvePair(entry, c.From, c.To)
	if err != nil {
		return nil, err
	}
	before := e.graph.Links()
	if err := e.graph.Reconnect(out, in); err != nil {
		return nil, fmt.Errorf("reconnect %s %s: %w", entry.Slot, entry.Other, err)
	}
	entry.Link = e.linkID(out, in)
	after := make(map[int64]bool)
	for _, l := range e.graph.Links() {
		after[l.ID] = true
	}
	removed := 0
	for _, l := range before {
		if !after[l.ID] {
			removed++
		}
	}
	entry.Args["removed"] = ir.IRInt(removed)
	return &Result{Link: entry.Link, Removed: removed}, nil
}

// Disconnect removes the link between two slots.
type Disconnect struct {
	From, To ir.SlotAddr
}

func (Disconnect) Kind() ir.JournalKind { return ir.JournalDisconnect }

func (c Disconnect) apply(_ context.Context, e *Engine, entry *ir.JournalEntry) (*Result, error) {
	out, in, err := e.resolvePair(entry, c.From, c.To)
	if err != nil {
		return nil, err
	}
	entry.Link = e.linkID(out, in)
	if err := e.graph.Disconnect(out, in); err != nil {
		entry.Link = 0
		return nil, fmt.Errorf("disconnect %s %s: %w", entry.Slot, entry.Other, err)
	}
	return &Result{Link: entry.Link, Removed: 1}, nil
}

// BreakAll removes every link touching one slot.
type BreakAll struct {
	Slot ir.SlotAddr
}

func (BreakAll) Kind() ir.JournalKind { return ir.JournalBreakAll }

func (c BreakAll) apply(_ context.Context, e *Engine, entry *ir.JournalEntry) (*Result, error) {
	entry.Slot = c.Slot
	ref, err := e.resolve(c.Slot)
	if err != nil {
		return nil, err
	}
	n, err := e.graph.BreakAllLinksConnectedToSlot(ref)
	if err != nil {
		return nil, fmt.Errorf("break links of %s: %w", c.Slot, err)
	}
	return &Result{Removed: n}, nil
}

// DisconnectAll removes every link touching any slot of one node.
type DisconnectAll struct {
	Node int64
}

func (DisconnectAll) Kind() ir.JournalKind { return ir.JournalDisconnectAll }

func (c DisconnectAll) apply(_ context.Context, e *Engine, entry *ir.JournalEntry) (*Result, error) {
	entry.Slot = ir.SlotAddr{Node: c.Node}
	ref, ok := e.graph.NodeByID(c.Node)
	if !ok {
		return nil, unresolvedNode(c.Node)
	}
	n, err := e.graph.DisconnectAllSlots(ref)
	if err != nil {
		return nil, fmt.Errorf("disconnect node %d: %w", c.Node, err)
	}
	return &Result{Removed: n}, nil
}

// SetPayload stores a payload in the node's table at the slot's binding.
// A nil or null Value clears it. With Emit, the slot then sends the update
// event for its payload type.
type SetPayload struct {
	Slot  ir.SlotAddr
	Value ir.IRValue
	Emit  bool
}

func (SetPayload) Kind() ir.JournalKind { return ir.JournalSetPayload }

func (c SetPayload) apply(_ context.Context, e *Engine, entry *ir.JournalEntry) (*Result, error) {
	entry.Slot = c.Slot
	_, null := c.Value.(ir.IRNull)
	clearing := c.Value == nil || null
	if !clearing {
		entry.Args["value"] = c.Value
	}
	entry.Args["emit"] = ir.IRBool(c.Emit)

	ref, err := e.resolve(c.Slot)
	if err != nil {
		return nil, err
	}
	s, _ := e.graph.Slot(ref)
	n, _ := e.graph.Node(s.Node())
	st, ok := library.StateOf(n)
	if !ok {
		return nil, invalid("node %d has no payload table", n.ID())
	}

	var v any
	if !clearing {
		v, err = payload.FromIR(s.Type(), c.Value)
		if err != nil {
			return nil, &EngineError{Code: ErrCodeInvalidCommand, Message: "set payload", Err: err}
		}
	}
	if err := st.Table.Set(s.Type(), s.Place(), s.Binding(), v); err != nil {
		return nil, &EngineError{Code: ErrCodeInvalidCommand, Message: "set payload", Err: err}
	}
	if !c.Emit {
		return &Result{}, nil
	}

	kind, ok := ir.UpdateEventFor(s.Type())
	if !ok {
		return nil, invalid("no update event for %s", s.Type())
	}
	entry.Event = kind.String()
	rep, err := e.graph.SendFrontNotification(ref, kind)
	if err != nil {
		return &Result{Report: rep}, fmt.Errorf("emit from %s: %w", c.Slot, err)
	}
	return &Result{Report: rep}, nil
}

// Notify sends an event forward from one slot.
type Notify struct {
	Slot  ir.SlotAddr
	Event ir.EventKind
}

func (Notify) Kind() ir.JournalKind { return ir.JournalNotify }

func (c Notify) apply(_ context.Context, e *Engine, entry *ir.JournalEntry) (*Result, error) {
	entry.Slot = c.Slot
	entry.Event = c.Event.String()
	ref, err := e.resolve(c.Slot)
	if err != nil {
		return nil, err
	}
	rep, err := e.graph.SendFrontNotification(ref, c.Event)
	if err != nil {
		return &Result{Report: rep}, fmt.Errorf("notify from %s: %w", c.Slot, err)
	}
	return &Result{Report: rep}, nil
}

// NotifyType sends an event forward from every output of one payload type
// on a node.
type NotifyType struct {
	Node  int64
	Type  ir.PayloadType
	Event ir.EventKind
}

func (NotifyType) Kind() ir.JournalKind { return ir.JournalNotify }

func (c NotifyType) apply(_ context.Context, e *Engine, entry *ir.JournalEntry) (*Result, error) {
	entry.Slot = ir.SlotAddr{Node: c.Node}
	entry.Event = c.Event.String()
	entry.Args["type"] = ir.IRString(c.Type)
	ref, ok := e.graph.NodeByID(c.Node)
	if !ok {
		return nil, unresolvedNode(c.Node)
	}
	rep, err := e.graph.SendFrontNotificationOfType(ref, c.Type, c.Event)
	if err != nil {
		return &Result{Report: rep}, fmt.Errorf("notify %s outputs of node %d: %w", c.Type, c.Node, err)
	}
	return &Result{Report: rep}, nil
}

// BackNotify sends an event backward from one slot.
type BackNotify struct {
	Slot  ir.SlotAddr
	Event ir.EventKind
}

func (BackNotify) Kind() ir.JournalKind { return ir.JournalBackNotify }

func (c BackNotify) apply(_ context.Context, e *Engine, entry *ir.JournalEntry) (*Result, error) {
	entry.Slot = c.Slot
	entry.Event = c.Event.String()
	ref, err := e.resolve(c.Slot)
	if err != nil {
		return nil, err
	}
	rep, err := e.graph.SendBackNotification(ref, c.Event)
	if err != nil {
		return &Result{Report: rep}, fmt.Errorf("back notify from %s: %w", c.Slot, err)
	}
	return &Result{Report: rep}, nil
}

// Broadcast delivers a structural event to every node.
type Broadcast struct {
	Event ir.EventKind
}

func (Broadcast) Kind() ir.JournalKind { return ir.JournalBroadcast }

func (c Broadcast) apply(_ context.Context, e *Engine, entry *ir.JournalEntry) (*Result, error) {
	entry.Event = c.Event.String()
	rep, err := e.graph.Broadcast(c.Event)
	if err != nil {
		return &Result{Report: rep}, err
	}
	return &Result{Report: rep}, nil
}

// SelectOutput assigns an output slot to a button. A zero Slot clears the
// button.
type SelectOutput struct {
	Button ir.OutputButton
	Slot   ir.SlotAddr
}

func (SelectOutput) Kind() ir.JournalKind { return ir.JournalSelectOutput }

func (c SelectOutput) apply(_ context.Context, e *Engine, entry *ir.JournalEntry) (*Result, error) {
	entry.Slot = c.Slot
	entry.Args["button"] = ir.IRString(c.Button.String())
	var ref graph.SlotRef
	if c.Slot != (ir.SlotAddr{}) {
		r, err := e.resolve(c.Slot)
		if err != nil {
			return nil, err
		}
		ref = r
	}
	if err := e.graph.SelectOutput(c.Button, ref); err != nil {
		return nil, fmt.Errorf("select %s output: %w", c.Button, err)
	}
	return &Result{}, nil
}

// Load applies a scene document to the graph. With a store configured the
// resulting graph is also saved as a snapshot at the command's seq, which
// is what journal replay resumes from.
type Load struct {
	Doc  ir.Document
	Name string
}

func (Load) Kind() ir.JournalKind { return ir.JournalLoad }

func (c Load) apply(ctx context.Context, e *Engine, entry *ir.JournalEntry) (*Result, error) {
	if c.Name != "" {
		entry.Args["name"] = ir.IRString(c.Name)
	}
	if e.factory == nil {
		return nil, invalid("no node factory configured")
	}
	rep, err := scene.Load(e.graph, c.Doc, e.factory, scene.WithLogger(e.logger))
	res := &Result{Load: rep}
	if rep != nil {
		res.Report = rep.Loaded
		entry.Args["nodes"] = ir.IRInt(rep.Nodes)
		entry.Args["links"] = ir.IRInt(rep.Links)
		entry.Args["skipped"] = ir.IRInt(len(rep.Skipped))
	}
	if err != nil {
		return res, err
	}
	if e.store == nil {
		return res, nil
	}

	snap, err := e.store.WriteSnapshot(ctx, c.Name, entry.Seq, e.graph.IDs().Current(), e.graph.Snapshot())
	if err != nil {
		return res, &EngineError{Code: ErrCodeJournal, Message: "write load snapshot", Err: err}
	}
	entry.Args["snapshot"] = ir.IRString(snap.ID)
	return res, nil
}
