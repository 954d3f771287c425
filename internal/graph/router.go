package graph

import (
	"fmt"
	"slices"

	"github.com/roach88/lumo/internal/ir"
)

// Event is one notification in flight. Emitter is zero for broadcasts;
// Receiver is zero until routing fills it in.
type Event struct {
	Kind     ir.EventKind
	Emitter  SlotRef
	Receiver SlotRef
	Token    string
}

// Delivery records one event reaching one slot (or, for broadcasts, one node).
type Delivery struct {
	Depth    int   `json:"depth"`
	Emitter  int64 `json:"emitter,omitempty"`
	Receiver int64 `json:"receiver,omitempty"`
	Node     int64 `json:"node"`
	Pushed   bool  `json:"pushed"` // a payload was pulled and pushed
}

// Report summarizes one propagation.
type Report struct {
	Token      string        `json:"token"`
	Kind       ir.EventKind  `json:"kind"`
	Origin     int64         `json:"origin,omitempty"` // emitting slot id
	Deliveries []Delivery    `json:"deliveries"`
	Expired    int           `json:"expired"` // links skipped because a reference expired
	Cycles     []*CycleError `json:"-"`
}

// Pushes counts deliveries that moved a payload.
func (r *Report) Pushes() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Pushed {
			n++
		}
	}
	return n
}

type propagation struct {
	token  string
	kind   ir.EventKind
	report *Report
	quota  *QuotaEnforcer
	depth  int
}

func (g *Graph) begin(kind ir.EventKind, origin int64) *propagation {
	token := g.tokens.Generate()
	return &propagation{
		token:  token,
		kind:   kind,
		report: &Report{Token: token, Kind: kind, Origin: origin, Deliveries: []Delivery{}},
		quota:  NewQuotaEnforcer(g.maxSteps),
	}
}

func (g *Graph) finish(p *propagation, err error) (*Report, error) {
	g.cycles.Clear(p.token)
	g.logger.Debug("propagation finished",
		"token", p.token, "event", p.kind,
		"deliveries", len(p.report.Deliveries), "expired", p.report.Expired, "cycles", len(p.report.Cycles))
	if err != nil {
		g.logger.Error("propagation aborted", "token", p.token, "event", p.kind, "error", err)
	}
	for _, obs := range g.observers {
		obs(*p.report)
	}
	return p.report, err
}

// SendFrontNotification announces that the slot's payload changed: every
// linked slot receives the event, in connection order, and the chain
// continues through nodes that re-emit.
//
// The returned report lists every delivery. The error is non-nil only when
// the slot reference expired or the step quota aborted the propagation;
// cycles are skipped and listed in the report.
func (g *Graph) SendFrontNotification(ref SlotRef, kind ir.EventKind) (*Report, error) {
	s, ok := g.Slot(ref)
	if !ok {
		return nil, expiredSlot(ref)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("send notification: invalid event kind %d", int(kind))
	}
	p := g.begin(kind, s.id)
	return g.finish(p, g.emit(p, s))
}

// SendFrontNotificationOfType emits kind from every output of the node
// whose payload type is pt, in declaration order, within one propagation.
func (g *Graph) SendFrontNotificationOfType(node NodeRef, pt ir.PayloadType, kind ir.EventKind) (*Report, error) {
	n, ok := g.Node(node)
	if !ok {
		return nil, expiredNode(node)
	}
	p := g.begin(kind, 0)
	for _, ref := range n.Outputs() {
		o, ok := g.Slot(ref)
		if !ok || o.typ != pt {
			continue
		}
		if err := g.emit(p, o); err != nil {
			return g.finish(p, err)
		}
	}
	return g.finish(p, nil)
}

// SendBackNotification asks the node owning an input slot to re-propagate:
// the node emits kind from each of its outputs whose payload type the event
// carries (every output for structural events). Used by pass-through nodes.
func (g *Graph) SendBackNotification(ref SlotRef, kind ir.EventKind) (*Report, error) {
	s, ok := g.Slot(ref)
	if !ok {
		return nil, expiredSlot(ref)
	}
	n, ok := g.Node(s.node)
	if !ok {
		return nil, expiredNode(s.node)
	}
	p := g.begin(kind, s.id)
	err := g.reemit(p, n, n.outputs, func(o *Slot) bool {
		return kind.IsStructural() || kind.Carries(o.typ)
	})
	return g.finish(p, err)
}

// Notify delivers one event to its Receiver as if Emitter had sent it,
// including the typed pull and any chained re-emission.
func (g *Graph) Notify(ev Event) (*Report, error) {
	recv, ok := g.Slot(ev.Receiver)
	if !ok {
		return nil, expiredSlot(ev.Receiver)
	}
	emitter, _ := g.Slot(ev.Emitter)
	var origin int64
	if emitter != nil {
		origin = emitter.id
	}
	p := g.begin(ev.Kind, origin)
	if ev.Token != "" {
		p.token = ev.Token
		p.report.Token = ev.Token
	}
	return g.finish(p, g.deliver(p, emitter, recv))
}

// Broadcast delivers a structural event to the OnNotify hook of every node,
// parents first. No payload moves and nothing re-emits.
func (g *Graph) Broadcast(kind ir.EventKind) (*Report, error) {
	if !kind.IsStructural() {
		return nil, fmt.Errorf("broadcast: %s is not a structural event", kind)
	}
	p := g.begin(kind, 0)
	var err error
	g.Walk(func(n *Node) bool {
		if err = p.quota.Check(p.token); err != nil {
			return false
		}
		p.report.Deliveries = append(p.report.Deliveries, Delivery{Node: n.id})
		if n.hooks.OnNotify != nil {
			n.hooks.OnNotify(g, Event{Kind: kind, Token: p.token})
		}
		return true
	})
	return g.finish(p, err)
}

// emit sends the propagation's event from one slot to each linked slot.
func (g *Graph) emit(p *propagation, from *Slot) error {
	if !g.cycles.Enter(p.token, from.id) {
		ce := &CycleError{Token: p.token, Kind: p.kind, Path: g.cycles.Path(p.token, from.id)}
		p.report.Cycles = append(p.report.Cycles, ce)
		g.logger.Warn("notification cycle skipped", "token", p.token, "event", p.kind, "slot", from.id, "path", ce.Path)
		return nil
	}
	defer g.cycles.Leave(p.token, from.id)

	g.fireSelection(from, p.kind)

	// Snapshot: hooks may change topology while we iterate.
	for _, ref := range slices.Clone(from.links) {
		recv, ok := g.Slot(ref)
		if !ok {
			p.report.Expired++
			g.logger.Debug("skipping expired link", "token", p.token, "slot", from.id, "ref", ref)
			continue
		}
		if err := g.deliver(p, from, recv); err != nil {
			return err
		}
	}
	return nil
}

// deliver hands the event to one receiving slot: typed pull, node hook,
// then chained re-emission.
func (g *Graph) deliver(p *propagation, emitter, recv *Slot) error {
	if err := p.quota.Check(p.token); err != nil {
		return err
	}
	n, ok := g.Node(recv.node)
	if !ok {
		p.report.Expired++
		return nil
	}

	d := Delivery{Depth: p.depth, Receiver: recv.id, Node: n.id}
	ev := Event{Kind: p.kind, Receiver: recv.ref, Token: p.token}
	if emitter != nil {
		d.Emitter = emitter.id
		ev.Emitter = emitter.ref
		if recv.place == ir.PlaceInput && emitter.place == ir.PlaceOutput && p.kind.Carries(recv.typ) {
			d.Pushed = g.pull(emitter, recv)
		}
	}
	p.report.Deliveries = append(p.report.Deliveries, d)

	if n.hooks.OnNotify != nil {
		n.hooks.OnNotify(g, ev)
	}

	switch {
	case p.kind.IsStructural() && recv.place == ir.PlaceInput:
		return g.reemit(p, n, n.outputs, nil)
	case p.kind.IsStructural() && recv.place == ir.PlaceOutput:
		return g.reemit(p, n, n.inputs, nil)
	case recv.place == ir.PlaceInput && p.kind.Carries(recv.typ):
		return g.reemit(p, n, n.outputs, func(o *Slot) bool { return o.typ == recv.typ })
	}
	return nil
}

func (g *Graph) reemit(p *propagation, n *Node, refs []SlotRef, keep func(*Slot) bool) error {
	p.depth++
	defer func() { p.depth-- }()
	for _, r := range slices.Clone(refs) {
		s, ok := g.Slot(r)
		if !ok || (keep != nil && !keep(s)) {
			continue
		}
		if err := g.emit(p, s); err != nil {
			return err
		}
	}
	return nil
}

// pull reads the emitter node's payload at the emitter's binding and pushes
// it into the receiver node at the receiver's binding. Bindings are
// independent per side. Returns whether a push happened.
func (g *Graph) pull(emitter, recv *Slot) bool {
	src, ok := g.Node(emitter.node)
	if !ok {
		return false
	}
	dst, ok := g.Node(recv.node)
	if !ok {
		return false
	}
	prod, ok := src.capability(emitter.typ, ir.PlaceOutput)
	if !ok {
		g.logger.Debug("emitter node has no producer", "node", src.id, "type", emitter.typ)
		return false
	}
	cons, ok := dst.capability(recv.typ, ir.PlaceInput)
	if !ok {
		g.logger.Debug("receiver node has no consumer", "node", dst.id, "type", recv.typ)
		return false
	}
	if !cons.set(recv.binding, prod.get(emitter.binding)) {
		g.logger.Warn("payload type mismatch",
			"type", recv.typ, "producer", prod.payload, "consumer", cons.payload,
			"from", emitter.id, "to", recv.id)
		return false
	}
	return true
}

// clear pushes a nil payload into an input's node.
func (g *Graph) clear(recv *Slot) {
	dst, ok := g.Node(recv.node)
	if !ok {
		return
	}
	if cons, ok := dst.capability(recv.typ, ir.PlaceInput); ok {
		cons.set(recv.binding, nil)
	}
}
