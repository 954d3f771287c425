package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/lumo/internal/compiler"
	"github.com/roach88/lumo/internal/engine"
	"github.com/roach88/lumo/internal/graph"
	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/library"
	"github.com/roach88/lumo/internal/store"
	"github.com/roach88/lumo/internal/testutil"
)

// Option configures Run.
type Option func(*config)

type config struct {
	logger *slog.Logger
	store  *store.Store
}

// WithLogger routes engine and graph logs to l. By default they are
// discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithStore journals the run to st instead of a fresh in-memory store.
// The store is left open. It should be empty: seqs restart at 1.
func WithStore(st *store.Store) Option {
	return func(c *config) { c.store = st }
}

// runner holds the state of one scenario run.
type runner struct {
	scenario *Scenario
	engine   *engine.Engine
	store    *store.Store
	recorder *testutil.Recorder
	result   *Result

	nodes     map[string]int64
	slots     map[string]ir.SlotAddr
	ambiguous map[string]bool

	mu      sync.Mutex
	pending []ir.JournalEntry
}

// Run executes a scenario and returns its result.
//
// Each run gets its own graph, engine and store, a deterministic clock and
// a fresh token sequence, so the same scenario always produces the same
// trace. Failed expectations and assertions are reported in the Result;
// the error is for scenarios that cannot run at all (bad catalog, unknown
// alias, engine failure).
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	cat, err := compiler.LoadCatalog(scenario.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	lib, err := library.New(cat)
	if err != nil {
		return nil, fmt.Errorf("failed to build node library: %w", err)
	}

	st := cfg.store
	if st == nil {
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}

	r := &runner{
		scenario:  scenario,
		store:     st,
		recorder:  testutil.NewRecorder(lib),
		result:    NewResult(),
		nodes:     make(map[string]int64),
		slots:     make(map[string]ir.SlotAddr),
		ambiguous: make(map[string]bool),
	}
	g := graph.New(
		graph.WithLogger(cfg.logger),
		graph.WithTokenGenerator(testutil.NewTokenSequence(scenario.TokenPrefix)),
		graph.WithPalette(lib.Palette()),
		graph.WithSelectionHandler(r.recorder.SelectionHandler()),
	)
	r.engine = engine.New(g, r.recorder,
		engine.WithStore(st),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithLogger(cfg.logger),
		engine.WithJournalObserver(r.observe),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.engine.Run(ctx) }()
	defer func() {
		r.engine.Stop()
		<-done
	}()

	if err := r.addNodes(ctx); err != nil {
		return nil, err
	}
	for i, step := range scenario.Steps {
		if err := r.runStep(ctx, i, step); err != nil {
			return nil, err
		}
	}
	for _, msg := range r.evaluate(ctx, scenario.Assertions) {
		r.result.AddError(msg)
	}

	cfg.logger.Info("scenario finished",
		"scenario", scenario.Name, "pass", r.result.Pass, "commands", len(r.result.Trace), "errors", len(r.result.Errors))
	return r.result, nil
}

func (r *runner) observe(entry ir.JournalEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, entry)
}

// takeEntry returns the journal entry for seq.
func (r *runner) takeEntry(seq int64) ir.JournalEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := ir.JournalEntry{Seq: seq}
	for _, e := range r.pending {
		if e.Seq == seq {
			entry = e
		}
	}
	r.pending = r.pending[:0]
	return entry
}

func (r *runner) addNodes(ctx context.Context) error {
	for i, decl := range r.scenario.Nodes {
		cmd := engine.AddNode{
			Type:   decl.Type,
			Name:   decl.Name,
			Parent: r.nodes[decl.Parent],
			Pos:    ir.Point{X: decl.X, Y: decl.Y},
		}
		res, err := r.engine.Submit(ctx, cmd)
		if res != nil {
			r.trace(res, err)
		}
		if err != nil {
			return fmt.Errorf("nodes[%d] (%s): %w", i, decl.ID, err)
		}
		r.nodes[decl.ID] = res.Node
		if err := r.registerSlots(ctx, decl.ID, res.Node); err != nil {
			return fmt.Errorf("nodes[%d] (%s): %w", i, decl.ID, err)
		}
	}
	return nil
}

// registerSlots names a node's slots "<alias>.<slot>", plus the qualified
// "<alias>.inputs.<slot>" and "<alias>.outputs.<slot>" forms for names
// used in both places.
func (r *runner) registerSlots(ctx context.Context, alias string, id int64) error {
	return r.engine.Do(ctx, func(g *graph.Graph) error {
		ref, ok := g.NodeByID(id)
		if !ok {
			return fmt.Errorf("node %d vanished", id)
		}
		n, _ := g.Node(ref)
		places := []struct {
			label string
			refs  []graph.SlotRef
		}{
			{"inputs", n.Inputs()},
			{"outputs", n.Outputs()},
		}
		for _, p := range places {
			for _, sref := range p.refs {
				s, ok := g.Slot(sref)
				if !ok {
					continue
				}
				addr := ir.SlotAddr{Node: id, Slot: s.ID()}
				r.slots[alias+"."+p.label+"."+s.Name()] = addr
				short := alias + "." + s.Name()
				if prev, ok := r.slots[short]; ok && prev != addr {
					r.ambiguous[short] = true
					continue
				}
				r.slots[short] = addr
			}
		}
		return nil
	})
}

func (r *runner) slot(name string) (ir.SlotAddr, error) {
	if r.ambiguous[name] {
		return ir.SlotAddr{}, fmt.Errorf("slot %q names both an input and an output", name)
	}
	addr, ok := r.slots[name]
	if !ok {
		return ir.SlotAddr{}, fmt.Errorf("unknown slot %q", name)
	}
	return addr, nil
}

func (r *runner) node(alias string) (int64, error) {
	id, ok := r.nodes[alias]
	if !ok {
		return 0, fmt.Errorf("unknown node %q", alias)
	}
	return id, nil
}

func (r *runner) pair(l *LinkStep) (ir.SlotAddr, ir.SlotAddr, error) {
	from, err := r.slot(l.From)
	if err != nil {
		return from, from, err
	}
	to, err := r.slot(l.To)
	return from, to, err
}

// command turns a step into an engine command.
func (r *runner) command(s Step) (engine.Command, error) {
	switch {
	case s.Connect != nil:
		from, to, err := r.pair(s.Connect)
		return engine.Connect{From: from, To: to}, err
	case s.Reconnect != nil:
		from, to, err := r.pair(s.Reconnect)
		return engine.Reconnect{From: from, To: to}, err
	case s.Disconnect != nil:
		from, to, err := r.pair(s.Disconnect)
		return engine.Disconnect{From: from, To: to}, err
	case s.BreakAll != "":
		addr, err := r.slot(s.BreakAll)
		return engine.BreakAll{Slot: addr}, err
	case s.DisconnectAll != "":
		id, err := r.node(s.DisconnectAll)
		return engine.DisconnectAll{Node: id}, err
	case s.RemoveNode != "":
		id, err := r.node(s.RemoveNode)
		return engine.RemoveNode{Node: id}, err
	case s.Set != nil:
		addr, err := r.slot(s.Set.Slot)
		if err != nil {
			return nil, err
		}
		var value ir.IRValue
		if s.Set.Value != nil {
			if value, err = ir.FromGo(s.Set.Value); err != nil {
				return nil, fmt.Errorf("value: %w", err)
			}
		}
		return engine.SetPayload{Slot: addr, Value: value, Emit: s.Set.Emit}, nil
	case s.Emit != nil:
		addr, err := r.slot(s.Emit.Slot)
		if err != nil {
			return nil, err
		}
		kind, err := ir.ParseEventKind(s.Emit.Event)
		return engine.Notify{Slot: addr, Event: kind}, err
	case s.Back != nil:
		addr, err := r.slot(s.Back.Slot)
		if err != nil {
			return nil, err
		}
		kind, err := ir.ParseEventKind(s.Back.Event)
		return engine.BackNotify{Slot: addr, Event: kind}, err
	case s.EmitType != nil:
		id, err := r.node(s.EmitType.Node)
		if err != nil {
			return nil, err
		}
		pt, err := ir.ParsePayloadType(s.EmitType.Type)
		if err != nil {
			return nil, err
		}
		kind, err := ir.ParseEventKind(s.EmitType.Event)
		return engine.NotifyType{Node: id, Type: pt, Event: kind}, err
	case s.Broadcast != "":
		kind, err := ir.ParseEventKind(s.Broadcast)
		return engine.Broadcast{Event: kind}, err
	case s.Select != nil:
		button, err := ir.ParseOutputButton(s.Select.Button)
		if err != nil {
			return nil, err
		}
		var addr ir.SlotAddr
		if s.Select.Slot != "" {
			if addr, err = r.slot(s.Select.Slot); err != nil {
				return nil, err
			}
		}
		return engine.SelectOutput{Button: button, Slot: addr}, nil
	}
	return nil, fmt.Errorf("no action")
}

// runStep submits one step and checks its expect clause. Only scenario
// defects and engine failures are returned; a command the graph rejects
// is an outcome to check, not an error.
func (r *runner) runStep(ctx context.Context, i int, s Step) error {
	label := fmt.Sprintf("steps[%d] (%s)", i, s.Action())
	cmd, err := r.command(s)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	res, err := r.engine.Submit(ctx, cmd)
	if res == nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	r.trace(res, err)
	r.check(label, s.Expect, res, err)
	return nil
}

func (r *runner) check(label string, exp *ExpectClause, res *engine.Result, err error) {
	code := engine.ErrorCode(err)
	switch {
	case exp == nil || exp.Error == "":
		if err != nil {
			r.result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, err))
			return
		}
	case code != exp.Error:
		r.result.AddError(fmt.Sprintf("%s: expected error %s, got %q", label, exp.Error, code))
	}
	if exp == nil {
		return
	}

	var deliveries, pushes, cycles int
	if res.Report != nil {
		deliveries = len(res.Report.Deliveries)
		pushes = res.Report.Pushes()
		cycles = len(res.Report.Cycles)
	}
	count := func(name string, want *int, got int) {
		if want != nil && *want != got {
			r.result.AddError(fmt.Sprintf("%s: expected %d %s, got %d", label, *want, name, got))
		}
	}
	count("deliveries", exp.Deliveries, deliveries)
	count("pushes", exp.Pushes, pushes)
	count("removed links", exp.Removed, res.Removed)
	count("cycles", exp.Cycles, cycles)
}

// trace appends the command's trace event.
func (r *runner) trace(res *engine.Result, err error) {
	ev := EventFromJournal(r.takeEntry(res.Seq), nil)
	ev.Removed = res.Removed
	ev.Error = engine.ErrorCode(err)
	ev.Hooks = r.recorder.Take()
	if res.Report != nil {
		ev.Deliveries = res.Report.Deliveries
		ev.Cycles = len(res.Report.Cycles)
	}
	r.result.Trace = append(r.result.Trace, ev)
}
