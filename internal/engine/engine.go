package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/lumo/internal/graph"
	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/scene"
	"github.com/roach88/lumo/internal/store"
)

// Engine serializes edits to one graph.
//
// Thread-safety: Submit, Do, SaveSnapshot and Stop may be called from any
// goroutine. The graph passed to New must not be touched directly once Run
// has started; use Do.
type Engine struct {
	graph    *graph.Graph
	factory  scene.Factory
	store    *store.Store
	clock    Sequencer
	logger   *slog.Logger
	queue    *requestQueue
	observer func(ir.JournalEntry)
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore journals every command to s and enables SaveSnapshot.
func WithStore(s *store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithClock sets the logical clock. Default NewClock().
func WithClock(c Sequencer) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the engine's logger. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithJournalObserver calls fn with every journal entry, after it is
// persisted. fn runs on the Run goroutine.
func WithJournalObserver(fn func(ir.JournalEntry)) Option {
	return func(e *Engine) { e.observer = fn }
}

// New creates an engine over g. factory builds nodes for AddNode and Load
// and may be nil if neither is used.
func New(g *graph.Graph, factory scene.Factory, opts ...Option) *Engine {
	e := &Engine{
		graph:   g,
		factory: factory,
		clock:   NewClock(),
		logger:  slog.Default(),
		queue:   newRequestQueue(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() Sequencer { return e.clock }

// Run processes requests until ctx is cancelled or Stop is called.
//
// After Stop, requests already queued are still processed before Run
// returns nil. On cancellation, queued requests are answered with a
// stopped error and Run returns ctx.Err().
//
// A command that fails is journaled with its error and logged; the loop
// continues.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "seq", e.clock.Current())

	for {
		if req, ok := e.queue.TryDequeue(); ok {
			e.process(ctx, req)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled", "seq", e.clock.Current())
			e.queue.Close()
			e.drain()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed by Close, so this also fires on
			// Stop. A stale signal with an empty open queue loops back.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed", "seq", e.clock.Current())
				return nil
			}
		}
	}
}

// Stop closes the request queue. Run finishes the queued requests and
// returns; later submissions fail with a stopped error.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) drain() {
	for {
		req, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		req.reply <- response{err: errStopped()}
	}
}

// Submit queues cmd and waits for its result. The returned Result is
// non-nil whenever the command was applied, even if it failed.
func (e *Engine) Submit(ctx context.Context, cmd Command) (*Result, error) {
	if cmd == nil {
		return nil, invalid("nil command")
	}
	return e.send(ctx, request{cmd: cmd})
}

// Do runs fn on the Run goroutine, for reads that need a consistent view of
// the graph. fn must not keep the graph or its slots after returning. Do is
// not journaled; fn must not mutate the graph.
func (e *Engine) Do(ctx context.Context, fn func(*graph.Graph) error) error {
	if fn == nil {
		return invalid("nil function")
	}
	_, err := e.send(ctx, request{fn: fn})
	return err
}

// SaveSnapshot stores the current graph under name, stamped with the seq
// of the last applied command.
func (e *Engine) SaveSnapshot(ctx context.Context, name string) (ir.SnapshotRecord, error) {
	if e.store == nil {
		return ir.SnapshotRecord{}, &EngineError{Code: ErrCodeNoStore, Message: "save snapshot needs a store"}
	}
	var rec ir.SnapshotRecord
	err := e.Do(ctx, func(g *graph.Graph) error {
		var err error
		rec, err = e.store.WriteSnapshot(ctx, name, e.clock.Current(), g.IDs().Current(), g.Snapshot())
		return err
	})
	if err != nil {
		return ir.SnapshotRecord{}, fmt.Errorf("save snapshot: %w", err)
	}
	e.logger.Info("snapshot saved", "id", rec.ID, "name", name, "seq", rec.Seq, "hash", rec.TopologyHash)
	return rec, nil
}

func (e *Engine) send(ctx context.Context, req request) (*Result, error) {
	req.reply = make(chan response, 1)
	if !e.queue.Enqueue(req) {
		return nil, errStopped()
	}
	select {
	case r := <-req.reply:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// process handles one request.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) process(ctx context.Context, req request) {
	if req.fn != nil {
		req.reply <- response{err: req.fn(e.graph)}
		return
	}
	res, err := e.apply(ctx, req.cmd)
	req.reply <- response{result: res, err: err}
}

// apply stamps, runs and journals one command.
func (e *Engine) apply(ctx context.Context, cmd Command) (*Result, error) {
	entry := ir.JournalEntry{Seq: e.clock.Next(), Kind: cmd.Kind(), Args: ir.IRObject{}}

	res, err := cmd.apply(ctx, e, &entry)
	if res == nil {
		res = &Result{}
	}
	res.Seq = entry.Seq
	if res.Report != nil {
		entry.Token = res.Report.Token
	}

	if err != nil {
		var ee *EngineError
		if errors.As(err, &ee) && ee.Command == "" {
			ee.Command = string(entry.Kind)
			ee.Seq = entry.Seq
		}
		entry.Error = err.Error()
		e.logger.Warn("command rejected",
			"seq", entry.Seq, "kind", entry.Kind, "slot", entry.Slot, "other", entry.Other, "error", err)
	} else {
		attrs := []any{"seq", entry.Seq, "kind", entry.Kind, "slot", entry.Slot}
		if res.Report != nil {
			attrs = append(attrs, "token", res.Report.Token, "deliveries", len(res.Report.Deliveries))
		}
		e.logger.Debug("command applied", attrs...)
	}

	if jerr := e.journal(ctx, entry, res.Report); jerr != nil {
		e.logger.Error("journal write failed", "seq", entry.Seq, "kind", entry.Kind, "error", jerr)
		return res, errors.Join(err, jerr)
	}
	return res, err
}

func (e *Engine) journal(ctx context.Context, entry ir.JournalEntry, rep *graph.Report) error {
	if e.store != nil {
		if err := e.store.WriteJournal(ctx, entry, deliveryRecords(entry.Seq, rep)); err != nil {
			return &EngineError{
				Code: ErrCodeJournal, Message: "write journal",
				Seq: entry.Seq, Command: string(entry.Kind), Err: err,
			}
		}
	}
	if e.observer != nil {
		e.observer(entry)
	}
	return nil
}

func deliveryRecords(seq int64, rep *graph.Report) []ir.DeliveryRecord {
	if rep == nil {
		return nil
	}
	out := make([]ir.DeliveryRecord, len(rep.Deliveries))
	for i, d := range rep.Deliveries {
		out[i] = ir.DeliveryRecord{
			JournalSeq: seq,
			Ord:        i,
			Depth:      d.Depth,
			Emitter:    d.Emitter,
			Receiver:   d.Receiver,
			Node:       d.Node,
			Pushed:     d.Pushed,
		}
	}
	return out
}

func (e *Engine) resolve(a ir.SlotAddr) (graph.SlotRef, error) {
	ref, ok := e.graph.ResolveAddr(a)
	if !ok {
		return graph.SlotRef{}, &EngineError{Code: ErrCodeUnresolved, Message: fmt.Sprintf("no slot %s", a)}
	}
	return ref, nil
}

// resolvePair resolves two slot addresses and orders them output first.
// The entry's operands are set either way, in the order given when the
// slots cannot be ordered.
func (e *Engine) resolvePair(entry *ir.JournalEntry, a, b ir.SlotAddr) (out, in graph.SlotRef, err error) {
	entry.Slot, entry.Other = a, b
	ra, err := e.resolve(a)
	if err != nil {
		return graph.SlotRef{}, graph.SlotRef{}, err
	}
	rb, err := e.resolve(b)
	if err != nil {
		return graph.SlotRef{}, graph.SlotRef{}, err
	}
	sa, _ := e.graph.Slot(ra)
	sb, _ := e.graph.Slot(rb)
	if sa.Place() == ir.PlaceInput && sb.Place() == ir.PlaceOutput {
		entry.Slot, entry.Other = b, a
		return rb, ra, nil
	}
	return ra, rb, nil
}

func (e *Engine) linkID(out, in graph.SlotRef) int64 {
	for _, l := range e.graph.Links() {
		if l.From == out && l.To == in {
			return l.ID
		}
	}
	return 0
}

func (e *Engine) nodeOf(s graph.SlotRef) int64 {
	sl, ok := e.graph.Slot(s)
	if !ok {
		return 0
	}
	n, ok := e.graph.Node(sl.Node())
	if !ok {
		return 0
	}
	return n.ID()
}

// subtree returns the ids of ref and all its descendants.
func (e *Engine) subtree(ref graph.NodeRef) map[int64]bool {
	ids := make(map[int64]bool)
	var walk func(graph.NodeRef)
	walk = func(r graph.NodeRef) {
		n, ok := e.graph.Node(r)
		if !ok {
			return
		}
		ids[n.ID()] = true
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(ref)
	return ids
}
