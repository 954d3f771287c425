package harness

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/lumo/internal/graph"
	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/library"
	"github.com/roach88/lumo/internal/payload"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", ev.Header())
		}
	}
	return buf.String()
}

func (r *runner) evaluate(ctx context.Context, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := r.assert(ctx, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func (r *runner) assert(ctx context.Context, a Assertion) error {
	trace := r.result.Trace
	switch a.Type {
	case AssertLinked, AssertNotLinked:
		from, err := r.slot(a.From)
		if err != nil {
			return err
		}
		to, err := r.slot(a.To)
		if err != nil {
			return err
		}
		var linked bool
		err = r.engine.Do(ctx, func(g *graph.Graph) error {
			linked = slotsLinked(g, from, to)
			return nil
		})
		if err != nil {
			return err
		}
		if want := a.Type == AssertLinked; linked != want {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s (%s) linked=%t to %s (%s)", a.From, from, want, a.To, to),
				Actual:   fmt.Sprintf("linked=%t", linked),
				Trace:    trace,
			}
		}
		return nil

	case AssertLinkCount:
		var n int
		if err := r.engine.Do(ctx, func(g *graph.Graph) error {
			n = len(g.Links())
			return nil
		}); err != nil {
			return err
		}
		if n != *a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d links", *a.Count),
				Actual:   fmt.Sprintf("%d links", n),
				Trace:    trace,
			}
		}
		return nil

	case AssertPayload:
		return r.assertPayload(ctx, a)

	case AssertNotified:
		return r.assertNotified(ctx, a)

	case AssertSelected:
		return r.assertSelected(ctx, a)

	case AssertTraceContains:
		var slot ir.SlotAddr
		if a.Slot != "" {
			var err error
			if slot, err = r.slot(a.Slot); err != nil {
				return err
			}
		}
		return assertTraceContains(trace, a, slot)

	case AssertTraceCount:
		return assertTraceCount(trace, a)

	case AssertTraceOrder:
		return assertTraceOrder(trace, a)

	case AssertJournalReplay:
		return r.assertJournalReplay(ctx)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func slotsLinked(g *graph.Graph, a, b ir.SlotAddr) bool {
	ra, ok := g.ResolveAddr(a)
	if !ok {
		return false
	}
	rb, ok := g.ResolveAddr(b)
	if !ok {
		return false
	}
	s, _ := g.Slot(ra)
	return s.IsLinkedTo(rb)
}

// assertPayload compares the payload a slot's node holds at the slot's
// (type, binding) with the expected fields, subset match. A missing expect
// means the binding must be empty.
func (r *runner) assertPayload(ctx context.Context, a Assertion) error {
	addr, err := r.slot(a.Slot)
	if err != nil {
		return err
	}
	var got ir.IRValue
	err = r.engine.Do(ctx, func(g *graph.Graph) error {
		ref, ok := g.ResolveAddr(addr)
		if !ok {
			return fmt.Errorf("slot %s no longer exists", addr)
		}
		s, _ := g.Slot(ref)
		n, _ := g.Node(s.Node())
		st, ok := library.StateOf(n)
		if !ok {
			return fmt.Errorf("node %d has no payload table", n.ID())
		}
		v, ok := st.Table.Get(s.Type(), s.Place(), s.Binding())
		if !ok {
			return nil
		}
		got, err = payload.ToIR(v)
		return err
	})
	if err != nil {
		return err
	}

	if a.Expect == nil {
		if got != nil {
			return &AssertionError{Type: a.Type, Expected: a.Slot + " empty", Actual: describe(got)}
		}
		return nil
	}
	want, err := ir.FromGo(a.Expect)
	if err != nil {
		return fmt.Errorf("expect: %w", err)
	}
	if got == nil || !matchValue(want, got) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s holds %s", a.Slot, describe(want)),
			Actual:   describe(got),
		}
	}
	return nil
}

func (r *runner) assertNotified(ctx context.Context, a Assertion) error {
	id, err := r.node(a.Node)
	if err != nil {
		return err
	}
	var count int
	var last ir.EventKind
	err = r.engine.Do(ctx, func(g *graph.Graph) error {
		ref, ok := g.NodeByID(id)
		if !ok {
			return fmt.Errorf("node %d no longer exists", id)
		}
		n, _ := g.Node(ref)
		st, ok := library.StateOf(n)
		if !ok {
			return fmt.Errorf("node %d has no library state", id)
		}
		count, last = st.Notified, st.LastEvent
		return nil
	})
	if err != nil {
		return err
	}

	if a.Count != nil && count != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s notified %d times", a.Node, *a.Count),
			Actual:   fmt.Sprintf("%d times", count),
		}
	}
	if a.Event != "" && last.String() != a.Event {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s last notified with %s", a.Node, a.Event),
			Actual:   lastEventName(count, last),
		}
	}
	return nil
}

func lastEventName(count int, last ir.EventKind) string {
	if count == 0 {
		return "never notified"
	}
	return last.String()
}

func (r *runner) assertSelected(ctx context.Context, a Assertion) error {
	button, err := ir.ParseOutputButton(a.Button)
	if err != nil {
		return err
	}
	var want ir.SlotAddr
	if a.Slot != "" {
		if want, err = r.slot(a.Slot); err != nil {
			return err
		}
	}
	var got ir.SlotAddr
	err = r.engine.Do(ctx, func(g *graph.Graph) error {
		ref, ok := g.SelectedOutput(button)
		if !ok {
			return nil
		}
		got, _ = g.Addr(ref)
		return nil
	})
	if err != nil {
		return err
	}
	if got != want {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s output %s", a.Button, want),
			Actual:   got.String(),
		}
	}
	return nil
}

// assertJournalReplay folds the journal written so far and checks that it
// rebuilds the live link set.
func (r *runner) assertJournalReplay(ctx context.Context) error {
	replay, err := r.store.ReplayLinks(ctx, 0)
	if err != nil {
		return err
	}
	var live []ir.LinkRecord
	if err := r.engine.Do(ctx, func(g *graph.Graph) error {
		live = g.Snapshot().Links
		return nil
	}); err != nil {
		return err
	}
	want, got := linkEnds(live), linkEnds(replay.Links)
	if !slices.Equal(want, got) {
		return &AssertionError{
			Type:     AssertJournalReplay,
			Expected: fmt.Sprintf("links %v", want),
			Actual:   fmt.Sprintf("links %v", got),
			Trace:    r.result.Trace,
		}
	}
	return nil
}

// linkEnds renders links as sorted "out->in" strings, ignoring link ids.
func linkEnds(links []ir.LinkRecord) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.From.String() + "->" + l.To.String()
	}
	slices.Sort(out)
	return out
}

// assertTraceContains checks that some command of the given kind matches
// every field the assertion sets. A slot matches either operand.
func assertTraceContains(trace []TraceEvent, a Assertion, slot ir.SlotAddr) error {
	for _, ev := range trace {
		if string(ev.Kind) != a.Kind {
			continue
		}
		if slot != (ir.SlotAddr{}) && ev.Slot != slot && ev.Other != slot {
			continue
		}
		if a.Event != "" && ev.Event != a.Event {
			continue
		}
		if a.Error != "" && ev.Error != a.Error {
			continue
		}
		return nil
	}

	var want []string
	if a.Slot != "" {
		want = append(want, "slot "+a.Slot)
	}
	if a.Event != "" {
		want = append(want, "event "+a.Event)
	}
	if a.Error != "" {
		want = append(want, "error "+a.Error)
	}
	expected := a.Kind
	if len(want) > 0 {
		expected += " with " + strings.Join(want, ", ")
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceCount checks how many commands of a kind ran, rejected ones
// included.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if string(ev.Kind) == a.Kind {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s appears %d times", a.Kind, *a.Count),
			Actual:   fmt.Sprintf("appears %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that the first occurrences of the kinds appear
// in the given order. Other commands may come in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		k := string(ev.Kind)
		if _, seen := positions[k]; !seen {
			positions[k] = i + 1
		}
	}

	for _, kind := range a.Kinds {
		if positions[kind] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all kinds present: %v", a.Kinds),
				Actual:   fmt.Sprintf("missing kind: %s", kind),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Kinds); i++ {
		prev, curr := a.Kinds[i-1], a.Kinds[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("kinds in order: %v", a.Kinds),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// matchValue reports whether got contains want: objects match on want's
// keys only, recursively; everything else must be equal.
func matchValue(want, got ir.IRValue) bool {
	wantObj, ok := want.(ir.IRObject)
	if !ok {
		return reflect.DeepEqual(want, got)
	}
	gotObj, ok := got.(ir.IRObject)
	if !ok {
		return false
	}
	for k, w := range wantObj {
		g, ok := gotObj[k]
		if !ok || !matchValue(w, g) {
			return false
		}
	}
	return true
}

func describe(v ir.IRValue) string {
	if v == nil {
		return "nothing"
	}
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
