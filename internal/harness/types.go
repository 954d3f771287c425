package harness

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/lumo/internal/graph"
	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/testutil"
)

// TraceEvent is one journaled command with everything it caused.
type TraceEvent struct {
	Seq   int64          `json:"seq"`
	Kind  ir.JournalKind `json:"kind"`
	Slot  ir.SlotAddr    `json:"slot"`
	Other ir.SlotAddr    `json:"other"`

	// Type is the node type (add_node) or payload type (typed notify).
	Type   string `json:"type,omitempty"`
	Button string `json:"button,omitempty"`
	Event  string `json:"event,omitempty"`

	Link    int64  `json:"link,omitempty"`
	Removed int    `json:"removed,omitempty"`
	Token   string `json:"token,omitempty"`

	// Error is the error code of a rejected command.
	Error string `json:"error,omitempty"`

	Deliveries []graph.Delivery    `json:"deliveries,omitempty"`
	Cycles     int                 `json:"cycles,omitempty"`
	Hooks      []testutil.HookCall `json:"hooks,omitempty"`
}

// EventFromJournal builds a trace event from a stored journal entry and
// its delivery rows. Hook calls are not journaled, and Error keeps the
// stored message rather than a bare code.
func EventFromJournal(entry ir.JournalEntry, deliveries []ir.DeliveryRecord) TraceEvent {
	ev := TraceEvent{
		Seq:   entry.Seq,
		Kind:  entry.Kind,
		Slot:  entry.Slot,
		Other: entry.Other,
		Event: entry.Event,
		Link:  entry.Link,
		Token: entry.Token,
		Error: entry.Error,
	}
	if t, ok := entry.Args["type"].(ir.IRString); ok {
		ev.Type = string(t)
	}
	if b, ok := entry.Args["button"].(ir.IRString); ok {
		ev.Button = string(b)
	}
	if n, ok := entry.Args["removed"].(ir.IRInt); ok {
		ev.Removed = int(n)
	}
	for _, d := range deliveries {
		ev.Deliveries = append(ev.Deliveries, graph.Delivery{
			Depth: d.Depth, Emitter: d.Emitter, Receiver: d.Receiver, Node: d.Node, Pushed: d.Pushed,
		})
	}
	return ev
}

// Header is the event's first trace line.
func (e TraceEvent) Header() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s", e.Seq, e.Kind)
	switch {
	case e.Slot.Slot != 0:
		fmt.Fprintf(&b, " %s", e.Slot)
	case e.Slot.Node != 0:
		fmt.Fprintf(&b, " node=%d", e.Slot.Node)
	}
	if e.Other != (ir.SlotAddr{}) {
		fmt.Fprintf(&b, " -> %s", e.Other)
	}
	field := func(name, v string) {
		if v != "" {
			fmt.Fprintf(&b, " %s=%s", name, v)
		}
	}
	num := func(name string, v int64) {
		if v != 0 {
			fmt.Fprintf(&b, " %s=%d", name, v)
		}
	}
	field("type", e.Type)
	field("button", e.Button)
	field("event", e.Event)
	num("link", e.Link)
	num("removed", int64(e.Removed))
	field("token", e.Token)
	num("cycles", int64(e.Cycles))
	field("error", e.Error)
	return b.String()
}

// FormatTrace writes the trace as text: one header line per command, then
// its deliveries and hook calls indented.
//
//	#4 connect 1:2 -> 3:4 link=8
//	  hook connect node=3 slot=4 other=2
func FormatTrace(w io.Writer, trace []TraceEvent) error {
	for _, e := range trace {
		if _, err := fmt.Fprintln(w, e.Header()); err != nil {
			return err
		}
		for _, d := range e.Deliveries {
			var line string
			if d.Receiver == 0 {
				line = fmt.Sprintf("  deliver node=%d", d.Node)
			} else {
				line = fmt.Sprintf("  deliver depth=%d slot=%d from=%d node=%d", d.Depth, d.Receiver, d.Emitter, d.Node)
				if d.Pushed {
					line += " pushed"
				}
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		for _, h := range e.Hooks {
			if _, err := fmt.Fprintln(w, "  hook "+h.String()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every command in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors lists failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
