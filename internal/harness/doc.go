// Package harness runs scripted editing sessions against the engine and
// checks their outcome.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: chain_propagation
//	description: "A texture flows through a pass-through node"
//	catalog: ../catalogs/render      # CUE catalog dir, relative to this file
//	nodes:
//	  - id: loader
//	    type: TextureLoader
//	  - id: blur
//	    type: Blur
//	steps:
//	  - connect: {from: loader.texture, to: blur.in}
//	  - set: {slot: loader.texture, value: {name: albedo}, emit: true}
//	    expect: {deliveries: 1, pushes: 1}
//	  - connect: {from: loader.texture, to: blur.in}
//	    expect: {error: ALREADY_LINKED}
//	assertions:
//	  - type: payload
//	    slot: blur.in
//	    expect: {name: albedo}
//
// Node ids are aliases local to the scenario; slots are "<alias>.<name>",
// or "<alias>.inputs.<name>" and "<alias>.outputs.<name>" when a node uses
// one name in both places. Each step holds exactly one of connect,
// reconnect, disconnect, break_all, disconnect_all, remove_node, set,
// emit, emit_type, back, broadcast or select, and may carry an expect
// clause. A step without one must succeed.
//
// # Assertion Types
//
//   - linked, not_linked: two slots share a link, or do not
//   - link_count: total links in the graph
//   - payload: subset match of the payload a slot's node holds at the
//     slot's binding (no expect: the binding is empty)
//   - notified: how often a node's hook ran and the last event it saw
//   - selected: the output selected for a button
//   - trace_contains, trace_count, trace_order: journal kinds in the trace
//   - journal_replay: folding the journal rebuilds the live links
//
// # Deterministic Testing
//
// Every run uses a fresh graph, an in-memory SQLite journal, a
// testutil.DeterministicClock for seqs and a testutil.TokenSequence for
// propagation tokens. Node hooks are recorded with testutil.Recorder. The
// same scenario therefore always produces the same trace, which
// RunWithGolden compares against testdata/golden.
package harness
