// Package graph implements the typed slot dataflow graph and its
// notification protocol.
//
// A Graph owns Nodes; Nodes own input and output Slots. The Graph is the
// only mutator of link topology: Connect and Disconnect keep every link
// symmetric (recorded on both endpoints), type-compatible (same payload
// type, opposite places, different nodes) and within cardinality (an input
// that does not accept many inputs holds at most one link).
//
// # References
//
// Nodes and slots live in generation-checked arenas. SlotRef and NodeRef are
// weak handles: an index plus a generation. Removing an entity bumps the
// generation, so a stale handle resolves to "expired" in O(1) instead of
// dangling.
//
// # Notifications
//
// SendFrontNotification walks a snapshot of an output's links. Each
// receiving input performs a typed pull: the emitter node's producer
// capability is read at the emitter's binding and pushed into the receiver
// node's consumer capability at the receiver's binding. A node that owns
// outputs of the same payload type then re-emits from them, extending the
// chain. Structural events (GraphIsLoaded, NewFrameAvailable,
// SomeTasksWasUpdated) carry no payload and re-emit from every output when
// received on an input, or from every input when received on an output.
//
// Every propagation carries a token. Re-entering an emitter that is already
// on the propagation's emit stack is a cycle: the branch is skipped and
// reported. A per-propagation step quota bounds total deliveries.
//
// # Threading
//
// A Graph is not safe for concurrent use. The engine package serializes
// edits onto one goroutine.
package graph
